package repository

import (
	"context"
	"strings"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// ListOptions carries paging and the optional name filter for catalog indexes.
type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// createOwned inserts item and, inside the same transaction, the link row that
// ties it to its creator. link runs after the insert so it can read the new ID.
func createOwned(ctx context.Context, db *gorm.DB, item interface{}, ownerID uint, link func() models.Link) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		if ownerID == 0 {
			return nil
		}
		return tx.Create(link()).Error
	})
}

// visibleTo restricts a catalog query to public rows plus rows linked to userID
// through ownerTable (user_projects, user_tasks, user_resources).
func visibleTo(db *gorm.DB, table, ownerTable, column string, userID uint) *gorm.DB {
	return db.Where(
		"("+table+".public = ? OR "+table+".id IN (SELECT "+column+" FROM "+ownerTable+" WHERE user_id = ?))",
		true, userID,
	)
}

func applyListOptions(db *gorm.DB, table string, opts ListOptions) *gorm.DB {
	if q := strings.TrimSpace(opts.Query); q != "" {
		db = db.Where(likeClause(db, table+".name"), containsPattern(q))
	}
	return page(db.Order(table+".created_at DESC").Order(table+".id DESC"), opts.Limit, opts.Offset)
}

// isLinked reports whether userID has a row in ownerTable pointing at id.
func isLinked(ctx context.Context, db *gorm.DB, ownerTable, column string, userID, id uint) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Table(ownerTable).
		Where("user_id = ? AND "+column+" = ?", userID, id).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// deleteWithLinks removes the row, every link row that references it, and nulls
// post references, all in one transaction.
func deleteWithLinks(ctx context.Context, db *gorm.DB, model interface{}, id uint, label, column string, linkTables []string) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range linkTables {
			if err := tx.Exec("DELETE FROM "+table+" WHERE "+column+" = ?", id).Error; err != nil {
				return err
			}
		}
		if column != "tag_id" {
			if err := tx.Model(&models.Post{}).Where(column+" = ?", id).Update(column, nil).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(model, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, label, id)
	}
	return nil
}

type taggedRow struct {
	models.Tag
	OwnerID uint
}

// tagsFor loads the tags of several rows at once, keyed by the owning row's ID.
func tagsFor(ctx context.Context, db *gorm.DB, linkTable, column string, ids []uint) (map[uint][]models.Tag, error) {
	out := make(map[uint][]models.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []taggedRow
	if err := db.WithContext(ctx).Table("tags").
		Select("tags.*, lt."+column+" AS owner_id").
		Joins("JOIN "+linkTable+" lt ON lt.tag_id = tags.id").
		Where("lt."+column+" IN ?", ids).
		Order("tags.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.OwnerID] = append(out[row.OwnerID], row.Tag)
	}
	return out, nil
}
