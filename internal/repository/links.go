package repository

import (
	"context"
	"strings"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// LinkRecord constrains a join model to a pointer that implements models.Link.
type LinkRecord[T any] interface {
	*T
	models.Link
}

// LinkFilter narrows a join-table index to rows where Column equals Value.
type LinkFilter struct {
	Column string
	Value  uint
}

// LinkRepository persists one of the nine join tables. The same code serves
// all of them; the table and its two foreign keys come from the model type.
type LinkRepository[T any, PT LinkRecord[T]] struct {
	db    *gorm.DB
	table string
	left  models.LinkSide
	right models.LinkSide
}

// NewLinkRepository builds the repository for join model T.
func NewLinkRepository[T any, PT LinkRecord[T]](db *gorm.DB) *LinkRepository[T, PT] {
	var zero T
	table := PT(&zero).TableName()
	left, right := models.LinkSides(table)
	return &LinkRepository[T, PT]{db: db, table: table, left: left, right: right}
}

func (r *LinkRepository[T, PT]) Table() string { return r.table }

// Sides returns the left and right foreign keys of the table.
func (r *LinkRepository[T, PT]) Sides() (models.LinkSide, models.LinkSide) {
	return r.left, r.right
}

// Label is the human name used in errors, e.g. "Project task".
func (r *LinkRepository[T, PT]) Label() string {
	return r.left.Label + " " + strings.ToLower(r.right.Label)
}

func (r *LinkRepository[T, PT]) List(ctx context.Context, filters []LinkFilter, limit, offset int) ([]T, error) {
	db := readDB(r.db).WithContext(ctx).Table(r.table)
	for _, f := range filters {
		if f.Column != r.left.Column && f.Column != r.right.Column {
			continue
		}
		db = db.Where(f.Column+" = ?", f.Value)
	}

	rows := []T{}
	if err := page(db.Order("id ASC"), limit, offset).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *LinkRepository[T, PT]) GetByID(ctx context.Context, id uint) (PT, error) {
	row := PT(new(T))
	if err := readDB(r.db).WithContext(ctx).Table(r.table).First(row, id).Error; err != nil {
		return nil, notFoundOr(err, r.Label(), id)
	}
	return row, nil
}

// RowExists reports whether the row a foreign key points at is present.
func (r *LinkRepository[T, PT]) RowExists(ctx context.Context, side models.LinkSide, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Table(side.Table).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// PairTaken reports whether (left, right) already exists on a row other than exceptID.
func (r *LinkRepository[T, PT]) PairTaken(ctx context.Context, left, right, exceptID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Table(r.table).
		Where(r.left.Column+" = ? AND "+r.right.Column+" = ?", left, right)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *LinkRepository[T, PT]) Create(ctx context.Context, row PT) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return takenOr(err, r.right.Label)
	}
	return nil
}

func (r *LinkRepository[T, PT]) Update(ctx context.Context, row PT) error {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return takenOr(err, r.right.Label)
	}
	return nil
}

func (r *LinkRepository[T, PT]) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(PT(new(T)), id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(r.Label(), id)
	}
	return nil
}
