package repository

import (
	"context"
	"strings"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// TagRepository defines persistence operations for tags. Tags are global.
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id uint) (*models.Tag, error)
	List(ctx context.Context, opts ListOptions) ([]models.Tag, error)
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id uint) error
	NameTaken(ctx context.Context, name string, exceptID uint) (bool, error)
	ProjectIDs(ctx context.Context, tagID uint) ([]uint, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return takenOr(err, "Name")
	}
	return nil
}

func (r *tagRepository) GetByID(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := readDB(r.db).WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, notFoundOr(err, "Tag", id)
	}
	return &tag, nil
}

func (r *tagRepository) List(ctx context.Context, opts ListOptions) ([]models.Tag, error) {
	db := applyListOptions(readDB(r.db).WithContext(ctx).Model(&models.Tag{}), "tags", opts)

	var tags []models.Tag
	if err := db.Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *models.Tag) error {
	if err := r.db.WithContext(ctx).Save(tag).Error; err != nil {
		return takenOr(err, "Name")
	}
	return nil
}

func (r *tagRepository) Delete(ctx context.Context, id uint) error {
	return deleteWithLinks(ctx, r.db, &models.Tag{}, id, "Tag", "tag_id",
		[]string{"project_tags", "task_tags", "resource_tags"})
}

func (r *tagRepository) NameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Tag{}).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *tagRepository) ProjectIDs(ctx context.Context, tagID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.ProjectTag{}).
		Where("tag_id = ?", tagID).
		Pluck("project_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
