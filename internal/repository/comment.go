package repository

import (
	"context"

	"taskhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository stores comments on posts. Reads load the author summary.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a GORM-backed CommentRepository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// withAuthor preloads only the user columns an author summary needs.
func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("User", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "username", "email")
	})
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	comment := new(models.Comment)
	if err := withAuthor(readDB(r.db).WithContext(ctx)).Take(comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return comment, nil
}

// ListByPost returns a post's comments newest first; id breaks timestamp ties.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	comments := make([]*models.Comment, 0)
	err := withAuthor(readDB(r.db).WithContext(ctx)).
		Where("post_id = ?", postID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// Update writes only the content column.
func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Model(comment).Select("content").Updates(comment).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	switch {
	case res.Error != nil:
		return models.NewInternalError(res.Error)
	case res.RowsAffected == 0:
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}
