package repository

import (
	"context"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// FollowRepository defines persistence operations for one-way follows.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followedID uint) error
	Delete(ctx context.Context, followerID, followedID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error)
	Followers(ctx context.Context, userID uint) ([]models.User, error)
	Following(ctx context.Context, userID uint) ([]models.User, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowedBy(ctx context.Context, followerIDs, excludeIDs []uint, limit int) ([]models.User, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, followerID, followedID uint) error {
	follow := &models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := r.db.WithContext(ctx).Create(follow).Error; err != nil {
		return takenOr(err, "Follow")
	}
	return nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followedID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Select("users.*").
		Joins("JOIN follows f ON f.follower_id = users.id").
		Where("f.followed_id = ?", userID).
		Order("f.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) Following(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Select("users.*").
		Joins("JOIN follows f ON f.followed_id = users.id").
		Where("f.follower_id = ?", userID).
		Order("f.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followed_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// FollowedBy returns distinct users followed by any of followerIDs, minus excludeIDs.
func (r *followRepository) FollowedBy(ctx context.Context, followerIDs, excludeIDs []uint, limit int) ([]models.User, error) {
	if len(followerIDs) == 0 {
		return []models.User{}, nil
	}
	q := readDB(r.db).WithContext(ctx).
		Where("id IN (SELECT followed_id FROM follows WHERE follower_id IN ?)", followerIDs)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}

	var users []models.User
	if err := q.Order("id ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
