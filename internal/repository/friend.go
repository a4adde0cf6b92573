package repository

import (
	"context"
	"errors"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// FriendRepository stores friendship edges. An edge is directed from requester
// to requestee while pending and counts for both sides once accepted.
type FriendRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error)
	GetRequest(ctx context.Context, requesterID, requesteeID uint, status models.FriendshipStatus) (*models.Friendship, error)
	GetFriends(ctx context.Context, userID uint) ([]models.User, error)
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
	AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetPendingRequests(ctx context.Context, userID uint) ([]models.Friendship, error)
	PendingRequesteeIDs(ctx context.Context, requesterID uint) ([]uint, error)
	PendingRequesterIDs(ctx context.Context, requesteeID uint) ([]uint, error)
	UpdateStatus(ctx context.Context, friendshipID uint, status models.FriendshipStatus) error
	RemoveFriendship(ctx context.Context, userID1, userID2 uint) (bool, error)
}

type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository returns a GORM-backed FriendRepository.
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

// between matches the edge joining a and b in either direction.
func between(a, b uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(requester_id = ? AND requestee_id = ?) OR (requester_id = ? AND requestee_id = ?)", a, b, b, a)
	}
}

// touching matches every edge userID is on.
func touching(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("requester_id = ? OR requestee_id = ?", userID, userID)
	}
}

func withStatus(status models.FriendshipStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}
}

// first loads one edge; no match is (nil, nil).
func (r *friendRepository) first(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (*models.Friendship, error) {
	f := new(models.Friendship)
	err := r.db.WithContext(ctx).Scopes(scopes...).Take(f).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, models.NewInternalError(err)
	}
	return f, nil
}

func (r *friendRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	if err := r.db.WithContext(ctx).Create(friendship).Error; err != nil {
		return takenOr(err, "Friend request")
	}
	return nil
}

// GetFriendshipBetweenUsers returns the edge in either direction, whatever its status.
func (r *friendRepository) GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	return r.first(ctx, between(userID1, userID2))
}

// GetRequest returns the directed edge requester→requestee in the given status.
func (r *friendRepository) GetRequest(ctx context.Context, requesterID, requesteeID uint, status models.FriendshipStatus) (*models.Friendship, error) {
	return r.first(ctx, withStatus(status), func(db *gorm.DB) *gorm.DB {
		return db.Where("requester_id = ? AND requestee_id = ?", requesterID, requesteeID)
	})
}

// GetFriendIDs lists the other side of every accepted edge.
func (r *friendRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var edges []models.Friendship
	err := readDB(r.db).WithContext(ctx).
		Select("requester_id", "requestee_id").
		Scopes(withStatus(models.FriendshipStatusAccepted), touching(userID)).
		Find(&edges).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	ids := make([]uint, len(edges))
	for i, e := range edges {
		ids[i] = e.Other(userID)
	}
	return ids, nil
}

// GetFriends loads the users behind GetFriendIDs, ordered by username.
func (r *friendRepository) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	ids, err := r.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Order("username ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *friendRepository) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	var n int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Friendship{}).
		Scopes(withStatus(models.FriendshipStatusAccepted), between(userID1, userID2)).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

// GetPendingRequests lists requests waiting on userID, newest first, with the requester loaded.
func (r *friendRepository) GetPendingRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	requests := make([]models.Friendship, 0)
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Scopes(withStatus(models.FriendshipStatusPending)).
		Where("requestee_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *friendRepository) pendingColumn(ctx context.Context, matchCol string, id uint, pluck string) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Scopes(withStatus(models.FriendshipStatusPending)).
		Where(matchCol+" = ?", id).
		Pluck(pluck, &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// PendingRequesteeIDs lists users requesterID has asked and not heard back from.
func (r *friendRepository) PendingRequesteeIDs(ctx context.Context, requesterID uint) ([]uint, error) {
	return r.pendingColumn(ctx, "requester_id", requesterID, "requestee_id")
}

// PendingRequesterIDs lists users waiting on requesteeID.
func (r *friendRepository) PendingRequesterIDs(ctx context.Context, requesteeID uint) ([]uint, error) {
	return r.pendingColumn(ctx, "requestee_id", requesteeID, "requester_id")
}

func (r *friendRepository) UpdateStatus(ctx context.Context, friendshipID uint, status models.FriendshipStatus) error {
	err := r.db.WithContext(ctx).Model(&models.Friendship{ID: friendshipID}).Update("status", status).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// RemoveFriendship deletes the edge in either direction and reports whether one existed.
func (r *friendRepository) RemoveFriendship(ctx context.Context, userID1, userID2 uint) (bool, error) {
	res := r.db.WithContext(ctx).Scopes(between(userID1, userID2)).Delete(&models.Friendship{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
