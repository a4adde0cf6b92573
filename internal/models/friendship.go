package models

import "time"

// FriendshipStatus is the state of a friend request.
type FriendshipStatus string

// A request starts pending. Declined requests may be re-sent, which re-opens them.
const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	FriendshipStatusDeclined FriendshipStatus = "declined"
)

// Friendship is a friend request from Requester to Requestee. There is at
// most one row per unordered pair; once accepted it counts for both users.
type Friendship struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RequesterID uint             `gorm:"not null;uniqueIndex:idx_friendships_pair" json:"requester_id"`
	RequesteeID uint             `gorm:"not null;uniqueIndex:idx_friendships_pair;index" json:"requestee_id"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;index:idx_friendships_status" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Requester User `gorm:"foreignKey:RequesterID" json:"-"`
	Requestee User `gorm:"foreignKey:RequesteeID" json:"-"`
}

func (Friendship) TableName() string { return "friendships" }

// Other returns the user on the far side of the edge from userID.
func (f Friendship) Other(userID uint) uint {
	if f.RequesterID == userID {
		return f.RequesteeID
	}
	return f.RequesterID
}

// Follow is a one-way subscription from follower to followed.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FollowedID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
