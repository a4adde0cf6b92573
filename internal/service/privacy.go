package service

import (
	"context"

	"taskhub/internal/models"
	"taskhub/internal/repository"
)

// Privacy answers can-view questions for profiles and posts.
type Privacy struct {
	friendRepo repository.FriendRepository
}

func NewPrivacy(friendRepo repository.FriendRepository) *Privacy {
	return &Privacy{friendRepo: friendRepo}
}

// CanViewPosts reports whether viewerID may see owner's posts. A zero viewerID is anonymous.
// Owners always see their own posts; private owners are visible to friends only.
func (p *Privacy) CanViewPosts(ctx context.Context, owner *models.User, viewerID uint) (bool, error) {
	if viewerID != 0 && owner.ID == viewerID {
		return true, nil
	}
	if owner.Public {
		return true, nil
	}
	if viewerID == 0 {
		return false, nil
	}
	return p.friendRepo.AreFriends(ctx, owner.ID, viewerID)
}

// CanViewPost adds the post's own visibility flag on top of CanViewPosts.
func (p *Privacy) CanViewPost(ctx context.Context, post *models.Post, viewerID uint) (bool, error) {
	if viewerID != 0 && post.UserID == viewerID {
		return true, nil
	}
	if !post.Public {
		return false, nil
	}
	return p.CanViewPosts(ctx, &post.User, viewerID)
}
