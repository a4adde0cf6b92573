package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/observability"
	"taskhub/internal/repository"
	"taskhub/internal/validation"

	"github.com/redis/go-redis/v9"
)

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	friendRepo repository.FriendRepository
	mailer     Mailer
	rdb        *redis.Client
	hashCost   int
	now        func() time.Time
}

// UserProfile is the public profile with graph counters.
type UserProfile struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	Public         bool      `json:"public"`
	Email          *string   `json:"email"`
	CreatedAt      time.Time `json:"created_at"`
	ProjectsCount  int64     `json:"projects_count"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	FriendsCount   int64     `json:"friends_count"`
}

// UpdateUserInput carries a partial account update; nil fields are left alone.
type UpdateUserInput struct {
	ActorID  uint
	UserID   uint
	Username *string
	Email    *string
	Public   *bool
	Password *string
}

func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	friendRepo repository.FriendRepository,
	mailer Mailer,
	rdb *redis.Client,
	hashCost int,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		friendRepo: friendRepo,
		mailer:     mailer,
		rdb:        rdb,
		hashCost:   hashCost,
		now:        time.Now,
	}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// GetProfile returns id's profile as seen by viewerID. The email is shown only
// for public profiles or to the owner.
func (s *UserService) GetProfile(ctx context.Context, id, viewerID uint) (*UserProfile, error) {
	profile, err := cache.Aside(ctx, s.rdb, "user_profile", cache.UserProfileKey(id), cache.UserProfileTTL,
		func(ctx context.Context) (*UserProfile, error) {
			return s.loadProfile(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	if !profile.Public && viewerID != id {
		profile.Email = nil
	}
	return profile, nil
}

func (s *UserService) loadProfile(ctx context.Context, id uint) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.userRepo.Counts(ctx, id)
	if err != nil {
		return nil, err
	}
	email := user.Email
	return &UserProfile{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName(),
		Public:         user.Public,
		Email:          &email,
		CreatedAt:      user.CreatedAt,
		ProjectsCount:  counts.Projects,
		FollowersCount: counts.Followers,
		FollowingCount: counts.Following,
		FriendsCount:   counts.Friends,
	}, nil
}

// UpdateUser applies a self-service account update. Changing the email
// address resets verification and mails a fresh link.
func (s *UserService) UpdateUser(ctx context.Context, in UpdateUserInput) (*models.User, error) {
	if in.ActorID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own account")
	}
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var errs []string
	var newUsername, newEmail string
	if in.Username != nil {
		newUsername = strings.TrimSpace(*in.Username)
		if newUsername == user.Username {
			newUsername = ""
		} else if err := validation.ValidateUsername(newUsername); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if in.Email != nil {
		newEmail = validation.NormalizeEmail(*in.Email)
		if newEmail == user.Email {
			newEmail = ""
		} else if err := validation.ValidateEmail(newEmail); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if in.Password != nil {
		if err := validation.ValidatePassword(*in.Password); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := models.NewValidationErrors(errs...); err != nil {
		return nil, err
	}
	if err := checkAvailable(ctx, s.userRepo, newUsername, newEmail, user.ID); err != nil {
		return nil, err
	}

	if newUsername != "" {
		user.Username = newUsername
	}
	emailChanged := newEmail != ""
	if emailChanged {
		token, err := newURLToken()
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		now := s.now().UTC()
		user.Email = newEmail
		user.EmailVerifiedAt = nil
		user.EmailVerificationToken = &token
		user.EmailVerificationSentAt = &now
	}
	if in.Public != nil {
		user.Public = *in.Public
	}
	if in.Password != nil {
		digest, err := hashPassword(*in.Password, s.hashCost)
		if err != nil {
			return nil, err
		}
		user.PasswordDigest = digest
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	cache.InvalidateUserProfile(ctx, s.rdb, user.ID)

	if emailChanged && s.mailer != nil {
		if err := s.mailer.SendVerification(ctx, user); err != nil {
			middleware.Logger.WarnContext(ctx, "verification mail failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return user, nil
}

// DeleteUser removes the caller's own account together with everything it owns.
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID uint) error {
	if actorID != userID {
		return models.NewForbiddenError("You can only delete your own account")
	}

	// Collect neighbours first; their counters change once the account is gone.
	affected := s.neighbours(ctx, userID)

	err := s.userRepo.Delete(ctx, userID)
	observability.Audit(ctx, "delete_account", userID, err)
	if err != nil {
		return err
	}
	cache.InvalidateUserProfile(ctx, s.rdb, append(affected, userID)...)
	return nil
}

func (s *UserService) neighbours(ctx context.Context, userID uint) []uint {
	var ids []uint
	if s.followRepo != nil {
		if followers, err := s.followRepo.Followers(ctx, userID); err == nil {
			for _, u := range followers {
				ids = append(ids, u.ID)
			}
		}
		if following, err := s.followRepo.FollowingIDs(ctx, userID); err == nil {
			ids = append(ids, following...)
		}
	}
	if s.friendRepo != nil {
		if friends, err := s.friendRepo.GetFriendIDs(ctx, userID); err == nil {
			ids = append(ids, friends...)
		}
	}
	return ids
}
