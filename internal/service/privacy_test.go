package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivacy_CanViewPosts(t *testing.T) {
	t.Parallel()
	friends := &friendRepoStub{areFriendsFn: func(_ context.Context, a, b uint) (bool, error) {
		return (a == 1 && b == 2) || (a == 2 && b == 1), nil
	}}
	p := NewPrivacy(friends)
	private := &models.User{ID: 1, Public: false}
	public := &models.User{ID: 3, Public: true}

	tests := []struct {
		name   string
		owner  *models.User
		viewer uint
		want   bool
	}{
		{"owner", private, 1, true},
		{"friend of private owner", private, 2, true},
		{"stranger to private owner", private, 4, false},
		{"anonymous to private owner", private, 0, false},
		{"anonymous to public owner", public, 0, true},
		{"stranger to public owner", public, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.CanViewPosts(context.Background(), tt.owner, tt.viewer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrivacy_CanViewPost_PropagatesErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	p := NewPrivacy(&friendRepoStub{areFriendsFn: func(context.Context, uint, uint) (bool, error) {
		return false, boom
	}})
	post := &models.Post{UserID: 1, Public: true, User: models.User{ID: 1}}

	_, err := p.CanViewPost(context.Background(), post, 2)
	assert.ErrorIs(t, err, boom)

	// Private posts short-circuit before any lookup.
	post.Public = false
	ok, err := p.CanViewPost(context.Background(), post, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_LoginRepositoryError(t *testing.T) {
	t.Parallel()
	repo := noopUserRepo()
	repo.getByLoginFn = func(context.Context, string) (*models.User, error) {
		return nil, models.NewInternalError(errors.New("connection refused"))
	}
	svc := NewAuthService(repo, NewTokens(testSecret, time.Hour), &mailerStub{}, nil, false)

	_, err := svc.Login(context.Background(), LoginInput{Login: "someone", Password: "password"})
	assertAppError(t, err, models.CodeInternal)
}

func TestAuthService_SignupCreateConflict(t *testing.T) {
	t.Parallel()
	repo := noopUserRepo()
	repo.createFn = func(context.Context, *models.User) error {
		return models.NewValidationError("Username or email has already been taken")
	}
	svc := NewAuthService(repo, NewTokens(testSecret, time.Hour), &mailerStub{}, nil, false)
	svc.hashCost = 4

	_, err := svc.Signup(context.Background(), SignupInput{Username: "racer", Email: "racer@example.com", Password: "secret123"})
	assertValidationError(t, err)
}
