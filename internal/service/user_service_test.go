package service

import (
	"context"
	"strings"
	"testing"

	"taskhub/internal/cache"
	"taskhub/internal/testutil"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T, rdb *redis.Client) (*UserService, *repos, *mailerStub) {
	t.Helper()
	r := newRepos(t)
	mail := &mailerStub{}
	return NewUserService(r.users, r.follows, r.friends, mail, rdb, bcrypt.MinCost), r, mail
}

func TestUserService_GetProfile(t *testing.T) {
	t.Parallel()
	svc, r, _ := newUserService(t, nil)
	ctx := context.Background()

	shy := testutil.CreateUser(t, r.db, "shy", false)
	fan := testutil.CreateUser(t, r.db, "fan", true)
	require.NoError(t, r.follows.Create(ctx, fan.ID, shy.ID))
	testutil.Befriend(t, r.db, shy.ID, fan.ID)
	testutil.CreateProject(t, r.db, "Fence", false, shy.ID)

	profile, err := svc.GetProfile(ctx, shy.ID, fan.ID)
	require.NoError(t, err)
	assert.Nil(t, profile.Email, "private email hidden from others")
	assert.EqualValues(t, 1, profile.ProjectsCount)
	assert.EqualValues(t, 1, profile.FollowersCount)
	assert.EqualValues(t, 0, profile.FollowingCount)
	assert.EqualValues(t, 1, profile.FriendsCount)

	own, err := svc.GetProfile(ctx, shy.ID, shy.ID)
	require.NoError(t, err)
	require.NotNil(t, own.Email)
	assert.Equal(t, "shy@example.com", *own.Email)

	_, err = svc.GetProfile(ctx, 999, shy.ID)
	assertNotFoundError(t, err)
}

func TestUserService_GetProfile_CachedAndInvalidated(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	svc, r, _ := newUserService(t, rdb)
	ctx := context.Background()
	user := testutil.CreateUser(t, r.db, "cached", true)

	_, err := svc.GetProfile(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.UserProfileKey(user.ID)))

	_, err = svc.UpdateUser(ctx, UpdateUserInput{ActorID: user.ID, UserID: user.ID, Username: strPtr("renamed")})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.UserProfileKey(user.ID)))

	profile, err := svc.GetProfile(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "renamed", profile.Username)
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()
	svc, r, mail := newUserService(t, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, r.db, "jane", true)
	testutil.CreateUser(t, r.db, "taken", true)

	t.Run("someone else", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, UpdateUserInput{ActorID: 99, UserID: user.ID, Public: boolPtr(false)})
		assertForbiddenError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, UpdateUserInput{
			ActorID:  user.ID,
			UserID:   user.ID,
			Username: strPtr(strings.Repeat("x", 31)),
			Password: strPtr("123"),
		})
		appErr := assertValidationError(t, err)
		assert.Len(t, appErr.Fields, 2)
	})

	t.Run("taken", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, UpdateUserInput{ActorID: user.ID, UserID: user.ID, Username: strPtr("taken")})
		appErr := assertValidationError(t, err)
		assert.Equal(t, "Username has already been taken", appErr.Message)
	})

	t.Run("email change resets verification", func(t *testing.T) {
		updated, err := svc.UpdateUser(ctx, UpdateUserInput{
			ActorID: user.ID,
			UserID:  user.ID,
			Email:   strPtr("Jane.New@Example.com"),
			Public:  boolPtr(false),
		})
		require.NoError(t, err)
		assert.Equal(t, "jane.new@example.com", updated.Email)
		assert.False(t, updated.EmailVerified())
		assert.NotNil(t, updated.EmailVerificationToken)
		assert.False(t, updated.Public)
		assert.Equal(t, []string{"jane.new@example.com"}, mail.verifications)
	})

	t.Run("password", func(t *testing.T) {
		updated, err := svc.UpdateUser(ctx, UpdateUserInput{ActorID: user.ID, UserID: user.ID, Password: strPtr("brandnew1")})
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordDigest), []byte("brandnew1")))
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()
	svc, r, _ := newUserService(t, nil)
	ctx := context.Background()
	gone := testutil.CreateUser(t, r.db, "gone", true)
	stays := testutil.CreateUser(t, r.db, "stays", true)
	post := testutil.CreatePost(t, r.db, gone.ID, "bye", true)
	require.NoError(t, r.follows.Create(ctx, stays.ID, gone.ID))
	testutil.Befriend(t, r.db, gone.ID, stays.ID)
	_, err := r.posts.Like(ctx, stays.ID, post.ID)
	require.NoError(t, err)

	assertForbiddenError(t, svc.DeleteUser(ctx, stays.ID, gone.ID))
	require.NoError(t, svc.DeleteUser(ctx, gone.ID, gone.ID))

	_, err = r.users.GetByID(ctx, gone.ID)
	assertNotFoundError(t, err)
	_, err = r.posts.GetByID(ctx, post.ID, 0)
	assertNotFoundError(t, err)

	counts, err := r.users.Counts(ctx, stays.ID)
	require.NoError(t, err)
	assert.Zero(t, counts.Following)
	assert.Zero(t, counts.Friends)
}
