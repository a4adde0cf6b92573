package repository

import (
	"context"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestPostRepository_Scopes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	viewer := testutil.CreateUser(t, db, "viewer", true)
	alice := testutil.CreateUser(t, db, "alice", true)
	bob := testutil.CreateUser(t, db, "bob", false)
	carol := testutil.CreateUser(t, db, "carol", false)
	dave := testutil.CreateUser(t, db, "dave", true)
	testutil.Befriend(t, db, bob.ID, viewer.ID)
	require.NoError(t, db.Create(&models.Follow{FollowerID: viewer.ID, FollowedID: dave.ID}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: viewer.ID, FollowedID: carol.ID}).Error)

	testutil.CreatePost(t, db, viewer.ID, "viewer public", true)
	testutil.CreatePost(t, db, viewer.ID, "viewer private", false)
	testutil.CreatePost(t, db, alice.ID, "alice public", true)
	testutil.CreatePost(t, db, alice.ID, "alice private", false)
	testutil.CreatePost(t, db, bob.ID, "bob public", true)
	testutil.CreatePost(t, db, carol.ID, "carol public", true)
	testutil.CreatePost(t, db, dave.ID, "dave public", true)

	list := func(scope FeedScope, viewerID uint) []string {
		posts, err := repo.List(ctx, scope, viewerID, PostFilter{Limit: 50})
		require.NoError(t, err)
		return titles(posts)
	}

	assert.Equal(t, []string{"dave public", "alice public", "viewer public"}, list(ScopeIndex, 0))
	assert.Equal(t, []string{"dave public", "bob public", "alice public", "viewer public"}, list(ScopeIndex, viewer.ID))
	assert.Equal(t, []string{"dave public", "bob public", "alice public", "viewer private", "viewer public"}, list(ScopeFeed, viewer.ID))
	assert.Equal(t, []string{"bob public", "viewer private", "viewer public"}, list(ScopeFriends, viewer.ID))
	// carol is followed but private and not a friend, so her posts stay hidden.
	assert.Equal(t, []string{"dave public", "viewer private", "viewer public"}, list(ScopeFollowing, viewer.ID))
}

func TestPostRepository_Filters(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", true)
	project := testutil.CreateProject(t, db, "Deck", true, alice.ID)
	tag := &models.Tag{Name: "Outdoor"}
	require.NoError(t, db.Create(tag).Error)
	require.NoError(t, db.Create(&models.ProjectTag{ProjectID: project.ID, TagID: tag.ID}).Error)

	update := &models.Post{UserID: alice.ID, Title: "Deck boards down", Content: "Half way", PostType: models.PostTypeUpdate, ProjectID: &project.ID, Public: true}
	require.NoError(t, db.Create(update).Error)
	testutil.CreatePost(t, db, alice.ID, "Which saw 100% works", true)

	posts, err := repo.List(ctx, ScopeIndex, 0, PostFilter{Type: models.PostTypeUpdate, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"Deck boards down"}, titles(posts))

	posts, err = repo.List(ctx, ScopeIndex, 0, PostFilter{Search: "HALF", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"Deck boards down"}, titles(posts))

	posts, err = repo.List(ctx, ScopeIndex, 0, PostFilter{Search: "100%", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"Which saw 100% works"}, titles(posts))

	posts, err = repo.List(ctx, ScopeIndex, 0, PostFilter{Tags: []string{" outdoor ", ""}, Limit: 20})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Project)
	assert.Equal(t, "Deck", posts[0].Project.Name)
	assert.Equal(t, "alice", posts[0].User.Username)

	posts, err = repo.List(ctx, ScopeIndex, 0, PostFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Deck boards down"}, titles(posts))
}

func TestPostRepository_LikesAndCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", true)
	bob := testutil.CreateUser(t, db, "bob", true)
	post := testutil.CreatePost(t, db, alice.ID, "Shed", true)
	require.NoError(t, db.Create(&models.Comment{UserID: bob.ID, PostID: post.ID, Content: "nice"}).Error)

	created, err := repo.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, created, "second like is a no-op")

	got, err := repo.GetByID(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
	assert.Equal(t, 1, got.CommentsCount)
	assert.True(t, got.Liked)

	got, err = repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, got.Liked)

	removed, err := repo.Unlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Unlike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := repo.LikesCount(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", true)
	post := testutil.CreatePost(t, db, alice.ID, "Draft", true)
	require.NoError(t, db.Create(&models.Like{UserID: alice.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: alice.ID, PostID: post.ID, Content: "bump"}).Error)

	post.Title = "Final"
	post.Public = false
	require.NoError(t, repo.Update(ctx, post))

	got, err := repo.GetByID(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.False(t, got.Public)

	require.NoError(t, repo.Delete(ctx, post.ID))
	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Like{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = repo.GetByID(ctx, post.ID, 0)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}
