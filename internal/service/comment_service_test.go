package service

import (
	"context"
	"strings"
	"testing"

	"taskhub/internal/notifications"
	"taskhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommentService(t *testing.T) (*CommentService, *repos, *eventRecorder) {
	t.Helper()
	posts, r, events := newPostService(t)
	return NewCommentService(r.comments, posts, r.users, events), r, events
}

func TestCommentService_CreateComment(t *testing.T) {
	t.Parallel()
	svc, r, events := newCommentService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, r.db, "author", true)
	reader := testutil.CreateUser(t, r.db, "reader", true)
	post := testutil.CreatePost(t, r.db, author.ID, "tiling", true)

	t.Run("validation", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: "   "})
		assertValidationError(t, err)
		_, err = svc.CreateComment(ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: strings.Repeat("x", 2001)})
		assertValidationError(t, err)
	})

	comment, err := svc.CreateComment(ctx, CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: " Nice grout "})
	require.NoError(t, err)
	assert.Equal(t, "Nice grout", comment.Content)
	assert.Equal(t, "reader", comment.User.Username)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, author.ID, got[0].UserID)
	assert.Equal(t, notifications.EventCommentCreated, got[0].Type)
	assert.EqualValues(t, comment.ID, got[0].Payload["comment_id"])
}

func TestCommentService_CreateRequiresViewablePost(t *testing.T) {
	t.Parallel()
	svc, r, _ := newCommentService(t)
	author := testutil.CreateUser(t, r.db, "author", true)
	reader := testutil.CreateUser(t, r.db, "reader", true)
	post := testutil.CreatePost(t, r.db, author.ID, "draft", false)

	_, err := svc.CreateComment(context.Background(), CreateCommentInput{UserID: reader.ID, PostID: post.ID, Content: "hi"})
	assertForbiddenError(t, err)

	_, err = svc.CreateComment(context.Background(), CreateCommentInput{UserID: reader.ID, PostID: 999, Content: "hi"})
	assertNotFoundError(t, err)
}

func TestCommentService_GetRequiresViewablePost(t *testing.T) {
	t.Parallel()
	svc, r, _ := newCommentService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, r.db, "author", true)
	reader := testutil.CreateUser(t, r.db, "reader", true)
	post := testutil.CreatePost(t, r.db, author.ID, "draft", false)

	comment, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "private note"})
	require.NoError(t, err)

	got, err := svc.GetComment(ctx, comment.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "private note", got.Content)

	_, err = svc.GetComment(ctx, comment.ID, reader.ID)
	assertForbiddenError(t, err)
	_, err = svc.GetComment(ctx, comment.ID, 0)
	assertForbiddenError(t, err)
}

func TestCommentService_ListNewestFirst(t *testing.T) {
	t.Parallel()
	svc, r, _ := newCommentService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, r.db, "author", true)
	post := testutil.CreatePost(t, r.db, author.ID, "paint", true)

	for _, body := range []string{"first", "second", "third"} {
		_, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: body})
		require.NoError(t, err)
	}

	comments, err := svc.ListComments(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "third", comments[0].Content)
	assert.Equal(t, "first", comments[2].Content)
}

func TestCommentService_UpdateAndDelete_AuthorOnly(t *testing.T) {
	t.Parallel()
	svc, r, _ := newCommentService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, r.db, "author", true)
	other := testutil.CreateUser(t, r.db, "other", true)
	post := testutil.CreatePost(t, r.db, author.ID, "paint", true)

	comment, err := svc.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "v1"})
	require.NoError(t, err)

	_, err = svc.UpdateComment(ctx, UpdateCommentInput{UserID: other.ID, CommentID: comment.ID, Content: "v2"})
	assertForbiddenError(t, err)
	assertForbiddenError(t, svc.DeleteComment(ctx, other.ID, comment.ID))

	updated, err := svc.UpdateComment(ctx, UpdateCommentInput{UserID: author.ID, CommentID: comment.ID, Content: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)

	require.NoError(t, svc.DeleteComment(ctx, author.ID, comment.ID))
	_, err = svc.GetComment(ctx, comment.ID, author.ID)
	assertNotFoundError(t, err)
}
