package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"taskhub/internal/models"
	"taskhub/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_ListByPostLoadsAuthorSummary(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "comments" WHERE post_id = \$1 ORDER BY "created_at" DESC,"id" DESC`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "user_id", "post_id"}).
			AddRow(8, "Sand it first", 21, 3).
			AddRow(5, "Nice joints", 22, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","username","email" FROM "users" WHERE "users"."id" IN ($1,$2)`)).
		WithArgs(21, 22).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).
			AddRow(21, "woodworker", "wood@example.com").
			AddRow(22, "", "tiler@example.com"))

	comments, err := repo.ListByPost(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Sand it first", comments[0].Content)
	assert.Equal(t, "woodworker", comments[0].User.DisplayName())
	assert.Equal(t, "tiler", comments[1].User.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListByPostEmpty(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	comments, err := NewCommentRepository(db).ListByPost(context.Background(), 99)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}

func TestCommentRepository_Lifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "builder", true)
	post := testutil.CreatePost(t, db, owner.ID, "Deck rebuild", true)

	older := &models.Comment{UserID: owner.ID, PostID: post.ID, Content: "day one", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Comment{UserID: owner.ID, PostID: post.ID, Content: "day two"}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	listed, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, newer.ID, listed[0].ID)

	older.Content = "day one, revised"
	require.NoError(t, repo.Update(ctx, older))
	got, err := repo.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "day one, revised", got.Content)
	assert.Equal(t, "builder", got.User.Username)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.GetByID(ctx, older.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(repo.Delete(ctx, older.ID)))
}
