package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB opens GORM's postgres dialect over sqlmock so tests can pin
// the generated SQL.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestUserRepository_Lookups(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	maker := testutil.CreateUser(t, db, "maker", true)
	token := "verify-abc"
	require.NoError(t, db.Model(maker).Update("email_verification_token", token).Error)

	tests := []struct {
		name   string
		lookup func() (*models.User, error)
		wantID uint
	}{
		{"login by username", func() (*models.User, error) { return repo.GetByLogin(ctx, "maker") }, maker.ID},
		{"login by email any case", func() (*models.User, error) { return repo.GetByLogin(ctx, strings.ToUpper(maker.Email)) }, maker.ID},
		{"email", func() (*models.User, error) { return repo.GetByEmail(ctx, maker.Email) }, maker.ID},
		{"verification token", func() (*models.User, error) { return repo.GetByVerificationToken(ctx, token) }, maker.ID},
		{"empty token never matches", func() (*models.User, error) { return repo.GetByResetToken(ctx, "") }, 0},
		{"unknown login", func() (*models.User, error) { return repo.GetByLogin(ctx, "ghost") }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := tt.lookup()
			require.NoError(t, err)
			if tt.wantID == 0 {
				assert.Nil(t, user)
				return
			}
			require.NotNil(t, user)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}

	_, err := repo.GetByID(ctx, 999)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUserRepository_Taken(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	maker := testutil.CreateUser(t, db, "maker", true)

	taken, err := repo.UsernameTaken(ctx, "MAKER", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.UsernameTaken(ctx, "maker", maker.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a user's own name is not taken")

	taken, err = repo.EmailTaken(ctx, "someone@else.test", 0)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserRepository_GetByID_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WillReturnError(errors.New("connection reset by peer"))

	user, err := repo.GetByID(context.Background(), 1)
	assert.Nil(t, user)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Search_UsesILIKE(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`(username ILIKE $1 ESCAPE '\' OR email ILIKE $2 ESCAPE '\') AND id <> $3 ORDER BY username ASC LIMIT $4`)).
		WithArgs(`%50\%\_off%`, `%50\%\_off%`, 7, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(3, "bob"))

	users, err := repo.Search(context.Background(), "50%_off", 7, 20)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "maker", Email: "maker@taskhub.test"})
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	assert.Contains(t, err.Error(), "has already been taken")
	assert.NoError(t, mock.ExpectationsWereMet())

	sqliteDB := testutil.NewSQLiteDB(t)
	testutil.CreateUser(t, sqliteDB, "maker", true)
	err = NewUserRepository(sqliteDB).Create(context.Background(), &models.User{Username: "maker", Email: "other@taskhub.test", PasswordDigest: "x"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", true)
	bob := testutil.CreateUser(t, db, "bob", true)
	project := testutil.CreateProject(t, db, "Deck", true, alice.ID)

	alicePost := testutil.CreatePost(t, db, alice.ID, "Deck progress", true)
	bobPost := testutil.CreatePost(t, db, bob.ID, "Shed", true)
	require.NoError(t, db.Create(&models.Comment{UserID: bob.ID, PostID: alicePost.ID, Content: "nice"}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: alice.ID, PostID: bobPost.ID, Content: "cool"}).Error)
	require.NoError(t, db.Create(&models.Like{UserID: bob.ID, PostID: alicePost.ID}).Error)
	require.NoError(t, db.Create(&models.Like{UserID: alice.ID, PostID: bobPost.ID}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: bob.ID, FollowedID: alice.ID}).Error)
	testutil.Befriend(t, db, alice.ID, bob.ID)

	require.NoError(t, repo.Delete(ctx, alice.ID))

	count := func(model interface{}) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(1), count(&models.Post{}))
	assert.Equal(t, int64(0), count(&models.Comment{}))
	assert.Equal(t, int64(0), count(&models.Like{}))
	assert.Equal(t, int64(0), count(&models.Follow{}))
	assert.Equal(t, int64(0), count(&models.Friendship{}))
	assert.Equal(t, int64(0), count(&models.UserProject{}))

	// The project itself survives; only the membership goes.
	var p models.Project
	assert.NoError(t, db.First(&p, project.ID).Error)

	err := repo.Delete(ctx, alice.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUserRepository_LookupsAndCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", true)
	bob := testutil.CreateUser(t, db, "bob", false)
	carol := testutil.CreateUser(t, db, "carol", true)
	testutil.CreateProject(t, db, "Deck", true, alice.ID)
	testutil.CreateProject(t, db, "Fence", false, alice.ID)
	require.NoError(t, db.Create(&models.Follow{FollowerID: bob.ID, FollowedID: alice.ID}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: alice.ID, FollowedID: carol.ID}).Error)
	testutil.Befriend(t, db, carol.ID, alice.ID)

	t.Run("login by email or username", func(t *testing.T) {
		u, err := repo.GetByLogin(ctx, "ALICE@example.com")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, alice.ID, u.ID)

		u, err = repo.GetByLogin(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, bob.ID, u.ID)

		u, err = repo.GetByLogin(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("taken checks ignore the owner", func(t *testing.T) {
		taken, err := repo.UsernameTaken(ctx, "Alice", 0)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.UsernameTaken(ctx, "alice", alice.ID)
		require.NoError(t, err)
		assert.False(t, taken)

		taken, err = repo.EmailTaken(ctx, "bob@example.com", alice.ID)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("empty token never matches", func(t *testing.T) {
		u, err := repo.GetByResetToken(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("counts", func(t *testing.T) {
		c, err := repo.Counts(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, &UserCounts{Projects: 2, Followers: 1, Following: 1, Friends: 1}, c)
	})

	t.Run("search excludes self and escapes wildcards", func(t *testing.T) {
		users, err := repo.Search(ctx, "example", alice.ID, 20)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "bob", users[0].Username)

		users, err = repo.Search(ctx, "%", alice.ID, 20)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}
