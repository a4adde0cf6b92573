// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"taskhub/internal/database"
	"taskhub/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a private in-memory SQLite database with the full schema applied.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:taskhub_test_%d?mode=memory&cache=shared&_foreign_keys=1", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" would otherwise see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts an unverified user whose password is "password".
func CreateUser(t testing.TB, db *gorm.DB, username string, public bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		PasswordDigest: string(hash),
		Public:         public,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateProject inserts a project, linking it to owner when owner is non-zero.
func CreateProject(t testing.TB, db *gorm.DB, name string, public bool, owner uint) *models.Project {
	t.Helper()
	p := &models.Project{Name: name, Public: public}
	require.NoError(t, db.Create(p).Error)
	if owner != 0 {
		require.NoError(t, db.Create(&models.UserProject{UserID: owner, ProjectID: p.ID}).Error)
	}
	return p
}

// CreateTask inserts a pending task, linking it to owner when owner is non-zero.
func CreateTask(t testing.TB, db *gorm.DB, name string, public bool, owner uint) *models.Task {
	t.Helper()
	task := &models.Task{Name: name, Public: public, Status: models.TaskStatusPending}
	require.NoError(t, db.Create(task).Error)
	if owner != 0 {
		require.NoError(t, db.Create(&models.UserTask{UserID: owner, TaskID: task.ID}).Error)
	}
	return task
}

// CreatePost inserts a general post by author.
func CreatePost(t testing.TB, db *gorm.DB, author uint, title string, public bool) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:   author,
		Title:    title,
		Content:  title + " body",
		PostType: models.PostTypeGeneral,
		Public:   public,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Befriend stores an accepted friendship between a and b.
func Befriend(t testing.TB, db *gorm.DB, a, b uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Friendship{
		RequesterID: a,
		RequesteeID: b,
		Status:      models.FriendshipStatusAccepted,
	}).Error)
}
