package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// assertAppError asserts that err is an AppError carrying code.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, "message: %s", appErr.Message)
	return appErr
}

func assertValidationError(t *testing.T, err error) *models.AppError {
	t.Helper()
	return assertAppError(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) *models.AppError {
	t.Helper()
	return assertAppError(t, err, models.CodeUnauthorized)
}

func assertForbiddenError(t *testing.T, err error) *models.AppError {
	t.Helper()
	return assertAppError(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) *models.AppError {
	t.Helper()
	return assertAppError(t, err, models.CodeNotFound)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// repos bundles SQLite-backed repositories for service tests.
type repos struct {
	db        *gorm.DB
	users     repository.UserRepository
	follows   repository.FollowRepository
	friends   repository.FriendRepository
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	resources repository.ResourceRepository
	tags      repository.TagRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
}

func newRepos(t *testing.T) *repos {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &repos{
		db:        db,
		users:     repository.NewUserRepository(db),
		follows:   repository.NewFollowRepository(db),
		friends:   repository.NewFriendRepository(db),
		projects:  repository.NewProjectRepository(db),
		tasks:     repository.NewTaskRepository(db),
		resources: repository.NewResourceRepository(db),
		tags:      repository.NewTagRepository(db),
		posts:     repository.NewPostRepository(db),
		comments:  repository.NewCommentRepository(db),
	}
}

// userRepoStub overrides selected UserRepository methods; the rest panic.
type userRepoStub struct {
	repository.UserRepository
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByLoginFn    func(context.Context, string) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	usernameTakenFn func(context.Context, string, uint) (bool, error)
	emailTakenFn    func(context.Context, string, uint) (bool, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.getByLoginFn(ctx, login)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	return s.usernameTakenFn(ctx, username, exceptID)
}
func (s *userRepoStub) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	return s.emailTakenFn(ctx, email, exceptID)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByLoginFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		getByEmailFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		usernameTakenFn: func(context.Context, string, uint) (bool, error) { return false, nil },
		emailTakenFn:    func(context.Context, string, uint) (bool, error) { return false, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn: func(context.Context, *models.User) error { return nil },
	}
}

// friendRepoStub overrides the friendship lookups Privacy needs.
type friendRepoStub struct {
	repository.FriendRepository
	areFriendsFn func(context.Context, uint, uint) (bool, error)
}

func (s *friendRepoStub) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	return s.areFriendsFn(ctx, a, b)
}

// mailerStub records outgoing mail.
type mailerStub struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
	err           error
}

func (m *mailerStub) SendVerification(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.verifications = append(m.verifications, user.Email)
	return nil
}

func (m *mailerStub) SendPasswordReset(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.resets = append(m.resets, user.Email)
	return nil
}

// publishedEvent is one call captured by eventRecorder.
type publishedEvent struct {
	UserID  uint
	Type    string
	Payload map[string]interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *eventRecorder) PublishEvent(_ context.Context, userID uint, eventType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := payload.(map[string]interface{})
	r.events = append(r.events, publishedEvent{UserID: userID, Type: eventType, Payload: p})
	return nil
}

func (r *eventRecorder) all() []publishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publishedEvent(nil), r.events...)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func uintPtr(u uint) *uint    { return &u }
func intPtr(i int) *int       { return &i }
