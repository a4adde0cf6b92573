package repository

import (
	"context"
	"errors"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

// UserCounts backs the counters on a user profile.
type UserCounts struct {
	Projects  int64
	Followers int64
	Following int64
	Friends   int64
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	GetByGoogleSubject(ctx context.Context, subject string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error)
	Counts(ctx context.Context, id uint) (*UserCounts, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Order("username ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// findOne returns (nil, nil) when no row matches.
func (r *userRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// GetByLogin resolves a login identifier that may be an email or a username.
func (r *userRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER(?) OR username = ?", login, login)
}

func (r *userRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, "email_verification_token = ?", token)
}

func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, "password_reset_token = ?", token)
}

func (r *userRepository) GetByGoogleSubject(ctx context.Context, subject string) (*models.User, error) {
	if subject == "" {
		return nil, nil
	}
	return r.findOne(ctx, "google_subject = ?", subject)
}

func (r *userRepository) exists(ctx context.Context, exceptID uint, query string, args ...interface{}) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where(query, args...)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	return r.exists(ctx, exceptID, "LOWER(username) = LOWER(?)", username)
}

func (r *userRepository) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	return r.exists(ctx, exceptID, "LOWER(email) = LOWER(?)", email)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return takenOr(err, "Username or email")
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return takenOr(err, "Username or email")
	}
	return nil
}

// Delete removes the user and everything hanging off the account in one transaction.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownPosts := "post_id IN (SELECT id FROM posts WHERE user_id = ?)"
		steps := []struct {
			model interface{}
			where string
			args  []interface{}
		}{
			{&models.Comment{}, ownPosts, []interface{}{id}},
			{&models.Like{}, ownPosts, []interface{}{id}},
			{&models.Post{}, "user_id = ?", []interface{}{id}},
			{&models.Comment{}, "user_id = ?", []interface{}{id}},
			{&models.Like{}, "user_id = ?", []interface{}{id}},
			{&models.Follow{}, "follower_id = ? OR followed_id = ?", []interface{}{id, id}},
			{&models.Friendship{}, "requester_id = ? OR requestee_id = ?", []interface{}{id, id}},
			{&models.UserProject{}, "user_id = ?", []interface{}{id}},
			{&models.UserTask{}, "user_id = ?", []interface{}{id}},
			{&models.UserResource{}, "user_id = ?", []interface{}{id}},
		}
		for _, step := range steps {
			if err := tx.Where(step.where, step.args...).Delete(step.model).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, "User", id)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := page(readDB(r.db).WithContext(ctx).Order("id ASC"), limit, offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	db := readDB(r.db)
	pattern := containsPattern(query)

	var users []models.User
	if err := db.WithContext(ctx).
		Where("("+likeClause(db, "username")+" OR "+likeClause(db, "email")+")", pattern, pattern).
		Where("id <> ?", excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Counts(ctx context.Context, id uint) (*UserCounts, error) {
	db := readDB(r.db).WithContext(ctx)
	var c UserCounts

	queries := []struct {
		dest  *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&c.Projects, &models.UserProject{}, "user_id = ?", []interface{}{id}},
		{&c.Followers, &models.Follow{}, "followed_id = ?", []interface{}{id}},
		{&c.Following, &models.Follow{}, "follower_id = ?", []interface{}{id}},
		{&c.Friends, &models.Friendship{}, "status = ? AND (requester_id = ? OR requestee_id = ?)",
			[]interface{}{models.FriendshipStatusAccepted, id, id}},
	}
	for _, q := range queries {
		if err := db.Model(q.model).Where(q.where, q.args...).Count(q.dest).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return &c, nil
}
