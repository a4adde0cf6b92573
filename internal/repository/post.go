package repository

import (
	"context"
	"strings"

	"taskhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedScope selects which authors a post listing draws from.
type FeedScope int

const (
	// ScopeIndex is the public index: public posts by visible authors.
	ScopeIndex FeedScope = iota
	// ScopeFeed adds all of the viewer's own posts to ScopeIndex.
	ScopeFeed
	// ScopeFriends covers the viewer and their friends.
	ScopeFriends
	// ScopeFollowing covers the viewer and the users they follow.
	ScopeFollowing
)

// PostFilter narrows a post listing.
type PostFilter struct {
	Type   string
	Search string
	Tags   []string
	Limit  int
	Offset int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	List(ctx context.Context, scope FeedScope, currentUserID uint, filter PostFilter) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	Like(ctx context.Context, userID, postID uint) (bool, error)
	Unlike(ctx context.Context, userID, postID uint) (bool, error)
	LikesCount(ctx context.Context, postID uint) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	var post models.Post
	err := r.withRelations(r.applyPostDetails(readDB(r.db).WithContext(ctx), currentUserID)).
		First(&post, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, scope FeedScope, currentUserID uint, filter PostFilter) ([]*models.Post, error) {
	db := readDB(r.db).WithContext(ctx)
	q := r.withRelations(r.applyPostDetails(db.Model(&models.Post{}), currentUserID))
	q = r.applyScope(q, scope, currentUserID)

	if filter.Type != "" {
		q = q.Where("posts.post_type = ?", filter.Type)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := containsPattern(s)
		q = q.Where("("+likeClause(db, "posts.title")+" OR "+likeClause(db, "posts.content")+")", pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		names := make([]string, 0, len(filter.Tags))
		for _, t := range filter.Tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				names = append(names, t)
			}
		}
		if len(names) > 0 {
			q = q.Where("posts.project_id IN (SELECT pt.project_id FROM project_tags pt JOIN tags ON tags.id = pt.tag_id WHERE LOWER(tags.name) IN ?)", names)
		}
	}

	var posts []*models.Post
	q = page(q.Order("posts.created_at DESC").Order("posts.id DESC"), filter.Limit, filter.Offset)
	if err := q.Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// friendIDsSQL selects the accepted friends of a user; it takes the user ID twice.
const friendIDsSQL = "SELECT requestee_id FROM friendships WHERE requester_id = ? AND status = 'accepted' " +
	"UNION SELECT requester_id FROM friendships WHERE requestee_id = ? AND status = 'accepted'"

// authorVisible renders can_view_posts for the author column: the viewer,
// public authors, and the viewer's friends. Anonymous viewers see public authors only.
func authorVisible(viewerID uint) (string, []interface{}) {
	if viewerID == 0 {
		return "posts.user_id IN (SELECT id FROM users WHERE public = ?)", []interface{}{true}
	}
	return "(posts.user_id = ? OR posts.user_id IN (SELECT id FROM users WHERE public = ?) OR posts.user_id IN (" + friendIDsSQL + "))",
		[]interface{}{viewerID, true, viewerID, viewerID}
}

// applyScope never lets another user's non-public post through.
func (r *postRepository) applyScope(db *gorm.DB, scope FeedScope, viewerID uint) *gorm.DB {
	visible, args := authorVisible(viewerID)
	switch scope {
	case ScopeFeed:
		return db.Where("(posts.user_id = ? OR (posts.public = ? AND "+visible+"))",
			append([]interface{}{viewerID, true}, args...)...)
	case ScopeFriends:
		return db.Where("(posts.user_id = ? OR (posts.public = ? AND posts.user_id IN ("+friendIDsSQL+")))",
			viewerID, true, viewerID, viewerID)
	case ScopeFollowing:
		return db.Where("(posts.user_id = ? OR (posts.public = ? AND posts.user_id IN (SELECT followed_id FROM follows WHERE follower_id = ?) AND "+visible+"))",
			append([]interface{}{viewerID, true, viewerID}, args...)...)
	default:
		return db.Where("posts.public = ?", true).Where(visible, args...)
	}
}

func (r *postRepository) withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("User").
		Preload("Project").
		Preload("Task").
		Preload("Resource")
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) as likes_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) as liked", currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Select("title", "content", "post_type", "project_id", "task_id", "resource_id", "public", "updated_at").
		Updates(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the post with its comments and likes.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, "Post", id)
	}
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Like inserts the like and reports whether a new row was written.
// ON CONFLICT DO NOTHING keeps concurrent double-likes from failing.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, PostID: postID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) LikesCount(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
