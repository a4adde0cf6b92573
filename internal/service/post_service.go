package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"taskhub/internal/models"
	"taskhub/internal/notifications"
	"taskhub/internal/observability"
	"taskhub/internal/repository"
)

// Feed page limits.
const (
	DefaultPostLimit = 20
	MaxPostLimit     = 50
)

type PostService struct {
	postRepo     repository.PostRepository
	userRepo     repository.UserRepository
	projectRepo  repository.ProjectRepository
	taskRepo     repository.TaskRepository
	resourceRepo repository.ResourceRepository
	privacy      *Privacy
	events       EventPublisher
}

// PostInput carries create and partial-update fields. On update a nil field
// is left alone and a related ID of 0 clears the reference.
type PostInput struct {
	Title      *string
	Content    *string
	PostType   *string
	Public     *bool
	ProjectID  *uint
	TaskID     *uint
	ResourceID *uint
}

// ListPostsInput selects a feed page.
type ListPostsInput struct {
	Scope    repository.FeedScope
	ViewerID uint
	Type     string
	Search   string
	Tags     []string
	Limit    int
	Offset   int
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	LikesCount int64
	Liked      bool
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	resourceRepo repository.ResourceRepository,
	privacy *Privacy,
	events EventPublisher,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		taskRepo:     taskRepo,
		resourceRepo: resourceRepo,
		privacy:      privacy,
		events:       events,
	}
}

// NormalizePostPage applies the default and cap to a requested page.
func NormalizePostPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	if limit > MaxPostLimit {
		limit = MaxPostLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListPosts returns one page of a feed. Feed scopes other than the index need a viewer.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	if in.Scope != repository.ScopeIndex && in.ViewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	limit, offset := NormalizePostPage(in.Limit, in.Offset)
	posts, err := s.postRepo.List(ctx, in.Scope, in.ViewerID, repository.PostFilter{
		Type:   strings.TrimSpace(in.Type),
		Search: in.Search,
		Tags:   in.Tags,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// GetPost loads a post the viewer is allowed to see. A zero viewerID is anonymous.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	ok, err := s.privacy.CanViewPost(ctx, post, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Access denied")
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, userID uint, in PostInput) (*models.Post, error) {
	post := &models.Post{
		UserID:   userID,
		PostType: models.PostTypeGeneral,
		Public:   true,
	}
	applyPostInput(post, in)
	if err := s.validate(ctx, post); err != nil {
		return nil, err
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, userID)
}

func (s *PostService) UpdatePost(ctx context.Context, userID, postID uint, in PostInput) (*models.Post, error) {
	post, err := s.authored(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	applyPostInput(post, in)
	if err := s.validate(ctx, post); err != nil {
		return nil, err
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, userID)
}

// DeletePost removes the post with its comments and likes.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	if _, err := s.authored(ctx, userID, postID); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, postID)
}

// LikePost records a like by userID on a post they can see.
func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	post, err := s.GetPost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	created, err := s.postRepo.Like(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, models.NewValidationError("User has already liked this post")
	}
	count, err := s.postRepo.LikesCount(ctx, postID)
	if err != nil {
		return nil, err
	}

	observability.SocialEvents.WithLabelValues("like").Inc()
	publishEvent(ctx, s.events, s.userRepo, post.UserID, notifications.EventPostLiked, userID, map[string]interface{}{
		"post_id":     post.ID,
		"post_title":  post.Title,
		"likes_count": count,
	})
	return &LikeResult{LikesCount: count, Liked: true}, nil
}

func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, userID); err != nil {
		return nil, err
	}
	removed, err := s.postRepo.Unlike(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, models.NewNotFoundMessage("Like not found")
	}
	count, err := s.postRepo.LikesCount(ctx, postID)
	if err != nil {
		return nil, err
	}
	observability.SocialEvents.WithLabelValues("unlike").Inc()
	return &LikeResult{LikesCount: count, Liked: false}, nil
}

func (s *PostService) authored(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("Access denied")
	}
	return post, nil
}

func applyPostInput(post *models.Post, in PostInput) {
	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		post.Content = strings.TrimSpace(*in.Content)
	}
	if in.PostType != nil {
		post.PostType = strings.TrimSpace(*in.PostType)
	}
	if in.Public != nil {
		post.Public = *in.Public
	}
	post.ProjectID = relatedID(post.ProjectID, in.ProjectID)
	post.TaskID = relatedID(post.TaskID, in.TaskID)
	post.ResourceID = relatedID(post.ResourceID, in.ResourceID)
}

func relatedID(current, in *uint) *uint {
	switch {
	case in == nil:
		return current
	case *in == 0:
		return nil
	default:
		id := *in
		return &id
	}
}

func (s *PostService) validate(ctx context.Context, post *models.Post) error {
	var errs validationErrors

	switch n := utf8.RuneCountInString(post.Title); {
	case n == 0:
		errs.add("Title can't be blank")
	case n > models.MaxPostTitleLength:
		errs.add("Title is too long (maximum is %d characters)", models.MaxPostTitleLength)
	}
	switch n := utf8.RuneCountInString(post.Content); {
	case n == 0:
		errs.add("Content can't be blank")
	case n > models.MaxPostContentLength:
		errs.add("Content is too long (maximum is %d characters)", models.MaxPostContentLength)
	}
	if !models.ValidPostType(post.PostType) {
		errs.add("Post type is not included in the list")
	} else if models.RequiresRelatedItem(post.PostType) && post.RelatedItemType() == "" {
		errs.add("%s posts must reference a project, task or resource", capitalize(post.PostType))
	}

	if err := s.checkRelated(ctx, post, &errs); err != nil {
		return err
	}
	return errs.err()
}

// checkRelated adds "<x> must exist" for dangling references.
func (s *PostService) checkRelated(ctx context.Context, post *models.Post, errs *validationErrors) error {
	checks := []struct {
		id    *uint
		label string
		load  func(context.Context, uint) error
	}{
		{post.ProjectID, "Project", func(ctx context.Context, id uint) error { _, err := s.projectRepo.GetByID(ctx, id); return err }},
		{post.TaskID, "Task", func(ctx context.Context, id uint) error { _, err := s.taskRepo.GetByID(ctx, id); return err }},
		{post.ResourceID, "Resource", func(ctx context.Context, id uint) error { _, err := s.resourceRepo.GetByID(ctx, id); return err }},
	}
	for _, c := range checks {
		if c.id == nil {
			continue
		}
		err := c.load(ctx, *c.id)
		switch {
		case err == nil:
		case models.ErrorCode(err) == models.CodeNotFound:
			errs.add("%s must exist", c.label)
		default:
			return err
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
