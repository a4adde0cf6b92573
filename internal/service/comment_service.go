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

type CommentService struct {
	commentRepo repository.CommentRepository
	posts       *PostService
	userRepo    repository.UserRepository
	events      EventPublisher
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	posts *PostService,
	userRepo repository.UserRepository,
	events EventPublisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		posts:       posts,
		userRepo:    userRepo,
		events:      events,
	}
}

// ListComments returns a viewable post's comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	if _, err := s.posts.GetPost(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}

// GetComment returns a comment when its post is viewable by viewerID.
func (s *CommentService) GetComment(ctx context.Context, id, viewerID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.GetPost(ctx, comment.PostID, viewerID); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	post, err := s.posts.GetPost(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if err := validateComment(content); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	observability.SocialEvents.WithLabelValues("comment").Inc()
	publishEvent(ctx, s.events, s.userRepo, post.UserID, notifications.EventCommentCreated, in.UserID, map[string]interface{}{
		"post_id":    post.ID,
		"comment_id": comment.ID,
		"post_title": post.Title,
	})
	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.authored(ctx, in.UserID, in.CommentID)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if err := validateComment(content); err != nil {
		return nil, err
	}
	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	if _, err := s.authored(ctx, userID, commentID); err != nil {
		return err
	}
	return s.commentRepo.Delete(ctx, commentID)
}

func (s *CommentService) authored(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("Access denied")
	}
	return comment, nil
}

func validateComment(content string) error {
	switch n := utf8.RuneCountInString(content); {
	case n == 0:
		return models.NewValidationError("Content can't be blank")
	case n > models.MaxCommentLength:
		return models.NewValidationError("Content is too long (maximum is 2000 characters)")
	}
	return nil
}
