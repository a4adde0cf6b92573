package server

import (
	"strings"

	"taskhub/internal/repository"
	"taskhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	PostType   *string `json:"post_type"`
	Public     *bool   `json:"public"`
	ProjectID  *uint   `json:"project_id"`
	TaskID     *uint   `json:"task_id"`
	ResourceID *uint   `json:"resource_id"`
}

func (r postRequest) input() service.PostInput {
	return service.PostInput{
		Title:      r.Title,
		Content:    r.Content,
		PostType:   r.PostType,
		Public:     r.Public,
		ProjectID:  r.ProjectID,
		TaskID:     r.TaskID,
		ResourceID: r.ResourceID,
	}
}

// splitTags turns "diy, garden,," into ["diy", "garden"].
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (s *Server) listPosts(c *fiber.Ctx, scope repository.FeedScope) error {
	limit, offset := service.NormalizePostPage(c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Scope:    scope,
		ViewerID: currentUserID(c),
		Type:     c.Query("type"),
		Search:   strings.TrimSpace(c.Query("search")),
		Tags:     splitTags(c.Query("tags")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"posts": serializePosts(posts),
		"meta": fiber.Map{
			"limit":  limit,
			"offset": offset,
			"count":  len(posts),
		},
	})
}

// ListPosts handles GET /api/posts
// @Summary List posts
// @Description Public posts by authors visible to the caller, newest first
// @Tags posts
// @Produce json
// @Param type query string false "Post type"
// @Param search query string false "Title or content match"
// @Param tags query string false "Comma-separated tag names of the referenced project"
// @Param limit query int false "Page size (default 20, max 50)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{posts=[]object,meta=object{limit=int,offset=int,count=int}}
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	return s.listPosts(c, repository.ScopeIndex)
}

// GetFeed handles GET /api/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	return s.listPosts(c, repository.ScopeFeed)
}

// GetFriendsFeed handles GET /api/feed/friends
func (s *Server) GetFriendsFeed(c *fiber.Ctx) error {
	return s.listPosts(c, repository.ScopeFriends)
}

// GetFollowingFeed handles GET /api/feed/following
func (s *Server) GetFollowingFeed(c *fiber.Ctx) error {
	return s.listPosts(c, repository.ScopeFollowing)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(serializePost(post))
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,content=string,post_type=string,public=bool,project_id=int,task_id=int,resource_id=int} true "Post"
// @Success 201 {object} object
// @Failure 422 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := bindBody(c, "post", &req); err != nil {
		return nil
	}
	post, err := s.postService.CreatePost(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(serializePost(post))
}

// UpdatePost handles PUT/PATCH /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req postRequest
	if err := bindBody(c, "post", &req); err != nil {
		return nil
	}
	post, err := s.postService.UpdatePost(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(serializePost(post))
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:post_id/likes
func (s *Server) LikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "post_id")
	if err != nil {
		return nil
	}
	result, err := s.postService.LikePost(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Post liked",
		"likes_count": result.LikesCount,
		"liked":       result.Liked,
	})
}

// UnlikePost handles DELETE /api/posts/:post_id/likes
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "post_id")
	if err != nil {
		return nil
	}
	result, err := s.postService.UnlikePost(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Post unliked",
		"likes_count": result.LikesCount,
		"liked":       result.Liked,
	})
}
