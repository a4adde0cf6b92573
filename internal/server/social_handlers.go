package server

import (
	"context"
	"strings"

	"taskhub/internal/featureflags"
	"taskhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// graphTarget resolves the optional :user_id of a graph listing, defaulting to the caller.
func (s *Server) graphTarget(c *fiber.Ctx) (uint, bool) {
	if c.Params("user_id") == "" {
		return currentUserID(c), true
	}
	id, err := s.parseID(c, "user_id")
	return id, err == nil
}

func (s *Server) listGraph(c *fiber.Ctx, key string, load func(context.Context, uint) ([]models.User, error)) error {
	userID, ok := s.graphTarget(c)
	if !ok {
		return nil
	}
	users, err := load(c.UserContext(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{key: summaries(users)})
}

// GetFollowers handles GET /api/social/followers/:user_id?
// @Summary List followers
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param user_id path int false "User ID (defaults to the caller)"
// @Success 200 {object} object{followers=[]models.UserSummary}
// @Failure 404 {object} models.ErrorResponse
// @Router /social/followers/{user_id} [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	return s.listGraph(c, "followers", s.socialService.Followers)
}

// GetFollowing handles GET /api/social/following/:user_id?
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	return s.listGraph(c, "following", s.socialService.Following)
}

// GetFriends handles GET /api/social/friends/:user_id?
func (s *Server) GetFriends(c *fiber.Ctx) error {
	return s.listGraph(c, "friends", s.socialService.Friends)
}

// GetFriendRequests handles GET /api/social/friend_requests
func (s *Server) GetFriendRequests(c *fiber.Ctx) error {
	requests, err := s.socialService.FriendRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"friend_requests": serializeFriendRequests(requests)})
}

// SearchUsers handles GET /api/social/search_users?q=
// @Summary Search users
// @Description Case-insensitive username or email match with the caller's relationship to each result
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search term"
// @Success 200 {object} object{users=[]service.UserSearchResult}
// @Router /social/search_users [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	results, err := s.socialService.SearchUsers(c.UserContext(), currentUserID(c), strings.TrimSpace(c.Query("q")))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"users": searchResults(results)})
}

// GetSuggestions handles GET /api/social/suggestions
func (s *Server) GetSuggestions(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if s.featureFlags != nil && !s.featureFlags.Enabled(featureflags.SocialSuggestions, userID) {
		return c.JSON(fiber.Map{"suggestions": suggestionList(nil)})
	}
	suggestions, err := s.socialService.Suggestions(c.UserContext(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"suggestions": suggestionList(suggestions)})
}

// socialAction runs a user-to-user action against :id and answers with a
// message naming the target.
func (s *Server) socialAction(
	c *fiber.Ctx,
	act func(context.Context, uint, uint) (*models.User, error),
	msg func(target *models.User) string,
) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	target, err := act(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return message(c, fiber.StatusOK, msg(target))
}

// Follow handles POST /api/social/follow/:id
// @Summary Follow a user
// @Tags social
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /social/follow/{id} [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	return s.socialAction(c, s.socialService.Follow, func(u *models.User) string {
		return "You are now following " + u.Username
	})
}

// Unfollow handles DELETE /api/social/unfollow/:id
func (s *Server) Unfollow(c *fiber.Ctx) error {
	return s.socialAction(c, s.socialService.Unfollow, func(u *models.User) string {
		return "You unfollowed " + u.Username
	})
}

// SendFriendRequest handles POST /api/social/friend_request/:id
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	return s.socialAction(c, s.socialService.SendFriendRequest, func(u *models.User) string {
		return "Friend request sent to " + u.Username
	})
}

// AcceptFriendRequest handles POST /api/social/accept_friend_request/:id
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	return s.socialAction(c, s.socialService.AcceptFriendRequest, func(u *models.User) string {
		return "You are now friends with " + u.Username
	})
}

// DeclineFriendRequest handles POST /api/social/decline_friend_request/:id
func (s *Server) DeclineFriendRequest(c *fiber.Ctx) error {
	return s.socialAction(c, s.socialService.DeclineFriendRequest, func(*models.User) string {
		return "Friend request declined"
	})
}

// RemoveFriend handles DELETE /api/social/remove_friend/:id
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	return s.socialAction(c, s.socialService.RemoveFriend, func(u *models.User) string {
		return "You are no longer friends with " + u.Username
	})
}
