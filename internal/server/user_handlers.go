package server

import (
	"context"
	"errors"
	"time"

	"taskhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/users
func (s *Server) ListUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, defaultPaginationLimit)

	users, err := s.userService.ListUsers(ctx, page.Limit, page.Offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Request timeout",
			})
		}
		return mapServiceError(c, err)
	}

	return c.JSON(summaries(users))
}

// GetUser handles GET /api/users/:id
// @Summary User profile
// @Description Profile with project and social graph counters. Email is shown for public profiles and to the owner.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} service.UserProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.userService.GetProfile(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profile)
}

// UpdateUser handles PUT/PATCH /api/users/:id
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Public   *bool   `json:"public"`
		Password *string `json:"password"`
	}
	if err := bindBody(c, "user", &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateUser(c.UserContext(), service.UpdateUserInput{
		ActorID:  currentUserID(c),
		UserID:   id,
		Username: req.Username,
		Email:    req.Email,
		Public:   req.Public,
		Password: req.Password,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"user": user.Account()})
}

// DeleteUser handles DELETE /api/users/:id
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.DeleteUser(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
