package server

import (
	"errors"
	"strconv"

	"taskhub/internal/cache"
	"taskhub/internal/featureflags"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// claimsLocal holds the verified *service.TokenClaims of a bearer-authenticated request.
const claimsLocal = "tokenClaims"

// AuthRequired returns the authentication middleware. The websocket route
// accepts only a single-use ticket; every other route takes a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" && websocket.IsWebSocketUpgrade(c) {
			userID, err := s.consumeWSTicket(c, ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			middleware.SetCurrentUser(c, userID)
			return c.Next()
		}
		if websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("WebSocket ticket required"))
		}

		tokenString := middleware.BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.authService.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			return mapServiceError(c, err)
		}

		c.Locals(claimsLocal, claims)
		middleware.SetCurrentUser(c, claims.UserID)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := middleware.BearerToken(c); tokenString != "" {
			if claims, err := s.authService.Authenticate(c.UserContext(), tokenString); err == nil {
				c.Locals(claimsLocal, claims)
				middleware.SetCurrentUser(c, claims.UserID)
			}
		}
		return c.Next()
	}
}

// consumeWSTicket atomically reads and deletes a ticket issued by IssueWSTicket.
func (s *Server) consumeWSTicket(c *fiber.Ctx, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, errors.New("ticket store unavailable")
	}
	raw, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, errors.New("unknown ticket")
		}
		return 0, err
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		return 0, errors.New("malformed ticket")
	}
	return uint(userID), nil
}

// requireRealtime answers 503 unless Redis is connected and the realtime flag is on.
func (s *Server) requireRealtime(c *fiber.Ctx) error {
	if s.hub == nil || s.redis == nil || !s.featureFlags.EnabledGlobally(featureflags.Realtime) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Realtime notifications are unavailable",
		})
	}
	return c.Next()
}

// requireUpgrade rejects plain HTTP requests to the websocket endpoint.
func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// tokenClaims returns the claims stored by AuthRequired, if any.
func tokenClaims(c *fiber.Ctx) *service.TokenClaims {
	claims, _ := c.Locals(claimsLocal).(*service.TokenClaims)
	return claims
}
