// Package middleware provides request-scoped plumbing shared by the HTTP layer:
// logging, auth context, rate limiting, metrics and tracing.
package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserIDLocal is the Fiber locals key holding the authenticated user's ID.
const UserIDLocal = "userID"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// It returns "" when the header is missing or malformed.
func BearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// SetCurrentUser stores userID in Fiber locals and the user context so the
// request logger and downstream services see it.
func SetCurrentUser(c *fiber.Ctx, userID uint) {
	c.Locals(UserIDLocal, userID)
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	c.SetUserContext(ctx)
}

// CurrentUserID returns the authenticated user's ID, if any.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(UserIDLocal).(uint)
	return id, ok && id != 0
}

// UserIDFromContext reads the user ID placed by SetCurrentUser.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(UserIDKey).(uint)
	return id, ok
}
