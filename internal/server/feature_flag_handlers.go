package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags reports the configured FEATURE_FLAGS values and what each
// flag evaluates to for the caller. Known flags appear even when unset.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
