package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskhub/internal/cache"
	"taskhub/internal/featureflags"
	"taskhub/internal/middleware"
	"taskhub/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realtimeApp(s *Server) *fiber.App {
	app := fiber.New()
	app.Post("/api/ws/ticket", func(c *fiber.Ctx) error {
		middleware.SetCurrentUser(c, 42)
		return c.Next()
	}, s.requireRealtime, s.IssueWSTicket)
	app.Get("/api/ws", s.requireRealtime, s.requireUpgrade, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestIssueWSTicket(t *testing.T) {
	s, rdb := newAuthTestServer(t)
	s.hub = notifications.NewHub()
	s.featureFlags = featureflags.NewManager("realtime=on")
	app := realtimeApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/ws/ticket", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Ticket)
	assert.Equal(t, 30, body.ExpiresIn)

	stored, err := rdb.Get(context.Background(), cache.WSTicketKey(body.Ticket)).Result()
	require.NoError(t, err)
	assert.Equal(t, "42", stored)

	ttl, err := rdb.TTL(context.Background(), cache.WSTicketKey(body.Ticket)).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, cache.WSTicketTTL)
}

func TestRequireRealtime(t *testing.T) {
	tests := []struct {
		name           string
		flags          string
		withHub        bool
		withRedis      bool
		expectedStatus int
	}{
		{"enabled", "realtime=on", true, true, http.StatusOK},
		{"flag off", "realtime=off", true, true, http.StatusServiceUnavailable},
		{"no redis", "realtime=on", false, false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newAuthTestServer(t)
			s.featureFlags = featureflags.NewManager(tt.flags)
			if tt.withHub {
				s.hub = notifications.NewHub()
			}
			if !tt.withRedis {
				s.redis = nil
			}
			app := realtimeApp(s)

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/ws/ticket", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestRequireUpgrade(t *testing.T) {
	s, _ := newAuthTestServer(t)
	s.hub = notifications.NewHub()
	s.featureFlags = featureflags.NewManager("realtime=on")
	app := realtimeApp(s)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, err = app.Test(wsRequest("/api/ws"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
