package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/middleware"
	"taskhub/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on a
// websocket handshake, so the client trades its bearer token for a short-lived
// single-use ticket and passes it as ?ticket= on GET /api/ws.
// @Summary Issue a websocket ticket
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket := uuid.NewString()
	userID := currentUserID(c)

	err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), cache.WSTicketTTL).Err()
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL / time.Second),
	})
}

// WebsocketHandler streams the caller's notification events. The socket is
// push-only; the hub delivers whatever arrives on notifications:user:<id>.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals(middleware.UserIDLocal).(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			reason := "connection rejected"
			if errors.Is(err, notifications.ErrUserFull) || errors.Is(err, notifications.ErrServerFull) {
				reason = err.Error()
			}
			middleware.Logger.Warn("websocket register failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
			msg, _ := json.Marshal(fiber.Map{"error": reason})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}

		if hello, err := json.Marshal(notifications.Event{
			Type:      "connected",
			Payload:   fiber.Map{"user_id": userID},
			CreatedAt: time.Now().UTC(),
		}); err == nil {
			client.TrySend(hello)
		}

		go client.WritePump()
		client.ReadPump()
	})
}
