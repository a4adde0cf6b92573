package notifications

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// EventsDropped is sent in place of events a slow client could not buffer.
// The client should re-fetch its feed and pending requests.
const EventsDropped = "events_dropped"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBuffer     = 256
	maxInboundSize = 1024 // the socket is push-only; peers send pongs and close frames
)

// Conn is the subset of a websocket connection a Client drives.
// *websocket.Conn from gofiber/websocket satisfies it.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WSHub is the part of a hub a client calls back into.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one websocket session of a user.
type Client struct {
	Hub    WSHub
	Conn   Conn
	Send   chan []byte
	UserID uint

	mu      sync.Mutex
	closed  bool
	lagging bool
}

// NewClient builds a client with an empty send buffer.
func NewClient(hub WSHub, conn Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

// ReadPump keeps the read side alive so pongs and close frames are handled.
// It unregisters the client once the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInboundSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// WritePump writes queued events and keeps the peer alive with pings. It
// returns when Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues msg without blocking. The last buffer slot is reserved: once
// a client falls that far behind, further events are dropped and a single
// events_dropped notice takes the slot until the client catches up.
func (c *Client) TrySend(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		return
	}

	// TrySend is the only writer and holds mu, so len can only shrink under us.
	if len(c.Send) < cap(c.Send)-1 {
		c.Send <- msg
		c.lagging = false
		return
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	if c.lagging {
		return
	}
	c.lagging = true
	middleware.Logger.Warn("websocket buffer full, dropping events",
		slog.Uint64("user_id", uint64(c.UserID)),
		slog.String("hub", c.Hub.Name()),
	)
	select {
	case c.Send <- dropNotice():
	default:
	}
}

// close stops further sends and lets WritePump finish. Safe to call twice.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func dropNotice() []byte {
	b, _ := json.Marshal(Event{
		Type:      EventsDropped,
		Payload:   map[string]string{"reason": "buffer_full"},
		CreatedAt: time.Now().UTC(),
	})
	return b
}
