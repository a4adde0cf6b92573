package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"taskhub/internal/middleware"
)

// Connection limit errors returned by Register.
var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Limits bounds how many sockets the hub accepts.
type Limits struct {
	PerUser int
	Total   int
}

// DefaultLimits allows a user a handful of tabs and devices.
var DefaultLimits = Limits{PerUser: 12, Total: 10000}

// Hub tracks the open sockets of every connected user and delivers
// per-user events to them.
type Hub struct {
	limits Limits

	mu       sync.RWMutex
	sessions map[uint]map[*Client]struct{}
	count    int
}

// NewHub returns a hub with DefaultLimits.
func NewHub() *Hub {
	return NewHubWithLimits(DefaultLimits)
}

// NewHubWithLimits returns a hub with custom limits. Non-positive values fall
// back to the defaults.
func NewHubWithLimits(l Limits) *Hub {
	if l.PerUser <= 0 {
		l.PerUser = DefaultLimits.PerUser
	}
	if l.Total <= 0 {
		l.Total = DefaultLimits.Total
	}
	return &Hub{limits: l, sessions: make(map[uint]map[*Client]struct{})}
}

// Name labels this hub in metrics and logs.
func (h *Hub) Name() string { return "notifications" }

// Register adds a socket for userID.
func (h *Hub) Register(userID uint, conn Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count >= h.limits.Total {
		return nil, ErrServerFull
	}
	if len(h.sessions[userID]) >= h.limits.PerUser {
		return nil, ErrUserFull
	}

	set, ok := h.sessions[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[userID] = set
	}
	client := NewClient(h, conn, userID)
	set[client] = struct{}{}
	h.count++
	middleware.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient drops client and closes its send queue. Repeated calls
// are no-ops.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	set := h.sessions[client.UserID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.sessions, client.UserID)
	}
	h.count--
	middleware.ActiveWebSockets.Dec()
	client.close()
}

// Broadcast queues message on every socket userID has open.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.sessions[userID]
	if len(set) == 0 {
		return
	}
	data := []byte(message)
	for c := range set {
		c.TrySend(data)
	}
}

// IsOnline reports whether userID has at least one open socket.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID]) > 0
}

// ConnectionCount is the number of open sockets across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// StartWiring subscribes to every user channel and forwards each payload to
// the matching user's sockets. It returns once the subscription is live.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		userID, ok := ParseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("ignoring event on unknown channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown closes every session. Each write pump sends a close frame to its
// peer and exits.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := h.count
	for _, set := range h.sessions {
		for c := range set {
			h.removeLocked(c)
		}
	}
	middleware.Logger.Info("notification hub closed", slog.Int("sessions", closed))
	return nil
}
