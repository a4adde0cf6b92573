// Package notifications publishes social events over Redis and fans them out
// to websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix  = "notifications:user:"
	userChannelPattern = "notifications:user:*"
)

// Social event types delivered to a user's channel.
const (
	EventNewFollower           = "new_follower"
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventPostLiked             = "post_liked"
	EventCommentCreated        = "comment_created"
)

// Event is the JSON envelope pushed to websocket clients.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

// Actor identifies the user who triggered an event.
type Actor struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Notifier publishes per-user events on Redis pub/sub. A nil Notifier, or one
// without a client, drops everything silently.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier wraps rdb, which may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// MessageHandler receives one pub/sub message.
type MessageHandler func(channel, payload string)

func (n *Notifier) enabled() bool { return n != nil && n.rdb != nil }

// PublishUser publishes a pre-encoded payload on userID's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if !n.enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishEvent wraps payload in an Event and publishes it to userID. Callers
// treat delivery as best effort; failures are counted and logged here.
func (n *Notifier) PublishEvent(ctx context.Context, userID uint, eventType string, payload interface{}) error {
	if !n.enabled() {
		return nil
	}
	raw, err := json.Marshal(Event{Type: eventType, Payload: payload, CreatedAt: time.Now().UTC()})
	if err == nil {
		err = n.PublishUser(ctx, userID, string(raw))
	}
	observability.NotificationsPublished.WithLabelValues(eventType, observability.Outcome(err)).Inc()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "event not published",
			slog.String("event", eventType),
			slog.Uint64("target_user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// StartPatternSubscriber listens on every user channel and hands messages to
// handle until ctx ends. It returns after Redis confirms the subscription, so
// events published afterwards are not missed.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, handle MessageHandler) error {
	if !n.enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("psubscribe %s: %w", userChannelPattern, err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				deliver(handle, msg)
			}
		}
	}()
	return nil
}

// deliver runs handle, containing panics so one bad message cannot stop the loop.
func deliver(handle MessageHandler, msg *redis.Message) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("notification handler panicked",
				slog.String("channel", msg.Channel),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	handle(msg.Channel, msg.Payload)
}

// UserChannel is the pub/sub channel carrying userID's events.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel is the inverse of UserChannel. It rejects zero and
// non-numeric IDs.
func ParseUserChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
