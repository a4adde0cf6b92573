package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a Rule does when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoStore = errors.New("rate limit store not configured")

// Rule is a fixed-window limit of Limit requests per Window for one route.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Route limits. Mail-sending recovery endpoints fail closed so a Redis outage
// cannot be used to spam inboxes.
var (
	SignupRule             = Rule{Name: "signup", Limit: 3, Window: 10 * time.Minute}
	LoginRule              = Rule{Name: "login", Limit: 10, Window: 5 * time.Minute}
	ForgotPasswordRule     = Rule{Name: "forgot_password", Limit: 3, Window: 10 * time.Minute, Policy: FailClosed}
	ResendVerificationRule = Rule{Name: "resend_verification", Limit: 3, Window: 10 * time.Minute, Policy: FailClosed}
	FriendRequestRule      = Rule{Name: "friend_request", Limit: 10, Window: 5 * time.Minute}
	CreatePostRule         = Rule{Name: "create_post", Limit: 10, Window: 5 * time.Minute}
	CreateCommentRule      = Rule{Name: "create_comment", Limit: 20, Window: time.Minute}
)

// rateLimitBypassed is true outside deployed environments.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func (r Rule) key(subject string) string {
	return "rl:" + r.Name + ":" + subject
}

// Allow counts one hit for subject and reports whether it is within the
// limit. The window starts at the first hit.
func (r Rule) Allow(ctx context.Context, rdb *redis.Client, subject string) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	if rdb == nil {
		return false, errNoStore
	}

	key := r.key(subject)
	hits, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if hits == 1 {
		if err := rdb.Expire(ctx, key, r.Window).Err(); err != nil {
			return false, err
		}
	}
	return hits <= int64(r.Limit), nil
}

// subject keys a request by the signed-in user, falling back to client IP.
func subject(c *fiber.Ctx) string {
	if uid, ok := CurrentUserID(c); ok {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}

// Limit enforces r on a route.
func Limit(rdb *redis.Client, r Rule) fiber.Handler {
	retryAfter := strconv.Itoa(int(r.Window / time.Second))

	return func(c *fiber.Ctx) error {
		allowed, err := r.Allow(c.UserContext(), rdb, subject(c))
		if err != nil {
			if r.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, rejecting",
				slog.String("rule", r.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
		}
		if !allowed {
			RateLimitRejections.WithLabelValues(r.Name).Inc()
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
