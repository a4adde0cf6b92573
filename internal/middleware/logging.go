package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. Records logged with a
// request context carry its request, user and trace IDs.
var Logger *slog.Logger

type contextKey string

// Context keys read by the logger.
const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// TraceIDLocal is the Fiber locals key set by TracingMiddleware.
const TraceIDLocal = "traceID"

// quietPaths are polled by probes and scrapers; their access logs drop to debug.
var quietPaths = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

type contextHandler struct {
	inner slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String(string(RequestIDKey), v))
	}
	if v, ok := ctx.Value(UserIDKey).(uint); ok {
		r.AddAttrs(slog.Uint64(string(UserIDKey), uint64(v)))
	}
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String(string(TraceIDKey), v))
	}
	return h.inner.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.inner.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.inner.WithGroup(name)}
}

func init() {
	InitLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// InitLogger rebuilds Logger: JSON in production, text elsewhere. level is
// debug, info, warn or error; anything else means info.
func InitLogger(env, level string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var inner slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if e := strings.ToLower(strings.TrimSpace(env)); e == "production" || e == "prod" {
		inner = slog.NewJSONHandler(os.Stdout, opts)
	}
	Logger = slog.New(contextHandler{inner})
	slog.SetDefault(Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithHandlerForTest points Logger at h and returns a restore func.
func WithHandlerForTest(h slog.Handler) func() {
	prev := Logger
	Logger = slog.New(contextHandler{h})
	return func() { Logger = prev }
}

// ContextMiddleware copies the request and trace IDs from Fiber locals into
// the user context so service-layer logs carry them. The user ID is added
// later by SetCurrentUser.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
		}
		if tid, ok := c.Locals(TraceIDLocal).(string); ok && tid != "" {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger writes one access log line per request.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes", len(c.Response().Body())),
			slog.String("ip", c.IP()),
		}
		level := slog.LevelInfo
		switch {
		case err != nil:
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelWarn
		case quietPaths[c.Path()]:
			level = slog.LevelDebug
		}
		Logger.LogAttrs(c.UserContext(), level, "request", attrs...)
		return err
	}
}
