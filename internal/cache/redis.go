// Package cache owns the shared Redis client, cache-aside helpers and the
// key layout used for profiles, projects, rate limits and websocket tickets.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// instrumentHook traces every command and counts failures. redis.Nil is a
// cache miss, not an error.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			middleware.RedisErrors.WithLabelValues("dial").Inc()
		}
		return conn, err
	}
}

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := observability.StartRedisSpan(ctx, cmd.Name())
		err := next(ctx, cmd)
		observability.EndSpan(span, commandError(cmd.Name(), err))
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := observability.StartRedisSpan(ctx, "pipeline")
		err := next(ctx, cmds)
		observability.EndSpan(span, commandError("pipeline", err))
		return err
	}
}

func commandError(name string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	middleware.RedisErrors.WithLabelValues(name).Inc()
	return err
}

// NewClient builds an instrumented client. addr is host:port or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(instrumentHook{})
	return rdb, nil
}

// InitRedis sets the shared client when addr answers a ping. Redis is
// optional: on failure GetClient stays nil, so caching is skipped, rate limits
// fail open and the realtime surface reports 503.
func InitRedis(addr string) {
	rdb, err := connect(addr)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without it", slog.String("error", err.Error()))
		client = nil
		return
	}
	middleware.Logger.Info("redis connected", slog.String("addr", rdb.Options().Addr))
	client = rdb
}

func connect(addr string) (*redis.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("REDIS_URL is empty")
	}
	rdb, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	return rdb, nil
}

// GetClient returns the shared client, or nil when Redis is not configured.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the shared client. Tests point it at miniredis.
func SetClient(rdb *redis.Client) {
	client = rdb
}
