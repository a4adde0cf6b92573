package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Key families. The family name doubles as the metrics label.
const (
	UserProfileKeyPrefix   = "user_profile:%d"
	ProjectDetailKeyPrefix = "project:%d"
	OAuthStateKeyPrefix    = "oauth_state:%s"
	WSTicketKeyPrefix      = "ws_ticket:%s"
	RevokedTokenKeyPrefix  = "blacklist:%s"
)

const (
	UserProfileTTL   = 5 * time.Minute
	ProjectDetailTTL = 2 * time.Minute
	OAuthStateTTL    = 10 * time.Minute
	WSTicketTTL      = 30 * time.Second
)

func UserProfileKey(userID uint) string {
	return fmt.Sprintf(UserProfileKeyPrefix, userID)
}

func ProjectDetailKey(projectID uint) string {
	return fmt.Sprintf(ProjectDetailKeyPrefix, projectID)
}

func OAuthStateKey(state string) string {
	return fmt.Sprintf(OAuthStateKeyPrefix, state)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenKeyPrefix, jti)
}

// Aside is a read-through lookup: serve key from Redis when present, otherwise
// call load and store its result for ttl. Redis failures never fail the read;
// the loader result is returned and the error is only logged.
func Aside[T any](ctx context.Context, rdb *redis.Client, family, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if rdb == nil {
		return load(ctx)
	}

	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(family, "hit").Inc()
			return cached, nil
		}
		// Undecodable payload from an older shape; fall through and overwrite it.
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheLookups.WithLabelValues(family, "miss").Inc()
	default:
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if payload, jsonErr := json.Marshal(value); jsonErr == nil {
		if setErr := rdb.Set(ctx, key, payload, ttl).Err(); setErr != nil {
			middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", setErr.Error()))
		}
	}
	return value, nil
}

// Invalidate drops keys; a nil client is a no-op.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

func InvalidateUserProfile(ctx context.Context, rdb *redis.Client, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UserProfileKey(id))
	}
	Invalidate(ctx, rdb, keys...)
}

func InvalidateProject(ctx context.Context, rdb *redis.Client, projectIDs ...uint) {
	keys := make([]string, 0, len(projectIDs))
	for _, id := range projectIDs {
		keys = append(keys, ProjectDetailKey(id))
	}
	Invalidate(ctx, rdb, keys...)
}
