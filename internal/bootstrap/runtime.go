// Package bootstrap wires the process-level dependencies shared by the server and CLI tools.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/middleware"
	"taskhub/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrSeedInProduction is returned when a seed preset is requested for a prod-like environment.
var ErrSeedInProduction = errors.New("refusing to seed demo data in a production environment")

// Options control runtime initialization behavior.
type Options struct {
	// SeedPreset names a seed preset applied after the schema is ready. Empty skips seeding.
	SeedPreset string
}

// Runtime is the set of connections a process runs on. Redis may be nil.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; a failed connection leaves the client nil.
	cache.InitRedis(cfg.RedisURL)
	rt := &Runtime{DB: db, Redis: cache.GetClient()}

	if err := SeedIfRequested(cfg, db, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// SeedIfRequested applies opts.SeedPreset outside production.
func SeedIfRequested(cfg *config.Config, db *gorm.DB, opts Options) error {
	if opts.SeedPreset == "" {
		return nil
	}
	if cfg.IsProduction() {
		return ErrSeedInProduction
	}
	sum, err := seed.NewSeeder(db, seed.Options{SkipBcrypt: true}).ApplyPreset(opts.SeedPreset)
	if err != nil {
		return fmt.Errorf("seed preset %q: %w", opts.SeedPreset, err)
	}
	middleware.Logger.Info("demo data seeded",
		slog.String("preset", opts.SeedPreset),
		slog.Int("users", sum.Users),
		slog.Int("projects", sum.Projects),
	)
	return nil
}

// Close releases the database pool and the Redis client.
func (r *Runtime) Close() {
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}
