// Package database opens the Postgres pools and owns the TaskHub schema:
// embedded SQL migrations, the migration runner and AutoMigrate.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const schemaTimeout = 2 * time.Minute

// Pool defaults used when the DB_* pool settings are unset.
const (
	defaultMaxOpen  = 25
	defaultMaxIdle  = 5
	defaultLifetime = 5 * time.Minute
)

var (
	// DB is the primary connection, set by ConnectWithOptions.
	DB *gorm.DB
	// ReadDB is the replica when DB_READ_HOST is set, otherwise DB.
	ReadDB *gorm.DB
)

// ConnectOptions controls what happens after the pool is open.
type ConnectOptions struct {
	// ApplySchema runs the DB_SCHEMA_MODE plan before returning.
	ApplySchema bool
}

// GormConfig is shared by the server, the CLIs and the test helpers. Foreign
// keys come from the SQL migrations, so AutoMigrate must not create its own.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   NewGormLogger(),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

func buildDSN(host, port, user, password, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode)
}

// Connect opens the database and applies the schema plan.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions opens the primary and, when configured, the read replica.
// A replica that fails to open is logged and reads stay on the primary.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	primary, err := open(cfg, buildDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode))
	if err != nil {
		return nil, fmt.Errorf("connect database %s@%s: %w", cfg.DBName, cfg.DBHost, err)
	}
	middleware.Logger.Info("database connected", slog.String("host", cfg.DBHost), slog.String("database", cfg.DBName))

	if opts.ApplySchema {
		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer cancel()
		if err := ApplySchema(ctx, primary, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	DB, ReadDB = primary, primary
	if cfg.DBReadHost == "" {
		return DB, nil
	}
	replica, err := open(cfg, buildDSN(cfg.DBReadHost, cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword, cfg.DBName, cfg.DBSSLMode))
	if err != nil {
		middleware.Logger.Warn("read replica unavailable, reading from primary", slog.String("error", err.Error()))
		return DB, nil
	}
	ReadDB = replica
	middleware.Logger.Info("read replica connected", slog.String("host", cfg.DBReadHost))
	return DB, nil
}

func open(cfg *config.Config, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// GetReadDB returns the connection reads should use, or nil before Connect.
func GetReadDB() *gorm.DB {
	if ReadDB != nil {
		return ReadDB
	}
	return DB
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(positiveOr(cfg.DBMaxOpenConns, defaultMaxOpen))
	sqlDB.SetMaxIdleConns(positiveOr(cfg.DBMaxIdleConns, defaultMaxIdle))
	lifetime := defaultLifetime
	if cfg.DBConnMaxLifetimeMinutes > 0 {
		lifetime = time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute
	}
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
