package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskhub/internal/config"
	"taskhub/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan says which schema steps a process will run at startup.
//
//	hybrid  SQL migrations always, AutoMigrate outside prod-like environments
//	sql     SQL migrations only
//	auto    AutoMigrate only; prod-like environments need DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE
type SchemaPlan struct {
	Mode    string
	RunSQL  bool
	RunAuto bool
}

// SchemaStatus is what `migrate status` prints.
type SchemaStatus struct {
	SchemaPlan
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// prodLike covers production and staging, where AutoMigrate may drop columns unnoticed.
func prodLike(cfg *config.Config) bool {
	if cfg.IsProduction() {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Env)) {
	case "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE for cfg's environment.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}

	switch plan.Mode {
	case SchemaModeHybrid:
		plan.RunSQL, plan.RunAuto = true, !prodLike(cfg)
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike(cfg) && !cfg.DBAutoMigrateAllowDestructive {
			return SchemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAuto = true
	default:
		return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the TaskHub tables up to date according to PlanSchema.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	middleware.Logger.Info("Applying schema",
		slog.String("mode", plan.Mode),
		slog.String("env", cfg.Env),
		slog.Bool("sql", plan.RunSQL),
		slog.Bool("auto", plan.RunAuto),
	)

	if plan.RunSQL {
		if err := NewRunner(db).Up(ctx); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.RunAuto {
		if plan.Mode == SchemaModeAuto && prodLike(cfg) {
			middleware.Logger.Warn("AutoMigrate running in a prod-like environment; review schema diffs")
		}
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan plus applied and pending migration versions.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, Environment: cfg.Env}
	if !plan.RunSQL {
		return status, nil
	}

	applied, err := NewRunner(db).Applied(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = pendingMigrations(applied, GetMigrations())
	return status, nil
}
