package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"taskhub/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records one applied SQL migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Runner applies and reverts versioned SQL migrations, tracking them in migration_logs.
type Runner struct {
	db         *gorm.DB
	registered []Migration
}

// NewRunner returns a Runner over the migrations embedded in the binary.
func NewRunner(db *gorm.DB) *Runner {
	return &Runner{db: db, registered: migrations}
}

func (r *Runner) ensureLog(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}
	return nil
}

// Applied lists applied versions in ascending order. A missing log table means none.
func (r *Runner) Applied(ctx context.Context) ([]int, error) {
	if !r.db.Migrator().HasTable(&MigrationLog{}) {
		return []int{}, nil
	}
	var versions []int
	if err := r.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return versions, nil
}

// Up applies every pending migration in version order. Each script and its log
// row commit together.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureLog(ctx); err != nil {
		return err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, r.registered); err != nil {
		return err
	}

	pending := pendingMigrations(applied, r.registered)
	if len(pending) == 0 {
		middleware.Logger.Debug("Schema up to date", slog.Int("applied", len(applied)))
		return nil
	}
	for _, m := range pending {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return fmt.Errorf("apply migration %s: %w", m.String(), err)
			}
			return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
		})
		if err != nil {
			return err
		}
		middleware.Logger.Info("Migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
	}
	return nil
}

// Down reverts version, which must be the most recently applied migration.
func (r *Runner) Down(ctx context.Context, version int) error {
	var target *Migration
	for i := range r.registered {
		if r.registered[i].Version == version {
			target = &r.registered[i]
		}
	}
	if target == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}
	if latest := applied[len(applied)-1]; latest != version {
		return fmt.Errorf("migration %d is not the latest applied (%06d); roll that back first", version, latest)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.DownScript).Error; err != nil {
			return fmt.Errorf("revert migration %s: %w", target.String(), err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back", slog.Int("version", version), slog.String("name", target.Name))
	return nil
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return NewRunner(db).Up(ctx)
}

// RollbackMigration reverts the embedded migration with the given version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewRunner(db).Down(ctx, version)
}

// validateAppliedVersions fails when the database knows versions this binary does not,
// which usually means a newer build already migrated it.
func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]bool, len(registered))
	for _, m := range registered {
		known[m.Version] = true
	}
	var unknown []string
	for _, v := range applied {
		if !known[v] {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
}
