// Command migrate applies, inspects and reverts the TaskHub schema.
//
//	migrate up            apply pending embedded SQL migrations
//	migrate auto          run GORM AutoMigrate over the persistent models
//	migrate status        list applied and pending versions
//	migrate down <n>      revert migration n (must be the latest applied)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"taskhub/internal/config"
	"taskhub/internal/database"

	"gorm.io/gorm"
)

type command struct {
	args int
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {run: migrateUp},
	"auto":   {run: migrateAuto},
	"status": {run: migrateStatus},
	"down":   {args: 1, run: migrateDown},
}

var errUsage = errors.New("usage: migrate <up|auto|status|down> [version]")

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return errUsage
	}
	name := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	cmd, ok := commands[name]
	if !ok || flag.NArg()-1 < cmd.args {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	return cmd.run(context.Background(), db, cfg, flag.Args()[1:])
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("sql migrations: %w", err)
	}
	log.Println("sql migrations applied")
	return nil
}

func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	log.Println("automigrate complete")
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("rollback %06d: %w", version, err)
	}
	log.Printf("reverted %06d", version)
	return nil
}

func migrateStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status: %w", err)
	}

	fmt.Printf("env=%s mode=%s sql=%t automigrate=%t\n\n",
		status.Environment, status.Mode, status.RunSQL, status.RunAuto)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
	for _, v := range status.AppliedVersions {
		name := "(not embedded)"
		if m := database.GetMigrationByVersion(v); m != nil {
			name = m.Name
		}
		fmt.Fprintf(w, "%06d\t%s\tapplied\n", v, name)
	}
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(w, "%06d\t%s\tpending\n", m.Version, m.Name)
	}
	return w.Flush()
}
