// Command server runs the TaskHub HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/bootstrap"
	"taskhub/internal/config"
	"taskhub/internal/middleware"
	"taskhub/internal/observability"
	"taskhub/internal/server"
)

const (
	serviceName   = "taskhub-api"
	version       = "1.0"
	shutdownGrace = 10 * time.Second
)

// @title TaskHub API
// @version 1.0
// @description DIY project management API: projects, tasks, resources, tags, a social graph and project updates.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@taskhub.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	seedPreset := flag.String("seed", "", "seed preset to load at startup, outside production (small, demo)")
	flag.Parse()

	if err := run(*seedPreset); err != nil {
		log.Fatalf("taskhub: %v", err)
	}
}

func run(seedPreset string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.InitLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	flushTraces, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedPreset: seedPreset})
	if err != nil {
		return err
	}
	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis)
	if err != nil {
		rt.Close()
		return fmt.Errorf("build server: %w", err)
	}

	stop, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- srv.Start() }()

	select {
	case err := <-served:
		return err
	case <-stop.Done():
	}

	middleware.Logger.Info("shutdown requested")
	ctx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		middleware.Logger.Error("server shutdown", slog.String("error", err.Error()))
	}
	if err := flushTraces(ctx); err != nil {
		middleware.Logger.Error("trace flush", slog.String("error", err.Error()))
	}
	return nil
}
