package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mockbird/mockbird/internal/index"
	"github.com/mockbird/mockbird/internal/store"
	"github.com/mockbird/mockbird/pkg/admin"
	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/config"
	"github.com/mockbird/mockbird/pkg/engine"
	"github.com/mockbird/mockbird/pkg/logging"
	"github.com/mockbird/mockbird/pkg/notify"
)

var serveFlags struct {
	configPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock-serving engine",
	Example: `  # Local development: in-memory store, in-process events
  mockbird serve

  # Production: PostgreSQL + Redis via environment
  MOCKBIRD_DATABASE_DSN="host=db user=mockbird dbname=mockbird" \
  MOCKBIRD_REDIS_ADDR="redis:6379" \
  mockbird serve --config /etc/mockbird/config.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveFlags.configPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseDSN != "" {
		gs, err := store.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("cannot open database: %w", err)
		}
		st = gs
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		log.Warn("no database configured, captures will not survive restarts")
	}

	var bus notify.Bus
	if cfg.RedisAddr != "" {
		bus, err = notify.NewRedisBus(ctx, cfg.RedisAddr, log.With("component", "notify"))
		if err != nil {
			return fmt.Errorf("cannot connect event bus: %w", err)
		}
	} else {
		bus = notify.NewHub(log.With("component", "notify"))
	}
	defer func() { _ = bus.Close() }()

	ix := index.New(st,
		index.WithTTL(cfg.CacheTTL.Std()),
		index.WithLogger(log.With("component", "index")))

	writer := capture.NewWriter(st,
		capture.WithWriteTimeout(cfg.CaptureWriteTimeout.Std()),
		capture.WithRetryQueueSize(cfg.CaptureRetryQueueSize),
		capture.WithLogger(log.With("component", "capture")))
	defer writer.Close()

	ingress := engine.NewHandler(cfg.BaseDomain, ix, writer, bus, st,
		engine.WithHandlerLogger(log.With("component", "ingress")),
		engine.WithMaxBodyBytes(cfg.MaxBodyBytes))

	adminAPI := admin.New(st, ix, bus,
		admin.WithLogger(log.With("component", "admin")),
		admin.WithVersion(version))

	srv := engine.NewServer(cfg.IngressAddr, cfg.AdminAddr, ingress, adminAPI.Handler(),
		engine.WithServerLogger(log))
	if err := srv.Start(); err != nil {
		return err
	}

	log.Info("mockbird started",
		"base_domain", cfg.BaseDomain,
		"ingress_addr", cfg.IngressAddr,
		"admin_addr", cfg.AdminAddr)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
