package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akontos/sirena/internal/alerts"
	"github.com/akontos/sirena/internal/audit"
	"github.com/akontos/sirena/internal/auth"
	"github.com/akontos/sirena/internal/broadcast"
	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/natsbus"
	"github.com/akontos/sirena/internal/registry"
	"github.com/akontos/sirena/internal/sessionstore"
	"github.com/akontos/sirena/internal/silent"
	"github.com/akontos/sirena/internal/sweeper"
	"github.com/akontos/sirena/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("sirena %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: sirena <command>\n\nCommands:\n  gateway    Start the realtime dispatch gateway\n  backup     Export the audit database\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting sirena gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store (redis in production, memory for development)
	store, err := sessionstore.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	defer store.Close()
	slog.Info("session store initialized", "backend", cfg.Store.Backend)

	// Embedded NATS event mirror
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer client.Close()

	// Audit trail consuming the event firehose
	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.New(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("init audit store: %w", err)
		}
		defer auditStore.Close()
		if err := auditStore.AttachBus(client); err != nil {
			return fmt.Errorf("attach audit trail: %w", err)
		}
		slog.Info("audit trail enabled", "path", cfg.Audit.Path)
	}

	// Ops alerts via Telegram; nil when unconfigured
	alerter, err := alerts.New(cfg.Alerts)
	if err != nil {
		return fmt.Errorf("init alerts: %w", err)
	}
	if alerter != nil {
		slog.Info("telegram alerts enabled")
	}

	reg := registry.New()
	bcast := broadcast.New(reg, client)
	manager := silent.NewManager(store, bcast, cfg.Silent, alerter)

	// Durable expiry backstop
	sw := sweeper.New(manager, cfg.Sweeper, alerter)
	go sw.Start(ctx)

	resolver, err := auth.NewResolver(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	srv := web.NewServer(reg, bcast, manager, auditStore, resolver, cfg.Web, version)
	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("web server error", "error", err)
		}
	}()
	slog.Info("web server started", "port", cfg.Web.Port)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
