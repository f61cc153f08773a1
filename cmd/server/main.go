package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"fleetd/internal/agents"
	"fleetd/internal/audit"
	"fleetd/internal/config"
	"fleetd/internal/db"
	"fleetd/internal/events"
	"fleetd/internal/fleet"
	"fleetd/internal/handlers"
	"fleetd/internal/inventory"
	"fleetd/internal/middleware"
	"fleetd/internal/models"
	"fleetd/internal/notify"
	"fleetd/internal/snipeit"
	"fleetd/internal/stream"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run() error {
	var configPath, port, dbPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("fleetd", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("FLEETD_CONFIG"), "path to YAML config file")
	flagSet.StringVarP(&port, "port", "p", "", "listen port (overrides config and PORT)")
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (overrides config and DB_PATH)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("fleetd v%s\n", version)
		return nil
	}

	log.SetFlags(log.Ldate | log.Ltime)
	log.Printf("🚀 fleetd v%s starting...", version)

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != "" {
		cfg.Port = port
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("✅ Database connected (%s)", cfg.DBPath)

	ctx := context.Background()
	for _, migrate := range []func(context.Context, *sql.DB) error{
		agents.Migrate, audit.Migrate, inventory.Migrate, notify.Migrate,
	} {
		if err := migrate(ctx, conn); err != nil {
			return err
		}
	}

	bus := events.NewBus()
	svc := fleet.New(conn, cfg, newProjector(ctx, cfg.SnipeIT), bus)

	monitor := agents.NewOfflineMonitor(conn, bus, audit.NewRecorder(),
		time.Duration(cfg.Agent.HeartbeatInterval)*time.Minute, cfg.Agent.OfflineAfterMissed)
	monitor.Start()
	defer monitor.Stop()

	if len(cfg.NotifyURLs) > 0 {
		dispatcher := notify.NewDispatcher(conn, bus, nil, cfg.NotifyURLs)
		dispatcher.Start()
		defer dispatcher.Stop()
		log.Printf("🔔 Notifications enabled (%d targets)", len(cfg.NotifyURLs))
	}

	hub := stream.NewHub(bus)
	hub.Start()
	defer hub.CloseAll()

	auth, err := middleware.NewAdminAuth(cfg.AdminUser, cfg.AdminPass, cfg.AdminPassHash, cfg.AuthEnabled)
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled {
		log.Println("⚠️  Admin authentication is disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		defer limiter.Stop()
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.Deps{
			DB:      conn,
			Fleet:   svc,
			Stream:  hub,
			Auth:    auth,
			Limiter: limiter,
			Version: version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("⏹️  Received %s, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("👋 Server stopped")
	return nil
}

// newProjector returns nil when no Snipe-IT instance is configured, so
// inventory is stored without projection.
func newProjector(ctx context.Context, cfg models.SnipeITConfig) inventory.Projector {
	client, err := snipeit.NewClient(cfg.BaseURL, cfg.APIToken, cfg.Timeout)
	if errors.Is(err, snipeit.ErrNotConfigured) {
		log.Println("ℹ️  Snipe-IT not configured, inventory projection disabled")
		return nil
	}
	if err != nil {
		log.Printf("⚠️  Snipe-IT disabled: %v", err)
		return nil
	}

	fallback := snipeit.Defaults{
		StatusID:   cfg.DefaultStatusID,
		ModelID:    cfg.DefaultModelID,
		CategoryID: cfg.DefaultCategoryID,
	}
	lookupCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	defaults := snipeit.ResolveDefaults(lookupCtx, client, fallback, cfg.ModelName, cfg.CategoryName, cfg.StatusName)
	log.Printf("✅ Snipe-IT projection enabled (%s)", cfg.BaseURL)
	return snipeit.NewProjector(client, defaults)
}
