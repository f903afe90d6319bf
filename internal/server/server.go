// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduexamportal/mailroom/internal/api"
	"github.com/eduexamportal/mailroom/internal/api/handlers"
	"github.com/eduexamportal/mailroom/internal/config"
	"github.com/eduexamportal/mailroom/internal/db"
	"github.com/eduexamportal/mailroom/internal/logger"
	"github.com/eduexamportal/mailroom/internal/mailer"
	"github.com/eduexamportal/mailroom/internal/queue"
	"github.com/eduexamportal/mailroom/internal/rbac"
	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/eduexamportal/mailroom/internal/worker"
	"golang.org/x/sync/errgroup"
)

// Config holds the server configuration options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Mode    string // Run mode: server, worker, or both
	Version string // Version string to report
}

// Run starts the server with the given configuration and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	// Set version in handlers
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	// Load configuration
	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from CLI flag if provided
	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	// Initialize logger
	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting mailroom", "version", cfg.Version, "mode", appCfg.Server.Mode)

	// Propagate app log level to database if not explicitly set
	if appCfg.Database.LogLevel == "" {
		appCfg.Database.LogLevel = appCfg.Log.Level
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "both"
	}
	runServer := mode == "server" || mode == "both"
	runWorker := mode == "worker" || mode == "both"
	if !runServer && !runWorker {
		return fmt.Errorf("invalid mode %q: valid modes are server, worker, both", mode)
	}
	if mode == "server" && appCfg.Queue.Type == "memory" {
		slog.Warn("Running API without a worker on an in-memory queue; queued mail will not be sent")
	}

	// Initialize database
	database, err := db.New(appCfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	// Run migrations
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	instanceID, err := db.GetOrCreateInstanceID(database)
	if err != nil {
		return fmt.Errorf("failed to initialize instance ID: %w", err)
	}
	slog.Info("Instance ID initialized", "instance_id", instanceID)

	if err := rbac.InitEnforcer(database, slog.Default()); err != nil {
		return fmt.Errorf("failed to initialize rbac: %w", err)
	}

	// Create default admin user if configured
	if err := db.CreateDefaultAdmin(database); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	// Initialize job queue based on configuration
	jobQueue, err := createQueue(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize job queue: %w", err)
	}
	defer jobQueue.Close()
	slog.Info("Job queue initialized", "type", appCfg.Queue.Type)

	g, gctx := errgroup.WithContext(ctx)

	if runWorker {
		m, err := mailer.New(appCfg.Mail)
		if err != nil {
			return fmt.Errorf("failed to initialize mailer: %w", err)
		}
		w := worker.New(database, jobQueue, service.NewTemplateService(database),
			render.New(appCfg.Mail.BrandName), m, slog.Default(), appCfg.Queue.Workers)
		if _, err := w.RequeuePending(ctx); err != nil {
			slog.Warn("Failed to requeue pending jobs", "error", err)
		}

		g.Go(func() error {
			err := w.Start(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if runServer {
		router := api.NewRouter(appCfg, database, jobQueue)

		addr := fmt.Sprintf(":%d", appCfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			slog.Info("Server listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			slog.Info("Server stopped")
			return nil
		})
	}

	err = g.Wait()
	slog.Info("mailroom exited")
	return err
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}

// createQueue creates a queue based on configuration.
func createQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "memory":
		return queue.NewMemoryQueue(100), nil
	case "valkey":
		if cfg.Queue.ValkeyAddr == "" {
			return nil, fmt.Errorf("valkey address is required when queue type is valkey")
		}
		return queue.NewValkeyQueue(cfg.Queue.ValkeyAddr)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, valkey)", cfg.Queue.Type)
	}
}
