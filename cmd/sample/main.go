package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdh/datahub-samples/internal/config"
	"github.com/fsdh/datahub-samples/internal/database"
	"github.com/fsdh/datahub-samples/internal/http/handler"
	"github.com/fsdh/datahub-samples/internal/http/middleware"
	"github.com/fsdh/datahub-samples/internal/http/router"
	"github.com/fsdh/datahub-samples/internal/jobs"
	"github.com/fsdh/datahub-samples/internal/logger"
	"github.com/fsdh/datahub-samples/internal/notebook"
	"github.com/fsdh/datahub-samples/internal/repository"
	"github.com/fsdh/datahub-samples/internal/storage"
	"go.uber.org/zap"
)

const usage = "usage: sample [all|storage|mount|db|read|serve|schedule]"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "all"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// In development secrets come from environment variables,
	// elsewhere from Azure Key Vault
	cfg, secretProvider, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	factory, err := storage.NewBackendFactory(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	fs := storage.NewFileSystem(factory, log)
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	runner := notebook.NewRunner(notebook.Options{
		Config:     cfg,
		FileSystem: fs,
		Secrets:    secretProvider,
		Out:        os.Stdout,
		Logger:     log,
	})

	switch command {
	case "all":
		return runner.Run(ctx)
	case notebook.StepStorage, notebook.StepMount, notebook.StepDatabase, notebook.StepRead:
		return runner.Run(ctx, command)
	case "serve":
		return serve(ctx, cfg, fs, runner, log)
	case "schedule":
		return schedule(ctx, cfg, runner, log)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func serve(ctx context.Context, cfg *config.Config, fs *storage.FileSystem, runner *notebook.Runner, log *zap.Logger) error {
	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if cfg.Storage.WasbsURI != "" {
		if err := runner.MountStorage(ctx); err != nil {
			log.Warn("Storage mount failed, continuing without it", zap.Error(err))
		}
	}

	rt := router.NewRouter(
		cfg,
		log,
		db,
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		handler.NewCelestialBodyHandler(repository.NewCelestialBodyRepository(db), runner, log),
		handler.NewStorageHandler(fs, storageRoots(cfg, log), cfg.Storage.ShowRows, log),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped")
		return nil
	}
}

func schedule(ctx context.Context, cfg *config.Config, runner *notebook.Runner, log *zap.Logger) error {
	scheduler := jobs.NewScheduler(log)

	job := jobs.NewWalkthroughJob(runner, cfg.Schedule.Steps, log, cfg.Reader.QueryTimeoutDuration()+5*time.Minute)
	if err := scheduler.AddJob(jobs.WalkthroughJobName, cfg.Schedule.Cron, job.Run); err != nil {
		return err
	}
	scheduler.Start()

	if next, ok := scheduler.Next(jobs.WalkthroughJobName); ok {
		log.Info("Scheduler started",
			zap.String("cron_expr", cfg.Schedule.Cron),
			zap.Time("next_run", next),
		)
	}

	<-ctx.Done()
	log.Info("Shutdown signal received")
	<-scheduler.Stop().Done()
	log.Info("Scheduler stopped")
	return nil
}

// storageRoots returns the configured locations the storage endpoints may browse
func storageRoots(cfg *config.Config, log *zap.Logger) []storage.Location {
	var roots []storage.Location
	for _, raw := range []string{cfg.Storage.AbfssURI, cfg.Storage.WasbsURI} {
		if raw == "" {
			continue
		}
		loc, err := storage.ParseURI(raw)
		if err != nil {
			log.Warn("Ignoring invalid storage location", zap.String("uri", raw), zap.Error(err))
			continue
		}
		roots = append(roots, loc)
	}
	return roots
}
