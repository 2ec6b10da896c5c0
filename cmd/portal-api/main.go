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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	v1 "rentflow/property-portal/property-portal-backend/api/v1"
	"rentflow/property-portal/property-portal-backend/internal/app"
	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/logging"
)

func main() {
	var (
		configPath    string
		inMemory      bool
		withScheduler bool
		migrate       bool
	)

	cmd := &cobra.Command{
		Use:           "portal-api",
		Short:         "Serve the property portal workflow API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, inMemory, withScheduler, migrate)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all data in process memory")
	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "run the workflow jobs on their cron schedules")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create or update tables before serving")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(configPath string, inMemory, withScheduler, migrate bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stores app.Stores
	if inMemory {
		logger.Warn("Running with in-memory stores; data is lost on exit")
		stores, _ = app.MemoryStores()
	} else {
		db, err := app.OpenDatabase(cfg.Database, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if migrate {
			if err := app.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migrated")
		}
		if stores, err = app.PostgresStores(db); err != nil {
			return err
		}
	}

	a, err := app.New(ctx, cfg, stores, logger, app.Options{Realtime: true})
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(cfg.Server.Mode)
	router, err := v1.NewRouter(a)
	if err != nil {
		return err
	}

	if withScheduler {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}
