// Command workers runs the workflow management jobs: SLA escalation, the
// trigger sweep and payment reminders, either once or on a schedule.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/app"
	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/logging"
)

func main() {
	if err := newRootCmd(openPostgres).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// opener builds the application for one command run. The returned func
// releases everything it opened.
type opener func(ctx context.Context, configPath string) (*app.App, func(), error)

func loadRuntime(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openPostgres(ctx context.Context, configPath string) (*app.App, func(), error) {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := app.OpenDatabase(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	stores, err := app.PostgresStores(db)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, stores, logger, app.Options{})
	if err != nil {
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = logger.Sync()
	}, nil
}
