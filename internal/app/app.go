// Package app assembles the workflow services shared by the API server and
// the worker CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/complaints"
	"rentflow/property-portal/property-portal-backend/internal/compliance"
	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/jobs"
	"rentflow/property-portal/property-portal-backend/internal/maintenance"
	"rentflow/property-portal/property-portal-backend/internal/metrics"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/notifications/websocket"
	"rentflow/property-portal/property-portal-backend/internal/payments"
	"rentflow/property-portal/property-portal-backend/internal/rentals"
	"rentflow/property-portal/property-portal-backend/internal/reports"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/internal/triggers"
	"rentflow/property-portal/property-portal-backend/internal/workflow"
	"rentflow/property-portal/property-portal-backend/pkg/storage"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Stores are the persistence backends the services run on.
type Stores struct {
	UoW           repository.UnitOfWork
	Audit         audit.Repository
	Notifications notifications.Repository
	Triggers      triggers.Repository
}

// Options toggles process-specific parts of the assembly.
type Options struct {
	// Registry receives the Prometheus collectors; nil creates a fresh one.
	Registry *prometheus.Registry
	// Realtime starts the websocket manager used for in-app pushes.
	Realtime bool
	// SummaryCache overrides the cache chosen from cfg.Redis.
	SummaryCache audit.SummaryCache
	// Uploader overrides the S3 uploader built from cfg.Storage.
	Uploader reports.Uploader
}

// Jobs are the scheduled management jobs.
type Jobs struct {
	SLA       *jobs.SLAEscalationJob
	Triggers  *jobs.TriggerJob
	Reminders *jobs.PaymentReminderJob
}

// App holds every assembled service.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Stores    Stores
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Audit     *audit.Service
	Notifier  *notifications.Service
	Triggers  *triggers.Service
	Services  workflow.Services
	Workflow  *workflow.Service
	Actions   *workflow.Actions
	Reports   *reports.Service
	Auth      *auth.Service
	Sockets   *websocket.Manager
	Jobs      Jobs
	Scheduler *jobs.Scheduler

	closers []func()
}

// OpenDatabase connects gorm to Postgres and applies the pool settings.
func OpenDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}
	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	logger.Info("Connected to database",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName))
	return db, nil
}

// PostgresStores binds every repository to db.
func PostgresStores(db *gorm.DB) (Stores, error) {
	auditRepo, err := audit.NewRepository(db)
	if err != nil {
		return Stores{}, err
	}
	return Stores{
		UoW:           repository.NewUnitOfWork(db),
		Audit:         auditRepo,
		Notifications: notifications.NewRepository(db),
		Triggers:      triggers.NewRepository(db),
	}, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	steps := []struct {
		name string
		fn   func(*gorm.DB) error
	}{
		{"entities", repository.Migrate},
		{"audit", audit.Migrate},
		{"notifications", notifications.Migrate},
		{"triggers", triggers.Migrate},
	}
	for _, step := range steps {
		if err := step.fn(db); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", step.name, err)
		}
	}
	return nil
}

// New wires the services on top of stores.
func New(ctx context.Context, cfg *config.Config, stores Stores, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Stores: stores}

	a.Registry = opts.Registry
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
	}
	a.Metrics = metrics.New(a.Registry)

	cache := opts.SummaryCache
	if cache == nil {
		var err error
		if cache, err = a.summaryCache(ctx); err != nil {
			return nil, err
		}
	}
	a.Audit = audit.NewService(stores.Audit, cache, logger.Named("audit"))

	if err := a.buildNotifier(ctx, opts.Realtime); err != nil {
		a.Close()
		return nil, err
	}

	a.Actions = workflow.NewActions(stores.UoW, a.Notifier)
	a.Triggers = triggers.NewService(stores.Triggers, a.Actions, a.Audit, logger.Named("triggers"))
	a.Triggers.SetRecorder(a.Metrics)

	engineOpts := []workflows.Option{
		workflows.WithObservers(
			audit.NewObserver(a.Audit),
			notifications.NewObserver(a.Notifier),
			triggers.NewObserver(a.Triggers),
		),
		workflows.WithRecorder(a.Metrics),
		workflows.WithLogger(logger.Named("engine")),
	}
	a.Services = workflow.Services{
		Maintenance: maintenance.NewService(stores.UoW, cfg.Workflow, logger.Named("maintenance"), engineOpts...),
		Payments:    payments.NewService(stores.UoW, logger.Named("payments"), engineOpts...),
		Rentals:     rentals.NewService(stores.UoW, logger.Named("rentals"), engineOpts...),
		Complaints:  complaints.NewService(stores.UoW, logger.Named("complaints"), engineOpts...),
		Compliance:  compliance.NewService(stores.UoW, logger.Named("compliance"), engineOpts...),
	}
	registry := workflow.NewDefaultRegistry(a.Services)
	a.Actions.Bind(registry)
	a.Workflow = workflow.NewService(registry, a.Audit, logger.Named("workflow"))

	uploader := opts.Uploader
	if uploader == nil && cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3UploaderFromConfig(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
		uploader = s3
	}
	a.Reports = reports.NewService(a.Audit, uploader, logger.Named("reports"))

	if cfg.Security.JWTSecret != "" {
		repos := stores.UoW.Repositories()
		svc, err := auth.NewService(cfg.Security, repos.Users, repos.Tenants)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Auth = svc
	}

	jobLogger := logger.Named("jobs")
	a.Jobs = Jobs{
		SLA: jobs.NewSLAEscalationJob(a.Services.Maintenance, a.Audit, a.Notifier,
			cfg.Workflow.EscalationHours, a.Metrics, jobLogger),
		Triggers: jobs.NewTriggerJob(stores.UoW, a.Triggers,
			cfg.Workflow.TriggerLookback, cfg.Workflow.TriggerLimit, a.Metrics, jobLogger),
		Reminders: jobs.NewPaymentReminderJob(a.Services.Rentals, a.Notifier, a.Audit, a.Metrics, jobLogger),
	}
	a.Scheduler = jobs.NewScheduler(cfg.Workflow, a.Jobs.SLA, a.Jobs.Triggers, a.Jobs.Reminders, jobLogger)

	return a, nil
}

func (a *App) summaryCache(ctx context.Context) (audit.SummaryCache, error) {
	if a.Config.Redis.URL == "" {
		c := audit.NewMemorySummaryCache(a.Config.Redis.TTL)
		a.closers = append(a.closers, c.Stop)
		return c, nil
	}
	c, err := audit.NewRedisSummaryCache(ctx, a.Config.Redis.URL, a.Config.Redis.TTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := c.Close(); err != nil {
			a.Logger.Warn("Failed to close redis cache", zap.Error(err))
		}
	})
	return c, nil
}

func (a *App) buildNotifier(ctx context.Context, realtime bool) error {
	email, err := notifications.NewEmailSender(ctx, a.Config.Email, a.Logger.Named("email"))
	if err != nil {
		return err
	}
	sms, err := notifications.NewSMSSender(ctx, a.Config.SMS, a.Logger.Named("sms"))
	if err != nil {
		return err
	}

	opts := notifications.Options{
		Email:           email,
		SMS:             sms,
		StaffGroup:      a.Config.Workflow.StaffGroup,
		EscalationGroup: a.Config.Workflow.EscalationGroup,
	}
	if realtime {
		a.Sockets = websocket.NewManager(a.Config.Server.AllowedOrigins, a.Logger.Named("websocket"))
		a.closers = append(a.closers, a.Sockets.Close)
		opts.Push = a.Sockets
	}

	dir := notifications.NewUserDirectory(a.Stores.UoW.Repositories().Users)
	a.Notifier = notifications.NewService(a.Stores.Notifications, dir, opts, a.Logger.Named("notifications"))
	a.Notifier.SetRecorder(a.Metrics)
	return nil
}

// Close releases caches and connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
