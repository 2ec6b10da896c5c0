package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/config"
)

// Scheduler runs the batch jobs on cron specs. It replaces an external
// crontab, not a poller: each entry is one complete job run.
type Scheduler struct {
	cron      *cron.Cron
	sla       *SLAEscalationJob
	triggers  *TriggerJob
	reminders *PaymentReminderJob
	cfg       config.WorkflowConfig
	logger    *zap.Logger
	mu        sync.Mutex
	running   bool
}

func NewScheduler(cfg config.WorkflowConfig, sla *SLAEscalationJob, trg *TriggerJob, reminders *PaymentReminderJob, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sla:       sla,
		triggers:  trg,
		reminders: reminders,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the jobs whose spec is set and starts the cron loop. ctx
// is passed to every run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	entries := []struct {
		name string
		spec string
		run  func()
	}{
		{JobSLAEscalation, s.cfg.SLACron, func() { s.report(s.sla.Run(ctx, false)) }},
		{JobWorkflowTriggers, s.cfg.TriggerCron, func() { s.report(s.triggers.Run(ctx, false, "")) }},
		{JobPaymentReminders, s.cfg.ReminderCron, func() { s.report(s.reminders.Run(ctx, false, s.cfg.ReminderDaysOverdue)) }},
	}
	for _, e := range entries {
		if e.spec == "" {
			s.logger.Info("Job disabled", zap.String("job", e.name))
			continue
		}
		if _, err := s.cron.AddFunc(e.spec, e.run); err != nil {
			return fmt.Errorf("invalid cron spec %q for %s: %w", e.spec, e.name, err)
		}
		s.logger.Info("Job scheduled", zap.String("job", e.name), zap.String("spec", e.spec))
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.logger.Info("Stopping job scheduler")
	<-s.cron.Stop().Done()
	s.running = false
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) report(r *Report, err error) {
	if err != nil {
		s.logger.Error("Scheduled job failed", zap.String("job", r.Job), zap.Error(err))
	}
}
