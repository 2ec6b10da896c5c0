package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/config"
)

func TestSchedulerRegistersConfiguredJobs(t *testing.T) {
	f := newFixture(t)
	cfg := config.Default().Workflow
	cfg.TriggerCron = ""

	s := NewScheduler(cfg,
		NewSLAEscalationJob(f.maintenance, f.auditSvc, f.notifier, 0, nil, nil),
		NewTriggerJob(f.store, f.triggers, 0, 0, nil, nil),
		NewPaymentReminderJob(f.rentals, f.notifier, f.auditSvc, nil, nil),
		nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, 2, s.Entries())
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	f := newFixture(t)
	cfg := config.Default().Workflow
	cfg.SLACron = "every now and then"

	s := NewScheduler(cfg, NewSLAEscalationJob(f.maintenance, f.auditSvc, f.notifier, 0, nil, nil), nil, nil, nil)
	assert.Error(t, s.Start(context.Background()))
}
