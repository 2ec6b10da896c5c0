package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
)

func TestSLAEscalationDryRunChangesNothing(t *testing.T) {
	f := newFixture(t)
	m := f.request(t, "Broken boiler", models.PriorityHigh)
	f.now = f.now.Add(30 * time.Hour)

	job := NewSLAEscalationJob(f.maintenance, f.auditSvc, f.notifier, 4, f.recorder, nil)
	report, err := job.Run(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, report.Acted, 1)
	assert.Equal(t, "high -> urgent after 30.0h", report.Acted[0].Detail)
	assert.Equal(t, models.PriorityHigh, f.stored(t, m.ID).Priority)
	assert.Empty(t, f.audits.All())
	assert.Empty(t, f.notes.All())
	assert.Equal(t, 1, f.recorder.runs["sla_escalation/dry_run"])
}

func TestSLAEscalationRaisesOverdueRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	high := f.request(t, "Broken boiler", models.PriorityHigh)
	low := f.request(t, "Squeaky door", models.PriorityLow)
	f.now = f.now.Add(30 * time.Hour)

	job := NewSLAEscalationJob(f.maintenance, f.auditSvc, f.notifier, 4, f.recorder, nil)
	report, err := job.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	require.Len(t, report.Acted, 1)
	assert.Empty(t, report.Failed)

	got := f.stored(t, high.ID)
	assert.Equal(t, models.PriorityUrgent, got.Priority)
	assert.Equal(t, 1, got.EscalationLevel)
	require.NotNil(t, got.EscalatedAt)
	assert.Equal(t, f.now, *got.EscalatedAt)
	assert.Equal(t, models.PriorityLow, f.stored(t, low.ID).Priority)

	logs := f.audits.All()
	require.Len(t, logs, 1)
	assert.Equal(t, audit.EventEscalation, logs[0].EventType)
	assert.Equal(t, "sla_breach", logs[0].EventName)

	rows := f.notes.All()
	require.Len(t, rows, 1)
	assert.Equal(t, f.manager.ID, rows[0].RecipientID)
	assert.Equal(t, notifications.PriorityUrgent, rows[0].Priority)
	require.NotNil(t, rows[0].NextEscalation)
	assert.Equal(t, f.now.Add(4*time.Hour), *rows[0].NextEscalation)

	// The SLA window restarts from the escalation.
	report, err = job.Run(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Acted)

	f.now = f.now.Add(3 * time.Hour)
	_, err = job.Run(ctx, false)
	require.NoError(t, err)
	got = f.stored(t, high.ID)
	assert.Equal(t, models.PriorityUrgent, got.Priority)
	assert.Equal(t, 2, got.EscalationLevel)
}

func TestSLAEscalationSkipsClosedRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.request(t, "Broken boiler", models.PriorityUrgent)
	_, err := f.maintenance.Cancel(ctx, m.ID, "duplicate", f.manager.Actor())
	require.NoError(t, err)
	f.now = f.now.Add(48 * time.Hour)

	report, err := NewSLAEscalationJob(f.maintenance, f.auditSvc, f.notifier, 0, nil, nil).Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}
