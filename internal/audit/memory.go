package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps audit rows in process. Used by tests and by the
// CLI's --dry-run wiring.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows []WorkflowAuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, entry *WorkflowAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.rows = append(r.rows, *entry)
	return nil
}

// All returns every row in insertion order.
func (r *MemoryRepository) All() []WorkflowAuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]WorkflowAuditLog(nil), r.rows...)
}

func (r *MemoryRepository) ListForInstance(ctx context.Context, instanceType, instanceID string) ([]WorkflowAuditLog, error) {
	var out []WorkflowAuditLog
	for _, row := range r.All() {
		if row.InstanceType == instanceType && row.InstanceID == instanceID {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, filter EventFilter) ([]WorkflowAuditLog, error) {
	var out []WorkflowAuditLog
	for _, row := range r.All() {
		if filter.InstanceType != "" && row.InstanceType != filter.InstanceType {
			continue
		}
		if filter.InstanceID != "" && row.InstanceID != filter.InstanceID {
			continue
		}
		if filter.EventType != "" && row.EventType != filter.EventType {
			continue
		}
		if filter.Since != nil && row.Timestamp.Before(*filter.Since) {
			continue
		}
		out = append(out, row)
	}
	// newest first; ties keep reverse insertion order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) CountByEventName(ctx context.Context, since time.Time) (map[string]int64, error) {
	return r.countBy(since, func(row WorkflowAuditLog) string { return row.EventName }), nil
}

func (r *MemoryRepository) CountByInstanceType(ctx context.Context, since time.Time) (map[string]int64, error) {
	return r.countBy(since, func(row WorkflowAuditLog) string { return row.InstanceType }), nil
}

func (r *MemoryRepository) countBy(since time.Time, key func(WorkflowAuditLog) string) map[string]int64 {
	out := map[string]int64{}
	for _, row := range r.All() {
		if !row.Timestamp.Before(since) {
			out[key(row)]++
		}
	}
	return out
}
