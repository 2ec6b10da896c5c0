package triggers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps triggers in process.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*WorkflowTrigger
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]*WorkflowTrigger)}
}

func (r *MemoryRepository) Create(ctx context.Context, t *WorkflowTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	row := *t
	r.rows[t.ID] = &row
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*WorkflowTrigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *row
	return &out, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*WorkflowTrigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*WorkflowTrigger
	for _, row := range r.rows {
		if filter.InstanceType != "" && row.InstanceType != filter.InstanceType {
			continue
		}
		if filter.ActiveOnly && !row.IsActive {
			continue
		}
		t := *row
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, t *WorkflowTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[t.ID]
	if !ok {
		return ErrNotFound
	}
	row := *t
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = time.Now()
	r.rows[t.ID] = &row
	return nil
}

func (r *MemoryRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	row.LastTriggered = &at
	return nil
}
