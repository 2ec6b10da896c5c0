package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps notifications in process for tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows []*WorkflowNotification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// All returns copies of every row in insertion order.
func (r *MemoryRepository) All() []WorkflowNotification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]WorkflowNotification, len(r.rows))
	for i, n := range r.rows {
		out[i] = *n
	}
	return out
}

func (r *MemoryRepository) Create(ctx context.Context, n *WorkflowNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	row := *n
	r.rows = append(r.rows, &row)
	return nil
}

func (r *MemoryRepository) find(id uuid.UUID) *WorkflowNotification {
	for _, n := range r.rows {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (r *MemoryRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.find(id)
	if n == nil {
		return ErrNotFound
	}
	n.IsSent = true
	n.SentAt = &at
	return nil
}

func (r *MemoryRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.find(id)
	if n == nil || n.RecipientID != recipientID {
		return ErrNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	return nil
}

func (r *MemoryRepository) ListForUser(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]WorkflowNotification, error) {
	var out []WorkflowNotification
	for _, n := range r.All() {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var n int64
	for _, row := range r.All() {
		if row.RecipientID == recipientID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListDueEscalations(ctx context.Context, now time.Time) ([]WorkflowNotification, error) {
	var out []WorkflowNotification
	for _, row := range r.All() {
		if row.NextEscalation != nil && !row.NextEscalation.After(now) && !row.IsRead {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextEscalation.Before(*out[j].NextEscalation) })
	return out, nil
}
