package repository

import (
	"context"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// SaveFunc persists one subject inside tx with an optimistic state check.
type SaveFunc[E workflows.Subject] func(ctx context.Context, tx *Repositories, subject E, from workflows.State) error

// SubjectStore adapts a UnitOfWork to workflows.Store for one entity type.
type SubjectStore[E workflows.Subject] struct {
	uow  UnitOfWork
	save SaveFunc[E]
}

func NewSubjectStore[E workflows.Subject](uow UnitOfWork, save SaveFunc[E]) *SubjectStore[E] {
	return &SubjectStore[E]{uow: uow, save: save}
}

func (s *SubjectStore[E]) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *Repositories) error) error {
	return s.uow.Do(ctx, fn)
}

func (s *SubjectStore[E]) Save(ctx context.Context, tx *Repositories, subject E, from workflows.State) error {
	return s.save(ctx, tx, subject, from)
}
