// Package workflow is the single entry point for status changes on every
// workflow-governed entity. HTTP handlers, jobs and triggers all resolve an
// entity type here and fire events through its engine.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// ErrUnknownModelType is returned for a model type with no registered
// workflow.
var ErrUnknownModelType = errors.New("unknown model type")

// Handle is the type-erased view of one entity type's workflow.
type Handle interface {
	// Type is the canonical subject type, e.g. "MaintenanceRequest".
	Type() string
	Load(ctx context.Context, id uuid.UUID) (models.Entity, error)
	States() []workflows.State
	Events() []workflows.Event
	Check(ctx context.Context, target models.Entity, event workflows.Event, actor workflows.Actor, params workflows.Params) workflows.Decision
	Transition(ctx context.Context, target models.Entity, event workflows.Event, actor workflows.Actor, params workflows.Params) (workflows.Result, error)
	AvailableEvents(target models.Entity, actor workflows.Actor) []workflows.Event
	// EventsTo lists, in declaration order, the events that lead from one
	// state to another and whose permissions the actor holds.
	EventsTo(from, to workflows.State, actor workflows.Actor) []workflows.Event
	Metrics(ctx context.Context, target models.Entity) map[string]any
}

type handle[E models.Entity] struct {
	engine  *workflows.Engine[E, *repository.Repositories]
	load    func(ctx context.Context, id uuid.UUID) (E, error)
	metrics func(ctx context.Context, subject E) map[string]any
}

// NewHandle wraps a typed engine.
func NewHandle[E models.Entity](
	engine *workflows.Engine[E, *repository.Repositories],
	load func(ctx context.Context, id uuid.UUID) (E, error),
	metrics func(ctx context.Context, subject E) map[string]any,
) Handle {
	return &handle[E]{engine: engine, load: load, metrics: metrics}
}

func (h *handle[E]) Type() string              { return h.engine.Machine().Name() }
func (h *handle[E]) States() []workflows.State { return h.engine.Machine().States() }
func (h *handle[E]) Events() []workflows.Event { return h.engine.Machine().Events() }

func (h *handle[E]) Load(ctx context.Context, id uuid.UUID) (models.Entity, error) {
	return h.load(ctx, id)
}

func (h *handle[E]) subject(target models.Entity) (E, error) {
	e, ok := target.(E)
	if !ok {
		var zero E
		return zero, fmt.Errorf("%s workflow cannot handle %s", h.Type(), target.SubjectType())
	}
	return e, nil
}

func (h *handle[E]) Check(ctx context.Context, target models.Entity, event workflows.Event, actor workflows.Actor, params workflows.Params) workflows.Decision {
	e, err := h.subject(target)
	if err != nil {
		return workflows.Decision{Kind: workflows.KindUnknownEvent, Reason: err.Error()}
	}
	return h.engine.Check(ctx, e, event, actor, params)
}

func (h *handle[E]) Transition(ctx context.Context, target models.Entity, event workflows.Event, actor workflows.Actor, params workflows.Params) (workflows.Result, error) {
	e, err := h.subject(target)
	if err != nil {
		return workflows.Result{}, err
	}
	return h.engine.Transition(ctx, e, event, actor, params)
}

func (h *handle[E]) AvailableEvents(target models.Entity, actor workflows.Actor) []workflows.Event {
	e, err := h.subject(target)
	if err != nil {
		return nil
	}
	return h.engine.AvailableEvents(e, actor)
}

func (h *handle[E]) EventsTo(from, to workflows.State, actor workflows.Actor) []workflows.Event {
	machine := h.engine.Machine()
	var out []workflows.Event
	for _, ev := range machine.EventsFrom(from) {
		t, _ := machine.Lookup(ev)
		if t.To != to {
			continue
		}
		if ok, _ := workflows.CheckPermissions(h.engine.Hierarchy(), actor, t.Permissions); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (h *handle[E]) Metrics(ctx context.Context, target models.Entity) map[string]any {
	e, err := h.subject(target)
	if err != nil || h.metrics == nil {
		return map[string]any{}
	}
	return h.metrics(ctx, e)
}

// Registry resolves model type names to workflow handles. Lookups are
// case-insensitive and accept aliases.
type Registry struct {
	handles map[string]Handle
	aliases map[string]string
}

func NewRegistry() *Registry {
	return &Registry{handles: map[string]Handle{}, aliases: map[string]string{}}
}

// Register adds h under its type name and the given aliases.
func (r *Registry) Register(h Handle, aliases ...string) {
	r.handles[h.Type()] = h
	r.aliases[strings.ToLower(h.Type())] = h.Type()
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = h.Type()
	}
}

// Resolve returns the handle for a model type or alias.
func (r *Registry) Resolve(modelType string) (Handle, error) {
	name, ok := r.aliases[strings.ToLower(strings.TrimSpace(modelType))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, modelType)
	}
	return r.handles[name], nil
}

// Types returns the canonical type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.handles))
	for name := range r.handles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
