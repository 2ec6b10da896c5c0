package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Subject is an entity whose status is governed by a StateMachine.
type Subject interface {
	SubjectType() string
	SubjectID() string
	CurrentState() State
	SetState(State)
}

// Validator returns a non-nil error whose message is shown to the caller
// verbatim when the transition must not proceed.
type Validator[E Subject] func(ctx context.Context, subject E, actor Actor, params Params) error

// SideEffect runs inside the transition's transaction. Any error aborts the
// whole transition.
type SideEffect[E Subject, X any] func(ctx context.Context, tx X, subject E, actor Actor, params Params) error

// Store persists subjects for an Engine.
type Store[E Subject, X any] interface {
	// WithinTx runs fn in one transaction; an error from fn rolls back every
	// write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx X) error) error
	// Save writes the subject only if the stored status still equals from
	// and the stored version is unchanged, returning ErrConflict otherwise.
	Save(ctx context.Context, tx X, subject E, from State) error
}

// Record describes a committed transition to observers.
type Record struct {
	Subject     Subject
	Event       Event
	Description string
	Result      Result
	Actor       Actor
	Params      Params
}

// Observer is notified after a transition commits. Errors are logged and
// never change the outcome.
type Observer interface {
	OnTransition(ctx context.Context, rec Record) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec Record) error

func (f ObserverFunc) OnTransition(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Recorder receives transition outcomes for metrics.
type Recorder interface {
	ObserveTransition(subjectType string, event Event, outcome string, elapsed time.Duration)
}

// Result is returned by a successful transition.
type Result struct {
	Success   bool      `json:"success"`
	OldState  State     `json:"old_state"`
	NewState  State     `json:"new_state"`
	Event     Event     `json:"event"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Decision is the outcome of evaluating a transition without running it.
type Decision struct {
	Allowed bool
	Kind    ErrorKind
	Reason  string
}

// Engine runs transitions of one entity type.
type Engine[E Subject, X any] struct {
	machine   *StateMachine[E, X]
	hierarchy Hierarchy
	store     Store[E, X]
	observers []Observer
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	observers []Observer
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func WithObservers(obs ...Observer) Option {
	return func(o *engineOptions) { o.observers = append(o.observers, obs...) }
}

func WithRecorder(r Recorder) Option {
	return func(o *engineOptions) { o.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// NewEngine binds a state machine to a store.
func NewEngine[E Subject, X any](machine *StateMachine[E, X], hierarchy Hierarchy, store Store[E, X], opts ...Option) *Engine[E, X] {
	o := engineOptions{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[E, X]{
		machine:   machine,
		hierarchy: hierarchy,
		store:     store,
		observers: o.observers,
		recorder:  o.recorder,
		logger:    o.logger,
		now:       o.now,
	}
}

// Machine exposes the engine's transition graph.
func (e *Engine[E, X]) Machine() *StateMachine[E, X] {
	return e.machine
}

// Hierarchy exposes the engine's role hierarchy.
func (e *Engine[E, X]) Hierarchy() Hierarchy {
	return e.hierarchy
}

// CurrentState returns the subject's persisted status field.
func (e *Engine[E, X]) CurrentState(subject E) State {
	return subject.CurrentState()
}

// CanTransition reports whether event may fire now, and why not.
func (e *Engine[E, X]) CanTransition(ctx context.Context, subject E, event Event, actor Actor, params Params) (bool, string) {
	d := e.Check(ctx, subject, event, actor, params)
	return d.Allowed, d.Reason
}

// Check evaluates state, permissions and validators in that order.
func (e *Engine[E, X]) Check(ctx context.Context, subject E, event Event, actor Actor, params Params) Decision {
	t, ok := e.machine.Lookup(event)
	if !ok {
		return Decision{Kind: KindUnknownEvent, Reason: fmt.Sprintf("unknown event %q", event)}
	}
	state := subject.CurrentState()
	if !t.allows(state) {
		return Decision{
			Kind:   KindIllegalTransition,
			Reason: fmt.Sprintf("cannot %s from state %q", event, state),
		}
	}
	if ok, reason := CheckPermissions(e.hierarchy, actor, t.Permissions); !ok {
		return Decision{Kind: KindPermissionDenied, Reason: reason}
	}
	if params == nil {
		params = Params{}
	}
	for _, validate := range t.Validators {
		if err := validate(ctx, subject, actor, params); err != nil {
			return Decision{Kind: KindValidation, Reason: err.Error()}
		}
	}
	return Decision{Allowed: true}
}

// AvailableEvents lists events whose source state matches and whose
// permissions the actor holds. Validators are not consulted, so an event
// listed here may still be refused by Transition.
func (e *Engine[E, X]) AvailableEvents(subject E, actor Actor) []Event {
	var out []Event
	for _, ev := range e.machine.EventsFrom(subject.CurrentState()) {
		t, _ := e.machine.Lookup(ev)
		if ok, _ := CheckPermissions(e.hierarchy, actor, t.Permissions); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Transition fires event. Side effects and the status write share one
// transaction guarded by an optimistic state/version check. On failure the
// subject's in-memory state is restored; other fields touched by side
// effects are not, so callers should reload before reuse.
func (e *Engine[E, X]) Transition(ctx context.Context, subject E, event Event, actor Actor, params Params) (Result, error) {
	started := e.now()
	if params == nil {
		params = Params{}
	}

	d := e.Check(ctx, subject, event, actor, params)
	if !d.Allowed {
		e.observe(subject, event, string(d.Kind), started)
		return Result{}, &TransitionError{Kind: d.Kind, Event: event, Reason: d.Reason}
	}

	t, _ := e.machine.Lookup(event)
	from := subject.CurrentState()

	err := e.store.WithinTx(ctx, func(ctx context.Context, tx X) error {
		for i, effect := range t.SideEffects {
			if err := effect(ctx, tx, subject, actor, params); err != nil {
				return &TransitionError{Kind: KindSideEffect, Event: event, Reason: err.Error(),
					Err: fmt.Errorf("side effect %d of %s: %w", i, event, err)}
			}
		}
		subject.SetState(t.To)
		if err := e.store.Save(ctx, tx, subject, from); err != nil {
			if errors.Is(err, ErrConflict) {
				return &TransitionError{Kind: KindConflict, Event: event,
					Reason: fmt.Sprintf("%s %s was modified concurrently", subject.SubjectType(), subject.SubjectID()), Err: err}
			}
			return &TransitionError{Kind: KindSideEffect, Event: event, Reason: err.Error(), Err: err}
		}
		return nil
	})
	if err != nil {
		subject.SetState(from)
		var te *TransitionError
		if !errors.As(err, &te) {
			te = &TransitionError{Kind: KindSideEffect, Event: event, Reason: err.Error(), Err: err}
		}
		e.observe(subject, event, string(te.Kind), started)
		e.logger.Info("Workflow transition aborted",
			zap.String("subject_type", subject.SubjectType()),
			zap.String("subject_id", subject.SubjectID()),
			zap.String("event", string(event)),
			zap.String("kind", string(te.Kind)),
			zap.Error(err))
		return Result{}, te
	}

	result := Result{
		Success:   true,
		OldState:  from,
		NewState:  t.To,
		Event:     event,
		Message:   fmt.Sprintf("Successfully transitioned from %s to %s", from, t.To),
		Timestamp: e.now(),
	}
	e.observe(subject, event, "success", started)

	rec := Record{
		Subject:     subject,
		Event:       event,
		Description: t.Description,
		Result:      result,
		Actor:       actor,
		Params:      params.Clone(),
	}
	for _, obs := range e.observers {
		if err := obs.OnTransition(ctx, rec); err != nil {
			e.logger.Warn("Post-transition observer failed",
				zap.String("subject_type", subject.SubjectType()),
				zap.String("subject_id", subject.SubjectID()),
				zap.String("event", string(event)),
				zap.Error(err))
		}
	}

	return result, nil
}

func (e *Engine[E, X]) observe(subject E, event Event, outcome string, started time.Time) {
	if e.recorder == nil {
		return
	}
	e.recorder.ObserveTransition(subject.SubjectType(), event, outcome, e.now().Sub(started))
}
