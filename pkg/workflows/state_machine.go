package workflows

import (
	"fmt"
	"sort"
)

// State is a persisted workflow status value (e.g. "pending").
type State string

// Event names a transition (e.g. "assign_technician").
type Event string

// Transition describes one edge of a workflow graph. E is the subject type
// the validators and side effects operate on; X is the transactional handle
// side effects write through.
type Transition[E Subject, X any] struct {
	Event       Event
	From        []State
	To          State
	Description string
	Permissions []Permission
	Validators  []Validator[E]
	SideEffects []SideEffect[E, X]
}

// allows reports whether the transition may fire from state.
func (t *Transition[E, X]) allows(state State) bool {
	for _, from := range t.From {
		if from == state {
			return true
		}
	}
	return false
}

// StateMachine is the immutable transition graph of one entity type.
type StateMachine[E Subject, X any] struct {
	name        string
	states      map[State]struct{}
	order       []Event
	transitions map[Event]*Transition[E, X]
	outgoing    map[State][]Event
}

// NewStateMachine validates and freezes a transition graph. Every state used
// by a transition must be declared, events must be unique and every
// transition needs at least one source state.
func NewStateMachine[E Subject, X any](name string, states []State, transitions ...Transition[E, X]) (*StateMachine[E, X], error) {
	sm := &StateMachine[E, X]{
		name:        name,
		states:      make(map[State]struct{}, len(states)),
		transitions: make(map[Event]*Transition[E, X], len(transitions)),
		outgoing:    make(map[State][]Event),
	}
	for _, s := range states {
		if s == "" {
			return nil, fmt.Errorf("%s: empty state name", name)
		}
		sm.states[s] = struct{}{}
	}

	for i := range transitions {
		t := transitions[i]
		if t.Event == "" {
			return nil, fmt.Errorf("%s: transition %d has no event name", name, i)
		}
		if _, dup := sm.transitions[t.Event]; dup {
			return nil, fmt.Errorf("%s: duplicate event %q", name, t.Event)
		}
		if len(t.From) == 0 {
			return nil, fmt.Errorf("%s: event %q has no source states", name, t.Event)
		}
		if _, ok := sm.states[t.To]; !ok {
			return nil, fmt.Errorf("%s: event %q targets unknown state %q", name, t.Event, t.To)
		}
		for _, from := range t.From {
			if _, ok := sm.states[from]; !ok {
				return nil, fmt.Errorf("%s: event %q leaves unknown state %q", name, t.Event, from)
			}
			sm.outgoing[from] = append(sm.outgoing[from], t.Event)
		}

		t.From = append([]State(nil), t.From...)
		t.Permissions = append([]Permission(nil), t.Permissions...)
		t.Validators = append([]Validator[E](nil), t.Validators...)
		t.SideEffects = append([]SideEffect[E, X](nil), t.SideEffects...)
		sm.transitions[t.Event] = &t
		sm.order = append(sm.order, t.Event)
	}

	return sm, nil
}

// MustStateMachine is NewStateMachine for package-level graphs; it panics on
// an invalid definition so a broken table fails at start-up.
func MustStateMachine[E Subject, X any](name string, states []State, transitions ...Transition[E, X]) *StateMachine[E, X] {
	sm, err := NewStateMachine(name, states, transitions...)
	if err != nil {
		panic(err)
	}
	return sm
}

// Name returns the graph name (the subject type it governs).
func (sm *StateMachine[E, X]) Name() string {
	return sm.name
}

// Lookup returns the transition registered for event.
func (sm *StateMachine[E, X]) Lookup(event Event) (*Transition[E, X], bool) {
	t, ok := sm.transitions[event]
	return t, ok
}

// Events returns every event in declaration order.
func (sm *StateMachine[E, X]) Events() []Event {
	return append([]Event(nil), sm.order...)
}

// States returns the declared states, sorted.
func (sm *StateMachine[E, X]) States() []State {
	out := make([]State, 0, len(sm.states))
	for s := range sm.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasState reports whether s is a declared state.
func (sm *StateMachine[E, X]) HasState(s State) bool {
	_, ok := sm.states[s]
	return ok
}

// CanTransition reports whether any event leads from one state to another,
// ignoring permissions and validators.
func (sm *StateMachine[E, X]) CanTransition(from, to State) bool {
	for _, ev := range sm.outgoing[from] {
		if sm.transitions[ev].To == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the target states reachable from a state in
// one step, in declaration order and without duplicates.
func (sm *StateMachine[E, X]) GetAllowedTransitions(from State) []State {
	seen := make(map[State]bool)
	var out []State
	for _, ev := range sm.outgoing[from] {
		to := sm.transitions[ev].To
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	return out
}

// EventsFrom returns the events whose source states include from, in
// declaration order.
func (sm *StateMachine[E, X]) EventsFrom(from State) []Event {
	return append([]Event(nil), sm.outgoing[from]...)
}

// Terminal reports whether no event leaves the state.
func (sm *StateMachine[E, X]) Terminal(s State) bool {
	return len(sm.outgoing[s]) == 0
}
