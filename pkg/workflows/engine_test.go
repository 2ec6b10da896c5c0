package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticket struct {
	id       string
	status   State
	version  int
	assignee string
}

func (t *ticket) SubjectType() string { return "Ticket" }
func (t *ticket) SubjectID() string   { return t.id }
func (t *ticket) CurrentState() State { return t.status }
func (t *ticket) SetState(s State)    { t.status = s }

// ticketDB is a tiny versioned table with all-or-nothing transactions.
type ticketDB struct {
	mu   sync.Mutex
	rows map[string]ticket
	log  []string
}

type ticketTx struct {
	rows map[string]ticket
	log  []string
}

func newTicketDB(rows ...ticket) *ticketDB {
	db := &ticketDB{rows: map[string]ticket{}}
	for _, r := range rows {
		db.rows[r.id] = r
	}
	return db
}

func (db *ticketDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *ticketTx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx := &ticketTx{rows: map[string]ticket{}}
	for k, v := range db.rows {
		tx.rows[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	db.rows = tx.rows
	db.log = append(db.log, tx.log...)
	return nil
}

func (db *ticketDB) Save(ctx context.Context, tx *ticketTx, t *ticket, from State) error {
	stored := tx.rows[t.id]
	if stored.status != from || stored.version != t.version {
		return ErrConflict
	}
	t.version++
	tx.rows[t.id] = *t
	return nil
}

func (db *ticketDB) get(id string) ticket {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rows[id]
}

var ticketRoles = NewHierarchy(map[Role][]Role{
	RoleCaretaker: {RoleManager},
	RoleCleaner:   {RoleManager, RoleCaretaker},
})

func ticketMachine(effects ...SideEffect[*ticket, *ticketTx]) *StateMachine[*ticket, *ticketTx] {
	return MustStateMachine[*ticket, *ticketTx]("Ticket",
		[]State{"open", "working", "done"},
		Transition[*ticket, *ticketTx]{
			Event:       "assign",
			From:        []State{"open"},
			To:          "working",
			Permissions: []Permission{RequireRole(RoleCaretaker)},
			Validators: []Validator[*ticket]{
				func(ctx context.Context, t *ticket, a Actor, p Params) error {
					if p.String("assignee") == "" {
						return errors.New("Technician name is required")
					}
					return nil
				},
			},
			SideEffects: append([]SideEffect[*ticket, *ticketTx]{
				func(ctx context.Context, tx *ticketTx, t *ticket, a Actor, p Params) error {
					t.assignee = p.String("assignee")
					tx.log = append(tx.log, "assigned")
					return nil
				},
			}, effects...),
		},
		Transition[*ticket, *ticketTx]{
			Event:       "finish",
			From:        []State{"open", "working"},
			To:          "done",
			Permissions: []Permission{RequireRole(RoleCleaner)},
		},
		Transition[*ticket, *ticketTx]{
			Event:       "reopen",
			From:        []State{"done"},
			To:          "open",
			Permissions: []Permission{RequireStaff()},
		},
	)
}

func caretaker() Actor {
	return Actor{ID: "u1", Name: "Carol", Staff: true, ActiveStaff: true, Role: RoleCaretaker}
}

func TestNewStateMachineRejectsInvalidGraphs(t *testing.T) {
	_, err := NewStateMachine[*ticket, *ticketTx]("T", []State{"a"},
		Transition[*ticket, *ticketTx]{Event: "go", From: []State{"a"}, To: "b"})
	assert.ErrorContains(t, err, "unknown state")

	_, err = NewStateMachine[*ticket, *ticketTx]("T", []State{"a", "b"},
		Transition[*ticket, *ticketTx]{Event: "go", From: []State{"a"}, To: "b"},
		Transition[*ticket, *ticketTx]{Event: "go", From: []State{"b"}, To: "a"})
	assert.ErrorContains(t, err, "duplicate event")

	_, err = NewStateMachine[*ticket, *ticketTx]("T", []State{"a", "b"},
		Transition[*ticket, *ticketTx]{Event: "go", To: "b"})
	assert.ErrorContains(t, err, "no source states")
}

func TestStateMachineQueries(t *testing.T) {
	sm := ticketMachine()

	assert.True(t, sm.CanTransition("open", "working"))
	assert.False(t, sm.CanTransition("done", "working"))
	assert.Equal(t, []State{"working", "done"}, sm.GetAllowedTransitions("open"))
	assert.Equal(t, []Event{"assign", "finish", "reopen"}, sm.Events())
	assert.False(t, sm.Terminal("done"))

	events := sm.Events()
	events[0] = "mutated"
	assert.Equal(t, Event("assign"), sm.Events()[0])
}

func TestHierarchySatisfies(t *testing.T) {
	assert.True(t, ticketRoles.Satisfies(RoleCaretaker, RoleManager))
	assert.True(t, ticketRoles.Satisfies(RoleCaretaker, RoleCaretaker))
	assert.False(t, ticketRoles.Satisfies(RoleCaretaker, RoleCleaner))
	assert.True(t, ticketRoles.Satisfies(RoleCleaner, RoleCaretaker))
	assert.False(t, ticketRoles.Satisfies(RoleSecurity, RoleManager))
	assert.True(t, ticketRoles.Satisfies(RoleSecurity, RoleSecurity))
	assert.False(t, ticketRoles.Satisfies(RoleCleaner, ""))
}

func TestCheckPermissions(t *testing.T) {
	perms := []Permission{RequireStaff(), RequireGroup("Managers")}

	ok, _ := CheckPermissions(ticketRoles, Actor{Superuser: true}, perms)
	assert.True(t, ok)

	ok, reason := CheckPermissions(ticketRoles, Actor{Staff: true}, perms)
	assert.False(t, ok)
	assert.Contains(t, reason, "Managers")

	ok, _ = CheckPermissions(ticketRoles, Actor{Staff: true, Groups: []string{"managers"}}, perms)
	assert.True(t, ok)

	inactive := Actor{Staff: true, Role: RoleManager, ActiveStaff: false}
	ok, _ = CheckPermissions(ticketRoles, inactive, []Permission{RequireRole(RoleCaretaker)})
	assert.False(t, ok)
}

func TestTransitionSuccess(t *testing.T) {
	db := newTicketDB(ticket{id: "t1", status: "open"})
	var seen []Record
	engine := NewEngine(ticketMachine(), ticketRoles, Store[*ticket, *ticketTx](db),
		WithObservers(ObserverFunc(func(ctx context.Context, rec Record) error {
			seen = append(seen, rec)
			return nil
		})))

	subject := &ticket{id: "t1", status: "open"}
	res, err := engine.Transition(context.Background(), subject, "assign", caretaker(), Params{"assignee": "Joe"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, State("open"), res.OldState)
	assert.Equal(t, State("working"), res.NewState)
	assert.Equal(t, "Successfully transitioned from open to working", res.Message)

	stored := db.get("t1")
	assert.Equal(t, State("working"), stored.status)
	assert.Equal(t, "Joe", stored.assignee)
	assert.Equal(t, 1, stored.version)
	require.Len(t, seen, 1)
	assert.Equal(t, Event("assign"), seen[0].Event)
}

func TestTransitionRefusals(t *testing.T) {
	db := newTicketDB(ticket{id: "t1", status: "open"})
	engine := NewEngine(ticketMachine(), ticketRoles, Store[*ticket, *ticketTx](db))
	ctx := context.Background()

	tests := []struct {
		name   string
		event  Event
		actor  Actor
		params Params
		kind   ErrorKind
		reason string
	}{
		{"unknown event", "explode", caretaker(), nil, KindUnknownEvent, "unknown event"},
		{"wrong state", "reopen", caretaker(), nil, KindIllegalTransition, "cannot reopen"},
		{"cleaner cannot assign", "assign", Actor{Staff: true, ActiveStaff: true, Role: RoleCleaner}, Params{"assignee": "x"}, KindPermissionDenied, "role caretaker"},
		{"validator", "assign", caretaker(), Params{"assignee": "  "}, KindValidation, "Technician name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := &ticket{id: "t1", status: "open"}
			ok, reason := engine.CanTransition(ctx, subject, tt.event, tt.actor, tt.params)
			assert.False(t, ok)
			assert.Contains(t, reason, tt.reason)

			_, err := engine.Transition(ctx, subject, tt.event, tt.actor, tt.params)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, State("open"), subject.status)
		})
	}
	assert.Equal(t, State("open"), db.get("t1").status)
}

func TestSideEffectFailureRollsBack(t *testing.T) {
	db := newTicketDB(ticket{id: "t1", status: "open"})
	failing := func(ctx context.Context, tx *ticketTx, t *ticket, a Actor, p Params) error {
		return errors.New("room is already occupied")
	}
	observed := false
	engine := NewEngine(ticketMachine(failing), ticketRoles, Store[*ticket, *ticketTx](db),
		WithObservers(ObserverFunc(func(ctx context.Context, rec Record) error {
			observed = true
			return nil
		})))

	subject := &ticket{id: "t1", status: "open"}
	_, err := engine.Transition(context.Background(), subject, "assign", caretaker(), Params{"assignee": "Joe"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSideEffect))
	assert.Contains(t, err.Error(), "room is already occupied")

	assert.Equal(t, State("open"), subject.status)
	stored := db.get("t1")
	assert.Equal(t, State("open"), stored.status)
	assert.Empty(t, stored.assignee)
	assert.Empty(t, db.log)
	assert.False(t, observed)
}

func TestStaleSubjectConflicts(t *testing.T) {
	db := newTicketDB(ticket{id: "t1", status: "open"})
	engine := NewEngine(ticketMachine(), ticketRoles, Store[*ticket, *ticketTx](db))
	ctx := context.Background()

	first := &ticket{id: "t1", status: "open"}
	second := &ticket{id: "t1", status: "open"}

	_, err := engine.Transition(ctx, first, "assign", caretaker(), Params{"assignee": "A"})
	require.NoError(t, err)

	_, err = engine.Transition(ctx, second, "finish", caretaker(), nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConflict))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, State("working"), db.get("t1").status)
}

func TestObserverFailureDoesNotFailTransition(t *testing.T) {
	db := newTicketDB(ticket{id: "t1", status: "open"})
	engine := NewEngine(ticketMachine(), ticketRoles, Store[*ticket, *ticketTx](db),
		WithObservers(ObserverFunc(func(ctx context.Context, rec Record) error {
			return errors.New("smtp down")
		})))

	subject := &ticket{id: "t1", status: "open"}
	res, err := engine.Transition(context.Background(), subject, "finish", caretaker(), nil)
	require.NoError(t, err)
	assert.Equal(t, State("done"), res.NewState)
	assert.Equal(t, State("done"), db.get("t1").status)
}

func TestAvailableEventsIgnoresValidators(t *testing.T) {
	engine := NewEngine(ticketMachine(), ticketRoles, Store[*ticket, *ticketTx](newTicketDB()))
	subject := &ticket{id: "t1", status: "open"}

	events := engine.AvailableEvents(subject, caretaker())
	assert.Equal(t, []Event{"assign", "finish"}, events)
	assert.Equal(t, events, engine.AvailableEvents(subject, caretaker()))

	cleaner := Actor{Staff: true, ActiveStaff: true, Role: RoleCleaner}
	assert.Equal(t, []Event{"finish"}, engine.AvailableEvents(subject, cleaner))
	assert.Empty(t, engine.AvailableEvents(subject, Actor{}))
}

type countingRecorder struct {
	outcomes []string
}

func (c *countingRecorder) ObserveTransition(subjectType string, event Event, outcome string, elapsed time.Duration) {
	c.outcomes = append(c.outcomes, outcome)
}

func TestRecorderSeesOutcomes(t *testing.T) {
	rec := &countingRecorder{}
	db := newTicketDB(ticket{id: "t1", status: "open"})
	engine := NewEngine(ticketMachine(), ticketRoles, Store[*ticket, *ticketTx](db), WithRecorder(rec))
	ctx := context.Background()

	_, _ = engine.Transition(ctx, &ticket{id: "t1", status: "open"}, "reopen", caretaker(), nil)
	_, _ = engine.Transition(ctx, &ticket{id: "t1", status: "open"}, "finish", caretaker(), nil)

	assert.Equal(t, []string{"illegal_transition", "success"}, rec.outcomes)
}

func TestParams(t *testing.T) {
	p := Params{"name": "  Joe ", "cost": "12.5", "n": 3, "when": "2024-05-01"}
	assert.Equal(t, "Joe", p.String("name"))
	assert.Equal(t, "", p.String("missing"))

	f, ok := p.Float("cost")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)
	f, ok = p.Float("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	when, ok := p.Time("when")
	assert.True(t, ok)
	assert.Equal(t, 2024, when.Year())
}
