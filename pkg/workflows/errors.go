package workflows

import (
	"errors"
	"fmt"
)

// ErrConflict is returned by a Store when the persisted state or version no
// longer matches what the transition was computed from.
var ErrConflict = errors.New("workflow state changed concurrently")

// ErrorKind classifies a failed transition.
type ErrorKind string

const (
	KindUnknownEvent      ErrorKind = "unknown_event"
	KindIllegalTransition ErrorKind = "illegal_transition"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindValidation        ErrorKind = "validation_failed"
	KindSideEffect        ErrorKind = "side_effect_failed"
	KindConflict          ErrorKind = "conflict"
)

// TransitionError is returned by Engine.Transition.
type TransitionError struct {
	Kind   ErrorKind
	Event  Event
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Event, e.Err)
	}
	return e.Reason
}

func (e *TransitionError) Unwrap() error { return e.Err }

// KindOf returns the kind of a TransitionError anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a TransitionError of kind k.
func IsKind(err error, k ErrorKind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
