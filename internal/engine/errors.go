package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/studybot/internal/session"
)

// DefectError is a structural failure inside a dispatch: the state machine
// reached a handler with data that handler cannot work with. It is a
// programming error, not a user error. The dispatch is aborted and the
// session left unchanged.
type DefectError struct {
	// Code identifies the defect category.
	Code DefectCode

	// Message is a human-readable description.
	Message string

	Identity session.Identity
	Flow     session.Flow
	State    session.State

	// Event is the rendered event that triggered the dispatch.
	Event string

	// Cause is the underlying error, if any.
	Cause error
}

// DefectCode categorizes defects.
type DefectCode string

const (
	// ErrCodeMissingScratch indicates a scratch field the handler needs is
	// empty, e.g. the handler was reached out of declared order.
	ErrCodeMissingScratch DefectCode = "MISSING_SCRATCH"

	// ErrCodeScratchType indicates scratch of another flow's type.
	ErrCodeScratchType DefectCode = "SCRATCH_TYPE"

	// ErrCodeHandlerPanic indicates a recovered handler panic.
	ErrCodeHandlerPanic DefectCode = "HANDLER_PANIC"

	// ErrCodeHandlerFailed indicates a handler returned an error.
	ErrCodeHandlerFailed DefectCode = "HANDLER_FAILED"

	// ErrCodeInvariant indicates the result violated a session invariant.
	ErrCodeInvariant DefectCode = "INVARIANT"

	// ErrCodeEffectFailed indicates an effect failed after its commit.
	ErrCodeEffectFailed DefectCode = "EFFECT_FAILED"
)

// Error implements the error interface.
func (e *DefectError) Error() string {
	if e.Identity != "" {
		return fmt.Sprintf("%s: %s (identity=%s, flow=%s, state=%s)", e.Code, e.Message, e.Identity, e.Flow, e.State)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *DefectError) Unwrap() error {
	return e.Cause
}

// Defect returns a DefectError for use inside handlers. The engine fills in
// identity, flow, state and event.
func Defect(code DefectCode, format string, args ...any) *DefectError {
	return &DefectError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// MissingScratch reports a required scratch field that is empty.
func MissingScratch(field string) *DefectError {
	return Defect(ErrCodeMissingScratch, "scratch field %q not set", field)
}

// IsDefect reports whether err is or wraps a DefectError.
func IsDefect(err error) bool {
	var de *DefectError
	return errors.As(err, &de)
}

// ScratchAs returns the session scratch as T, or a defect if the session
// carries no scratch or scratch of another type.
func ScratchAs[T session.Scratch](s session.Session) (T, error) {
	var zero T
	if s.Scratch == nil {
		return zero, Defect(ErrCodeScratchType, "no scratch, want %T", zero)
	}
	sc, ok := s.Scratch.(T)
	if !ok {
		return zero, Defect(ErrCodeScratchType, "scratch is %T, want %T", s.Scratch, zero)
	}
	return sc, nil
}

// asDefect converts any dispatch failure to a DefectError annotated with
// the dispatch context.
func asDefect(err error, cur session.Session, ev Event) *DefectError {
	var de *DefectError
	if !errors.As(err, &de) {
		code := ErrCodeHandlerFailed
		if errors.Is(err, session.ErrInvariant) {
			code = ErrCodeInvariant
		}
		de = &DefectError{Code: code, Message: err.Error(), Cause: err}
	}
	if de.Identity == "" {
		de.Identity = cur.Identity
		de.Flow = cur.Flow
		de.State = cur.State
	}
	if de.Event == "" {
		de.Event = ev.String()
	}
	return de
}
