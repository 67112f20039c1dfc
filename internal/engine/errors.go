package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind int

// Failure kinds. Only KindTransient is worth retrying.
const (
	KindNotFound Kind = iota + 1
	KindUnavailable
	KindAlreadyProcessed
	KindInvalidState
	KindAlreadyRequested
	KindForbidden
	KindTransient
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindNotFound:         "not_found",
	KindUnavailable:      "unavailable",
	KindAlreadyProcessed: "already_processed",
	KindInvalidState:     "invalid_state",
	KindAlreadyRequested: "already_requested",
	KindForbidden:        "forbidden",
	KindTransient:        "transient",
	KindInvalidInput:     "invalid_input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrUnavailable      = &Error{Kind: KindUnavailable}
	ErrAlreadyProcessed = &Error{Kind: KindAlreadyProcessed}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrAlreadyRequested = &Error{Kind: KindAlreadyRequested}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrTransient        = &Error{Kind: KindTransient}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
)

// Error is returned by every engine operation that fails.
type Error struct {
	Kind Kind
	Op   string
	// Subject names what the failure is about, e.g. "item 42".
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Subject != "" {
		msg = e.Subject + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind. AlreadyRequested also matches InvalidState, of which it
// is a refinement.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindInvalidState && e.Kind == KindAlreadyRequested
}

// KindOf returns the kind of an engine error, or 0 if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

func fail(kind Kind, op, subject string) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject}
}

func invalid(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

func transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}
