package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected workflow operation.
type ErrorKind int

const (
	KindUnknownStatus ErrorKind = iota + 1
	KindIllegal
	KindForbidden
	KindMissingIntervenant
	KindMissingMessage
	KindFutureDate
	KindInvalidTransfer
	KindInvalidCleanup
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnknownStatus:
		return "unknown_status"
	case KindIllegal:
		return "illegal_transition"
	case KindForbidden:
		return "forbidden"
	case KindMissingIntervenant:
		return "missing_intervenant"
	case KindMissingMessage:
		return "missing_message"
	case KindFutureDate:
		return "future_date"
	case KindInvalidTransfer:
		return "invalid_transfer"
	case KindInvalidCleanup:
		return "invalid_cleanup"
	default:
		return "unknown"
	}
}

// TransitionError is returned when a workflow operation is rejected. Message
// is user facing (French), Kind is for programmatic handling.
type TransitionError struct {
	Kind    ErrorKind
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *TransitionError {
	return &TransitionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind carried by err, or 0 when err is not a
// TransitionError.
func KindOf(err error) ErrorKind {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
