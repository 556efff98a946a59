package lifecycle

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateSerial    = errors.New("serial number already registered")
	ErrDuplicateName      = errors.New("name already registered")
	ErrDuplicateID        = errors.New("id already registered")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNoActiveAssignment = errors.New("no active assignment")
	ErrStoreUnavailable   = errors.New("record store unavailable")
	ErrValidation         = errors.New("validation failed")

	// ErrInvalidState is the delete-time flavour of ErrInvalidTransition;
	// errors.Is matches both.
	ErrInvalidState error = &childError{msg: "invalid state", parent: ErrInvalidTransition}
)

type childError struct {
	msg    string
	parent error
}

func (e *childError) Error() string { return e.msg }
func (e *childError) Unwrap() error { return e.parent }

var domainErrors = []error{
	ErrNotFound,
	ErrDuplicateSerial,
	ErrDuplicateName,
	ErrDuplicateID,
	ErrInvalidTransition,
	ErrNoActiveAssignment,
	ErrStoreUnavailable,
	ErrValidation,
}

// IsDomain reports whether err already belongs to the lifecycle taxonomy.
func IsDomain(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

// Outcome maps an operation result to a short metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateSerial), errors.Is(err, ErrDuplicateName), errors.Is(err, ErrDuplicateID):
		return "duplicate"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNoActiveAssignment):
		return "no_active_assignment"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
