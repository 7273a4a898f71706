package entity

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrNoFaceDetected       = errors.New("identity: no face detected")
	ErrAlreadyEnrolled      = errors.New("identity: already enrolled")
	ErrNotFound             = errors.New("identity: not found")
	ErrInvalidCode          = errors.New("identity: invalid one-time code")
	ErrVerificationTimedOut = errors.New("identity: verification timed out")
	ErrStoreUnavailable     = errors.New("identity: store unavailable")
	ErrRemovalIncomplete    = errors.New("identity: removal incomplete")
	ErrDimensionMismatch    = errors.New("identity: encoding dimension mismatch")
	ErrSessionNotFound      = errors.New("identity: session not found")
	ErrSessionClosed        = errors.New("identity: session closed")
)

// RemovalError lists the artifacts that survived a removal. The enrolled
// record itself is already gone when this is returned.
type RemovalError struct {
	Identity Identity
	Failed   map[string]error
}

func (e *RemovalError) Error() string {
	names := e.Artifacts()
	return "identity: removal of " + e.Identity.String() + " incomplete: " + strings.Join(names, ", ")
}

func (e *RemovalError) Unwrap() []error {
	errs := []error{ErrRemovalIncomplete}
	for _, name := range e.Artifacts() {
		errs = append(errs, e.Failed[name])
	}
	return errs
}

// Artifacts returns the names of the artifacts that could not be removed, sorted.
func (e *RemovalError) Artifacts() []string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
