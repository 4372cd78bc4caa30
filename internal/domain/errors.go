package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCandidateNotFound        = errors.New("candidate not found")
	ErrDocumentNotFound         = errors.New("document not found")
	ErrRejectionReasonRequired  = errors.New("rejection reason is required")
	ErrExamSchedulingNotAllowed = errors.New("exam scheduling not allowed")
	ErrExamDateInPast           = errors.New("exam date is in the past")
)

type TransitionCode int

const (
	// CodeStatusNotAllowed: the event cannot fire from the current status.
	CodeStatusNotAllowed TransitionCode = iota + 1
	// CodeNotOptional: not-applicable toggled on a mandatory document.
	CodeNotOptional
)

// TransitionError reports an event refused by the document state machine.
// The document it was raised for is left unchanged.
type TransitionError struct {
	Code       TransitionCode
	DocumentID string
	From       DocumentStatus
	Event      Event
}

func (e *TransitionError) Error() string {
	switch e.Code {
	case CodeNotOptional:
		return fmt.Sprintf("document %s: %s requires an optional document", e.DocumentID, e.Event)
	default:
		return fmt.Sprintf("document %s: %s not allowed from %s", e.DocumentID, e.Event, e.From)
	}
}

// IsTransitionError reports whether err is (or wraps) a *TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
