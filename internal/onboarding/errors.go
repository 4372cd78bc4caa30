package onboarding

import (
	"errors"
	"fmt"
)

var ErrFileNotFound = errors.New("document has no attached file")

// errStaleExtraction marks an extraction result for a document that is no
// longer being analysed.
var errStaleExtraction = errors.New("stale extraction result")

// ExtractionFailedError is returned after a failed extraction forced the
// document into REJECTED. The state change itself has been committed.
type ExtractionFailedError struct {
	CandidateID string
	DocumentID  string
	Err         error
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("extraction failed for %s/%s: %v", e.CandidateID, e.DocumentID, e.Err)
}

func (e *ExtractionFailedError) Unwrap() error { return e.Err }
