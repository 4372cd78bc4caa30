package domain

import "fmt"

type DocumentStatus string

const (
	StatusPending       DocumentStatus = "PENDING"
	StatusAnalysing     DocumentStatus = "ANALYSING"
	StatusApproved      DocumentStatus = "APPROVED"
	StatusRejected      DocumentStatus = "REJECTED"
	StatusNotApplicable DocumentStatus = "NOT_APPLICABLE"
)

// Label is the pt-BR badge shown next to a document.
func (s DocumentStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pendente"
	case StatusAnalysing:
		return "Em Análise"
	case StatusApproved:
		return "Aprovado"
	case StatusRejected:
		return "Reenviar"
	case StatusNotApplicable:
		return "Não Aplicável"
	default:
		return string(s)
	}
}

func ParseDocumentStatus(s string) (DocumentStatus, error) {
	st := DocumentStatus(s)
	switch st {
	case StatusPending, StatusAnalysing, StatusApproved, StatusRejected, StatusNotApplicable:
		return st, nil
	}
	return "", fmt.Errorf("unknown document status %q", s)
}

type Event string

const (
	EventUpload              Event = "upload"
	EventExtractionSucceeded Event = "extraction_succeeded"
	EventExtractionFailed    Event = "extraction_failed"
	EventApprove             Event = "approve"
	EventReject              Event = "reject"
	EventMarkNotApplicable   Event = "mark_not_applicable"
	EventClearNotApplicable  Event = "clear_not_applicable"
)

// allowedFrom lists, per event, the statuses the event may fire from.
var allowedFrom = map[Event][]DocumentStatus{
	EventUpload:              {StatusPending, StatusRejected},
	EventExtractionSucceeded: {StatusAnalysing},
	EventExtractionFailed:    {StatusAnalysing},
	EventApprove:             {StatusAnalysing, StatusApproved, StatusRejected},
	EventReject:              {StatusAnalysing, StatusApproved, StatusRejected},
	EventMarkNotApplicable:   {StatusPending, StatusNotApplicable},
	EventClearNotApplicable:  {StatusNotApplicable},
}

var eventTarget = map[Event]DocumentStatus{
	EventUpload:              StatusAnalysing,
	EventExtractionSucceeded: StatusApproved,
	EventExtractionFailed:    StatusRejected,
	EventApprove:             StatusApproved,
	EventReject:              StatusRejected,
	EventMarkNotApplicable:   StatusNotApplicable,
	EventClearNotApplicable:  StatusPending,
}

// IsTransitionAllowed reports whether event may fire while a document is in
// status from. Optionality is checked separately by the document.
func IsTransitionAllowed(from DocumentStatus, event Event) bool {
	for _, s := range allowedFrom[event] {
		if s == from {
			return true
		}
	}
	return false
}

// TargetStatus returns the status a successful event lands in.
func TargetStatus(event Event) (DocumentStatus, bool) {
	st, ok := eventTarget[event]
	return st, ok
}
