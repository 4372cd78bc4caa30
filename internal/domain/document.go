package domain

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// ExtractionFailureReason is stored on a document whose extraction failed.
const ExtractionFailureReason = "Falha no processamento do arquivo. Por favor, envie novamente."

// ExtractedData maps an extracted field name (see extraction vocabulary) to its value.
type ExtractedData map[string]string

func (d ExtractedData) clone() ExtractedData {
	if d == nil {
		return nil
	}
	out := make(ExtractedData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Attachment is a file stored for a document. URL is an opaque reference
// to the stored bytes (an object key).
type Attachment struct {
	FileName string
	URL      string
}

func (a *Attachment) clone() *Attachment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// DocumentState is the status-specific payload of a document. Exactly one
// of Pending, Analysing, Approved, Rejected or NotApplicable.
type DocumentState interface {
	Status() DocumentStatus
	isDocumentState()
}

type Pending struct{}

type Analysing struct {
	File Attachment
}

type Approved struct {
	File          *Attachment
	ExtractedData ExtractedData
}

type Rejected struct {
	File   *Attachment
	Reason string
}

type NotApplicable struct{}

func (Pending) Status() DocumentStatus       { return StatusPending }
func (Analysing) Status() DocumentStatus     { return StatusAnalysing }
func (Approved) Status() DocumentStatus      { return StatusApproved }
func (Rejected) Status() DocumentStatus      { return StatusRejected }
func (NotApplicable) Status() DocumentStatus { return StatusNotApplicable }

func (Pending) isDocumentState()       {}
func (Analysing) isDocumentState()     {}
func (Approved) isDocumentState()      {}
func (Rejected) isDocumentState()      {}
func (NotApplicable) isDocumentState() {}

// Document is one checklist item of a candidate. ID, Name and Optional are
// fixed at creation; every transition returns a new value.
type Document struct {
	ID          string
	Name        string
	Optional    bool
	State       DocumentState
	LastUpdated time.Time
}

func NewPendingDocument(id, name string, optional bool, at time.Time) Document {
	return Document{ID: id, Name: name, Optional: optional, State: Pending{}, LastUpdated: at}
}

func (d Document) Status() DocumentStatus {
	if d.State == nil {
		return StatusPending
	}
	return d.State.Status()
}

// File returns the attached file, if any.
func (d Document) File() *Attachment {
	switch s := d.State.(type) {
	case Analysing:
		f := s.File
		return &f
	case Approved:
		return s.File.clone()
	case Rejected:
		return s.File.clone()
	default:
		return nil
	}
}

// ExtractedData is non-nil only for approved documents whose extraction returned fields.
func (d Document) ExtractedData() ExtractedData {
	if s, ok := d.State.(Approved); ok {
		return s.ExtractedData.clone()
	}
	return nil
}

func (d Document) RejectionReason() string {
	if s, ok := d.State.(Rejected); ok {
		return s.Reason
	}
	return ""
}

// CanUpload reports whether a file may be attached now. Uploads are refused
// while an extraction is in flight and while the document is not applicable.
func (d Document) CanUpload() bool {
	return IsTransitionAllowed(d.Status(), EventUpload)
}

func (d Document) Upload(fileName, fileURL string, at time.Time) (Document, error) {
	if err := d.check(EventUpload); err != nil {
		return d, err
	}
	return d.with(Analysing{File: Attachment{FileName: fileName, URL: fileURL}}, at), nil
}

// CompleteExtraction auto-approves an analysing document with the extracted
// fields. A nil or empty map still approves.
func (d Document) CompleteExtraction(data ExtractedData, at time.Time) (Document, error) {
	if err := d.check(EventExtractionSucceeded); err != nil {
		return d, err
	}
	if len(data) == 0 {
		data = nil
	}
	return d.with(Approved{File: d.File(), ExtractedData: data.clone()}, at), nil
}

func (d Document) FailExtraction(at time.Time) (Document, error) {
	if err := d.check(EventExtractionFailed); err != nil {
		return d, err
	}
	return d.with(Rejected{File: d.File(), Reason: ExtractionFailureReason}, at), nil
}

// Approve is the admin approval. Approving an approved document keeps its
// extracted data; the attached file is always kept.
func (d Document) Approve(at time.Time) (Document, error) {
	if err := d.check(EventApprove); err != nil {
		return d, err
	}
	next := Approved{File: d.File()}
	if cur, ok := d.State.(Approved); ok {
		next.ExtractedData = cur.ExtractedData.clone()
	}
	return d.with(next, at), nil
}

// Reject is the admin rejection. A blank reason is a no-op reported as
// ErrRejectionReasonRequired.
func (d Document) Reject(reason string, at time.Time) (Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return d, ErrRejectionReasonRequired
	}
	if err := d.check(EventReject); err != nil {
		return d, err
	}
	return d.with(Rejected{File: d.File(), Reason: reason}, at), nil
}

func (d Document) SetNotApplicable(notApplicable bool, at time.Time) (Document, error) {
	event := EventClearNotApplicable
	var next DocumentState = Pending{}
	if notApplicable {
		event = EventMarkNotApplicable
		next = NotApplicable{}
	}
	if !d.Optional {
		return d, &TransitionError{Code: CodeNotOptional, DocumentID: d.ID, From: d.Status(), Event: event}
	}
	if err := d.check(event); err != nil {
		return d, err
	}
	return d.with(next, at), nil
}

func (d Document) check(event Event) error {
	if !IsTransitionAllowed(d.Status(), event) {
		return &TransitionError{Code: CodeStatusNotAllowed, DocumentID: d.ID, From: d.Status(), Event: event}
	}
	return nil
}

func (d Document) with(state DocumentState, at time.Time) Document {
	d.State = state
	d.LastUpdated = at
	return d
}

// ArchiveFileName derives the stored file name: the document name with
// whitespace and path separators replaced by underscores, plus the uploaded
// file's extension.
func ArchiveFileName(documentName, originalFileName string) string {
	base := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, documentName)
	ext := filepath.Ext(originalFileName)
	if ext == "" || ext == "." {
		return base
	}
	return base + ext
}
