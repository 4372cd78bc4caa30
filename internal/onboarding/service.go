package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	"github.com/FFM-HCFMUSP/FFM/internal/export"
	"github.com/FFM-HCFMUSP/FFM/internal/extraction"
	"github.com/FFM-HCFMUSP/FFM/internal/notify"
	"github.com/FFM-HCFMUSP/FFM/internal/storage"
)

type Store interface {
	ListCandidates(ctx context.Context) ([]domain.Candidate, error)
	GetCandidate(ctx context.Context, id string) (domain.Candidate, error)
	UpdateCandidate(ctx context.Context, id string, fn func(*domain.Candidate) error) (domain.Candidate, error)
	ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error)
	InsertCandidates(ctx context.Context, cands []domain.Candidate) ([]domain.Candidate, error)
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
	ListAudit(ctx context.Context, candidateID string) ([]domain.AuditEntry, error)
}

type BlobStore interface {
	PutDocument(ctx context.Context, objectKey string, content []byte, contentType string) error
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
	DeleteDocument(ctx context.Context, objectKey string) error
}

// resolveTimeout bounds the write that settles an inline extraction once the
// request context is gone.
const resolveTimeout = 10 * time.Second

type Service struct {
	store             Store
	blob              BlobStore
	extractor         extraction.Extractor
	notifier          notify.Notifier
	logger            *slog.Logger
	now               func() time.Time
	newID             func() string
	newUploadID       func() string
	notifyConcurrency int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithUploadIDGenerator(newUploadID func() string) Option {
	return func(s *Service) { s.newUploadID = newUploadID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithNotifyConcurrency(n int) Option {
	return func(s *Service) { s.notifyConcurrency = n }
}

func NewService(store Store, blob BlobStore, extractor extraction.Extractor, notifier notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:             store,
		blob:              blob,
		extractor:         extractor,
		notifier:          notifier,
		logger:            slog.Default(),
		now:               time.Now,
		newID:             func() string { return "cand_" + uuid.NewString() },
		newUploadID:       uuid.NewString,
		notifyConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CandidateView is a candidate with its derived status.
type CandidateView struct {
	domain.Candidate
	Overall         domain.Overall `json:"overall"`
	CanScheduleExam bool           `json:"canScheduleExam"`
}

func viewOf(c domain.Candidate) CandidateView {
	return CandidateView{Candidate: c, Overall: domain.OverallStatus(c), CanScheduleExam: domain.CanScheduleExam(c)}
}

func viewsOf(cands []domain.Candidate) []CandidateView {
	out := make([]CandidateView, 0, len(cands))
	for _, c := range cands {
		out = append(out, viewOf(c))
	}
	return out
}

func (s *Service) ListCandidates(ctx context.Context) ([]CandidateView, error) {
	cands, err := s.store.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return viewsOf(cands), nil
}

func (s *Service) GetCandidate(ctx context.Context, candidateID string) (CandidateView, error) {
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return CandidateView{}, err
	}
	return viewOf(c), nil
}

type Upload struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (u Upload) contentType() string {
	if u.ContentType != "" {
		return u.ContentType
	}
	if mt, ok := extraction.MIMETypeFor(u.FileName); ok {
		return mt
	}
	return "application/octet-stream"
}

// BeginUpload stores the file under a key of its own and moves the document
// to ANALYSING. It is refused while the document is being analysed or is not
// applicable; a refused upload's object is removed again.
func (s *Service) BeginUpload(ctx context.Context, candidateID, documentID string, up Upload) (domain.Document, error) {
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return domain.Document{}, err
	}
	idx, err := c.DocumentIndex(documentID)
	if err != nil {
		return domain.Document{}, err
	}
	doc := c.Documents[idx]
	if !doc.CanUpload() {
		_, err := doc.Upload(up.FileName, "", s.now())
		return doc, err
	}

	archiveName := domain.ArchiveFileName(doc.Name, up.FileName)
	key := storage.ObjectKey(candidateID, documentID, s.newUploadID(), archiveName)
	if err := s.blob.PutDocument(ctx, key, up.Content, up.contentType()); err != nil {
		return doc, fmt.Errorf("store file %s: %w", key, err)
	}

	var from domain.DocumentStatus
	updated, err := s.updateDocument(ctx, candidateID, documentID, func(d domain.Document) (domain.Document, error) {
		from = d.Status()
		return d.Upload(archiveName, key, s.now())
	})
	if err != nil {
		if delErr := s.blob.DeleteDocument(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("orphan upload left in blob store", "object_key", key, "error", delErr)
		}
		return updated, err
	}
	s.audit(ctx, candidateID, updated, string(domain.EventUpload), from, map[string]string{"objectKey": key})
	s.logger.Info("document uploaded", "candidate_id", candidateID, "document_id", documentID, "object_key", key)
	return updated, nil
}

// ResolveExtraction applies an extraction outcome to a document in
// ANALYSING. Results for documents in any other status, or for an older
// upload than objectKey, are ignored.
func (s *Service) ResolveExtraction(ctx context.Context, candidateID, documentID, objectKey string, data domain.ExtractedData, extractErr error) (domain.Document, error) {
	var from domain.DocumentStatus
	updated, err := s.updateDocument(ctx, candidateID, documentID, func(d domain.Document) (domain.Document, error) {
		from = d.Status()
		if from != domain.StatusAnalysing {
			return d, errStaleExtraction
		}
		if f := d.File(); objectKey != "" && f != nil && f.URL != objectKey {
			return d, errStaleExtraction
		}
		if extractErr != nil {
			return d.FailExtraction(s.now())
		}
		return d.CompleteExtraction(data, s.now())
	})
	if errors.Is(err, errStaleExtraction) {
		s.logger.Warn("ignoring stale extraction result",
			"candidate_id", candidateID, "document_id", documentID, "status", from, "object_key", objectKey)
		return updated, nil
	}
	if err != nil {
		return updated, err
	}

	if extractErr != nil {
		s.audit(ctx, candidateID, updated, string(domain.EventExtractionFailed), from, map[string]string{"error": extractErr.Error()})
		s.logger.Warn("document extraction failed",
			"candidate_id", candidateID, "document_id", documentID, "error", extractErr)
		return updated, &ExtractionFailedError{CandidateID: candidateID, DocumentID: documentID, Err: extractErr}
	}

	s.audit(ctx, candidateID, updated, string(domain.EventExtractionSucceeded), from, nil)
	s.logger.Info("document auto-approved",
		"candidate_id", candidateID, "document_id", documentID, "fields", len(updated.ExtractedData()))
	s.notifyCandidate(ctx, candidateID, func(c domain.Candidate) notify.Message { return notify.DocumentApproved(c, updated) })
	return updated, nil
}

// ProcessUpload runs upload, extraction and resolution within the caller.
func (s *Service) ProcessUpload(ctx context.Context, candidateID, documentID string, up Upload) (domain.Document, error) {
	doc, err := s.BeginUpload(ctx, candidateID, documentID, up)
	if err != nil {
		return doc, err
	}
	key := ""
	if f := doc.File(); f != nil {
		key = f.URL
	}
	data, extractErr := s.extractor.Extract(ctx, up.Content, up.contentType())

	// The document is ANALYSING now; it must be settled even when the caller
	// has gone away.
	resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
	defer cancel()
	return s.ResolveExtraction(resolveCtx, candidateID, documentID, key, data, extractErr)
}

func (s *Service) ApproveDocument(ctx context.Context, candidateID, documentID string) (domain.Document, error) {
	var from domain.DocumentStatus
	updated, err := s.updateDocument(ctx, candidateID, documentID, func(d domain.Document) (domain.Document, error) {
		from = d.Status()
		return d.Approve(s.now())
	})
	if err != nil {
		return updated, err
	}
	s.audit(ctx, candidateID, updated, string(domain.EventApprove), from, nil)
	if from != domain.StatusApproved {
		s.notifyCandidate(ctx, candidateID, func(c domain.Candidate) notify.Message { return notify.DocumentApproved(c, updated) })
	}
	return updated, nil
}

// RejectDocument requires a non-blank reason; without one nothing changes
// and domain.ErrRejectionReasonRequired is returned.
func (s *Service) RejectDocument(ctx context.Context, candidateID, documentID, reason string) (domain.Document, error) {
	var from domain.DocumentStatus
	updated, err := s.updateDocument(ctx, candidateID, documentID, func(d domain.Document) (domain.Document, error) {
		from = d.Status()
		return d.Reject(reason, s.now())
	})
	if err != nil {
		return updated, err
	}
	s.audit(ctx, candidateID, updated, string(domain.EventReject), from, map[string]string{"reason": updated.RejectionReason()})
	s.notifyCandidate(ctx, candidateID, func(c domain.Candidate) notify.Message { return notify.DocumentRejected(c, updated) })
	return updated, nil
}

func (s *Service) SetNotApplicable(ctx context.Context, candidateID, documentID string, notApplicable bool) (domain.Document, error) {
	var from domain.DocumentStatus
	updated, err := s.updateDocument(ctx, candidateID, documentID, func(d domain.Document) (domain.Document, error) {
		from = d.Status()
		return d.SetNotApplicable(notApplicable, s.now())
	})
	if err != nil {
		return updated, err
	}
	action := domain.EventClearNotApplicable
	if notApplicable {
		action = domain.EventMarkNotApplicable
	}
	s.audit(ctx, candidateID, updated, string(action), from, nil)
	return updated, nil
}

func (s *Service) ScheduleExam(ctx context.Context, candidateID string, at time.Time) (CandidateView, error) {
	updated, err := s.store.UpdateCandidate(ctx, candidateID, func(c *domain.Candidate) error {
		next, err := c.ScheduleExam(at, s.now())
		if err != nil {
			return err
		}
		*c = next
		return nil
	})
	if err != nil {
		return CandidateView{}, err
	}
	s.appendAudit(ctx, domain.AuditEntry{
		CandidateID: candidateID,
		Action:      domain.ActionExamScheduled,
		Detail:      map[string]string{"date": *updated.MedicalExamDate},
		At:          s.now(),
	})
	s.logger.Info("medical exam scheduled", "candidate_id", candidateID, "date", *updated.MedicalExamDate)
	s.send(ctx, candidateID, notify.ExamScheduled(updated))
	return viewOf(updated), nil
}

type NotifyReport struct {
	Targeted int `json:"targeted"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

// NotifyPending emails every candidate still awaiting documents. Delivery
// failures are counted and logged.
func (s *Service) NotifyPending(ctx context.Context) (NotifyReport, error) {
	cands, err := s.store.ListCandidates(ctx)
	if err != nil {
		return NotifyReport{}, fmt.Errorf("list candidates: %w", err)
	}

	var msgs []notify.Message
	for _, c := range domain.AwaitingDocuments(cands) {
		if msg, ok := notify.PendingDocuments(c); ok {
			msgs = append(msgs, msg)
		}
	}

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(max(1, s.notifyConcurrency))
	for _, msg := range msgs {
		msg := msg
		g.Go(func() error {
			if err := s.notifier.Send(ctx, msg); err != nil {
				failed.Add(1)
				s.logger.Error("pending documents notification failed", "to", msg.To, "error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := NotifyReport{Targeted: len(msgs), Sent: int(sent.Load()), Failed: int(failed.Load())}
	s.logger.Info("pending documents notification finished", "targeted", report.Targeted, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

type InvalidRecord struct {
	Index int    `json:"index"`
	Email string `json:"email"`
	Error string `json:"error"`
}

type ImportReport struct {
	Imported   []CandidateView `json:"imported"`
	Duplicates int             `json:"duplicates"`
	Invalid    []InvalidRecord `json:"invalid,omitempty"`
}

// ImportCandidates materialises new records with a fresh checklist. Records
// whose email already exists, in the store or earlier in the batch, are
// skipped. Importing nothing is not an error.
func (s *Service) ImportCandidates(ctx context.Context, records []domain.ImportRecord) (ImportReport, error) {
	report := ImportReport{Imported: []CandidateView{}}
	valid := make([]domain.ImportRecord, 0, len(records))
	emails := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			report.Invalid = append(report.Invalid, InvalidRecord{Index: i, Email: rec.Email, Error: err.Error()})
			continue
		}
		key := domain.NormalizeEmail(rec.Email)
		if seen[key] {
			report.Duplicates++
			continue
		}
		seen[key] = true
		valid = append(valid, rec)
		emails = append(emails, key)
	}
	if len(valid) == 0 {
		return report, nil
	}

	existing, err := s.store.ExistingEmails(ctx, emails)
	if err != nil {
		return report, fmt.Errorf("check existing emails: %w", err)
	}
	now := s.now()
	fresh := make([]domain.Candidate, 0, len(valid))
	for _, rec := range valid {
		if existing[domain.NormalizeEmail(rec.Email)] {
			report.Duplicates++
			continue
		}
		fresh = append(fresh, domain.NewCandidate(s.newID(), rec, now))
	}
	if len(fresh) == 0 {
		return report, nil
	}

	inserted, err := s.store.InsertCandidates(ctx, fresh)
	if err != nil {
		return report, fmt.Errorf("insert candidates: %w", err)
	}
	report.Duplicates += len(fresh) - len(inserted)
	for _, c := range inserted {
		s.appendAudit(ctx, domain.AuditEntry{CandidateID: c.ID, Action: domain.ActionImported, At: now})
		report.Imported = append(report.Imported, viewOf(c))
	}
	s.logger.Info("candidates imported", "imported", len(inserted), "duplicates", report.Duplicates, "invalid", len(report.Invalid))
	return report, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	cands, err := s.store.ListCandidates(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("list candidates: %w", err)
	}
	return domain.Dashboard(cands), nil
}

func (s *Service) SearchCandidates(ctx context.Context, term string) ([]CandidateView, error) {
	cands, err := s.store.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return viewsOf(domain.Search(cands, term)), nil
}

// ExportReport writes the candidate report CSV for every candidate.
func (s *Service) ExportReport(ctx context.Context, w io.Writer) error {
	cands, err := s.store.ListCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	return export.WriteCandidateReport(w, cands)
}

type DocumentFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (s *Service) OpenDocumentFile(ctx context.Context, candidateID, documentID string) (DocumentFile, error) {
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return DocumentFile{}, err
	}
	idx, err := c.DocumentIndex(documentID)
	if err != nil {
		return DocumentFile{}, err
	}
	f := c.Documents[idx].File()
	if f == nil {
		return DocumentFile{}, ErrFileNotFound
	}
	content, err := s.blob.GetDocument(ctx, f.URL)
	if err != nil {
		return DocumentFile{}, fmt.Errorf("read file %s: %w", f.URL, err)
	}
	ct, ok := extraction.MIMETypeFor(f.FileName)
	if !ok {
		ct = "application/octet-stream"
	}
	return DocumentFile{FileName: f.FileName, ContentType: ct, Content: content}, nil
}

func (s *Service) History(ctx context.Context, candidateID string) ([]domain.AuditEntry, error) {
	if _, err := s.store.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, candidateID)
}

// updateDocument applies fn to one document under the store's write lock
// and returns the resulting document.
func (s *Service) updateDocument(ctx context.Context, candidateID, documentID string, fn func(domain.Document) (domain.Document, error)) (domain.Document, error) {
	var out domain.Document
	_, err := s.store.UpdateCandidate(ctx, candidateID, func(c *domain.Candidate) error {
		idx, err := c.DocumentIndex(documentID)
		if err != nil {
			return err
		}
		next, err := fn(c.Documents[idx])
		out = next
		if err != nil {
			return err
		}
		c.Documents[idx] = next
		return nil
	})
	return out, err
}

func (s *Service) audit(ctx context.Context, candidateID string, doc domain.Document, action string, from domain.DocumentStatus, detail map[string]string) {
	s.appendAudit(ctx, domain.AuditEntry{
		CandidateID: candidateID,
		DocumentID:  doc.ID,
		Action:      action,
		From:        from,
		To:          doc.Status(),
		Detail:      detail,
		At:          doc.LastUpdated,
	})
}

func (s *Service) appendAudit(ctx context.Context, entry domain.AuditEntry) {
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.Error("audit append failed", "candidate_id", entry.CandidateID, "action", entry.Action, "error", err)
	}
}

func (s *Service) notifyCandidate(ctx context.Context, candidateID string, build func(domain.Candidate) notify.Message) {
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		s.logger.Error("notification skipped", "candidate_id", candidateID, "error", err)
		return
	}
	s.send(ctx, candidateID, build(c))
}

// send delivers msg once. The state change that triggered it stays
// committed whatever the outcome.
func (s *Service) send(ctx context.Context, candidateID string, msg notify.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error("notification failed", "candidate_id", candidateID, "to", msg.To, "subject", msg.Subject, "error", err)
		return
	}
	s.logger.Debug("notification sent", "candidate_id", candidateID, "to", msg.To, "subject", msg.Subject)
}
