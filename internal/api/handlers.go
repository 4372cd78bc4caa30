package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FFM-HCFMUSP/FFM/internal/config"
	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	"github.com/FFM-HCFMUSP/FFM/internal/export"
	"github.com/FFM-HCFMUSP/FFM/internal/extraction"
	"github.com/FFM-HCFMUSP/FFM/internal/onboarding"
	appTemporal "github.com/FFM-HCFMUSP/FFM/internal/temporal"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg      config.Config
	svc      *onboarding.Service
	pinger   Pinger
	logger   *slog.Logger
	location *time.Location
}

type importRequest struct {
	Records []domain.ImportRecord `json:"records" validate:"required"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type notApplicableRequest struct {
	NotApplicable *bool `json:"notApplicable" validate:"required"`
}

// examRequest accepts "DD/MM/YYYY HH:MM" in Date, or an ISO date in Date
// with the time of day in Time.
type examRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time"`
}

type externalExportRequest struct {
	Records []domain.ExternalCandidate `json:"records" validate:"required"`
}

type uploadResponse struct {
	Document         domain.Document `json:"document"`
	ExtractionFailed bool            `json:"extractionFailed,omitempty"`
	WorkflowID       string          `json:"workflowId,omitempty"`
}

func NewHandler(cfg config.Config, svc *onboarding.Service, pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, svc: svc, pinger: pinger, logger: logger, location: time.Local}
}

func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	term := r.URL.Query().Get("q")
	views, err := h.svc.SearchCandidates(ctx, term)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (h *Handler) GetCandidate(w http.ResponseWriter, r *http.Request, candidateID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.svc.GetCandidate(ctx, candidateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, candidateID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.svc.History(ctx, candidateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.svc.Dashboard(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ImportCandidates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req importRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	report, err := h.svc.ImportCandidates(ctx, req.Records)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request, candidateID, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.AllowedUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart payload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file form field is required"})
		return
	}
	defer file.Close()

	contentType, ok := extraction.MIMETypeFor(header.Filename)
	if !ok {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "only PDF, PNG and JPEG files are accepted"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file exceeds size limit"})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is empty"})
		return
	}

	up := onboarding.Upload{FileName: header.Filename, ContentType: contentType, Content: body}

	// The event handler starts the extraction workflow once the object lands
	// in MinIO.
	if h.cfg.ExtractionMode == config.ExtractionModeWorkflow {
		doc, err := h.svc.BeginUpload(ctx, candidateID, documentID, up)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, uploadResponse{
			Document:   doc,
			WorkflowID: appTemporal.WorkflowID(h.cfg.WorkflowIDPrefix, candidateID, documentID),
		})
		return
	}

	doc, err := h.svc.ProcessUpload(ctx, candidateID, documentID, up)
	var failed *onboarding.ExtractionFailedError
	switch {
	case errors.As(err, &failed):
		writeJSON(w, http.StatusOK, uploadResponse{Document: doc, ExtractionFailed: true})
	case err != nil:
		h.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, uploadResponse{Document: doc})
	}
}

func (h *Handler) ApproveDocument(w http.ResponseWriter, r *http.Request, candidateID, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	doc, err := h.svc.ApproveDocument(ctx, candidateID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) RejectDocument(w http.ResponseWriter, r *http.Request, candidateID, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req rejectRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	doc, err := h.svc.RejectDocument(ctx, candidateID, documentID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) SetNotApplicable(w http.ResponseWriter, r *http.Request, candidateID, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req notApplicableRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	doc, err := h.svc.SetNotApplicable(ctx, candidateID, documentID, *req.NotApplicable)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request, candidateID, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	file, err := h.svc.OpenDocumentFile(ctx, candidateID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func (h *Handler) ScheduleExam(w http.ResponseWriter, r *http.Request, candidateID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req examRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	at, err := parseExamDate(req.Date, req.Time, h.location)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	view, err := h.svc.ScheduleExam(ctx, candidateID, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) NotifyPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	report, err := h.svc.NotifyPending(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) CandidateReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var buf bytes.Buffer
	if err := h.svc.ExportReport(ctx, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, "text/csv; charset=utf-8", export.ReportFileName, buf.Bytes())
}

func (h *Handler) ExportExternal(w http.ResponseWriter, r *http.Request) {
	var req externalExportRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	for i, rec := range req.Records {
		if err := rec.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("record %d: %v", i, err)})
			return
		}
	}

	var buf bytes.Buffer
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "csv":
		if err := export.WriteExternalCSV(&buf, req.Records); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeFile(w, "text/csv; charset=utf-8", export.ExternalFileName+".csv", buf.Bytes())
	case "json":
		if err := export.WriteExternalJSON(&buf, req.Records); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeFile(w, "application/json", export.ExternalFileName+".json", buf.Bytes())
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "format must be csv or json"})
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// parseExamDate reads the exam date as entered by admins.
func parseExamDate(date, clock string, loc *time.Location) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if clock == "" {
		at, err := time.ParseInLocation(domain.ExamDateLayout, date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("date must be DD/MM/YYYY HH:MM")
		}
		return at, nil
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD and time HH:MM")
	}
	return at, nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return false
	}
	if err := domain.ValidateStruct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody(err))
}

func writeFile(w http.ResponseWriter, contentType, fileName string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
