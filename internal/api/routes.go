package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/dashboard", h.Dashboard)
		r.Post("/notifications/pending", h.NotifyPending)
		r.Get("/reports/candidates.csv", h.CandidateReport)
		r.Post("/exports/external", h.ExportExternal)

		r.Get("/candidates", h.ListCandidates)
		r.Post("/candidates/import", h.ImportCandidates)
		r.Route("/candidates/{candidateId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetCandidate(w, r, chi.URLParam(r, "candidateId"))
			})
			r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
				h.History(w, r, chi.URLParam(r, "candidateId"))
			})
			r.Post("/exam", func(w http.ResponseWriter, r *http.Request) {
				h.ScheduleExam(w, r, chi.URLParam(r, "candidateId"))
			})

			r.Route("/documents/{documentId}", func(r chi.Router) {
				r.Post("/upload", func(w http.ResponseWriter, r *http.Request) {
					h.UploadDocument(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "documentId"))
				})
				r.Post("/approve", func(w http.ResponseWriter, r *http.Request) {
					h.ApproveDocument(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "documentId"))
				})
				r.Post("/reject", func(w http.ResponseWriter, r *http.Request) {
					h.RejectDocument(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "documentId"))
				})
				r.Put("/not-applicable", func(w http.ResponseWriter, r *http.Request) {
					h.SetNotApplicable(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "documentId"))
				})
				r.Get("/file", func(w http.ResponseWriter, r *http.Request) {
					h.DownloadDocument(w, r, chi.URLParam(r, "candidateId"), chi.URLParam(r, "documentId"))
				})
			})
		})
	})

	return r
}
