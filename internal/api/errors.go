package api

import (
	"errors"
	"net/http"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	"github.com/FFM-HCFMUSP/FFM/internal/export"
	"github.com/FFM-HCFMUSP/FFM/internal/onboarding"
)

// HTTPStatus maps service and domain errors to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrCandidateNotFound),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, onboarding.ErrFileNotFound),
		errors.Is(err, export.ErrNoData):
		return http.StatusNotFound
	case domain.IsTransitionError(err), errors.Is(err, domain.ErrExamSchedulingNotAllowed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRejectionReasonRequired), errors.Is(err, domain.ErrExamDateInPast):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorBody(err error) errorResponse {
	var te *domain.TransitionError
	switch {
	case errors.As(err, &te):
		code := "status_not_allowed"
		if te.Code == domain.CodeNotOptional {
			code = "not_optional"
		}
		return errorResponse{Error: err.Error(), Code: code}
	case errors.Is(err, domain.ErrExamSchedulingNotAllowed):
		return errorResponse{Error: err.Error(), Code: "exam_not_allowed"}
	case errors.Is(err, domain.ErrExamDateInPast):
		return errorResponse{Error: err.Error(), Code: "exam_date_in_past"}
	case errors.Is(err, domain.ErrRejectionReasonRequired):
		return errorResponse{Error: err.Error(), Code: "reason_required"}
	case errors.Is(err, export.ErrNoData):
		return errorResponse{Error: err.Error(), Code: "no_data"}
	}
	return errorResponse{Error: err.Error()}
}
