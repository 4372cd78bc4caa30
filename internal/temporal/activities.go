package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	"github.com/FFM-HCFMUSP/FFM/internal/extraction"
	"github.com/FFM-HCFMUSP/FFM/internal/onboarding"
)

const errTypeNotFound = "NotFound"

type BlobReader interface {
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
}

// Resolver applies extraction outcomes to documents. onboarding.Service
// implements it.
type Resolver interface {
	ResolveExtraction(ctx context.Context, candidateID, documentID, objectKey string, data domain.ExtractedData, extractErr error) (domain.Document, error)
}

type Activities struct {
	Blob      BlobReader
	Extractor extraction.Extractor
	Resolver  Resolver
}

type ExtractDocumentInput struct {
	CandidateID string
	DocumentID  string
	ObjectKey   string
	FileName    string
}

// ExtractDocumentOutput carries either the extracted fields or the reason
// extraction failed. A failed extraction is a result, not an activity error.
type ExtractDocumentOutput struct {
	Data       domain.ExtractedData
	ErrMessage string
}

type ResolveExtractionInput struct {
	CandidateID string
	DocumentID  string
	ObjectKey   string
	Data        domain.ExtractedData
	ErrMessage  string
}

type ResolveExtractionOutput struct {
	Status domain.DocumentStatus
}

// ExtractDocumentActivity reads the uploaded object and runs the extractor
// on it. Only blob read errors are returned as activity errors.
func (a *Activities) ExtractDocumentActivity(ctx context.Context, input ExtractDocumentInput) (ExtractDocumentOutput, error) {
	logger := activity.GetLogger(ctx)

	mimeType, ok := extraction.MIMETypeFor(input.FileName)
	if !ok {
		return ExtractDocumentOutput{ErrMessage: fmt.Sprintf("unsupported file type: %s", input.FileName)}, nil
	}

	content, err := a.Blob.GetDocument(ctx, input.ObjectKey)
	if err != nil {
		return ExtractDocumentOutput{}, fmt.Errorf("read object %s: %w", input.ObjectKey, err)
	}

	data, err := a.Extractor.Extract(ctx, content, mimeType)
	if err != nil {
		logger.Warn("extraction failed", "CandidateID", input.CandidateID, "DocumentID", input.DocumentID, "Error", err)
		return ExtractDocumentOutput{ErrMessage: err.Error()}, nil
	}
	return ExtractDocumentOutput{Data: data}, nil
}

// ResolveExtractionActivity applies the outcome. A forced rejection after a
// failed extraction completes the activity normally.
func (a *Activities) ResolveExtractionActivity(ctx context.Context, input ResolveExtractionInput) (ResolveExtractionOutput, error) {
	var extractErr error
	if input.ErrMessage != "" {
		extractErr = errors.New(input.ErrMessage)
	}

	doc, err := a.Resolver.ResolveExtraction(ctx, input.CandidateID, input.DocumentID, input.ObjectKey, input.Data, extractErr)
	var failed *onboarding.ExtractionFailedError
	switch {
	case err == nil, errors.As(err, &failed):
		return ResolveExtractionOutput{Status: doc.Status()}, nil
	case errors.Is(err, domain.ErrCandidateNotFound), errors.Is(err, domain.ErrDocumentNotFound):
		return ResolveExtractionOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
	default:
		return ResolveExtractionOutput{}, err
	}
}
