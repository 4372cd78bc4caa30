package temporal

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

const DocumentExtractionWorkflowName = "DocumentExtractionWorkflow"

type WorkflowInput struct {
	CandidateID string
	DocumentID  string
	ObjectKey   string
	FileName    string
}

type WorkflowResult struct {
	CandidateID string
	DocumentID  string
	Status      domain.DocumentStatus
}

// WorkflowID is unique per document, so at most one extraction runs for a
// document at a time.
func WorkflowID(prefix, candidateID, documentID string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, candidateID, documentID)
}

// DocumentExtractionWorkflow extracts an uploaded document and resolves it to
// APPROVED or REJECTED. A document is never left in ANALYSING because the
// extract step failed: activity errors there count as extraction failures.
func DocumentExtractionWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	ctxExtract := mustActivityContext(ctx, ActivityPolicyExtractDocument)
	ctxResolve := mustActivityContext(ctx, ActivityPolicyResolveExtraction)

	var extracted ExtractDocumentOutput
	if err := workflow.ExecuteActivity(ctxExtract, (*Activities).ExtractDocumentActivity, ExtractDocumentInput{
		CandidateID: input.CandidateID,
		DocumentID:  input.DocumentID,
		ObjectKey:   input.ObjectKey,
		FileName:    input.FileName,
	}).Get(ctx, &extracted); err != nil {
		logger.Warn("extract activity failed", "ObjectKey", input.ObjectKey, "Error", err)
		extracted = ExtractDocumentOutput{ErrMessage: err.Error()}
	}

	var resolved ResolveExtractionOutput
	if err := workflow.ExecuteActivity(ctxResolve, (*Activities).ResolveExtractionActivity, ResolveExtractionInput{
		CandidateID: input.CandidateID,
		DocumentID:  input.DocumentID,
		ObjectKey:   input.ObjectKey,
		Data:        extracted.Data,
		ErrMessage:  extracted.ErrMessage,
	}).Get(ctx, &resolved); err != nil {
		return WorkflowResult{}, err
	}

	return WorkflowResult{CandidateID: input.CandidateID, DocumentID: input.DocumentID, Status: resolved.Status}, nil
}
