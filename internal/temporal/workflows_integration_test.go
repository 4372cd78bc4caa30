package temporal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

func newWorkflowEnv(h *harness) *testsuite.TestWorkflowEnvironment {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentExtractionWorkflow)
	env.RegisterActivity(h.acts.ExtractDocumentActivity)
	env.RegisterActivity(h.acts.ResolveExtractionActivity)
	return env
}

func TestDocumentExtractionWorkflow_Approves(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in, err := h.seedUpload(ctx)
	require.NoError(t, err)

	env := newWorkflowEnv(h)
	env.ExecuteWorkflow(DocumentExtractionWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, WorkflowResult{CandidateID: "cand_1", DocumentID: "doc_cpf_frente", Status: domain.StatusApproved}, result)

	doc, err := h.documentStatus(ctx, in.DocumentID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, doc.Status())
	require.Equal(t, "123.456.789-00", doc.ExtractedData()["cpf"])
}

func TestDocumentExtractionWorkflow_RejectsOnExtractionFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in, err := h.seedUpload(ctx)
	require.NoError(t, err)
	h.extractor.err = errors.New("invalid json from model")

	env := newWorkflowEnv(h)
	env.ExecuteWorkflow(DocumentExtractionWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, domain.StatusRejected, result.Status)

	doc, err := h.documentStatus(ctx, in.DocumentID)
	require.NoError(t, err)
	require.Equal(t, domain.ExtractionFailureReason, doc.RejectionReason())
	require.NotNil(t, doc.File())
}

func TestDocumentExtractionWorkflow_MissingObjectStillResolves(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in, err := h.seedUpload(ctx)
	require.NoError(t, err)
	h.acts.Blob = missingBlob{}

	env := newWorkflowEnv(h)
	env.ExecuteWorkflow(DocumentExtractionWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	doc, err := h.documentStatus(ctx, in.DocumentID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, doc.Status(), "document must not stay in ANALYSING")
}

func TestDocumentExtractionWorkflow_UnknownCandidateFails(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.blob.PutDocument(context.Background(), "cand_x/doc_pis/PIS.png", []byte("png"), "image/png"))

	env := newWorkflowEnv(h)
	env.ExecuteWorkflow(DocumentExtractionWorkflow, WorkflowInput{
		CandidateID: "cand_x", DocumentID: "doc_pis", ObjectKey: "cand_x/doc_pis/PIS.png", FileName: "PIS.png",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "doc-extract-cand_1-doc_pis", WorkflowID("doc-extract", "cand_1", "doc_pis"))
}

type missingBlob struct{}

func (missingBlob) GetDocument(context.Context, string) ([]byte, error) {
	return nil, errors.New("object not found")
}
