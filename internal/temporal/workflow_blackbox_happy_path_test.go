package temporal

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	extractIn  *ExtractDocumentInput
	extractOut *ExtractDocumentOutput
	resolveIn  *ResolveExtractionInput
	resolveOut *ResolveExtractionOutput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

func tracedEnv(h *harness, trace *activityTrace) *testsuite.TestWorkflowEnvironment {
	env := newWorkflowEnv(h)
	env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
		trace.recordStarted(info.ActivityType.Name)
		switch info.ActivityType.Name {
		case "ExtractDocumentActivity":
			var in ExtractDocumentInput
			_ = args.Get(&in)
			trace.mu.Lock()
			trace.extractIn = &in
			trace.mu.Unlock()
		case "ResolveExtractionActivity":
			var in ResolveExtractionInput
			_ = args.Get(&in)
			trace.mu.Lock()
			trace.resolveIn = &in
			trace.mu.Unlock()
		}
	})
	env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
		trace.recordCompleted(info.ActivityType.Name)
		switch info.ActivityType.Name {
		case "ExtractDocumentActivity":
			var out ExtractDocumentOutput
			_ = result.Get(&out)
			trace.mu.Lock()
			trace.extractOut = &out
			trace.mu.Unlock()
		case "ResolveExtractionActivity":
			var out ResolveExtractionOutput
			_ = result.Get(&out)
			trace.mu.Lock()
			trace.resolveOut = &out
			trace.mu.Unlock()
		}
	})
	return env
}

var _ = Describe("DocumentExtractionWorkflow blackbox", func() {
	var (
		ctx   context.Context
		h     *harness
		input WorkflowInput
		trace *activityTrace
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
		trace = &activityTrace{}
		var err error
		input, err = h.seedUpload(ctx)
		Expect(err).ToNot(HaveOccurred())
	})

	It("extracts an uploaded document and auto-approves it", func() {
		env := tracedEnv(h, trace)

		By("starting the workflow for the uploaded object")
		env.ExecuteWorkflow(DocumentExtractionWorkflow, input)

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())
		var result WorkflowResult
		Expect(env.GetWorkflowResult(&result)).To(Succeed())
		Expect(result.Status).To(Equal(domain.StatusApproved))

		By("validating each activity input and output")
		Expect(trace.startedOrder).To(Equal([]string{"ExtractDocumentActivity", "ResolveExtractionActivity"}))
		Expect(trace.completedOrder).To(Equal([]string{"ExtractDocumentActivity", "ResolveExtractionActivity"}))

		Expect(trace.extractIn).ToNot(BeNil())
		Expect(trace.extractIn.ObjectKey).To(HavePrefix("cand_1/doc_cpf_frente/"))
		Expect(trace.extractIn.ObjectKey).To(HaveSuffix("/CPF_-_Frente.png"))
		Expect(trace.extractIn.FileName).To(Equal("CPF_-_Frente.png"))

		Expect(trace.extractOut).ToNot(BeNil())
		Expect(trace.extractOut.ErrMessage).To(BeEmpty())
		Expect(trace.extractOut.Data).To(HaveKeyWithValue("fullName", "Ana Souza"))

		Expect(trace.resolveIn).ToNot(BeNil())
		Expect(trace.resolveIn.Data).To(Equal(trace.extractOut.Data))
		Expect(trace.resolveOut.Status).To(Equal(domain.StatusApproved))

		By("validating the persisted candidate and its audit trail")
		doc, err := h.documentStatus(ctx, input.DocumentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.Status()).To(Equal(domain.StatusApproved))

		history, err := h.svc.History(ctx, input.CandidateID)
		Expect(err).ToNot(HaveOccurred())
		actions := make([]string, 0, len(history))
		for _, e := range history {
			actions = append(actions, e.Action)
		}
		Expect(actions).To(Equal([]string{"imported", "upload", "extraction_succeeded"}))
	})

	It("ignores a duplicate run once the document has been resolved", func() {
		env := tracedEnv(h, trace)
		env.ExecuteWorkflow(DocumentExtractionWorkflow, input)
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		By("running the same workflow again with a failing extractor")
		h.extractor.err = context.DeadlineExceeded
		again := newWorkflowEnv(h)
		again.ExecuteWorkflow(DocumentExtractionWorkflow, input)
		Expect(again.GetWorkflowError()).ToNot(HaveOccurred())

		doc, err := h.documentStatus(ctx, input.DocumentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.Status()).To(Equal(domain.StatusApproved))
	})
})
