//go:build system

package system_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
	appTemporal "github.com/FFM-HCFMUSP/FFM/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (api in workflow mode, worker, event-handler) are running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.APIBaseURL+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.APIBaseURL+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())
	})

	It("imports a candidate, uploads a document and resolves it through the worker", func() {
		By("importing a candidate with a fresh checklist")
		cand, err := importCandidate(cfg.APIBaseURL)
		Expect(err).ToNot(HaveOccurred())
		Expect(cand.Documents).To(HaveLen(18))
		Expect(cand.Overall.Label).To(Equal(domain.LabelAwaitingDocument))

		By("uploading a document exactly like a candidate")
		filePath := filepath.Join(repoRoot, cfg.UploadFixturePath)
		upload, err := uploadFile(cfg.APIBaseURL, cand.ID, cfg.UploadDocumentID, filePath)
		Expect(err).ToNot(HaveOccurred())
		Expect(upload.Document.Status()).To(Equal(domain.StatusAnalysing))
		Expect(upload.WorkflowID).To(Equal(appTemporal.WorkflowID(cfg.WorkflowIDPrefix, cand.ID, cfg.UploadDocumentID)))

		By("polling the candidate until the document leaves ANALYSING")
		var doc domain.Document
		Eventually(func() domain.DocumentStatus {
			current, getErr := getCandidate(cfg.APIBaseURL, cand.ID)
			Expect(getErr).ToNot(HaveOccurred())
			var ok bool
			doc, ok = documentByID(current, cfg.UploadDocumentID)
			Expect(ok).To(BeTrue())
			return doc.Status()
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).ShouldNot(Equal(domain.StatusAnalysing))

		Expect(doc.Status()).To(BeElementOf(domain.StatusApproved, domain.StatusRejected))
		Expect(doc.File()).ToNot(BeNil())
		if doc.Status() == domain.StatusRejected {
			Expect(doc.RejectionReason()).To(Equal(domain.ExtractionFailureReason))
		}

		By("validating activity inputs and outputs from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		trace, err := collectActivityTrace(context.Background(), temporalClient, upload.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(trace.ScheduledOrder).To(Equal(cfg.ExpectedActivityOrder))
		Expect(trace.CompletedOrder).To(Equal(cfg.ExpectedActivityOrder))

		extractIn := trace.Inputs["ExtractDocumentActivity"].(appTemporal.ExtractDocumentInput)
		Expect(extractIn.CandidateID).To(Equal(cand.ID))
		Expect(extractIn.DocumentID).To(Equal(cfg.UploadDocumentID))
		Expect(extractIn.ObjectKey).To(HavePrefix(cand.ID + "/" + cfg.UploadDocumentID + "/"))

		extractOut := trace.Outputs["ExtractDocumentActivity"].(appTemporal.ExtractDocumentOutput)
		resolveIn := trace.Inputs["ResolveExtractionActivity"].(appTemporal.ResolveExtractionInput)
		Expect(resolveIn.ObjectKey).To(Equal(extractIn.ObjectKey))
		Expect(resolveIn.ErrMessage).To(Equal(extractOut.ErrMessage))

		resolveOut := trace.Outputs["ResolveExtractionActivity"].(appTemporal.ResolveExtractionOutput)
		Expect(resolveOut.Status).To(Equal(doc.Status()))

		By("verifying the audit trail over HTTP and in Postgres")
		history, err := getHistory(cfg.APIBaseURL, cand.ID)
		Expect(err).ToNot(HaveOccurred())
		actions := make([]string, 0, len(history.Items))
		for _, e := range history.Items {
			actions = append(actions, e.Action)
		}
		Expect(actions).To(ContainElements(domain.ActionImported, string(domain.EventUpload)))

		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()
		Expect(db.Ping()).To(Succeed())

		toStatuses, err := fetchStringRows(db, `SELECT COALESCE(to_status, '') FROM audit_log WHERE candidate_id = $1 AND document_id = $2 ORDER BY id`, cand.ID, cfg.UploadDocumentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(toStatuses).ToNot(BeEmpty())
		Expect(toStatuses[0]).To(Equal(string(domain.StatusAnalysing)))
		Expect(toStatuses[len(toStatuses)-1]).To(Equal(string(doc.Status())))
	})
})
