package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	braintrust "github.com/braintrustdata/braintrust-sdk-go"
	"github.com/braintrustdata/braintrust-sdk-go/eval"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	statusAnalysing = "ANALYSING"
	statusApproved  = "APPROVED"
	statusRejected  = "REJECTED"

	extractionFailureReason = "Falha no processamento do arquivo. Por favor, envie novamente."
)

// knownFields is the extraction vocabulary served by the portal.
var knownFields = toSet([]string{"fullName", "cpf", "documentNumber", "birthDate", "issueDate", "address", "zipCode"})

type evalInput struct {
	Name       string `json:"name"`
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

type evalOutput struct {
	Status          string            `json:"status,omitempty"`
	ExtractedData   map[string]string `json:"extracted_data,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ElapsedMillis   int64             `json:"elapsed_ms,omitempty"`
}

type rawCase struct {
	Input    evalInput  `json:"input"`
	Expected evalOutput `json:"expected"`
}

type config struct {
	APIURL         string
	CasesPath      string
	Project        string
	Experiment     string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	Parallelism    int
}

type evalRunner struct {
	cfg    config
	client *http.Client
}

type portalDocument struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	ExtractedData   map[string]string `json:"extractedData"`
	RejectionReason string            `json:"rejectionReason"`
}

type portalCandidate struct {
	ID        string           `json:"id"`
	Documents []portalDocument `json:"documents"`
}

func main() {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}

	if strings.TrimSpace(os.Getenv("BRAINTRUST_API_KEY")) == "" {
		fail(errors.New("BRAINTRUST_API_KEY is required"))
	}

	cases, err := loadCases(cfg.CasesPath)
	if err != nil {
		fail(err)
	}

	runner := &evalRunner{
		cfg:    cfg,
		client: &http.Client{},
	}

	if err := runner.healthCheck(ctx); err != nil {
		fail(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	bt, err := braintrust.New(
		tp,
		braintrust.WithProject(cfg.Project),
		braintrust.WithBlockingLogin(true),
	)
	if err != nil {
		fail(fmt.Errorf("failed to initialize Braintrust: %w", err))
	}

	evaluator := braintrust.NewEvaluator[evalInput, evalOutput](bt)

	result, err := evaluator.Run(ctx, eval.Opts[evalInput, evalOutput]{
		Experiment: cfg.Experiment,
		Dataset:    eval.NewDataset(cases),
		Task:       eval.T(runner.runCase),
		Scorers: []eval.Scorer[evalInput, evalOutput]{
			eval.NewScorer("status", scoreStatus),
			eval.NewScorer("field_accuracy", scoreFieldAccuracy),
			eval.NewScorer("vocabulary_conformance", scoreVocabulary),
			eval.NewScorer("format_rules", scoreFormatRules),
			eval.NewScorer("failure_message", scoreFailureMessage),
		},
		Tags: []string{"candidate-onboarding", "extraction"},
		Metadata: map[string]any{
			"service":          "ffm-onboarding",
			"api_url":          cfg.APIURL,
			"poll_timeout_sec": int(cfg.PollTimeout.Seconds()),
		},
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		fail(fmt.Errorf("eval run failed: %w", err))
	}

	if runErr := result.Error(); runErr != nil {
		fail(fmt.Errorf("eval completed with errors: %w", runErr))
	}

	if link, err := result.Permalink(); err == nil && link != "" {
		fmt.Println("Braintrust report:", link)
	}

	fmt.Println(result.String())
}

func loadConfig() (config, error) {
	cfg := config{
		APIURL:         getenv("EVAL_API_URL", "http://localhost:8080"),
		CasesPath:      getenv("EVAL_CASES_PATH", "cases.json"),
		Project:        getenv("BRAINTRUST_PROJECT", "ffm-onboarding"),
		Experiment:     getenv("EVAL_EXPERIMENT", "document-extraction-eval"),
		PollInterval:   time.Duration(getenvInt("EVAL_POLL_INTERVAL_SEC", 2)) * time.Second,
		PollTimeout:    time.Duration(getenvInt("EVAL_POLL_TIMEOUT_SEC", 180)) * time.Second,
		RequestTimeout: time.Duration(getenvInt("EVAL_REQUEST_TIMEOUT_SEC", 90)) * time.Second,
		Parallelism:    getenvInt("EVAL_PARALLELISM", 1),
	}

	if cfg.PollInterval <= 0 {
		return config{}, errors.New("EVAL_POLL_INTERVAL_SEC must be > 0")
	}
	if cfg.PollTimeout <= 0 {
		return config{}, errors.New("EVAL_POLL_TIMEOUT_SEC must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		return config{}, errors.New("EVAL_REQUEST_TIMEOUT_SEC must be > 0")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	return cfg, nil
}

func loadCases(path string) ([]eval.Case[evalInput, evalOutput], error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file %s: %w", resolved, err)
	}

	var raw []rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cases file %s: %w", resolved, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cases file is empty: %s", resolved)
	}

	cases := make([]eval.Case[evalInput, evalOutput], 0, len(raw))
	for _, row := range raw {
		cases = append(cases, eval.Case[evalInput, evalOutput]{
			Input:    row.Input,
			Expected: row.Expected,
			Metadata: map[string]any{"name": row.Input.Name, "document_id": row.Input.DocumentID, "file_path": row.Input.FilePath},
		})
	}
	return cases, nil
}

// runCase imports a throwaway candidate, uploads the file into the requested
// checklist slot and waits until the document leaves ANALYSING. It works
// against the API in either extraction mode.
func (r *evalRunner) runCase(ctx context.Context, input evalInput) (evalOutput, error) {
	filePath, err := resolvePath(input.FilePath)
	if err != nil {
		return evalOutput{}, err
	}

	candidateID, err := r.importCandidate(ctx, input.Name)
	if err != nil {
		return evalOutput{}, err
	}

	started := time.Now()
	if err := r.uploadDocument(ctx, candidateID, input.DocumentID, filePath); err != nil {
		return evalOutput{}, err
	}

	deadline := started.Add(r.cfg.PollTimeout)
	for {
		doc, err := r.getDocument(ctx, candidateID, input.DocumentID)
		if err != nil {
			return evalOutput{}, err
		}
		if doc.Status != statusAnalysing {
			return evalOutput{
				Status:          doc.Status,
				ExtractedData:   doc.ExtractedData,
				RejectionReason: doc.RejectionReason,
				ElapsedMillis:   time.Since(started).Milliseconds(),
			}, nil
		}

		if time.Now().After(deadline) {
			return evalOutput{}, fmt.Errorf("timed out waiting for %s/%s", candidateID, input.DocumentID)
		}

		select {
		case <-ctx.Done():
			return evalOutput{}, ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func (r *evalRunner) healthCheck(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if strings.ToLower(resp.Status) != "ok" {
		return fmt.Errorf("health check returned non-ok status: %s", resp.Status)
	}
	return nil
}

func (r *evalRunner) importCandidate(ctx context.Context, name string) (string, error) {
	payload := map[string]any{
		"records": []map[string]string{{
			"name":        "Eval " + name,
			"email":       fmt.Sprintf("eval-%d@example.com", time.Now().UnixNano()),
			"jobPosition": "Avaliação",
			"jobId":       "EVAL",
		}},
	}
	var out struct {
		Imported []portalCandidate `json:"imported"`
	}
	if err := r.doJSON(ctx, http.MethodPost, "/v1/candidates/import", payload, &out); err != nil {
		return "", fmt.Errorf("import failed: %w", err)
	}
	if len(out.Imported) != 1 {
		return "", fmt.Errorf("import returned %d candidates", len(out.Imported))
	}
	return out.Imported[0].ID, nil
}

func (r *evalRunner) uploadDocument(ctx context.Context, candidateID, documentID, filePath string) error {
	fileBytes, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := part.Write(fileBytes); err != nil {
		return fmt.Errorf("failed to write multipart file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/candidates/%s/documents/%s/upload", strings.TrimRight(r.cfg.APIURL, "/"), candidateID, documentID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("upload response read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return nil
}

func (r *evalRunner) getDocument(ctx context.Context, candidateID, documentID string) (portalDocument, error) {
	var cand portalCandidate
	if err := r.doJSON(ctx, http.MethodGet, "/v1/candidates/"+candidateID, nil, &cand); err != nil {
		return portalDocument{}, err
	}
	for _, d := range cand.Documents {
		if d.ID == documentID {
			return d, nil
		}
	}
	return portalDocument{}, fmt.Errorf("candidate %s has no document %s", candidateID, documentID)
}

func (r *evalRunner) doJSON(ctx context.Context, method, path string, in any, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, strings.TrimRight(r.cfg.APIURL, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode failed: %w (payload=%s)", err, string(payload))
		}
	}
	return nil
}

func scoreStatus(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := strings.ToUpper(strings.TrimSpace(tr.Expected.Status))
	if expected == "" {
		expected = statusApproved
	}
	if strings.ToUpper(strings.TrimSpace(tr.Output.Status)) == expected {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func scoreFieldAccuracy(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := tr.Expected.ExtractedData
	if len(expected) == 0 {
		return eval.S(1), nil
	}
	matched := 0
	for key, want := range expected {
		if got, ok := tr.Output.ExtractedData[key]; ok && valuesMatch(key, want, got) {
			matched++
		}
	}
	return eval.S(float64(matched) / float64(len(expected))), nil
}

// scoreVocabulary penalises keys the portal never asks the model for.
func scoreVocabulary(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	for key := range tr.Output.ExtractedData {
		if _, ok := knownFields[key]; !ok {
			return eval.S(0), nil
		}
	}
	return eval.S(1), nil
}

var (
	cpfPattern = regexp.MustCompile(`^\d{3}\.?\d{3}\.?\d{3}-?\d{2}$`)
	cepPattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)
)

func scoreFormatRules(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	data := tr.Output.ExtractedData
	if v, ok := data["cpf"]; ok && !cpfPattern.MatchString(strings.TrimSpace(v)) {
		return eval.S(0), nil
	}
	if v, ok := data["zipCode"]; ok && !cepPattern.MatchString(strings.TrimSpace(v)) {
		return eval.S(0), nil
	}
	for _, key := range []string{"birthDate", "issueDate"} {
		if v, ok := data[key]; ok && !isDate(v) {
			return eval.S(0), nil
		}
	}
	return eval.S(1), nil
}

// scoreFailureMessage checks that a failed extraction surfaces the fixed
// candidate-facing message.
func scoreFailureMessage(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if !strings.EqualFold(tr.Output.Status, statusRejected) {
		return eval.S(1), nil
	}
	if tr.Output.RejectionReason == extractionFailureReason {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func isDate(v string) bool {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

var nonDigits = regexp.MustCompile(`\D`)

func valuesMatch(key, expected, actual string) bool {
	switch key {
	case "cpf", "documentNumber", "zipCode":
		return nonDigits.ReplaceAllString(expected, "") == nonDigits.ReplaceAllString(actual, "")
	default:
		return normalizeString(expected) == normalizeString(actual)
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}

func normalizeString(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is empty")
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("path not found: %s", path)
	}

	candidates := []string{
		path,
		filepath.Join("..", "..", path),
	}

	for _, c := range candidates {
		absPath, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("path not found: %s", path)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out int
	if _, err := fmt.Sscanf(v, "%d", &out); err != nil {
		return fallback
	}
	return out
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
