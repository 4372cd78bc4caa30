package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type Client interface {
	CompleteJSON(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one chat completion. When Image is set it is sent as
// an image part after the user prompt.
type CompletionRequest struct {
	Model         string
	SystemPrompt  string
	UserPrompt    string
	Image         []byte
	ImageMIMEType string
	Timeout       time.Duration
}

type HTTPClient struct {
	apiKey       string
	defaultModel string
	baseURL      string
	httpClient   *http.Client
}

func NewHTTPClient(apiKey string, model string, baseURL string) *HTTPClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &HTTPClient{
		apiKey:       apiKey,
		defaultModel: model,
		baseURL:      baseURL,
		httpClient:   &http.Client{},
	}
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

// Content is either a plain string or a list of contentPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *HTTPClient) CompleteJSON(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY is required")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var userContent any = req.UserPrompt
	if len(req.Image) > 0 {
		userContent = []contentPart{
			{Type: "text", Text: req.UserPrompt},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:" + req.ImageMIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image),
			}},
		}
	}

	payload := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature:    0,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unable to parse openai response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("openai request failed: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned zero choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai returned empty content")
	}
	return content, nil
}

// OpenAIExtractor runs the base prompt with the image attached and, when the
// output does not match the schema, a single text-only repair prompt.
type OpenAIExtractor struct {
	LLM            Client
	Model          string
	Timeout        time.Duration
	MaxRetry       int
	RetryBaseDelay time.Duration
}

// ErrPDFUnsupported is returned for PDF uploads; the chat completions API
// only takes images as image_url parts.
var ErrPDFUnsupported = errors.New("pdf input is not supported by the openai provider")

func (e *OpenAIExtractor) Extract(ctx context.Context, content []byte, mimeType string) (domain.ExtractedData, error) {
	if strings.EqualFold(mimeType, "application/pdf") {
		return nil, &Error{Provider: ProviderOpenAI, Err: ErrPDFUnsupported}
	}
	out, err := e.callWithRetry(ctx, CompletionRequest{
		SystemPrompt:  BASE_SYSTEM,
		UserPrompt:    BuildBaseUserPrompt(FieldsSchema),
		Image:         content,
		ImageMIMEType: mimeType,
	})
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Err: err}
	}

	data, parseErr := ParseFields(out)
	if parseErr == nil {
		return data, nil
	}

	repaired, err := e.callWithRetry(ctx, CompletionRequest{
		SystemPrompt: REPAIR_SYSTEM,
		UserPrompt:   BuildRepairUserPrompt(FieldsSchema, out),
	})
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Err: err}
	}
	data, err = ParseFields(repaired)
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Err: fmt.Errorf("repair failed: %w (first attempt: %v)", err, parseErr)}
	}
	return data, nil
}

func (e *OpenAIExtractor) callWithRetry(ctx context.Context, req CompletionRequest) (string, error) {
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}
	base := e.RetryBaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	req.Model = e.Model
	req.Timeout = e.Timeout

	var lastErr error
	for attempt := 1; attempt <= maxRetry; attempt++ {
		out, err := e.LLM.CompleteJSON(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == maxRetry {
			break
		}
		delay := base * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("openai retry exhausted: %w", lastErr)
}
