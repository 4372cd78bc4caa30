package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiExtractor sends the document image inline together with the
// extraction prompt and a response schema.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(ctx context.Context, apiKey string, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, content []byte, mimeType string) (domain.ExtractedData, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiResponseSchema()

	resp, err := model.GenerateContent(ctx,
		genai.Text(BuildBaseUserPrompt(FieldsSchema)),
		genai.Blob{MIMEType: mimeType, Data: content},
	)
	if err != nil {
		return nil, &Error{Provider: ProviderGemini, Err: err}
	}
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &Error{Provider: ProviderGemini, Err: err}
	}
	data, err := ParseFields(text)
	if err != nil {
		return nil, &Error{Provider: ProviderGemini, Err: err}
	}
	return data, nil
}

func (g *GeminiExtractor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func geminiResponseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(Fields))
	for _, f := range Fields {
		props[f.Name] = &genai.Schema{Type: genai.TypeString, Description: f.Description, Nullable: true}
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props}
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
