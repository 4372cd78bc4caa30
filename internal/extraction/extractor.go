package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/FFM-HCFMUSP/FFM/internal/domain"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Extractor pulls identity fields out of an uploaded document image. A nil
// result with a nil error means nothing recognisable was found.
type Extractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (domain.ExtractedData, error)
}

// Error wraps any failure of an extraction provider.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var supportedMIMETypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// MIMETypeFor returns the content type for an accepted upload, based on its
// extension.
func MIMETypeFor(fileName string) (string, bool) {
	mt, ok := supportedMIMETypes[strings.ToLower(filepath.Ext(fileName))]
	return mt, ok
}

type Options struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAITimeout time.Duration
	MaxRetry      int
}

// New builds the extractor for opts.Provider. The returned close func
// releases provider resources.
func New(ctx context.Context, opts Options) (Extractor, func() error, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderGemini:
		g, err := NewGeminiExtractor(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case ProviderOpenAI:
		return &OpenAIExtractor{
			LLM:      NewHTTPClient(opts.OpenAIAPIKey, opts.OpenAIModel, opts.OpenAIBaseURL),
			Timeout:  opts.OpenAITimeout,
			MaxRetry: opts.MaxRetry,
		}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown extraction provider %q", opts.Provider)
	}
}
