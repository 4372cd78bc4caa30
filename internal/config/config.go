package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPPort        = "8080"
	defaultTemporalAddress = "localhost:7233"
	defaultTemporalNS      = "default"
	defaultTaskQueue       = "document-extraction-task-queue"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAITimeout   = 30
	defaultMinioEndpoint   = "localhost:9000"
	defaultMinioBucket     = "candidate-documents"
	defaultSMTPPort        = 587
)

const (
	ExtractionModeInline   = "inline"
	ExtractionModeWorkflow = "workflow"
)

type Config struct {
	HTTPPort          string
	PostgresDSN       string
	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
	WorkflowIDPrefix  string

	ExtractionMode     string
	ExtractionProvider string
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string
	OpenAITimeoutSec   int
	OpenAIMaxRetry     int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	NotifyFrom         string
	NotifyEnvironment  string
	NotifyDevRecipient string
	NotifyConcurrency  int

	AllowedUploadBytes int64
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          getenv("HTTP_PORT", defaultHTTPPort),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		TemporalAddress:   getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace: getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue: getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
		WorkflowIDPrefix:  getenv("WORKFLOW_ID_PREFIX", "doc-extract"),

		ExtractionMode:     strings.ToLower(getenv("EXTRACTION_MODE", ExtractionModeInline)),
		ExtractionProvider: strings.ToLower(getenv("EXTRACTION_PROVIDER", "gemini")),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getenv("GEMINI_MODEL", defaultGeminiModel),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getenv("OPENAI_MODEL", defaultOpenAIModel),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAITimeoutSec:   getenvInt("OPENAI_TIMEOUT_SEC", defaultOpenAITimeout),
		OpenAIMaxRetry:     getenvInt("OPENAI_MAX_RETRY", 3),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getenvInt("SMTP_PORT", defaultSMTPPort),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		NotifyFrom:         getenv("NOTIFY_FROM", "admissao@ffm.br"),
		NotifyEnvironment:  strings.ToUpper(getenv("NOTIFY_ENVIRONMENT", "DEVELOPMENT")),
		NotifyDevRecipient: os.Getenv("NOTIFY_DEV_RECIPIENT"),
		NotifyConcurrency:  getenvInt("NOTIFY_CONCURRENCY", 4),

		AllowedUploadBytes: int64(getenvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		RequestTimeout:     getenvDuration("REQUEST_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.ExtractionMode {
	case ExtractionModeInline:
	case ExtractionModeWorkflow:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when EXTRACTION_MODE=%s", ExtractionModeWorkflow)
		}
	default:
		return fmt.Errorf("EXTRACTION_MODE must be %q or %q, got %q", ExtractionModeInline, ExtractionModeWorkflow, c.ExtractionMode)
	}
	switch c.NotifyEnvironment {
	case "DEVELOPMENT", "PRODUCTION":
	default:
		return fmt.Errorf("NOTIFY_ENVIRONMENT must be DEVELOPMENT or PRODUCTION, got %q", c.NotifyEnvironment)
	}
	if c.SMTPHost != "" && c.NotifyEnvironment != "PRODUCTION" && c.NotifyDevRecipient == "" {
		return fmt.Errorf("NOTIFY_DEV_RECIPIENT is required when SMTP_HOST is set outside PRODUCTION")
	}
	if c.AllowedUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// Persistent reports whether candidates live in Postgres and files in MinIO.
// Without POSTGRES_DSN everything is kept in memory.
func (c Config) Persistent() bool {
	return c.PostgresDSN != ""
}

func (c Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAITimeoutSec) * time.Second
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
