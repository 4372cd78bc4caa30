// Package app wires configuration into the stores, collaborators and
// service shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/FFM-HCFMUSP/FFM/internal/config"
	"github.com/FFM-HCFMUSP/FFM/internal/extraction"
	"github.com/FFM-HCFMUSP/FFM/internal/notify"
	"github.com/FFM-HCFMUSP/FFM/internal/onboarding"
	"github.com/FFM-HCFMUSP/FFM/internal/storage"
)

type Store interface {
	onboarding.Store
	Ping(ctx context.Context) error
}

type App struct {
	Store     Store
	Blob      onboarding.BlobStore
	Minio     *minio.Client
	Extractor extraction.Extractor
	Service   *onboarding.Service

	closers []func() error
}

// New opens the stores for cfg. Without POSTGRES_DSN candidates and files
// are kept in memory. The extractor is built only when withExtractor is set;
// otherwise uploads cannot be processed inline.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, withExtractor bool) (*App, error) {
	a := &App{}
	if cfg.Persistent() {
		pg, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.Ping(pingCtx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		a.Store, a.Blob, a.Minio = pg, blob, blob.Client()
	} else {
		logger.Warn("POSTGRES_DSN not set, keeping candidates and files in memory")
		a.Store, a.Blob = storage.NewMemoryStore(), storage.NewMemoryBlobStore()
	}

	if withExtractor {
		ext, closeFn, err := extraction.New(ctx, extraction.Options{
			Provider:      cfg.ExtractionProvider,
			GeminiAPIKey:  cfg.GeminiAPIKey,
			GeminiModel:   cfg.GeminiModel,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIModel:   cfg.OpenAIModel,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
			OpenAITimeout: cfg.OpenAITimeout(),
			MaxRetry:      cfg.OpenAIMaxRetry,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("build extractor: %w", err)
		}
		a.Extractor = ext
		a.closers = append(a.closers, closeFn)
	}

	a.Service = onboarding.NewService(a.Store, a.Blob, a.Extractor, Notifier(cfg, logger),
		onboarding.WithLogger(logger),
		onboarding.WithNotifyConcurrency(cfg.NotifyConcurrency),
	)
	return a, nil
}

// Notifier sends over SMTP when SMTP_HOST is set and logs otherwise. Outside
// production every message goes to NOTIFY_DEV_RECIPIENT; config validation
// refuses SMTP outside production without one.
func Notifier(cfg config.Config, logger *slog.Logger) notify.Notifier {
	var n notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.SMTPHost != "" {
		n = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.NotifyFrom)
	}
	return notify.ForEnvironment(n, cfg.NotifyEnvironment, cfg.NotifyDevRecipient)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
