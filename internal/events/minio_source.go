package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/FFM-HCFMUSP/FFM/internal/storage"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

type UploadEvent struct {
	CandidateID string
	DocumentID  string
	FileName    string
	ObjectKey   string
	EventName   string
}

type UploadEventSource interface {
	Run(ctx context.Context, handler func(context.Context, UploadEvent) error) error
}

type MinioUploadEventSource struct {
	client *minio.Client
	bucket string
	prefix string
	suffix string
	logger *slog.Logger
}

func NewMinioUploadEventSource(client *minio.Client, bucket string, prefix string, suffix string, logger *slog.Logger) *MinioUploadEventSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MinioUploadEventSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		suffix: suffix,
		logger: logger,
	}
}

func (s *MinioUploadEventSource) Run(ctx context.Context, handler func(context.Context, UploadEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, s.suffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, event := range uploadEvents(info.Records, s.logger) {
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

// uploadEvents keeps the records whose key names a candidate document.
func uploadEvents(records []notification.Event, logger *slog.Logger) []UploadEvent {
	out := make([]UploadEvent, 0, len(records))
	for _, record := range records {
		objectKey, err := decodeObjectKey(record.S3.Object.Key)
		if err != nil {
			logger.Warn("skipping notification", "key", record.S3.Object.Key, "error", err)
			continue
		}
		candidateID, documentID, _, fileName, err := storage.ParseObjectKey(objectKey)
		if err != nil {
			logger.Warn("skipping notification", "key", objectKey, "error", err)
			continue
		}
		out = append(out, UploadEvent{
			CandidateID: candidateID,
			DocumentID:  documentID,
			FileName:    fileName,
			ObjectKey:   objectKey,
			EventName:   record.EventName,
		})
	}
	return out
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}
