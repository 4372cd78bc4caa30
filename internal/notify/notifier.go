package notify

import (
	"context"
	"log/slog"
	"strings"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers one message. Callers do not retry.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

const (
	EnvironmentDevelopment = "DEVELOPMENT"
	EnvironmentProduction  = "PRODUCTION"
)

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email sent (simulated)", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// RedirectNotifier delivers every message to a single recipient.
type RedirectNotifier struct {
	Next Notifier
	To   string
}

func (n RedirectNotifier) Send(ctx context.Context, msg Message) error {
	msg.To = n.To
	return n.Next.Send(ctx, msg)
}

// ForEnvironment redirects all mail to devRecipient outside production.
func ForEnvironment(next Notifier, environment string, devRecipient string) Notifier {
	if strings.EqualFold(environment, EnvironmentProduction) || devRecipient == "" {
		return next
	}
	return RedirectNotifier{Next: next, To: devRecipient}
}
