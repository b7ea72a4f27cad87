package report

import (
	"context"
	"log/slog"
)

// Notifier delivers a rendered summary to a recipient. Actual delivery
// (e-mail, chat, queue) belongs to an external collaborator; the core only
// hands summaries over.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes summaries to the structured log. It is the default
// sink when no external delivery is configured.
type LogNotifier struct{}

// Notify logs the summary.
func (LogNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	slog.Info("report", "to", recipient, "subject", subject, "body", body)
	return nil
}

// Verify interface compliance.
var _ Notifier = LogNotifier{}
