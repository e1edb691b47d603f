// Package notification delivers account email through SMTP, a Pub/Sub queue
// drained by the mail worker, or the service log.
package notification

import (
	"context"
	"log/slog"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/service"
	"stockdash/internal/util"
)

// logNotifier writes messages to the log instead of sending them. Development only:
// the body, reset links included, is logged at debug level.
type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) service.Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Send(ctx context.Context, to, subject, body string) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, n.logger)

	logger.Info("[LogNotifier] Email not sent, logging only",
		slog.String("to", util.MaskEmail(to)),
		slog.String("subject", subject),
	)
	logger.Debug("[LogNotifier] Email body", slog.String("to", to), slog.String("body", body))

	return nil
}

func (n *logNotifier) Close() error {
	return nil
}
