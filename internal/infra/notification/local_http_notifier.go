package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/service"

	"github.com/pkg/errors"
)

const localPushTimeout = 30 * time.Second

// localHTTPNotifier posts mail jobs straight to a mail worker, imitating a Pub/Sub
// push subscription for development.
type localHTTPNotifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLocalHTTPNotifier creates a notifier that pushes to the mail worker at endpoint.
func NewLocalHTTPNotifier(endpoint string, logger *slog.Logger) service.Notifier {
	return &localHTTPNotifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: localPushTimeout},
		logger:     logger,
	}
}

func (n *localHTTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	job := newMailJob(ctx, to, subject, body)

	jobData, err := json.Marshal(job)
	if err != nil {
		return errors.WithStack(err)
	}

	envelope := service.PushEnvelope{Subscription: "projects/local/subscriptions/mail-sub"}
	envelope.Message.Data = base64.StdEncoding.EncodeToString(jobData)
	envelope.Message.MessageID = job.JobID
	envelope.Message.PublishTime = time.Now().UTC().Format(time.RFC3339)
	envelope.Message.Attributes = jobAttributes(job)

	payload, err := json.Marshal(envelope)
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if job.RequestID != "" {
		req.Header.Set(deliverycontext.HeaderXRequestID, job.RequestID)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to push mail job")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("mail worker returned non-success status: %d", resp.StatusCode)
	}

	n.logger.Info("[LocalNotifier] Mail job pushed",
		slog.String("endpoint", n.endpoint),
		slog.String("job_id", job.JobID),
	)

	return nil
}

func (n *localHTTPNotifier) Close() error {
	return nil
}
