package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/service"
	"stockdash/internal/util"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// pubsubNotifier queues mail jobs on a Google Pub/Sub topic; the mail worker sends them.
type pubsubNotifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

// NewPubSubNotifier connects to projectID and checks that topicID exists.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string, logger *slog.Logger) (service.Notifier, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath}); err != nil {
		client.Close()

		return nil, errors.Wrapf(err, "failed to get topic %s", topicID)
	}

	logger.Info("Pub/Sub mail queue initialized",
		slog.String("project_id", projectID),
		slog.String("topic_id", topicID),
	)

	return &pubsubNotifier{
		client:    client,
		publisher: client.Publisher(topicID),
		logger:    logger,
	}, nil
}

// Send returns once Pub/Sub has accepted the job, not when the email is delivered.
func (n *pubsubNotifier) Send(ctx context.Context, to, subject, body string) error {
	job := newMailJob(ctx, to, subject, body)

	data, err := json.Marshal(job)
	if err != nil {
		return errors.WithStack(err)
	}

	result := n.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: jobAttributes(job),
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to publish mail job")
	}

	n.logger.Info("[PubSubNotifier] Mail job queued",
		slog.String("job_id", job.JobID),
		slog.String("server_id", serverID),
		slog.String("to", util.MaskEmail(to)),
	)

	return nil
}

func (n *pubsubNotifier) Close() error {
	if n.publisher != nil {
		n.publisher.Stop()
	}
	if n.client != nil {
		return errors.WithStack(n.client.Close())
	}

	return nil
}

func newMailJob(ctx context.Context, to, subject, body string) *service.MailJob {
	return &service.MailJob{
		RequestID: deliverycontext.GetRequestIDFromContext(ctx),
		JobID:     uuid.NewString(),
		To:        to,
		Subject:   subject,
		Body:      body,
	}
}

func jobAttributes(job *service.MailJob) map[string]string {
	attributes := map[string]string{"job_id": job.JobID}
	if job.RequestID != "" {
		attributes["request_id"] = job.RequestID
	}

	return attributes
}
