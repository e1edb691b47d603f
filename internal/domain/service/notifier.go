package service

import "context"

// Notifier delivers plain-text email. Failures are reported to the caller, who
// decides whether they are fatal.
type Notifier interface {
	// Send delivers one message to a single recipient.
	Send(ctx context.Context, to, subject, body string) error

	// Close releases any resources held by the notifier
	Close() error
}

// MailJob is the queued form of a Notifier.Send call, published by the
// pubsub/local providers and consumed by the mail worker.
type MailJob struct {
	RequestID string `json:"request_id,omitempty"` // For distributed tracing
	JobID     string `json:"job_id" validate:"required"`
	To        string `json:"to" validate:"required,email"`
	Subject   string `json:"subject" validate:"required"`
	Body      string `json:"body"`
}

// PushEnvelope is the body Google Pub/Sub POSTs to a push subscription. Data holds
// the base64 encoded JSON MailJob. The local notifier produces the same shape.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
