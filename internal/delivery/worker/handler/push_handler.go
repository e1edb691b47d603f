package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"stockdash/config"
	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/constants"
	"stockdash/internal/domain/service"
	"stockdash/internal/infra/validation"
	"stockdash/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// retryableError wraps an error to indicate it should trigger a Pub/Sub retry
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// newRetryableError wraps an error as retryable
func newRetryableError(err error) error {
	return &retryableError{err: err}
}

// isRetryableError checks if an error is retryable
func isRetryableError(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// TokenVerifier checks the OIDC token Pub/Sub attaches to push requests.
type TokenVerifier func(req *http.Request) error

// PushHandler delivers mail jobs pushed by Pub/Sub or the local notifier
type PushHandler struct {
	verifyPushAuth bool
	verifyToken    TokenVerifier
	sender         service.Notifier
	validate       *validator.Validate
	logger         *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Sender service.Notifier

	Verifier TokenVerifier `optional:"true"`
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	// Only real Pub/Sub pushes carry a Google-signed token.
	verifyPushAuth := params.Config.Notifier != nil &&
		params.Config.Notifier.Provider == constants.NotifierProviderPubSub &&
		params.Config.Env.Env != constants.EnvDevelop

	verifier := params.Verifier
	if verifier == nil {
		verifier = verifyPubSubToken
	}

	return &PushHandler{
		verifyPushAuth: verifyPushAuth,
		verifyToken:    verifier,
		sender:         params.Sender,
		validate:       validation.New(),
		logger:         params.Logger,
	}
}

// HandlePush handles incoming Pub/Sub push messages. 503 asks Pub/Sub to redeliver;
// malformed jobs are acknowledged so they are not retried forever.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg service.PushEnvelope
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	var job service.MailJob
	if err := json.Unmarshal(data, &job); err != nil {
		h.logger.Error("[Worker] Failed to parse mail job", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	requestID := h.extractRequestID(ctx, &pushMsg, &job)
	reqLogger := h.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	if err := h.validate.Struct(&job); err != nil {
		reqLogger.Error("[Worker] Dropping invalid mail job",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.String("details", validation.Details(err)),
		)

		return c.NoContent(http.StatusOK)
	}

	reqLogger.Info("[Worker] Processing mail job",
		slog.String("job_id", job.JobID),
		slog.String("to", util.MaskEmail(job.To)),
		slog.String("subject", job.Subject),
	)

	if err := h.deliver(ctx, &job); err != nil {
		reqLogger.Error("[Worker] Failed to deliver mail job",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
			slog.Bool("retryable", isRetryableError(err)),
		)
		if isRetryableError(err) {
			return c.NoContent(http.StatusServiceUnavailable)
		}

		return c.NoContent(http.StatusOK)
	}

	reqLogger.Info("[Worker] Mail job delivered", slog.String("job_id", job.JobID))

	return c.NoContent(http.StatusOK)
}

// deliver sends the job. Any send failure is treated as transient; the job was
// validated beforehand.
func (h *PushHandler) deliver(ctx context.Context, job *service.MailJob) error {
	if err := h.sender.Send(ctx, job.To, job.Subject, job.Body); err != nil {
		return newRetryableError(err)
	}

	return nil
}

// extractRequestID extracts request_id from message attributes, the job, or the
// request context, generating one as a last resort.
func (h *PushHandler) extractRequestID(ctx context.Context, pushMsg *service.PushEnvelope, job *service.MailJob) string {
	if requestID, ok := pushMsg.Message.Attributes["request_id"]; ok && requestID != "" {
		return requestID
	}

	if job.RequestID != "" {
		return job.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.NewString()
}

func verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// The audience is the URL of this endpoint.
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
