package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"stockdash/config"
	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/constants"
	"stockdash/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestLocalHTTPNotifier_Send(t *testing.T) {
	var (
		envelope  service.PushEnvelope
		requestID string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get(deliverycontext.HeaderXRequestID)
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := deliverycontext.WithRequestID(context.Background(), "req-1")
	notifier := NewLocalHTTPNotifier(server.URL, discardLogger())
	require.NoError(t, notifier.Send(ctx, "a@x.com", "Registration Successful", "Dear alice"))

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "req-1", envelope.Message.Attributes["request_id"])

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	require.NoError(t, err)
	var job service.MailJob
	require.NoError(t, json.Unmarshal(data, &job))
	assert.Equal(t, "a@x.com", job.To)
	assert.Equal(t, "Registration Successful", job.Subject)
	assert.Equal(t, "Dear alice", job.Body)
	assert.Equal(t, envelope.Message.MessageID, job.JobID)
	assert.NotEmpty(t, job.JobID)
}

func TestLocalHTTPNotifier_WorkerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewLocalHTTPNotifier(server.URL, discardLogger()).Send(context.Background(), "a@x.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier(discardLogger())
	assert.NoError(t, notifier.Send(context.Background(), "a@x.com", "subject", "body"))
	assert.NoError(t, notifier.Close())
}

func TestNewSMTPNotifier(t *testing.T) {
	valid := config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com", TLS: "mandatory"}

	_, err := NewSMTPNotifier(valid, discardLogger())
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(*config.SMTPConfig)
	}{
		{name: "missing host", modify: func(c *config.SMTPConfig) { c.Host = "" }},
		{name: "missing from", modify: func(c *config.SMTPConfig) { c.From = "" }},
		{name: "invalid from", modify: func(c *config.SMTPConfig) { c.From = "not an address" }},
		{name: "unknown tls mode", modify: func(c *config.SMTPConfig) { c.TLS = "starttls-ish" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			_, err := NewSMTPNotifier(cfg, discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestSMTPOptions(t *testing.T) {
	for _, mode := range []string{"", "mandatory", "opportunistic", "ssl", "none"} {
		opts, err := smtpOptions(config.SMTPConfig{Host: "h", TLS: mode, Username: "u", Password: "p"})
		require.NoError(t, err, mode)
		assert.Len(t, opts, 4, mode)
	}
}

func TestNew(t *testing.T) {
	newParams := func(cfg *config.NotifierConfig) Params {
		return Params{
			Lc:     fxtest.NewLifecycle(t),
			Ctx:    context.Background(),
			Config: &config.Config{Notifier: cfg},
			Logger: discardLogger(),
		}
	}

	tests := []struct {
		name    string
		cfg     *config.NotifierConfig
		wantErr bool
	}{
		{name: "not configured", cfg: nil},
		{name: "log", cfg: &config.NotifierConfig{Provider: constants.NotifierProviderLog}},
		{name: "local", cfg: &config.NotifierConfig{Provider: constants.NotifierProviderLocal, LocalEndpoint: "http://localhost:8081/push"}},
		{name: "local without endpoint", cfg: &config.NotifierConfig{Provider: constants.NotifierProviderLocal}, wantErr: true},
		{name: "smtp without host", cfg: &config.NotifierConfig{Provider: constants.NotifierProviderSMTP}, wantErr: true},
		{name: "pubsub without project", cfg: &config.NotifierConfig{Provider: constants.NotifierProviderPubSub, TopicID: "mail"}, wantErr: true},
		{name: "pubsub without topic", cfg: &config.NotifierConfig{Provider: constants.NotifierProviderPubSub, ProjectID: "p"}, wantErr: true},
		{name: "unknown", cfg: &config.NotifierConfig{Provider: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := newParams(tt.cfg)
			notifier, err := New(params)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.NotNil(t, notifier)

			lc := params.Lc.(*fxtest.Lifecycle)
			lc.RequireStart()
			lc.RequireStop()
		})
	}
}

func TestNewMailSender(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	sender, err := NewMailSender(Params{Lc: lc, Ctx: context.Background(), Config: &config.Config{}, Logger: discardLogger()})
	require.NoError(t, err)
	assert.IsType(t, &logNotifier{}, sender)

	cfg := &config.Config{Notifier: &config.NotifierConfig{
		SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"},
	}}
	sender, err = NewMailSender(Params{Lc: lc, Ctx: context.Background(), Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	assert.IsType(t, &smtpNotifier{}, sender)

	lc.RequireStart()
	lc.RequireStop()
}
