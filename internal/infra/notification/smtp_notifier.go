package notification

import (
	"context"
	"log/slog"

	"stockdash/config"
	"stockdash/internal/domain/service"
	"stockdash/internal/util"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

const (
	smtpTLSMandatory     = "mandatory"
	smtpTLSOpportunistic = "opportunistic"
	smtpTLSSSL           = "ssl"
	smtpTLSNone          = "none"
)

// smtpNotifier sends plain-text mail through one SMTP relay. A connection is
// dialled per message.
type smtpNotifier struct {
	cfg    config.SMTPConfig
	opts   []mail.Option
	logger *slog.Logger
}

// NewSMTPNotifier validates cfg and returns a notifier that sends through it.
func NewSMTPNotifier(cfg config.SMTPConfig, logger *slog.Logger) (service.Notifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required for smtp provider")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required for smtp provider")
	}

	opts, err := smtpOptions(cfg)
	if err != nil {
		return nil, err
	}

	// Fail fast on a malformed sender rather than on the first signup.
	if err := mail.NewMsg().From(cfg.From); err != nil {
		return nil, errors.Wrap(err, "invalid smtp from address")
	}

	return &smtpNotifier{cfg: cfg, opts: opts, logger: logger}, nil
}

func smtpOptions(cfg config.SMTPConfig) ([]mail.Option, error) {
	var opts []mail.Option
	if cfg.Port != 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	switch cfg.TLS {
	case "", smtpTLSMandatory:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case smtpTLSOpportunistic:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case smtpTLSSSL:
		opts = append(opts, mail.WithSSL())
	case smtpTLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		return nil, errors.Errorf("unknown smtp tls mode: %s", cfg.TLS)
	}

	return opts, nil
}

func (n *smtpNotifier) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return errors.Wrap(err, "invalid sender")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, "invalid recipient")
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(n.cfg.Host, n.opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to send email")
	}

	n.logger.Info("[SMTPNotifier] Email sent",
		slog.String("to", util.MaskEmail(to)),
		slog.String("subject", subject),
	)

	return nil
}

func (n *smtpNotifier) Close() error {
	return nil
}
