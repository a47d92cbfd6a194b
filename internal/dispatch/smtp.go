package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/formrelay/formrelay/internal/config"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPSender delivers messages over SMTP submission. The underlying client
// maintains its own connection handling and is safe for concurrent use;
// each Send dials, submits, and quits.
type SMTPSender struct {
	client *mail.Client
}

// NewSMTPSender builds an SMTP sender from configuration. The encryption
// mode is taken from config when set, otherwise inferred from the port:
// 465 means implicit TLS, 587 means STARTTLS, anything else goes
// unencrypted. Certificate verification is on unless insecure_skip_verify
// is explicitly configured.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}

	switch resolveEncryption(cfg) {
	case "tls":
		opts = append(opts, mail.WithSSL())
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if cfg.InsecureSkipVerify {
		opts = append(opts, mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec // explicit opt-in
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPSender{client: client}, nil
}

func resolveEncryption(cfg config.SMTPConfig) string {
	if cfg.Encryption != "" {
		return cfg.Encryption
	}
	switch cfg.Port {
	case 465:
		return "tls"
	case 587:
		return "starttls"
	default:
		return "none"
	}
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)

	for _, att := range msg.Attachments {
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Content),
			mail.WithFileContentType(mail.ContentType(att.ContentType))); err != nil {
			return fmt.Errorf("failed to attach %q: %w", att.Filename, err)
		}
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", msg.To, err)
	}
	return nil
}
