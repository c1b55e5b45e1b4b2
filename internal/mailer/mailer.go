package mailer

import (
	"fmt"

	mail "github.com/wneessen/go-mail"

	"github.com/local/docjanitor/internal/config"
)

// Mailer submits plain-text messages over SMTP.
type Mailer struct {
	cfg config.MailConfig
}

// New returns a mailer, or nil when alert email is disabled so callers
// can pass it straight into the disk monitor.
func New(cfg config.MailConfig) *Mailer {
	if !cfg.Enabled {
		return nil
	}
	return &Mailer{cfg: cfg}
}

// Send delivers one message to every configured recipient.
func (m *Mailer) Send(subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Server, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
