package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/assetdesk/internal/report"
	"gopkg.in/gomail.v2"
)

// sender is the part of *gomail.Dialer the mailer needs.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
}

// Mailer delivers rendered reports over SMTP.
type Mailer struct {
	dialer sender
	from   string
}

func NewMailer(cfg EmailConfig) *Mailer {
	username := cfg.Username
	if username == "" {
		username = cfg.From
		if addr, err := mail.ParseAddress(cfg.From); err == nil {
			username = addr.Address
		}
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, username, cfg.Password),
		from:   cfg.From,
	}
}

// Deliver sends r to recipients in a single message. ctx is only checked before the
// SMTP session opens; a send that has started runs to completion. Transport errors
// are returned unwrapped so callers can record the server's own message.
func (m *Mailer) Deliver(ctx context.Context, recipients []string, r *report.Report) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", r.Subject)
	msg.SetDateHeader("Date", r.GeneratedAt)
	msg.SetBody("text/html", r.HTML)

	return m.dialer.DialAndSend(msg)
}
