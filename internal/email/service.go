package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/carelink-api/config"
)

// Attachment is a file on local disk. Inline attachments are referenced
// from the HTML body as cid:{Name}.
type Attachment struct {
	Path   string
	Name   string
	Inline bool
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPService delivers mail through gomail.
type SMTPService struct {
	from   string
	dialer dialer
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPService{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	for _, a := range msg.Attachments {
		rename := gomail.Rename(a.Name)
		if a.Inline {
			m.Embed(a.Path, rename)
		} else {
			m.Attach(a.Path, rename)
		}
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}
