package delivery

import (
	"context"

	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/store"
	"ai-digest-bot/pkg/utils"

	"gopkg.in/gomail.v2"
)

// MailSender is the part of *gomail.Dialer the sink needs.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailSink delivers a digest as a plain-text email to one recipient.
type MailSink struct {
	sender    MailSender
	from      string
	to        string
	subject   string
	charLimit int
}

func NewMailSink(sender MailSender, from, to, subject string, charLimit int) *MailSink {
	return &MailSink{sender: sender, from: from, to: to, subject: subject, charLimit: charLimit}
}

func NewSMTPSender(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

func (s *MailSink) Name() string {
	return "mail"
}

func (s *MailSink) Deliver(ctx context.Context, payload store.DeliveryPayload) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/plain", utils.Truncate(payload.Content, s.charLimit))

	// gomail has no context support; the send keeps running past ctx but
	// the run stops waiting for it.
	done := make(chan error, 1)
	go func() {
		done <- s.sender.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &apperror.DeliveryError{Err: err}
		}
		return nil
	case <-ctx.Done():
		return &apperror.DeliveryError{Err: ctx.Err()}
	}
}
