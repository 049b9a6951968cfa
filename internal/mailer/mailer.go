// Package mailer dispatches notification emails. The pipeline depends only
// on the Sender interface; SMTP specifics (TLS mode, auth) stay here.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/liberr"
	"shelfsync/internal/render"
)

// Message is one outbound notification.
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Sender dispatches a message. Implementations wrap transport errors as
// liberr delivery failures so the pipeline can treat them as non-fatal.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Compose formats the notification for one randomly selected entry. Pure
// function; the subject carries the entry title, the body its metadata and
// links-or-absence.
func Compose(entry catalog.ResolvedEntry, cfg config.MailConfig) Message {
	subject := "Random pick: " + entry.Title
	if entry.Title == "" {
		subject = "Random pick"
	}
	if cfg.SubjectPrefix != "" {
		subject = cfg.SubjectPrefix + " " + subject
	}

	var body strings.Builder
	body.WriteString(render.EntryText(entry))
	if !entry.HasLink() && len(entry.Links) == 0 {
		body.WriteString("\nNo file is stored for this entry.\n")
	}
	body.WriteString("\nThis email was sent automatically by shelfsync.\n")

	return Message{Subject: subject, Body: body.String(), Recipients: cfg.Recipients}
}

// SMTPSender sends mail over SMTP using the configured credentials.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender creates a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return liberr.New(liberr.CategoryConfig, liberr.SeverityError, "no recipients configured")
	}

	m := mail.NewMsg()
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}
	if err := m.From(from); err != nil {
		return liberr.Wrap(err, liberr.CategoryConfig, liberr.SeverityError, "invalid sender address")
	}
	if err := m.To(msg.Recipients...); err != nil {
		return liberr.Wrap(err, liberr.CategoryConfig, liberr.SeverityError, "invalid recipient address")
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return liberr.Wrap(err, liberr.CategoryConfig, liberr.SeverityError, "create smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return liberr.DeliveryFailed(strings.Join(msg.Recipients, ","), fmt.Errorf("smtp send: %w", err))
	}
	return nil
}
