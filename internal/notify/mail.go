package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPSender delivers report emails to the moderation recipient list.
type SMTPSender struct {
	client *mail.Client
	from   string
	to     []string
}

// NewSMTPSender creates an SMTP-backed mail sender. Credentials are optional;
// without a username the connection is unauthenticated (local relay setups).
func NewSMTPSender(host string, port int, username, password, from string, to []string) (*SMTPSender, error) {
	opts := []mail.Option{mail.WithPort(port)}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &SMTPSender{client: client, from: from, to: to}, nil
}

// Send delivers a multipart (plain + HTML) message to all recipients.
func (s *SMTPSender) Send(ctx context.Context, subject, plain, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(s.to...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, plain)
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
