package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   Sender
}

// NewSendGridMailer creates a SendGridMailer.
func NewSendGridMailer(apiKey string, from Sender) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (m *SendGridMailer) Name() string { return "sendgrid" }

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := ValidateAddress(msg.To); err != nil {
		return err
	}

	message := newSendGridMessage(m.from, msg)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	return checkSendGridResponse(resp)
}

func newSendGridMessage(from Sender, msg Message) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(from.Name, from.Address))
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)

	// HTML only: SendGrid rejects an empty text/plain part.
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

func checkSendGridResponse(resp *rest.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
}
