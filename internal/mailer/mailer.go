// Package mailer delivers rendered emails through the configured transport.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/eduexamportal/mailroom/internal/config"
	"github.com/eduexamportal/mailroom/internal/metrics"
)

// Message is a finished email addressed to a single recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer sends messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	// Name identifies the transport in logs and metrics.
	Name() string
}

// Sender is the From identity stamped on every message.
type Sender struct {
	Address string
	Name    string
}

// String formats the sender as an RFC 5322 address.
func (s Sender) String() string {
	return (&mail.Address{Name: s.Name, Address: s.Address}).String()
}

// New builds the mailer selected by cfg.Driver.
func New(cfg config.MailConfig) (Mailer, error) {
	from := Sender{Address: cfg.FromAddress, Name: cfg.FromName}

	var m Mailer
	switch cfg.Driver {
	case "", "log":
		m = NewLogMailer(slog.Default(), from)
	case "smtp":
		m = NewSMTPMailer(cfg.SMTP, from)
	case "sendgrid":
		m = NewSendGridMailer(cfg.SendGridAPIKey, from)
	default:
		return nil, fmt.Errorf("unsupported mail driver: %s", cfg.Driver)
	}

	slog.Info("Mail transport configured", "driver", m.Name(), "from", from.Address)
	return Instrument(m), nil
}

// ValidateAddress checks that addr is a single bare email address.
func ValidateAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid email address %q: %w", addr, err)
	}
	if parsed.Address != addr {
		return fmt.Errorf("invalid email address %q: expected a bare address", addr)
	}
	return nil
}

type instrumented struct {
	Mailer
}

// Instrument wraps m so every send is timed and counted.
func Instrument(m Mailer) Mailer {
	if _, ok := m.(instrumented); ok {
		return m
	}
	return instrumented{m}
}

func (i instrumented) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	err := i.Mailer.Send(ctx, msg)
	metrics.MailSendDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.MailSentTotal.WithLabelValues(i.Name(), outcome).Inc()
	return err
}
