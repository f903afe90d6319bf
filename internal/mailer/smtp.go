package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/eduexamportal/mailroom/internal/config"
)

// SMTPMailer delivers through an SMTP relay. Port 465 uses implicit TLS;
// other ports use STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	from    Sender
	timeout time.Duration
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig, from Sender) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, from: from, timeout: 30 * time.Second}
}

func (m *SMTPMailer) Name() string { return "smtp" }

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	raw, err := buildMessage(m.from, msg, time.Now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.timeout}

	var conn net.Conn
	if m.cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if m.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

// buildMessage renders the headers and HTML body. Header order is fixed so
// messages are reproducible.
func buildMessage(from Sender, msg Message, now time.Time) ([]byte, error) {
	if err := ValidateAddress(msg.To); err != nil {
		return nil, err
	}

	to := (&mail.Address{Name: msg.ToName, Address: msg.To}).String()

	var buf bytes.Buffer
	headers := [][2]string{
		{"From", from.String()},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="UTF-8"`},
		{"Content-Transfer-Encoding", "8bit"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	return buf.Bytes(), nil
}
