package report

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/model"
)

// EmailSender delivers the plain-text report over SMTP.
type EmailSender struct {
	cfg config.EmailConfig
}

// NewEmailSender creates an EmailSender from the email configuration.
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

// Send renders the plain report and mails it to the configured recipients.
func (e *EmailSender) Send(site *model.SiteModel, opts Options) error {
	var body bytes.Buffer
	if _, err := NewPlainWriter(&body, opts).Write(site); err != nil {
		return fmt.Errorf("render email report: %w", err)
	}

	subject := e.cfg.Subject
	if subject == "" {
		subject = fmt.Sprintf("Link validation: %d url(s), %d error(s)", site.Len(), site.ErrorCount())
	}
	from := e.cfg.FromAddress
	if from == "" {
		from = "linkvalidator@localhost"
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.cfg.Addresses, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(body.Bytes())

	port := e.cfg.SMTPPort
	if port == 0 {
		port = 25
	}
	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(port))

	return e.deliver(addr, from, msg.Bytes())
}

// deliver speaks SMTP by hand so STARTTLS and optional authentication
// compose the way the flags describe.
func (e *EmailSender) deliver(addr, from string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	defer client.Close() //nolint:errcheck // Quit below is the real close

	if e.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: e.cfg.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if e.cfg.Username != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range e.cfg.Addresses {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish: %w", err)
	}

	return client.Quit()
}
