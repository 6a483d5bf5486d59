// Package mail delivers outbound email: signature confirmation links,
// resends, and newsletter subscriptions. Petitions may carry their own SMTP
// settings which override the platform defaults for their mail.
package mail

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/petition-platform/petition-platform/internal/config"
	"github.com/petition-platform/petition-platform/internal/db/models"
)

// Message is one outbound plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender delivers messages over SMTP.
type Sender interface {
	Send(msg *Message) error
}

// SMTPSender is the production Sender. The zero value is not usable; build
// one with NewSender or SenderForPetition.
type SMTPSender struct {
	host        string
	port        int
	username    string
	password    string
	defaultFrom string
	useTLS      bool
}

// NewSender creates a sender from the platform SMTP configuration.
func NewSender(cfg *config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		password:    cfg.Password,
		defaultFrom: cfg.From,
		useTLS:      cfg.UseTLS,
	}
}

// SenderForPetition returns the sender to use for a petition's confirmation
// mail: the petition's own SMTP settings when it carries them, the platform
// default otherwise. The second return value is the From address to use.
func SenderForPetition(cfg *config.SMTPConfig, p *models.Petition) (Sender, string) {
	if !p.UseCustomEmailSettings || p.ConfirmationEmailSMTPHost == "" {
		return NewSender(cfg), cfg.From
	}
	return &SMTPSender{
		host:        p.ConfirmationEmailSMTPHost,
		port:        p.ConfirmationEmailSMTPPort,
		username:    p.ConfirmationEmailSMTPUser,
		password:    p.ConfirmationEmailSMTPPassword,
		defaultFrom: p.ConfirmationEmailSender,
		useTLS:      p.ConfirmationEmailSMTPTLS,
	}, p.ConfirmationEmailSender
}

// Send composes and delivers a plain-text email via SMTP.
func (s *SMTPSender) Send(msg *Message) error {
	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		from, strings.Join(msg.To, ", "), msg.Subject,
	)
	payload := []byte(headers + msg.Body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		return sendMailTLS(addr, s.host, auth, from, msg.To, payload)
	}
	return smtp.SendMail(addr, auth, from, msg.To, payload)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a
// message. For port 587 STARTTLS, smtp.SendMail handles the upgrade on its
// own; when the implicit TLS dial fails we fall back to that path so a
// misconfigured use_tls flag still delivers.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return smtp.SendMail(addr, auth, from, to, msg)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
