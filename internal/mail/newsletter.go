package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// NewsletterSubscriber enrolls a signer's address in a petition's newsletter
// using whichever method the petition configures: an HTTP POST to a list
// manager endpoint, or an email to a list manager address.
type NewsletterSubscriber struct {
	client *http.Client
}

// NewNewsletterSubscriber creates a subscriber with a bounded HTTP client.
func NewNewsletterSubscriber() *NewsletterSubscriber {
	return &NewsletterSubscriber{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Subscribe enrolls email per the petition's newsletter settings. Callers
// invoke this after signature creation on a best-effort basis; a failure
// never rolls back the signature.
func (n *NewsletterSubscriber) Subscribe(ctx context.Context, p *models.Petition, email string) error {
	if !p.HasNewsletter {
		return nil
	}

	switch p.NewsletterSubscribeMethod {
	case models.NewsletterMethodHTTP:
		return n.subscribeHTTP(ctx, p, email)
	case models.NewsletterMethodMail:
		return subscribeMail(p, email)
	}
	return fmt.Errorf("unknown newsletter subscription method %q", p.NewsletterSubscribeMethod)
}

// subscribeHTTP POSTs a form to the configured endpoint. The static extra
// fields come from the petition's http_data JSON object; the signer's address
// goes into the configured mailfield.
func (n *NewsletterSubscriber) subscribeHTTP(ctx context.Context, p *models.Petition, email string) error {
	form := url.Values{}
	if p.NewsletterSubscribeHTTPData != "" {
		extra := map[string]string{}
		if err := json.Unmarshal([]byte(p.NewsletterSubscribeHTTPData), &extra); err != nil {
			return fmt.Errorf("invalid newsletter http_data: %w", err)
		}
		for k, v := range extra {
			form.Set(k, v)
		}
	}
	mailfield := p.NewsletterSubscribeHTTPMailfield
	if mailfield == "" {
		mailfield = "email"
	}
	form.Set(mailfield, email)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.NewsletterSubscribeHTTPURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build subscription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to subscribe via http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("newsletter endpoint returned %s", resp.Status)
	}
	return nil
}

// subscribeMail sends a subscription request email to the list manager using
// the petition's newsletter SMTP settings.
func subscribeMail(p *models.Petition, email string) error {
	sender := &SMTPSender{
		host:        p.NewsletterSubscribeMailSMTPHost,
		port:        p.NewsletterSubscribeMailSMTPPort,
		username:    p.NewsletterSubscribeMailSMTPUser,
		password:    p.NewsletterSubscribeMailSMTPPass,
		defaultFrom: p.NewsletterSubscribeMailFrom,
		useTLS:      p.NewsletterSubscribeMailSMTPTLS,
	}

	subject := p.NewsletterSubscribeMailSubject
	if subject == "" {
		subject = "subscribe"
	}

	return sender.Send(&Message{
		From:    p.NewsletterSubscribeMailFrom,
		To:      []string{p.NewsletterSubscribeMailTo},
		Subject: subject,
		Body:    email,
	})
}
