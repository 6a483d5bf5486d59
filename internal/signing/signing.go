// Package signing implements the public signature workflow: submission under
// the per-address throttle, confirmation email delivery, one-shot code
// redemption, and confirmation resends.
package signing

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/petition-platform/petition-platform/internal/config"
	"github.com/petition-platform/petition-platform/internal/db/models"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/forms"
	"github.com/petition-platform/petition-platform/internal/mail"
	"github.com/petition-platform/petition-platform/internal/safego"
	"github.com/petition-platform/petition-platform/internal/telemetry"
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields forms.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signature submission: %d field(s)", len(e.Fields))
}

// SignatureStore is the persistence surface the workflow needs.
type SignatureStore interface {
	CreateThrottled(ctx context.Context, sig *models.Signature, threshold int, window time.Duration) error
	ConfirmByCode(ctx context.Context, code string) (*models.Signature, error)
	GetByID(ctx context.Context, id string) (*models.Signature, error)
}

// Workflow coordinates signature creation and confirmation.
type Workflow struct {
	store      SignatureStore
	smtp       *config.SMTPConfig
	newsletter *mail.NewsletterSubscriber
	mailOn     bool
	publicURL  string
	threshold  int
	window     time.Duration
	logger     *slog.Logger
}

// NewWorkflow wires the signature workflow from configuration.
func NewWorkflow(store SignatureStore, cfg *config.Config, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:      store,
		smtp:       &cfg.Mail.SMTP,
		newsletter: mail.NewNewsletterSubscriber(),
		mailOn:     cfg.Mail.Enabled,
		publicURL:  cfg.Server.GetPublicURL(),
		threshold:  cfg.Signatures.Throttle,
		window:     cfg.Signatures.Window,
		logger:     logger,
	}
}

// HashAddress returns the salted SHA-256 hash of an originating address. The
// salt is per petition, so the same address yields different hashes on
// different petitions and the raw address is never stored.
func HashAddress(salt, addr string) string {
	sum := sha256.Sum256([]byte(salt + addr))
	return hex.EncodeToString(sum[:])
}

// NewSalt returns a fresh random petition salt.
func NewSalt() (string, error) {
	return randomHex(16)
}

// newConfirmationCode returns an unguessable one-time confirmation code.
func newConfirmationCode() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SubmitRequest is one signer's submission.
type SubmitRequest struct {
	FirstName               string `json:"first_name"`
	LastName                string `json:"last_name"`
	Phone                   string `json:"phone"`
	Email                   string `json:"email"`
	SubscribedToMailinglist bool   `json:"subscribed_to_mailinglist"`

	// RemoteAddr is the originating address, filled in by the handler, not
	// the client.
	RemoteAddr string `json:"-"`
}

func (r *SubmitRequest) validate() forms.FieldErrors {
	errs := forms.FieldErrors{}
	if r.FirstName == "" {
		errs["first_name"] = "first name is required"
	}
	if r.LastName == "" {
		errs["last_name"] = "last name is required"
	}
	if r.Email == "" {
		errs["email"] = "email is required"
	} else if !forms.ValidEmail(r.Email) {
		errs["email"] = "invalid email address"
	}
	return errs
}

// Submit validates and stores a new signature, then hands confirmation email
// delivery and any newsletter subscription to background goroutines. The
// throttle check and the insert run in one transaction;
// repositories.ErrThrottleExceeded passes through to the caller.
func (w *Workflow) Submit(ctx context.Context, p *models.Petition, req *SubmitRequest) (*models.Signature, error) {
	if errs := req.validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	code, err := newConfirmationCode()
	if err != nil {
		return nil, err
	}

	sig := &models.Signature{
		PetitionID:              p.ID,
		FirstName:               req.FirstName,
		LastName:                req.LastName,
		Phone:                   req.Phone,
		Email:                   req.Email,
		SubscribedToMailinglist: req.SubscribedToMailinglist,
		ConfirmationCode:        code,
		IPHash:                  HashAddress(p.Salt, req.RemoteAddr),
	}

	if err := w.store.CreateThrottled(ctx, sig, w.threshold, w.window); err != nil {
		if err == repositories.ErrThrottleExceeded {
			telemetry.SignaturesThrottledTotal.Inc()
		}
		return nil, err
	}
	telemetry.SignaturesCreatedTotal.Inc()

	w.deliverConfirmation(p, sig)
	if sig.SubscribedToMailinglist && p.HasNewsletter {
		w.subscribeNewsletter(p, sig.Email)
	}

	return sig, nil
}

// deliverConfirmation sends the confirmation link in the background. Failures
// are logged and counted, never surfaced to the signer.
func (w *Workflow) deliverConfirmation(p *models.Petition, sig *models.Signature) {
	if !w.mailOn {
		return
	}

	sender, from := mail.SenderForPetition(w.smtp, p)
	msg := &mail.Message{
		From:    from,
		To:      []string{sig.Email},
		Subject: fmt.Sprintf("Confirm your signature to %s", p.Title),
		Body: fmt.Sprintf(
			"Hello %s,\r\n\r\n"+
				"please confirm your signature to the petition %q by opening this link:\r\n\r\n"+
				"  %s/confirm/%s\r\n\r\n"+
				"If you did not sign this petition, you can ignore this message.\r\n",
			sig.FirstName, p.Title, w.publicURL, sig.ConfirmationCode),
	}

	logger := w.logger.With("petition_id", p.ID, "signature_id", sig.ID)
	safego.Go(func() {
		if err := sender.Send(msg); err != nil {
			telemetry.ConfirmationEmailsTotal.WithLabelValues("error").Inc()
			logger.Error("failed to send confirmation email", "error", err)
			return
		}
		telemetry.ConfirmationEmailsTotal.WithLabelValues("sent").Inc()
		logger.Info("confirmation email sent")
	})
}

// subscribeNewsletter enrolls the signer in the background, best effort.
func (w *Workflow) subscribeNewsletter(p *models.Petition, email string) {
	logger := w.logger.With("petition_id", p.ID)
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.newsletter.Subscribe(ctx, p, email); err != nil {
			logger.Error("failed to subscribe signer to newsletter", "error", err)
		}
	})
}

// Confirm redeems a confirmation code. An unknown code returns (nil, nil); a
// second redemption returns repositories.ErrAlreadyConfirmed.
func (w *Workflow) Confirm(ctx context.Context, code string) (*models.Signature, error) {
	sig, err := w.store.ConfirmByCode(ctx, code)
	if err != nil {
		return sig, err
	}
	if sig != nil {
		telemetry.SignaturesConfirmedTotal.Inc()
	}
	return sig, nil
}

// ResendConfirmation sends the confirmation link of an existing unconfirmed
// signature again, synchronously so the caller learns about delivery
// problems. Returns (nil, nil) when the signature does not exist or belongs
// to a different petition.
func (w *Workflow) ResendConfirmation(ctx context.Context, p *models.Petition, signatureID string) (*models.Signature, error) {
	sig, err := w.store.GetByID(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	if sig == nil || sig.PetitionID != p.ID {
		return nil, nil
	}
	if sig.Confirmed {
		return sig, repositories.ErrAlreadyConfirmed
	}
	if !w.mailOn {
		return sig, nil
	}

	sender, from := mail.SenderForPetition(w.smtp, p)
	msg := &mail.Message{
		From:    from,
		To:      []string{sig.Email},
		Subject: fmt.Sprintf("Confirm your signature to %s", p.Title),
		Body: fmt.Sprintf(
			"Hello %s,\r\n\r\n"+
				"please confirm your signature to the petition %q by opening this link:\r\n\r\n"+
				"  %s/confirm/%s\r\n",
			sig.FirstName, p.Title, w.publicURL, sig.ConfirmationCode),
	}
	if err := sender.Send(msg); err != nil {
		telemetry.ConfirmationEmailsTotal.WithLabelValues("error").Inc()
		return sig, fmt.Errorf("failed to resend confirmation email: %w", err)
	}
	telemetry.ConfirmationEmailsTotal.WithLabelValues("sent").Inc()
	return sig, nil
}
