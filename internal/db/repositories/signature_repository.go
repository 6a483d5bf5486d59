// signature_repository.go implements SignatureRepository, providing database
// queries for signature creation under the per-address throttle, one-shot
// confirmation, and the owner-facing signature listing.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// SignatureRepository handles database operations for signatures
type SignatureRepository struct {
	db *sql.DB
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *sql.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

const signatureColumns = `id, petition_id, first_name, last_name, phone, email,
	subscribed_to_mailinglist, confirmed, confirmation_code, ip_hash, created_at`

func scanSignature(scan func(...any) error) (*models.Signature, error) {
	s := &models.Signature{}
	err := scan(
		&s.ID,
		&s.PetitionID,
		&s.FirstName,
		&s.LastName,
		&s.Phone,
		&s.Email,
		&s.SubscribedToMailinglist,
		&s.Confirmed,
		&s.ConfirmationCode,
		&s.IPHash,
		&s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}
	return s, nil
}

// CreateThrottled counts recent signatures from the same hashed address and
// inserts the new one in a single transaction, so two concurrent submissions
// cannot both slip under the limit. The count is of signatures strictly more
// recent than the window start, and the limit trips only when the prior count
// exceeds the threshold.
func (r *SignatureRepository) CreateThrottled(ctx context.Context, sig *models.Signature, threshold int, window time.Duration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var recent int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM signatures
		WHERE petition_id = $1 AND ip_hash = $2 AND created_at > $3
	`, sig.PetitionID, sig.IPHash, time.Now().Add(-window)).Scan(&recent)
	if err != nil {
		return fmt.Errorf("failed to count recent signatures: %w", err)
	}
	if recent > threshold {
		return ErrThrottleExceeded
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO signatures (petition_id, first_name, last_name, phone, email,
			subscribed_to_mailinglist, confirmation_code, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		sig.PetitionID,
		sig.FirstName,
		sig.LastName,
		sig.Phone,
		sig.Email,
		sig.SubscribedToMailinglist,
		sig.ConfirmationCode,
		sig.IPHash,
	).Scan(&sig.ID, &sig.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create signature: %w", err)
	}

	return tx.Commit()
}

// ConfirmByCode redeems a confirmation code. The row is locked before the
// flag is read, making redemption one-shot under concurrency: the first
// caller confirms, any later caller gets ErrAlreadyConfirmed. An unknown code
// returns (nil, nil).
func (r *SignatureRepository) ConfirmByCode(ctx context.Context, code string) (*models.Signature, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+signatureColumns+`
		FROM signatures
		WHERE confirmation_code = $1
		FOR UPDATE
	`, code)

	sig, err := scanSignature(row.Scan)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, nil
	}
	if sig.Confirmed {
		return sig, ErrAlreadyConfirmed
	}

	_, err = tx.ExecContext(ctx, `UPDATE signatures SET confirmed = TRUE WHERE id = $1`, sig.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm signature: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	sig.Confirmed = true
	return sig, nil
}

// GetByID retrieves a signature by ID
func (r *SignatureRepository) GetByID(ctx context.Context, id string) (*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE id = $1`
	return scanSignature(r.db.QueryRowContext(ctx, query, id).Scan)
}

// ListForPetition retrieves every signature of a petition, oldest first, the
// order the CSV export uses
func (r *SignatureRepository) ListForPetition(ctx context.Context, petitionID string) ([]*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE petition_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, petitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	sigs := make([]*models.Signature, 0)
	for rows.Next() {
		sig, err := scanSignature(rows.Scan)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}

	return sigs, rows.Err()
}

// ListConfirmedForPetition retrieves only the confirmed signatures of a
// petition, oldest first
func (r *SignatureRepository) ListConfirmedForPetition(ctx context.Context, petitionID string) ([]*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE petition_id = $1 AND confirmed ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, petitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed signatures: %w", err)
	}
	defer rows.Close()

	sigs := make([]*models.Signature, 0)
	for rows.Next() {
		sig, err := scanSignature(rows.Scan)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}

	return sigs, rows.Err()
}

// Delete removes a signature
func (r *SignatureRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM signatures WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete signature: %w", err)
	}
	return nil
}
