// petition_repository.go implements PetitionRepository, providing database
// queries for petition CRUD, per-section updates, publication state, and the
// public listing/search surface.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// PetitionRepository handles database operations for petitions
type PetitionRepository struct {
	db *sqlx.DB
}

// NewPetitionRepository creates a new petition repository
func NewPetitionRepository(db *sqlx.DB) *PetitionRepository {
	return &PetitionRepository{db: db}
}

// Create inserts a new petition and fills in the generated ID and timestamps.
// The salt must already be set; it is written once and never updated.
func (r *PetitionRepository) Create(ctx context.Context, p *models.Petition) error {
	query := `
		INSERT INTO petitions (
			title, text, side_text, footer_text, footer_links, sign_form_footer,
			use_custom_email_settings, confirmation_email_sender,
			confirmation_email_smtp_host, confirmation_email_smtp_port,
			confirmation_email_smtp_user, confirmation_email_smtp_password,
			confirmation_email_smtp_tls, confirmation_email_smtp_starttls,
			twitter_description, twitter_image, org_twitter_handle,
			has_newsletter, newsletter_subscribe_method,
			newsletter_subscribe_http_data, newsletter_subscribe_http_mailfield,
			newsletter_subscribe_http_url,
			newsletter_subscribe_mail_subject, newsletter_subscribe_mail_from,
			newsletter_subscribe_mail_to,
			newsletter_subscribe_mail_smtp_host, newsletter_subscribe_mail_smtp_port,
			newsletter_subscribe_mail_smtp_user, newsletter_subscribe_mail_smtp_password,
			newsletter_subscribe_mail_smtp_tls, newsletter_subscribe_mail_smtp_starttls,
			bgcolor, linear_gradient_direction, gradient_from, gradient_to,
			published, paper_signatures, paper_signatures_enabled,
			salt, org_id, user_id
		) VALUES (
			:title, :text, :side_text, :footer_text, :footer_links, :sign_form_footer,
			:use_custom_email_settings, :confirmation_email_sender,
			:confirmation_email_smtp_host, :confirmation_email_smtp_port,
			:confirmation_email_smtp_user, :confirmation_email_smtp_password,
			:confirmation_email_smtp_tls, :confirmation_email_smtp_starttls,
			:twitter_description, :twitter_image, :org_twitter_handle,
			:has_newsletter, :newsletter_subscribe_method,
			:newsletter_subscribe_http_data, :newsletter_subscribe_http_mailfield,
			:newsletter_subscribe_http_url,
			:newsletter_subscribe_mail_subject, :newsletter_subscribe_mail_from,
			:newsletter_subscribe_mail_to,
			:newsletter_subscribe_mail_smtp_host, :newsletter_subscribe_mail_smtp_port,
			:newsletter_subscribe_mail_smtp_user, :newsletter_subscribe_mail_smtp_password,
			:newsletter_subscribe_mail_smtp_tls, :newsletter_subscribe_mail_smtp_starttls,
			:bgcolor, :linear_gradient_direction, :gradient_from, :gradient_to,
			:published, :paper_signatures, :paper_signatures_enabled,
			:salt, :org_id, :user_id
		)
		RETURNING id, created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to create petition: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created petition: %w", err)
		}
	}

	return rows.Err()
}

// GetByID retrieves a petition by ID
func (r *PetitionRepository) GetByID(ctx context.Context, id string) (*models.Petition, error) {
	var p models.Petition
	query := `SELECT * FROM petitions WHERE id = $1`
	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get petition: %w", err)
	}
	return &p, nil
}

// Per-section updates. Each writes a disjoint column set so concurrent edits
// of different sections cannot overwrite each other; within one section the
// last writer wins.

// UpdateContent writes the content section
func (r *PetitionRepository) UpdateContent(ctx context.Context, p *models.Petition) error {
	query := `
		UPDATE petitions
		SET title = :title, text = :text, side_text = :side_text,
		    footer_text = :footer_text, footer_links = :footer_links,
		    sign_form_footer = :sign_form_footer, updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, p, "content")
}

// UpdateEmailSettings writes the email section
func (r *PetitionRepository) UpdateEmailSettings(ctx context.Context, p *models.Petition) error {
	query := `
		UPDATE petitions
		SET use_custom_email_settings = :use_custom_email_settings,
		    confirmation_email_sender = :confirmation_email_sender,
		    confirmation_email_smtp_host = :confirmation_email_smtp_host,
		    confirmation_email_smtp_port = :confirmation_email_smtp_port,
		    confirmation_email_smtp_user = :confirmation_email_smtp_user,
		    confirmation_email_smtp_password = :confirmation_email_smtp_password,
		    confirmation_email_smtp_tls = :confirmation_email_smtp_tls,
		    confirmation_email_smtp_starttls = :confirmation_email_smtp_starttls,
		    updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, p, "email settings")
}

// UpdateSocialNetwork writes the social-network section
func (r *PetitionRepository) UpdateSocialNetwork(ctx context.Context, p *models.Petition) error {
	query := `
		UPDATE petitions
		SET twitter_description = :twitter_description,
		    twitter_image = :twitter_image,
		    org_twitter_handle = :org_twitter_handle,
		    updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, p, "social network settings")
}

// UpdateNewsletter writes the newsletter section
func (r *PetitionRepository) UpdateNewsletter(ctx context.Context, p *models.Petition) error {
	query := `
		UPDATE petitions
		SET has_newsletter = :has_newsletter,
		    newsletter_subscribe_method = :newsletter_subscribe_method,
		    newsletter_subscribe_http_data = :newsletter_subscribe_http_data,
		    newsletter_subscribe_http_mailfield = :newsletter_subscribe_http_mailfield,
		    newsletter_subscribe_http_url = :newsletter_subscribe_http_url,
		    newsletter_subscribe_mail_subject = :newsletter_subscribe_mail_subject,
		    newsletter_subscribe_mail_from = :newsletter_subscribe_mail_from,
		    newsletter_subscribe_mail_to = :newsletter_subscribe_mail_to,
		    newsletter_subscribe_mail_smtp_host = :newsletter_subscribe_mail_smtp_host,
		    newsletter_subscribe_mail_smtp_port = :newsletter_subscribe_mail_smtp_port,
		    newsletter_subscribe_mail_smtp_user = :newsletter_subscribe_mail_smtp_user,
		    newsletter_subscribe_mail_smtp_password = :newsletter_subscribe_mail_smtp_password,
		    newsletter_subscribe_mail_smtp_tls = :newsletter_subscribe_mail_smtp_tls,
		    newsletter_subscribe_mail_smtp_starttls = :newsletter_subscribe_mail_smtp_starttls,
		    updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, p, "newsletter settings")
}

// UpdateStyle writes the style section
func (r *PetitionRepository) UpdateStyle(ctx context.Context, p *models.Petition) error {
	query := `
		UPDATE petitions
		SET bgcolor = :bgcolor,
		    linear_gradient_direction = :linear_gradient_direction,
		    gradient_from = :gradient_from,
		    gradient_to = :gradient_to,
		    updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, p, "style")
}

func (r *PetitionRepository) execNamed(ctx context.Context, query string, p *models.Petition, section string) error {
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to update petition %s: %w", section, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPublished flips the publication flag
func (r *PetitionRepository) SetPublished(ctx context.Context, id string, published bool) error {
	query := `UPDATE petitions SET published = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, published)
	if err != nil {
		return fmt.Errorf("failed to set publication state: %w", err)
	}
	return nil
}

// SetPaperSignatures records the manually counted paper signatures
func (r *PetitionRepository) SetPaperSignatures(ctx context.Context, id string, enabled bool, count int) error {
	query := `
		UPDATE petitions
		SET paper_signatures_enabled = $2, paper_signatures = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, enabled, count)
	if err != nil {
		return fmt.Errorf("failed to set paper signatures: %w", err)
	}
	return nil
}

// Delete removes a petition together with its signatures and slugs, all in
// one transaction. The dependents are deleted explicitly rather than left to
// the schema, so the removal order is visible here and a partial failure
// rolls everything back.
func (r *PetitionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM signatures WHERE petition_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete signatures: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM slugs WHERE petition_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete slugs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM petitions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete petition: %w", err)
	}

	return tx.Commit()
}

// ListForOrganization retrieves all petitions owned by an organization
func (r *PetitionRepository) ListForOrganization(ctx context.Context, orgID string) ([]*models.Petition, error) {
	petitions := make([]*models.Petition, 0)
	query := `SELECT * FROM petitions WHERE org_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &petitions, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list petitions: %w", err)
	}
	return petitions, nil
}

// ListPublishedForOrganization retrieves an organization's published
// petitions for its public profile page
func (r *PetitionRepository) ListPublishedForOrganization(ctx context.Context, orgID string) ([]*models.Petition, error) {
	petitions := make([]*models.Petition, 0)
	query := `SELECT * FROM petitions WHERE org_id = $1 AND published ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &petitions, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list petitions: %w", err)
	}
	return petitions, nil
}

// ListPublishedForUser retrieves a user's published petitions for their
// public profile page
func (r *PetitionRepository) ListPublishedForUser(ctx context.Context, userID string) ([]*models.Petition, error) {
	petitions := make([]*models.Petition, 0)
	query := `SELECT * FROM petitions WHERE user_id = $1 AND published ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &petitions, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list petitions: %w", err)
	}
	return petitions, nil
}

// ListForUser retrieves all petitions owned directly by a user account
func (r *PetitionRepository) ListForUser(ctx context.Context, userID string) ([]*models.Petition, error) {
	petitions := make([]*models.Petition, 0)
	query := `SELECT * FROM petitions WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &petitions, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list petitions: %w", err)
	}
	return petitions, nil
}

// ListPublished retrieves published petitions for the public index, newest
// first
func (r *PetitionRepository) ListPublished(ctx context.Context, limit, offset int) ([]*models.Petition, error) {
	petitions := make([]*models.Petition, 0)
	query := `SELECT * FROM petitions WHERE published ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &petitions, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list published petitions: %w", err)
	}
	return petitions, nil
}

// Search retrieves published petitions whose title matches the query
func (r *PetitionRepository) Search(ctx context.Context, q string, limit, offset int) ([]*models.Petition, error) {
	petitions := make([]*models.Petition, 0)
	query := `
		SELECT * FROM petitions
		WHERE published AND title ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &petitions, query, "%"+q+"%", limit, offset); err != nil {
		return nil, fmt.Errorf("failed to search petitions: %w", err)
	}
	return petitions, nil
}

// ConfirmedSignatureCount returns the number of confirmed digital signatures
func (r *PetitionRepository) ConfirmedSignatureCount(ctx context.Context, petitionID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM signatures WHERE petition_id = $1 AND confirmed`
	if err := r.db.GetContext(ctx, &count, query, petitionID); err != nil {
		return 0, fmt.Errorf("failed to count signatures: %w", err)
	}
	return count, nil
}
