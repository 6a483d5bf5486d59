// template_repository.go implements TemplateRepository, providing database
// queries for petition template CRUD and per-section updates.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// TemplateRepository handles database operations for petition templates
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a new template and fills in the generated ID and timestamps
func (r *TemplateRepository) Create(ctx context.Context, t *models.PetitionTemplate) error {
	query := `
		INSERT INTO petition_templates (
			name, text, side_text, footer_text, footer_links, sign_form_footer,
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
			org_id, user_id
		) VALUES (
			:name, :text, :side_text, :footer_text, :footer_links, :sign_form_footer,
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
			:org_id, :user_id
		)
		RETURNING id, created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, t)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created template: %w", err)
		}
	}

	return rows.Err()
}

// GetByID retrieves a template by ID
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.PetitionTemplate, error) {
	var t models.PetitionTemplate
	query := `SELECT * FROM petition_templates WHERE id = $1`
	err := r.db.GetContext(ctx, &t, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

// UpdateContent writes the content section
func (r *TemplateRepository) UpdateContent(ctx context.Context, t *models.PetitionTemplate) error {
	query := `
		UPDATE petition_templates
		SET name = :name, text = :text, side_text = :side_text,
		    footer_text = :footer_text, footer_links = :footer_links,
		    sign_form_footer = :sign_form_footer, updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, t, "content")
}

// UpdateEmailSettings writes the email section
func (r *TemplateRepository) UpdateEmailSettings(ctx context.Context, t *models.PetitionTemplate) error {
	query := `
		UPDATE petition_templates
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
	return r.execNamed(ctx, query, t, "email settings")
}

// UpdateSocialNetwork writes the social-network section
func (r *TemplateRepository) UpdateSocialNetwork(ctx context.Context, t *models.PetitionTemplate) error {
	query := `
		UPDATE petition_templates
		SET twitter_description = :twitter_description,
		    twitter_image = :twitter_image,
		    org_twitter_handle = :org_twitter_handle,
		    updated_at = NOW()
		WHERE id = :id
	`
	return r.execNamed(ctx, query, t, "social network settings")
}

// UpdateNewsletter writes the newsletter section
func (r *TemplateRepository) UpdateNewsletter(ctx context.Context, t *models.PetitionTemplate) error {
	query := `
		UPDATE petition_templates
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
	return r.execNamed(ctx, query, t, "newsletter settings")
}

func (r *TemplateRepository) execNamed(ctx context.Context, query string, t *models.PetitionTemplate, section string) error {
	res, err := r.db.NamedExecContext(ctx, query, t)
	if err != nil {
		return fmt.Errorf("failed to update template %s: %w", section, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template. Default-template references are cleared by the
// ON DELETE SET NULL constraint.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM petition_templates WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// ListForOrganization retrieves all templates owned by an organization
func (r *TemplateRepository) ListForOrganization(ctx context.Context, orgID string) ([]*models.PetitionTemplate, error) {
	templates := make([]*models.PetitionTemplate, 0)
	query := `SELECT * FROM petition_templates WHERE org_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &templates, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// ListForUser retrieves all templates owned directly by a user account
func (r *TemplateRepository) ListForUser(ctx context.Context, userID string) ([]*models.PetitionTemplate, error) {
	templates := make([]*models.PetitionTemplate, 0)
	query := `SELECT * FROM petition_templates WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &templates, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}
