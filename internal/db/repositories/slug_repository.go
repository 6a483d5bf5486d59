// slug_repository.go implements SlugRepository, providing database queries
// for the petition slug namespace. Slug texts are unique per owner, so two
// owners can both publish under the same slug.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// SlugRepository handles database operations for petition slugs
type SlugRepository struct {
	db *sql.DB
}

// NewSlugRepository creates a new slug repository
func NewSlugRepository(db *sql.DB) *SlugRepository {
	return &SlugRepository{db: db}
}

// Create inserts a slug for a petition. A collision within the owner's
// namespace returns ErrDuplicateSlug.
func (r *SlugRepository) Create(ctx context.Context, s *models.Slug) error {
	query := `
		INSERT INTO slugs (petition_id, slug, org_id, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, s.PetitionID, s.Slug, s.OrgID, s.UserID).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create slug: %w", err)
	}

	return nil
}

func scanSlug(scan func(...any) error) (*models.Slug, error) {
	s := &models.Slug{}
	err := scan(&s.ID, &s.PetitionID, &s.Slug, &s.OrgID, &s.UserID, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get slug: %w", err)
	}
	return s, nil
}

// GetForOrganization resolves a slug within an organization's namespace,
// addressed by the organization's own URL slug
func (r *SlugRepository) GetForOrganization(ctx context.Context, orgSlugName, slug string) (*models.Slug, error) {
	query := `
		SELECT s.id, s.petition_id, s.slug, s.org_id, s.user_id, s.created_at
		FROM slugs s
		JOIN organizations o ON o.id = s.org_id
		WHERE o.slug_name = $1 AND s.slug = $2
	`
	return scanSlug(r.db.QueryRowContext(ctx, query, orgSlugName, slug).Scan)
}

// GetForUser resolves a slug within an individual account's namespace,
// addressed by username
func (r *SlugRepository) GetForUser(ctx context.Context, username, slug string) (*models.Slug, error) {
	query := `
		SELECT s.id, s.petition_id, s.slug, s.org_id, s.user_id, s.created_at
		FROM slugs s
		JOIN users u ON u.id = s.user_id
		WHERE u.username = $1 AND s.slug = $2
	`
	return scanSlug(r.db.QueryRowContext(ctx, query, username, slug).Scan)
}

// ListForPetition retrieves all slugs of a petition
func (r *SlugRepository) ListForPetition(ctx context.Context, petitionID string) ([]*models.Slug, error) {
	query := `SELECT id, petition_id, slug, org_id, user_id, created_at FROM slugs WHERE petition_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, petitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slugs: %w", err)
	}
	defer rows.Close()

	slugs := make([]*models.Slug, 0)
	for rows.Next() {
		s, err := scanSlug(rows.Scan)
		if err != nil {
			return nil, err
		}
		slugs = append(slugs, s)
	}

	return slugs, rows.Err()
}

// Delete removes a slug from a petition
func (r *SlugRepository) Delete(ctx context.Context, petitionID, slugID string) error {
	query := `DELETE FROM slugs WHERE id = $1 AND petition_id = $2`
	_, err := r.db.ExecContext(ctx, query, slugID, petitionID)
	if err != nil {
		return fmt.Errorf("failed to delete slug: %w", err)
	}
	return nil
}
