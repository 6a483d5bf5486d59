// organization_repository.go implements OrganizationRepository, providing
// database queries for organization CRUD, membership management, and the
// invitation workflow.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug_name, default_template_id, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.SlugName,
		&org.DefaultTemplateID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetBySlugName retrieves an organization by its URL slug
func (r *OrganizationRepository) GetBySlugName(ctx context.Context, slugName string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug_name, default_template_id, created_at, updated_at
		FROM organizations
		WHERE slug_name = $1
	`

	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, slugName).Scan(
		&org.ID,
		&org.Name,
		&org.SlugName,
		&org.DefaultTemplateID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// CreateWithFounder creates an organization and enrolls the founding user as
// its first member with the full permission set, all in one transaction. A
// duplicate slug surfaces as ErrDuplicateMember-style conflict via
// ErrDuplicateSlug.
func (r *OrganizationRepository) CreateWithFounder(ctx context.Context, org *models.Organization, founderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, slug_name)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, org.Name, org.SlugName).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id)
		VALUES ($1, $2)
	`, org.ID, founderID)
	if err != nil {
		return fmt.Errorf("failed to add founder: %w", err)
	}

	perm := &models.Permission{OrganizationID: org.ID, UserID: founderID}
	perm.SetAll(true)
	if err := insertPermission(ctx, tx, perm); err != nil {
		return err
	}

	return tx.Commit()
}

// ListForUser retrieves all organizations the user is a member of
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug_name, o.default_template_id, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN organization_members om ON o.id = om.organization_id
		WHERE om.user_id = $1
		ORDER BY o.name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*models.Organization, 0)
	for rows.Next() {
		org := &models.Organization{}
		err := rows.Scan(
			&org.ID,
			&org.Name,
			&org.SlugName,
			&org.DefaultTemplateID,
			&org.CreatedAt,
			&org.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// IsMember checks whether a user belongs to an organization
func (r *OrganizationRepository) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM organization_members
			WHERE organization_id = $1 AND user_id = $2
		)
	`

	err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return exists, nil
}

// ListMembersWithUsers retrieves all members of an organization with user details
func (r *OrganizationRepository) ListMembersWithUsers(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT om.organization_id, om.user_id, u.username, u.email, om.created_at
		FROM organization_members om
		INNER JOIN users u ON om.user_id = u.id
		WHERE om.organization_id = $1
		ORDER BY om.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.MemberWithUser, 0)
	for rows.Next() {
		m := &models.MemberWithUser{}
		err := rows.Scan(&m.OrganizationID, &m.UserID, &m.Username, &m.Email, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// === Invitation workflow ===

// Invite records a pending invitation. Inviting an existing member or an
// already invited user returns ErrDuplicateMember.
func (r *OrganizationRepository) Invite(ctx context.Context, orgID, userID string) error {
	member, err := r.IsMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if member {
		return ErrDuplicateMember
	}

	query := `
		INSERT INTO organization_invitations (organization_id, user_id)
		VALUES ($1, $2)
	`

	_, err = r.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetInvitation retrieves one pending invitation
func (r *OrganizationRepository) GetInvitation(ctx context.Context, orgID, userID string) (*models.Invitation, error) {
	query := `
		SELECT organization_id, user_id, created_at
		FROM organization_invitations
		WHERE organization_id = $1 AND user_id = $2
	`

	inv := &models.Invitation{}
	err := r.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&inv.OrganizationID,
		&inv.UserID,
		&inv.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// ListInvitationsForUser retrieves the organizations a user is invited to
func (r *OrganizationRepository) ListInvitationsForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug_name, o.default_template_id, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN organization_invitations oi ON o.id = oi.organization_id
		WHERE oi.user_id = $1
		ORDER BY oi.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*models.Organization, 0)
	for rows.Next() {
		org := &models.Organization{}
		err := rows.Scan(
			&org.ID,
			&org.Name,
			&org.SlugName,
			&org.DefaultTemplateID,
			&org.CreatedAt,
			&org.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// AcceptInvitation converts a pending invitation into a membership with an
// all-false permission record, in one transaction. Returns (false, nil) when
// no invitation exists.
func (r *OrganizationRepository) AcceptInvitation(ctx context.Context, orgID, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM organization_invitations
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to consume invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id)
		VALUES ($1, $2)
	`, orgID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicateMember
		}
		return false, fmt.Errorf("failed to add member: %w", err)
	}

	// New members start with no capabilities; an admin grants them later.
	perm := &models.Permission{OrganizationID: orgID, UserID: userID}
	if err := insertPermission(ctx, tx, perm); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// DismissInvitation drops a pending invitation. Returns (false, nil) when no
// invitation exists.
func (r *OrganizationRepository) DismissInvitation(ctx context.Context, orgID, userID string) (bool, error) {
	query := `
		DELETE FROM organization_invitations
		WHERE organization_id = $1 AND user_id = $2
	`

	res, err := r.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to dismiss invitation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveMember removes a user from an organization together with their
// permission record. The check against removing the last holder of
// can_modify_permissions runs inside the same transaction as the delete, so
// two concurrent removals cannot race past it. Leaving an organization is the
// same operation with the acting user as target.
func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkNotLastAdmin(ctx, tx, orgID, userID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM permissions
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete permission record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return tx.Commit()
}

// checkNotLastAdmin fails with ErrLastAdmin when userID is the only member of
// the organization holding can_modify_permissions. Every qualifying row is
// locked before counting, in a fixed order so two concurrent drops of two
// different admins cannot deadlock: the second transaction blocks on the
// first's locks, re-evaluates the rows after commit, and sees the reduced
// count. Counting without the locks would let both pass under READ COMMITTED.
func checkNotLastAdmin(ctx context.Context, tx *sql.Tx, orgID, userID string) error {
	var admins int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM permissions
			WHERE organization_id = $1 AND can_modify_permissions
			ORDER BY user_id
			FOR UPDATE
		) AS admin_rows
	`, orgID).Scan(&admins)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}

	var holdsAdmin bool
	err = tx.QueryRowContext(ctx, `
		SELECT can_modify_permissions FROM permissions
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&holdsAdmin)
	if err == sql.ErrNoRows {
		return nil // no permission record, cannot be the last admin
	}
	if err != nil {
		return fmt.Errorf("failed to check permission record: %w", err)
	}
	if holdsAdmin && admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// SetDefaultTemplate marks a template as the organization's favourite, or
// clears it when templateID is nil
func (r *OrganizationRepository) SetDefaultTemplate(ctx context.Context, orgID string, templateID *string) error {
	query := `UPDATE organizations SET default_template_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, orgID, templateID)
	if err != nil {
		return fmt.Errorf("failed to set default template: %w", err)
	}

	return nil
}

// Delete deletes an organization. Memberships, invitations, permission
// records, and owned petitions cascade.
func (r *OrganizationRepository) Delete(ctx context.Context, orgID string) error {
	query := `DELETE FROM organizations WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	return nil
}
