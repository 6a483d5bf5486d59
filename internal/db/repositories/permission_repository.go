// permission_repository.go implements PermissionRepository, providing
// database queries for per-membership capability records.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// PermissionRepository handles database operations for permission records
type PermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `organization_id, user_id,
	can_add_members, can_remove_members,
	can_create_petitions, can_modify_petitions, can_delete_petitions,
	can_create_templates, can_modify_templates, can_delete_templates,
	can_view_signatures, can_modify_signatures, can_delete_signatures,
	can_modify_permissions`

func scanPermission(scan func(...any) error) (*models.Permission, error) {
	p := &models.Permission{}
	err := scan(
		&p.OrganizationID,
		&p.UserID,
		&p.CanAddMembers,
		&p.CanRemoveMembers,
		&p.CanCreatePetitions,
		&p.CanModifyPetitions,
		&p.CanDeletePetitions,
		&p.CanCreateTemplates,
		&p.CanModifyTemplates,
		&p.CanDeleteTemplates,
		&p.CanViewSignatures,
		&p.CanModifySignatures,
		&p.CanDeleteSignatures,
		&p.CanModifyPermissions,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get permission record: %w", err)
	}
	return p, nil
}

// insertPermission inserts a permission record inside an existing
// transaction. Membership rows and permission rows are always created
// together.
func insertPermission(ctx context.Context, tx *sql.Tx, p *models.Permission) error {
	query := `
		INSERT INTO permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.ExecContext(ctx, query,
		p.OrganizationID, p.UserID,
		p.CanAddMembers, p.CanRemoveMembers,
		p.CanCreatePetitions, p.CanModifyPetitions, p.CanDeletePetitions,
		p.CanCreateTemplates, p.CanModifyTemplates, p.CanDeleteTemplates,
		p.CanViewSignatures, p.CanModifySignatures, p.CanDeleteSignatures,
		p.CanModifyPermissions,
	)
	if err != nil {
		return fmt.Errorf("failed to create permission record: %w", err)
	}

	return nil
}

// GetPermission retrieves the capability record for one membership
func (r *PermissionRepository) GetPermission(ctx context.Context, orgID, userID string) (*models.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE organization_id = $1 AND user_id = $2`
	return scanPermission(r.db.QueryRowContext(ctx, query, orgID, userID).Scan)
}

// ListForOrganization retrieves every permission record of an organization
func (r *PermissionRepository) ListForOrganization(ctx context.Context, orgID string) ([]*models.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE organization_id = $1 ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission records: %w", err)
	}
	defer rows.Close()

	perms := make([]*models.Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows.Scan)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}

	return perms, rows.Err()
}

// Update replaces the full capability set of one membership. When the edit
// clears can_modify_permissions, the last-admin check runs inside the same
// transaction as the write so concurrent edits cannot strip the organization
// of its last admin.
func (r *PermissionRepository) Update(ctx context.Context, p *models.Permission) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !p.CanModifyPermissions {
		if err := checkNotLastAdmin(ctx, tx, p.OrganizationID, p.UserID); err != nil {
			return err
		}
	}

	query := `
		UPDATE permissions
		SET can_add_members = $3, can_remove_members = $4,
		    can_create_petitions = $5, can_modify_petitions = $6, can_delete_petitions = $7,
		    can_create_templates = $8, can_modify_templates = $9, can_delete_templates = $10,
		    can_view_signatures = $11, can_modify_signatures = $12, can_delete_signatures = $13,
		    can_modify_permissions = $14
		WHERE organization_id = $1 AND user_id = $2
	`

	res, err := tx.ExecContext(ctx, query,
		p.OrganizationID, p.UserID,
		p.CanAddMembers, p.CanRemoveMembers,
		p.CanCreatePetitions, p.CanModifyPetitions, p.CanDeletePetitions,
		p.CanCreateTemplates, p.CanModifyTemplates, p.CanDeleteTemplates,
		p.CanViewSignatures, p.CanModifySignatures, p.CanDeleteSignatures,
		p.CanModifyPermissions,
	)
	if err != nil {
		return fmt.Errorf("failed to update permission record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}
