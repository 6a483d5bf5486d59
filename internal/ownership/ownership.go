// Package ownership resolves who owns an editable entity and decides whether
// an acting user may operate on it. Petitions and templates are owned by
// exactly one organization or one individual account; every permission check
// funnels through Gate so handlers never inspect owner links themselves.
package ownership

import (
	"context"
	"fmt"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// Ownable is any entity carrying the two mutually exclusive owner links.
type Ownable interface {
	OwnerIDs() (orgID, userID *string)
}

// OwnerKind discriminates the two owner shapes.
type OwnerKind string

const (
	OwnerOrganization OwnerKind = "organization"
	OwnerAccount      OwnerKind = "account"
)

// Owner is the resolved owner of an entity: exactly one of Organization or
// Account is non-nil, matching Kind.
type Owner struct {
	Kind         OwnerKind
	Organization *models.Organization
	Account      *models.User
}

// OrganizationFinder loads organizations by ID. Returns (nil, nil) when no
// row exists.
type OrganizationFinder interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
}

// UserFinder loads users by ID. Returns (nil, nil) when no row exists.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Resolver turns an entity's owner links into a resolved Owner.
type Resolver struct {
	orgs  OrganizationFinder
	users UserFinder
}

// NewResolver creates a Resolver backed by the given lookups.
func NewResolver(orgs OrganizationFinder, users UserFinder) *Resolver {
	return &Resolver{orgs: orgs, users: users}
}

// Resolve returns the owner of entity. Both links set is ErrAmbiguousOwnership;
// neither set, or a link pointing at a deleted owner, is ErrOrphanEntity.
func (r *Resolver) Resolve(ctx context.Context, entity Ownable) (*Owner, error) {
	orgID, userID := entity.OwnerIDs()

	switch {
	case orgID != nil && userID != nil:
		return nil, ErrAmbiguousOwnership
	case orgID != nil:
		org, err := r.orgs.GetByID(ctx, *orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to load owning organization: %w", err)
		}
		if org == nil {
			return nil, ErrOrphanEntity
		}
		return &Owner{Kind: OwnerOrganization, Organization: org}, nil
	case userID != nil:
		user, err := r.users.GetByID(ctx, *userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load owning account: %w", err)
		}
		if user == nil {
			return nil, ErrOrphanEntity
		}
		return &Owner{Kind: OwnerAccount, Account: user}, nil
	}
	return nil, ErrOrphanEntity
}
