package ownership

import (
	"context"
	"fmt"

	"github.com/petition-platform/petition-platform/internal/db/models"
)

// MembershipStore answers membership and permission-record questions for
// organization-owned entities. GetPermission returns (nil, nil) when no
// record exists.
type MembershipStore interface {
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	GetPermission(ctx context.Context, orgID, userID string) (*models.Permission, error)
}

// Gate is the single authorization decision point. Handlers hand it the
// acting user, the target entity, and the capability the operation needs;
// it resolves ownership and applies the matching rule.
type Gate struct {
	resolver *Resolver
	members  MembershipStore
}

// NewGate creates a Gate over the given resolver and membership store.
func NewGate(resolver *Resolver, members MembershipStore) *Gate {
	return &Gate{resolver: resolver, members: members}
}

// Resolve exposes owner resolution without an authorization decision, for
// read paths that only need to know who owns an entity.
func (g *Gate) Resolve(ctx context.Context, entity Ownable) (*Owner, error) {
	return g.resolver.Resolve(ctx, entity)
}

// Authorize decides whether userID may perform an operation requiring cap on
// entity, returning the resolved owner so handlers can reuse it. For
// account-owned entities the capability is ignored and only identity counts.
// For organization-owned entities membership is checked before the permission
// record: a non-member is denied, a member without a record surfaces
// ErrMissingPermission.
func (g *Gate) Authorize(ctx context.Context, userID string, entity Ownable, cap models.Capability) (*Owner, error) {
	owner, err := g.resolver.Resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	switch owner.Kind {
	case OwnerAccount:
		if owner.Account.ID != userID {
			return nil, ErrForbidden
		}
		return owner, nil
	case OwnerOrganization:
		if err := g.AuthorizeOrg(ctx, userID, owner.Organization.ID, cap); err != nil {
			return nil, err
		}
		return owner, nil
	}
	return nil, fmt.Errorf("unknown owner kind %q", owner.Kind)
}

// AuthorizeOrg decides whether userID holds cap within the organization.
// Used directly for operations scoped to an organization rather than an
// entity, such as inviting members or editing another member's permissions.
func (g *Gate) AuthorizeOrg(ctx context.Context, userID, orgID string, cap models.Capability) error {
	member, err := g.members.IsMember(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrForbidden
	}
	perm, err := g.members.GetPermission(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to load permission record: %w", err)
	}
	if perm == nil {
		return ErrMissingPermission
	}
	if !perm.Has(cap) {
		return ErrForbidden
	}
	return nil
}

// RequireMember checks membership only, for read paths like the organization
// dashboard that any member may see.
func (g *Gate) RequireMember(ctx context.Context, userID, orgID string) error {
	member, err := g.members.IsMember(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrForbidden
	}
	return nil
}
