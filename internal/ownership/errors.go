package ownership

import "errors"

var (
	// ErrForbidden is returned when the acting user is authenticated but not
	// entitled to the attempted operation. Handlers map it to 403 without
	// revealing whether the entity exists.
	ErrForbidden = errors.New("forbidden")

	// ErrAmbiguousOwnership is returned when an entity carries both an
	// organization link and an account link. The CHECK constraint makes this
	// unreachable through normal writes; hitting it means corrupted data.
	ErrAmbiguousOwnership = errors.New("entity has both an organization owner and an account owner")

	// ErrOrphanEntity is returned when an entity carries no owner link, or a
	// link to an owner row that no longer exists.
	ErrOrphanEntity = errors.New("entity has no resolvable owner")

	// ErrMissingPermission is returned when a member of the owning
	// organization has no permission record. Memberships and permission
	// records are created in one transaction, so this is an internal
	// inconsistency, not a policy denial.
	ErrMissingPermission = errors.New("no permission record for organization member")
)
