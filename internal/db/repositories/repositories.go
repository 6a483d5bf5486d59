// Package repositories provides the database access layer: thin structs over
// the connection pool, one per aggregate, with context-aware queries and
// wrapped errors. Lookups return (nil, nil) when no row exists.
package repositories

import "errors"

var (
	// ErrLastAdmin is returned by member removal, leaving, and permission
	// edits that would strip the organization of its last holder of
	// can_modify_permissions.
	ErrLastAdmin = errors.New("organization must keep at least one member who can modify permissions")

	// ErrDuplicateSlug is returned when a slug insert collides with an
	// existing slug, for this or any other petition.
	ErrDuplicateSlug = errors.New("slug already in use")

	// ErrDuplicateMember is returned when adding a member or invitation
	// that already exists.
	ErrDuplicateMember = errors.New("user is already a member or invited")

	// ErrThrottleExceeded is returned by CreateThrottled when the originating
	// address has already signed the petition too many times inside the
	// throttle window.
	ErrThrottleExceeded = errors.New("too many signatures from this address")

	// ErrAlreadyConfirmed is returned when a confirmation code is redeemed a
	// second time.
	ErrAlreadyConfirmed = errors.New("signature already confirmed")
)
