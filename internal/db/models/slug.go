package models

import "time"

// Slug is a human-readable path segment bound to one petition. A petition may
// have several; deleting the petition cascades its slugs. The owner links
// mirror the petition's so the slug text only has to be unique within one
// owner's namespace.
type Slug struct {
	ID         string    `json:"id"`
	PetitionID string    `json:"petition_id"`
	Slug       string    `json:"slug"`
	OrgID      *string   `json:"org_id,omitempty"`
	UserID     *string   `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
