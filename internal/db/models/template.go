package models

import "time"

// PetitionTemplate carries the reusable configuration a new petition can be
// prepopulated from. Like a petition it has exactly one owner; unlike a
// petition it has no style/publication state and collects no signatures.
type PetitionTemplate struct {
	ID string `json:"id" db:"id"`

	// content section (templates have a name instead of a title)
	Name           string `json:"name" db:"name"`
	Text           string `json:"text" db:"text"`
	SideText       string `json:"side_text" db:"side_text"`
	FooterText     string `json:"footer_text" db:"footer_text"`
	FooterLinks    string `json:"footer_links" db:"footer_links"`
	SignFormFooter string `json:"sign_form_footer" db:"sign_form_footer"`

	EmailSettings
	SocialNetworkSettings
	NewsletterSettings

	OrgID  *string `json:"org_id,omitempty" db:"org_id"`
	UserID *string `json:"user_id,omitempty" db:"user_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OwnerIDs returns the (organization, account) owner links for ownership
// resolution.
func (t *PetitionTemplate) OwnerIDs() (orgID, userID *string) {
	return t.OrgID, t.UserID
}
