package models

import (
	"strings"
	"time"
	"unicode"
)

// Organization represents a group of accounts that collectively own petitions
// and templates. SlugName is derived deterministically from Name and unique
// across organizations.
type Organization struct {
	ID                string
	Name              string
	SlugName          string
	DefaultTemplateID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Member is a user's membership in an organization. Every membership has
// exactly one Permission record, created in the same transaction.
type Member struct {
	OrganizationID string
	UserID         string
	CreatedAt      time.Time
}

// MemberWithUser joins membership with user identity for dashboards.
type MemberWithUser struct {
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"created_at"`
}

// Invitation is a pending offer to join an organization. The invited user
// accepts (becoming a member, with a permission record) or dismisses it.
type Invitation struct {
	OrganizationID string
	UserID         string
	CreatedAt      time.Time
}

// Slugify derives a URL-safe slug from a name: lowercase ASCII letters and
// digits, runs of anything else collapsed to single hyphens. The derivation
// is deterministic so the same name always yields the same slug.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
