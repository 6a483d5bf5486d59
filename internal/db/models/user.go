// Package models defines the persistent data model for the petition platform:
// users, organizations, memberships and their permission records, petitions,
// petition templates, signatures, and slugs.
package models

import "time"

// User represents an individual account. It owns zero or more petitions and
// templates directly and can be a member of any number of organizations.
type User struct {
	ID                string
	Username          string
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      string
	DefaultTemplateID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisplayName returns "First Last" when set, falling back to the username.
func (u *User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
