package models

import "time"

// Signature is one signer's support for a petition. Created unconfirmed; a
// one-time redemption of ConfirmationCode flips Confirmed. IPHash is the
// salted hash of the originating address used by the throttle; the raw
// address is never stored.
type Signature struct {
	ID                      string    `json:"id"`
	PetitionID              string    `json:"petition_id"`
	FirstName               string    `json:"first_name"`
	LastName                string    `json:"last_name"`
	Phone                   string    `json:"phone"`
	Email                   string    `json:"email"`
	SubscribedToMailinglist bool      `json:"subscribed_to_mailinglist"`
	Confirmed               bool      `json:"confirmed"`
	ConfirmationCode        string    `json:"-"`
	IPHash                  string    `json:"-"`
	CreatedAt               time.Time `json:"created_at"`
}
