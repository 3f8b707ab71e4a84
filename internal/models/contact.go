package models

import "github.com/google/uuid"

// Preferred contact channel constants, as stored on the user's profile.
const (
	ContactEmail     = "email"
	ContactPhone     = "phone"
	ContactAnonymous = "anonymous"
	ContactUnset     = ""
)

// User is the identity-provider view of an account.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
}

// ContactPreference is the profile-store view of how a user wants to be reached.
type ContactPreference struct {
	UserID           uuid.UUID `json:"user_id"`
	Phone            string    `json:"phone"`
	PreferredChannel string    `json:"preferred_channel"`
}

// ContactProfile is the resolved set of addresses for a user.
type ContactProfile struct {
	UserID           uuid.UUID `json:"user_id"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	PreferredChannel string    `json:"preferred_channel"`
}

// HasEmail returns true if an email address is on file.
func (p *ContactProfile) HasEmail() bool {
	return p.Email != ""
}

// HasPhone returns true if a phone number is on file.
func (p *ContactProfile) HasPhone() bool {
	return p.Phone != ""
}
