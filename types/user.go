package types

import "time"

// User represents an account in the system.
// It contains identity, profile media, and session metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user,
	// stored lowercase.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, stored lowercase and unique.
	Email string `json:"email" db:"email"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// AvatarURL points at the user's avatar image in object storage.
	AvatarURL string `json:"avatar_url" db:"avatar_url"`

	// CoverURL points at the user's channel cover image. May be empty.
	CoverURL string `json:"cover_url" db:"cover_url"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// RefreshToken is the single currently-valid refresh token for this
	// user, or empty when no session is active. Issuing a new one
	// invalidates the previous value. Never exposed in API responses.
	RefreshToken string `json:"-" db:"refresh_token"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PublicOwner is the subset of a user's identity exposed when the user
// appears as the owner of someone else's content.
type PublicOwner struct {
	FullName  string `json:"full_name" db:"full_name"`
	Username  string `json:"username" db:"username"`
	AvatarURL string `json:"avatar_url" db:"avatar_url"`
}
