package services

import "errors"

// ErrInvalidCredentials is returned when a password check fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned when a token fails signature or expiry
// verification. Expired and malformed tokens are indistinguishable to
// callers.
var ErrInvalidToken = errors.New("invalid token")

// ErrSessionExpired is returned when a presented refresh token no
// longer matches the stored one: it was rotated, revoked by logout, or
// superseded by a newer login.
var ErrSessionExpired = errors.New("session expired or reused")

// ErrTokenGeneration hides signing/storage internals when minting a
// token pair fails.
var ErrTokenGeneration = errors.New("failed to generate session tokens")

// ErrSelfSubscription is returned when a user tries to subscribe to
// their own channel.
var ErrSelfSubscription = errors.New("cannot subscribe to own channel")
