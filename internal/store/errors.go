package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint (username, email,
// subscription edge) is violated.
var ErrConflict = errors.New("already exists")

// ErrStaleToken is returned when a refresh-token rotation finds the
// stored token differs from the presented one: the token was already
// rotated, cleared by logout, or replaced by a newer login.
var ErrStaleToken = errors.New("stale refresh token")
