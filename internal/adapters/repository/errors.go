package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrDuplicateCouple = errors.New("couple already registered")
	ErrInvalidLimit    = errors.New("invalid ranking window")
)
