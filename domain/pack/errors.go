package pack

import "errors"

// Domain errors for pack operations.
var (
	// ErrPackNotFound is returned when a pack does not exist.
	ErrPackNotFound = errors.New("pack not found")

	// ErrInvalidPack is returned when a pack is malformed.
	ErrInvalidPack = errors.New("invalid pack")
)
