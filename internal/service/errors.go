package service

import "errors"

// Validation errors, reported synchronously and never persisted
var (
	ErrInvalidInput    = errors.New("missing required field")
	ErrInvalidDuration = errors.New("duration out of range")
	ErrInvalidEvent    = errors.New("unknown event kind")
)
