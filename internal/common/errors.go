package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")

	// Transport-level errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("server unavailable")

	// Payload validation errors.
	ErrInvalidPayload = errors.New("invalid payload")
)
