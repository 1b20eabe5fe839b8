package domain

import "errors"

var (
	// ErrNotFound indicates the referenced resource does not exist
	ErrNotFound = errors.New("resource not found")
	// ErrNotReady indicates the index has no generation yet
	ErrNotReady = errors.New("index not ready")
	// ErrInvalidRequest indicates a malformed request
	ErrInvalidRequest = errors.New("invalid request")
)
