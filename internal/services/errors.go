package services

import "errors"

var (
	// ErrConfiguration aborts a pass before any rule is processed.
	ErrConfiguration = errors.New("configuration error")
	// ErrStoreUnavailable marks a failed or timed out store call for one rule.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidRule marks a rule whose schedule or fields are invalid.
	ErrInvalidRule = errors.New("invalid rule")
)
