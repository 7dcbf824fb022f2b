package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")

	// ErrTargetLost marks a social check whose target account or tweet was
	// deleted or suspended. Treated as a definitive NO, not a failure.
	ErrTargetLost = errors.New("social target deleted or suspended")
)
