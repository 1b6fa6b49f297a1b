package sentinel

import "errors"

// Store-level facts. Stores return these (optionally wrapped) and services
// translate them into coded domain errors:
//   - ErrNotFound: no row for the key
//   - ErrAlreadyUsed: a uniqueness slot (member+period, email) is taken
//   - ErrInvalidState: row exists but cannot take the requested change
//   - ErrUnavailable: backing service unreachable
//
// Input validation errors belong in pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
