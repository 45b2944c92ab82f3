package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Catalog and collaborator errors
	ErrCatalogRequest     = fmt.Errorf("catalog request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrSessionNotFound    = fmt.Errorf("session not found")

	// Engine errors
	ErrNoMatches       = fmt.Errorf("no tracks match the requested goal")
	ErrEmptySource     = fmt.Errorf("content source is empty")
	ErrSuperseded      = fmt.Errorf("request superseded by a newer one")
	ErrQueueExhausted  = fmt.Errorf("queue exhausted without a playable track")
	ErrNoActiveSession = fmt.Errorf("no active session")
	ErrSaveFailed      = fmt.Errorf("failed to save session")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
