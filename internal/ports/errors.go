package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so callers can
// classify failures with errors.Is without importing adapter packages.
var (
	ErrUnknown       = errors.New("unknown error occurred")
	ErrNotFound      = errors.New("resource not found")
	ErrTimeout       = errors.New("operation timed out")
	ErrConfiguration = errors.New("invalid or missing configuration")

	// Remote ledger errors
	ErrTransport    = errors.New("ledger transport failure")
	ErrParseFailure = errors.New("malformed remote payload")

	// Upstream source errors
	ErrSourceUnavailable = errors.New("upstream position source unavailable")

	// Local journal errors
	ErrJournalWrite = errors.New("journal write failed")
	ErrJournalQuery = errors.New("journal query failed")
)
