// Package common defines shared constants and sentinel errors used across
// the delivery core and its transports. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Catalog state errors.
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrArtifactMissing     = errors.New("artifact missing")
	ErrCorruptSource       = errors.New("corrupt source document")

	// Credential errors. ErrInvalidToken is the only outcome a caller ever
	// sees for a rejected download token.
	ErrInvalidToken = errors.New("invalid token")

	// Ledger errors.
	ErrBlocked         = errors.New("delivery blocked")
	ErrVersionConflict = errors.New("version conflict")

	// Infrastructure errors, safe to retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("timeout")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
)

// IsRetryable reports whether err is a transient infrastructure failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrTimeout)
}
