package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures so transport layers can map them to
// status codes without parsing message text.
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrMissingPatientContext = errors.New("missing patient context")
	ErrRetrievalUnavailable  = errors.New("retrieval unavailable")
	ErrCompletionUnavailable = errors.New("completion unavailable")
	ErrPatientNotFound       = errors.New("patient not found")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrUnprocessable         = errors.New("unprocessable document")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError tags err with a sentinel kind plus the operation that failed.
// Both the kind and the original error stay matchable through errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries the given sentinel.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
