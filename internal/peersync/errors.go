package peersync

import (
	"errors"
	"fmt"
)

// ParseError reports a shared-store payload that could not be decoded.
// The notification that carried it is discarded; later ones are still
// processed.
type ParseError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("STORAGE_PARSE_ERROR: malformed %q payload: %v", e.Key, e.Err)
}

// Unwrap returns the decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
