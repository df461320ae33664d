package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// ErrAuthRequired is returned when an operation needs a signed-in session and
// none is present, or when the API rejects the token.
var ErrAuthRequired = domain.ErrAuthRequired

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// classify wraps auth failures so callers can match ErrAuthRequired.
func classify(err *HTTPError) error {
	switch err.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return err
}
