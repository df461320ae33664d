package room

import (
	"errors"
	"fmt"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// ErrAuthRequired is reported when an operation needs a signed-in session.
var ErrAuthRequired = domain.ErrAuthRequired

// ValidationError is a locally rejected request. Text is shown to the user as is.
type ValidationError struct {
	Text string
}

func (e *ValidationError) Error() string { return e.Text }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Text: fmt.Sprintf(format, args...)}
}

// RemoteError wraps a failed gateway call.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// userText turns an operation error into notice text.
func userText(action string, err error) string {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return "sign in to " + action
	case IsValidation(err):
		return err.Error()
	}
	return "could not " + action
}
