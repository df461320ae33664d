package domain

import "errors"

// ErrAuthRequired is returned by operations that need a signed-in session.
var ErrAuthRequired = errors.New("sign in required")
