package doctors

import "errors"

// ErrNotFound is returned when no active doctor owns the number.
var ErrNotFound = errors.New("doctors: not found")
