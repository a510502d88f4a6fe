package storage

import "errors"

// ErrUnavailable wraps every backend failure.
var ErrUnavailable = errors.New("storage backend unavailable")
