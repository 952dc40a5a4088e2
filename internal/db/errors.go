package db

import "errors"

// ErrNotFound indicates the requested catalog row does not exist.
// Use errors.Is() to check for it in calling code.
var ErrNotFound = errors.New("catalog entry not found")
