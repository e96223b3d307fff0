package cache

import "errors"

// ErrInvalidKey is returned when a key is empty.
var ErrInvalidKey = errors.New("invalid cache key")
