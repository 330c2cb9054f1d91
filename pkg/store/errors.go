package store

import "errors"

// Static errors for err113 compliance.
var (
	ErrInvalidResponseShape = errors.New("invalid response shape")
	ErrCacheRequired        = errors.New("a cache is required when CacheID is set")
	ErrInvalidLimit         = errors.New("limit must not be negative")
	ErrReaderRequired       = errors.New("a reader is required")
)
