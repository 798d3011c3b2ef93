package repository

import "errors"

// Common repository errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
	// ErrUnchanged may be returned by an update mutation to skip the write
	ErrUnchanged = errors.New("record unchanged")
)
