package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is the expected "no such tile" condition. It is not a fault:
// callers branch on it to serve a 404, never to report the store broken.
var ErrNotFound = errors.New("tile not found")

// ErrBatchProtocol reports an EndBatch without a matching BeginBatch.
var ErrBatchProtocol = errors.New("batch end without matching begin")

// ConfigError reports invalid construction parameters or a write outside the
// configured zoom window.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "store configuration: " + e.Reason
}

// ValidationError reports malformed query options, including requests for
// features the store does not support.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Reason
}

// StorageError wraps a backend fault with the store's connection target.
// Target never carries credentials.
type StorageError struct {
	Target string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Target, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
