package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrInvalidLimit is returned for non-positive window sizes.
	ErrInvalidLimit = errors.New("storage: limit must be greater than zero")
)

// SchemaError reports that the timeseries table could not be created or is incompatible.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage schema: %s: %v", e.Reason, e.Err)
	}
	return "storage schema: " + e.Reason
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PersistenceError reports a rejected batch. No row of the batch was committed.
type PersistenceError struct {
	Op    string
	Index int
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("storage %s: record %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func validateBatch(records []QuoteRecord) error {
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return &PersistenceError{Op: "append batch", Index: i, Err: err}
		}
	}
	return nil
}
