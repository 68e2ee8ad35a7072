// Package memerr defines the typed error taxonomy of the memory engine.
//
// Callers match with errors.As and decide fallback behavior themselves;
// the engine never substitutes placeholder values on its own.
package memerr

import "fmt"

// StorageError wraps a relational store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// IndexError wraps an ANN index failure.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index: %s: %v", e.Op, e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

// ConsistencyError reports disagreement between the relational store
// and the ANN index, or a failed compensating rollback that may have
// left them disagreeing. It must surface through health checks.
type ConsistencyError struct {
	Detail string
	Err    error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("consistency: %s: %v", e.Detail, e.Err)
	}
	return "consistency: " + e.Detail
}
func (e *ConsistencyError) Unwrap() error { return e.Err }

// VectorizationError wraps an embedding failure.
type VectorizationError struct {
	Err error
}

func (e *VectorizationError) Error() string { return fmt.Sprintf("vectorize: %v", e.Err) }
func (e *VectorizationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return "record not found: " + e.ID }

// ValidationError reports rejected input (empty content, bad role).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
