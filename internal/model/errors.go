package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a lookup by ID missed.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID indicates an append collided with an existing memory ID.
	// IDs are UUID-strength, so this is an invariant violation, never retried.
	ErrDuplicateID = errors.New("duplicate memory id")

	// ErrStoreUnavailable indicates an I/O failure from the metadata log or
	// the vector index.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Steps of the two-store write sequence that can fail after the first write
// committed.
const (
	StepIndexUpsert = "index upsert"
	StepIndexRemove = "index remove"
)

// PartialWriteError reports that the metadata write of a compound operation
// succeeded and the vector index write failed. The second step is idempotent,
// so the caller can retry it with the same memory ID instead of re-deriving
// the embedding.
type PartialWriteError struct {
	MemoryID string
	Step     string
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write for memory %s: %s failed: %v", e.MemoryID, e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
