package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates no enrollment record exists for the identity.
var ErrNotFound = errors.New("enrollment record not found")

// ErrEmbeddingDim indicates a write attempted to store an embedding whose
// length does not match the deployed extractor dimension. This is data
// corruption, not user error; stores must reject it rather than truncate
// or pad.
var ErrEmbeddingDim = errors.New("embedding dimension mismatch")

// EnrollmentStore is the durable mapping identity -> biometric state.
//
// Update is the only mutation path and must be atomic per identity: the
// record is read, mutated by fn, and written back under per-identity mutual
// exclusion, so concurrent enroll/clear calls on the same identity never
// interleave. If fn returns an error nothing is persisted. A missing record
// is created implicitly (zero-valued) before fn runs; records are never
// hard-deleted by this subsystem.
type EnrollmentStore interface {
	// Get returns the full record including photo bytes, or ErrNotFound.
	Get(ctx context.Context, identityID string) (*EnrollmentRecord, error)

	// Update atomically applies fn to the identity's record and persists
	// the result. Returns the record as persisted.
	Update(ctx context.Context, identityID string, fn func(*EnrollmentRecord) error) (*EnrollmentRecord, error)

	// SnapshotEmbedded returns a consistent snapshot of all records in the
	// Embedded state, photo bytes omitted. Each record is read whole; a
	// concurrent update is either fully visible or not at all.
	SnapshotEmbedded(ctx context.Context) ([]EnrollmentRecord, error)

	// List returns all records with photo bytes omitted, ordered by
	// identity ID.
	List(ctx context.Context) ([]EnrollmentRecord, error)

	// Count returns the total number of enrollment records.
	Count(ctx context.Context) (int, error)
}

// ValidateEmbedding checks an embedding about to be persisted against the
// deployed extractor dimension. A nil embedding (clearing) is always valid.
func ValidateEmbedding(embedding []float32, dim int) error {
	if len(embedding) == 0 {
		return nil
	}
	if dim > 0 && len(embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrEmbeddingDim, len(embedding), dim)
	}
	return nil
}

// CheckInvariant verifies the record-level invariant that an embedding never
// exists without its reference photo. Stores call this before persisting.
func CheckInvariant(r *EnrollmentRecord) error {
	if r.HasEmbedding() && !r.HasPhoto() {
		return errors.New("invariant violation: embedding present without reference photo")
	}
	if r.HasEmbedding() && r.PhotoFingerprint == "" {
		return errors.New("invariant violation: embedding present without photo fingerprint")
	}
	return nil
}
