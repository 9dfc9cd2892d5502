package biometric

import (
	"context"
	"errors"
	"fmt"

	"github.com/condoplex/facegate/internal/database"
	"github.com/condoplex/facegate/internal/extractor"
	"github.com/condoplex/facegate/internal/imaging"
)

// Extractor is the embedding service surface the manager depends on.
// *extractor.Client satisfies it; tests substitute fakes.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) (*extractor.Result, error)
	Compare(ctx context.Context, imageA, imageB []byte) (*extractor.CompareResult, error)
	Model() string
}

// RosterIndex receives enrollment changes so an in-memory search index stays
// consistent with the store. Updates happen synchronously on the enrollment
// path, never as a storage-layer side effect.
type RosterIndex interface {
	Upsert(record *database.EnrollmentRecord)
	Remove(identityID string)
}

// Manager drives the enrollment lifecycle: photo intake, embedding
// extraction, stale-embedding invalidation and clearing.
type Manager struct {
	store     database.EnrollmentStore
	extractor Extractor
	index     RosterIndex // optional
	dim       int
}

// NewManager creates an enrollment manager. index may be nil when no
// in-memory search index is in use.
func NewManager(store database.EnrollmentStore, ext Extractor, index RosterIndex, dim int) *Manager {
	return &Manager{store: store, extractor: ext, index: index, dim: dim}
}

// mapExtractError translates extractor failures into the public taxonomy.
func mapExtractError(err error) error {
	switch {
	case errors.Is(err, extractor.ErrNoFaceFound):
		return fmt.Errorf("%w", ErrNoFaceDetected)
	case errors.Is(err, extractor.ErrDecode):
		return fmt.Errorf("%w", ErrInvalidInput)
	case errors.Is(err, extractor.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w", ErrExtractionTimeout)
	default:
		return err
	}
}

// Enroll stores photo as the identity's reference photo and extracts its
// embedding.
//
// The photo is persisted before extraction is attempted, so a failed or
// timed-out extraction still leaves the identity in the PhotoOnly state with
// the new photo on record. A photo identical to the one that produced the
// current embedding short-circuits without calling the extractor. When the
// photo changes, the old embedding is invalidated in the same write that
// stores the new photo; no intermediate state pairs the new photo with the
// old embedding.
func (m *Manager) Enroll(ctx context.Context, identityID, displayName string, photo []byte) (*database.EnrollmentRecord, error) {
	if identityID == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidInput)
	}
	if _, err := imaging.Decode(photo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fingerprint := imaging.Fingerprint(photo)

	// Unchanged photo with a live embedding: nothing to extract.
	if existing, err := m.store.Get(ctx, identityID); err == nil {
		if existing.HasEmbedding() && existing.PhotoFingerprint == fingerprint {
			if displayName == "" || displayName == existing.DisplayName {
				return existing, nil
			}
			return m.store.Update(ctx, identityID, func(r *database.EnrollmentRecord) error {
				r.DisplayName = displayName
				return nil
			})
		}
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	// Phase one: persist the photo, drop any embedding from a previous photo.
	rec, err := m.store.Update(ctx, identityID, func(r *database.EnrollmentRecord) error {
		r.ReferencePhoto = photo
		if displayName != "" {
			r.DisplayName = displayName
		}
		if r.PhotoFingerprint != fingerprint {
			r.Embedding = nil
			r.PhotoFingerprint = ""
			r.Model = ""
			r.Confidence = 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.index != nil {
		m.index.Upsert(rec)
	}

	result, err := m.extractor.Extract(ctx, photo)
	if err != nil {
		return rec, mapExtractError(err)
	}
	if err := database.ValidateEmbedding(result.Embedding, m.dim); err != nil {
		return rec, fmt.Errorf("%w: extractor returned %d values, expected %d",
			ErrDimensionMismatch, len(result.Embedding), m.dim)
	}

	// Phase two: commit the embedding only if the photo it came from is
	// still the stored one. A concurrent enroll that replaced the photo
	// wins; its own extraction will fill the embedding in.
	rec, err = m.store.Update(ctx, identityID, func(r *database.EnrollmentRecord) error {
		if imaging.Fingerprint(r.ReferencePhoto) != fingerprint {
			return nil
		}
		r.Embedding = result.Embedding
		r.PhotoFingerprint = fingerprint
		r.Model = result.Model
		r.Dim = len(result.Embedding)
		r.Confidence = result.Confidence
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.index != nil {
		m.index.Upsert(rec)
	}
	return rec, nil
}

// Clear removes the identity's photo and embedding, returning the record to
// the Empty state. The record itself is kept.
func (m *Manager) Clear(ctx context.Context, identityID string) error {
	if _, err := m.store.Get(ctx, identityID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, identityID)
		}
		return err
	}

	_, err := m.store.Update(ctx, identityID, func(r *database.EnrollmentRecord) error {
		r.ReferencePhoto = nil
		r.PhotoFingerprint = ""
		r.Embedding = nil
		r.Model = ""
		r.Confidence = 0
		return nil
	})
	if err != nil {
		return err
	}
	if m.index != nil {
		m.index.Remove(identityID)
	}
	return nil
}

// Status returns the identity's enrollment record without photo bytes.
func (m *Manager) Status(ctx context.Context, identityID string) (*database.EnrollmentRecord, error) {
	rec, err := m.store.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identityID)
		}
		return nil, err
	}
	rec.ReferencePhoto = nil
	return rec, nil
}

// Reenroll re-extracts the embedding from the stored reference photo, used
// after an extractor model upgrade. Unlike Enroll it never short-circuits on
// an unchanged photo.
func (m *Manager) Reenroll(ctx context.Context, identityID string) (*database.EnrollmentRecord, error) {
	rec, err := m.store.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identityID)
		}
		return nil, err
	}
	if !rec.HasPhoto() {
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, identityID)
	}
	fingerprint := imaging.Fingerprint(rec.ReferencePhoto)

	result, err := m.extractor.Extract(ctx, rec.ReferencePhoto)
	if err != nil {
		return rec, mapExtractError(err)
	}
	if err := database.ValidateEmbedding(result.Embedding, m.dim); err != nil {
		return rec, fmt.Errorf("%w: extractor returned %d values, expected %d",
			ErrDimensionMismatch, len(result.Embedding), m.dim)
	}

	rec, err = m.store.Update(ctx, identityID, func(r *database.EnrollmentRecord) error {
		// A concurrent enroll that swapped the photo wins.
		if imaging.Fingerprint(r.ReferencePhoto) != fingerprint {
			return nil
		}
		r.Embedding = result.Embedding
		r.PhotoFingerprint = fingerprint
		r.Model = result.Model
		r.Dim = len(result.Embedding)
		r.Confidence = result.Confidence
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.index != nil {
		m.index.Upsert(rec)
	}
	return rec, nil
}
