package database

import (
	"time"
)

// EnrollmentState describes the lifecycle position of an enrollment record.
// Records move Empty -> PhotoOnly -> Embedded, fall back to PhotoOnly when a
// new photo replaces one before extraction succeeds, and return to Empty via
// clear. An embedding never exists without a reference photo.
type EnrollmentState string

const (
	StateEmpty     EnrollmentState = "empty"
	StatePhotoOnly EnrollmentState = "photo_only"
	StateEmbedded  EnrollmentState = "embedded"
)

// EnrollmentRecord is the durable biometric state for one identity. The
// identity itself (account, roles, profile) is owned by the external user
// management system; this record only attaches biometric data to it.
type EnrollmentRecord struct {
	IdentityID  string
	DisplayName string

	// ReferencePhoto is the raw bytes of the current enrollment photo.
	// May be present without an embedding (extraction failed or pending).
	ReferencePhoto []byte

	// PhotoFingerprint is the content hash of the photo that produced the
	// current embedding. Detects "photo changed since last extraction"
	// without recomputing.
	PhotoFingerprint string

	// Embedding is the face feature vector, exactly Dim elements when
	// present. Never hand-edited; only ever written together with the
	// fingerprint of the photo it was extracted from.
	Embedding  []float32
	Model      string
	Dim        int
	Confidence float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// State derives the lifecycle state from which fields are populated.
func (r *EnrollmentRecord) State() EnrollmentState {
	switch {
	case len(r.Embedding) > 0:
		return StateEmbedded
	case len(r.ReferencePhoto) > 0:
		return StatePhotoOnly
	default:
		return StateEmpty
	}
}

// HasPhoto reports whether a reference photo is stored.
func (r *EnrollmentRecord) HasPhoto() bool {
	return len(r.ReferencePhoto) > 0
}

// HasEmbedding reports whether an embedding is stored.
func (r *EnrollmentRecord) HasEmbedding() bool {
	return len(r.Embedding) > 0
}
