package biometric

import "errors"

// Sentinel errors for biometric operations. Callers branch on these with
// errors.Is; the HTTP layer maps them to status codes and stable error codes
// without exposing internal detail.
var (
	// ErrInvalidInput indicates the submitted image could not be decoded.
	ErrInvalidInput = errors.New("image data could not be decoded")

	// ErrNotEnrolled indicates the identity has no usable biometric
	// enrollment. A missing record and an empty record are reported the
	// same way.
	ErrNotEnrolled = errors.New("identity has no usable enrollment")

	// ErrNoFaceDetected indicates the extractor found no face in an
	// otherwise valid image.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrDimensionMismatch indicates two embeddings of different lengths
	// were compared. This is a deployment bug, never a user error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrAmbiguousMatch indicates identification found more than one
	// enrolled identity within the threshold, too close to separate.
	ErrAmbiguousMatch = errors.New("multiple enrolled identities match")

	// ErrExtractionTimeout indicates the embedding service did not answer
	// within the configured deadline.
	ErrExtractionTimeout = errors.New("embedding extraction timed out")

	// ErrNotFound indicates the referenced identity does not exist.
	ErrNotFound = errors.New("identity not found")
)
