// Package memory provides an in-memory EnrollmentStore for tests and
// single-node development deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/condoplex/facegate/internal/database"
)

// Store is an in-memory enrollment store. Per-identity locks serialize
// read-modify-write cycles; the records map itself is guarded separately so
// cross-identity operations run in parallel.
type Store struct {
	dim int

	mu      sync.RWMutex
	records map[string]*database.EnrollmentRecord
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty in-memory store validating embeddings against dim.
func NewStore(dim int) *Store {
	return &Store{
		dim:     dim,
		records: make(map[string]*database.EnrollmentRecord),
		locks:   make(map[string]*sync.Mutex),
	}
}

// identityLock returns the mutex serializing updates for one identity.
func (s *Store) identityLock(identityID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[identityID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[identityID] = l
	}
	return l
}

// cloneRecord copies a record so callers never share slices with the store.
func cloneRecord(r *database.EnrollmentRecord, withPhoto bool) *database.EnrollmentRecord {
	c := *r
	c.Embedding = append([]float32(nil), r.Embedding...)
	if withPhoto {
		c.ReferencePhoto = append([]byte(nil), r.ReferencePhoto...)
	} else {
		c.ReferencePhoto = nil
	}
	return &c
}

func (s *Store) Get(ctx context.Context, identityID string) (*database.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[identityID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return cloneRecord(r, true), nil
}

func (s *Store) Update(ctx context.Context, identityID string, fn func(*database.EnrollmentRecord) error) (*database.EnrollmentRecord, error) {
	lock := s.identityLock(identityID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	existing, ok := s.records[identityID]
	s.mu.RUnlock()

	var working *database.EnrollmentRecord
	if ok {
		working = cloneRecord(existing, true)
	} else {
		now := time.Now()
		working = &database.EnrollmentRecord{IdentityID: identityID, CreatedAt: now}
	}

	if err := fn(working); err != nil {
		return nil, err
	}
	if err := database.ValidateEmbedding(working.Embedding, s.dim); err != nil {
		return nil, err
	}
	if err := database.CheckInvariant(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()

	s.mu.Lock()
	s.records[identityID] = working
	s.mu.Unlock()

	return cloneRecord(working, true), nil
}

func (s *Store) SnapshotEmbedded(ctx context.Context) ([]database.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.EnrollmentRecord
	for _, r := range s.records {
		if r.HasEmbedding() {
			out = append(out, *cloneRecord(r, false))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, nil
}

func (s *Store) List(ctx context.Context) ([]database.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]database.EnrollmentRecord, 0, len(s.records))
	for _, r := range s.records {
		c := *cloneRecord(r, false)
		// Preserve state visibility without shipping photo bytes.
		if r.HasPhoto() {
			c.ReferencePhoto = []byte{1}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Verify interface compliance.
var _ database.EnrollmentStore = (*Store)(nil)
