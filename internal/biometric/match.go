package biometric

import (
	"context"
	"fmt"
	"math"

	"github.com/condoplex/facegate/internal/database"
)

// Distance computes the Euclidean (L2) distance between two embeddings.
// Accumulation happens in float64 so the result is deterministic for a given
// input pair regardless of call order.
func Distance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Neighbor is one candidate returned from a roster search, with its distance
// to the probe.
type Neighbor struct {
	IdentityID  string
	DisplayName string
	Distance    float64
}

// Matcher searches the embedded roster for the k nearest enrollments.
// Results are ordered by ascending distance. Candidates whose embedding
// length differs from the probe produce an error, never a silent skip.
type Matcher interface {
	Search(ctx context.Context, probe []float32, k int) ([]Neighbor, error)
}

// FlatMatcher scans every embedded enrollment on each search. The scan never
// exits early, so response time does not leak roster position. Suitable for
// rosters up to a few thousand residents.
type FlatMatcher struct {
	store database.EnrollmentStore
}

// NewFlatMatcher creates an exhaustive-scan matcher over the store.
func NewFlatMatcher(store database.EnrollmentStore) *FlatMatcher {
	return &FlatMatcher{store: store}
}

func (m *FlatMatcher) Search(ctx context.Context, probe []float32, k int) ([]Neighbor, error) {
	records, err := m.store.SnapshotEmbedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot embedded enrollments: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(records))
	for i := range records {
		r := &records[i]
		d, err := Distance(probe, r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", r.IdentityID, err)
		}
		neighbors = append(neighbors, Neighbor{
			IdentityID:  r.IdentityID,
			DisplayName: r.DisplayName,
			Distance:    d,
		})
	}

	sortNeighbors(neighbors)
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// sortNeighbors orders by ascending distance, breaking exact ties by identity
// ID so results are deterministic.
func sortNeighbors(ns []Neighbor) {
	for i := 1; i < len(ns); i++ {
		for j := i; j > 0 && less(ns[j], ns[j-1]); j-- {
			ns[j], ns[j-1] = ns[j-1], ns[j]
		}
	}
}

func less(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.IdentityID < b.IdentityID
}

// Engine applies the match decision rule to distances. The rule is strict:
// a distance exactly at the threshold is a non-match.
type Engine struct {
	// Threshold is the L2 decision boundary for the deployed model.
	Threshold float64
	// Margin is the maximum gap between best and second-best
	// below-threshold distances before identification is reported
	// ambiguous. Zero treats only exact ties as ambiguous.
	Margin float64
}

// Decide reports whether a distance counts as a match.
func (e *Engine) Decide(distance float64) bool {
	return distance < e.Threshold
}

// Resolve reduces a nearest-neighbor list to a single identification result.
// Returns nil with no error when nothing is below the threshold; returns
// ErrAmbiguousMatch when two candidates are below the threshold and too
// close to separate.
func (e *Engine) Resolve(neighbors []Neighbor) (*Neighbor, error) {
	if len(neighbors) == 0 || !e.Decide(neighbors[0].Distance) {
		return nil, nil
	}

	best := neighbors[0]
	if len(neighbors) > 1 {
		second := neighbors[1]
		if e.Decide(second.Distance) && second.Distance-best.Distance <= e.Margin {
			return nil, fmt.Errorf("%w: %s and %s within %g",
				ErrAmbiguousMatch, best.IdentityID, second.IdentityID, e.Margin)
		}
	}
	return &best, nil
}
