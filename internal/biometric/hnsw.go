package biometric

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/condoplex/facegate/internal/database"
)

const (
	hnswMaxNeighbors = 16
	// hnswSearchMultiplier oversizes graph queries so stale nodes filtered
	// out after removal still leave k live results.
	hnswSearchMultiplier = 4
)

// HNSWMatcher keeps an in-memory HNSW graph over the embedded roster for
// O(log N) approximate search. Enrollment changes are applied synchronously
// through Upsert and Remove so the graph never lags the store. Opt-in for
// large rosters; FlatMatcher stays the default.
type HNSWMatcher struct {
	store database.EnrollmentStore

	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	roster  map[string]Neighbor
	vectors map[string][]float32
}

// NewHNSWMatcher creates an empty matcher. Call Rebuild before first use.
func NewHNSWMatcher(store database.EnrollmentStore) *HNSWMatcher {
	return &HNSWMatcher{
		store:   store,
		roster:  make(map[string]Neighbor),
		vectors: make(map[string][]float32),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Rebuild reconstructs the graph from the store's embedded snapshot. Also
// the compaction path after many removals.
func (m *HNSWMatcher) Rebuild(ctx context.Context) error {
	records, err := m.store.SnapshotEmbedded(ctx)
	if err != nil {
		return fmt.Errorf("snapshot embedded enrollments: %w", err)
	}

	g := newGraph()
	roster := make(map[string]Neighbor, len(records))
	vectors := make(map[string][]float32, len(records))
	for i := range records {
		r := &records[i]
		g.Add(hnsw.MakeNode(r.IdentityID, r.Embedding))
		roster[r.IdentityID] = Neighbor{IdentityID: r.IdentityID, DisplayName: r.DisplayName}
		vectors[r.IdentityID] = r.Embedding
	}

	m.mu.Lock()
	m.graph = g
	m.roster = roster
	m.vectors = vectors
	m.mu.Unlock()
	return nil
}

// Upsert inserts or refreshes one identity after its enrollment changed.
// Records without an embedding are removed instead.
func (m *HNSWMatcher) Upsert(record *database.EnrollmentRecord) {
	if !record.HasEmbedding() {
		m.Remove(record.IdentityID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.graph == nil {
		m.graph = newGraph()
	}
	m.graph.Add(hnsw.MakeNode(record.IdentityID, record.Embedding))
	m.roster[record.IdentityID] = Neighbor{
		IdentityID:  record.IdentityID,
		DisplayName: record.DisplayName,
	}
	m.vectors[record.IdentityID] = record.Embedding
}

// Remove drops an identity from search results. The graph node stays until
// the next Rebuild; searches filter it out through the roster map.
func (m *HNSWMatcher) Remove(identityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roster, identityID)
	delete(m.vectors, identityID)
}

// Count returns the number of live identities in the index.
func (m *HNSWMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roster)
}

func (m *HNSWMatcher) Search(ctx context.Context, probe []float32, k int) ([]Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph == nil || len(m.roster) == 0 {
		return nil, nil
	}

	searchK := k * hnswSearchMultiplier
	if searchK < k+8 {
		searchK = k + 8
	}

	nodes := m.graph.Search(probe, searchK)

	neighbors := make([]Neighbor, 0, k)
	for _, n := range nodes {
		meta, live := m.roster[n.Key]
		if !live {
			continue
		}
		// Exact distance from the live vector; the graph node may hold a
		// superseded embedding.
		d, err := Distance(probe, m.vectors[n.Key])
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", n.Key, err)
		}
		meta.Distance = d
		neighbors = append(neighbors, meta)
		if len(neighbors) >= k {
			break
		}
	}

	sortNeighbors(neighbors)
	return neighbors, nil
}

// Verify interface compliance.
var (
	_ Matcher = (*FlatMatcher)(nil)
	_ Matcher = (*HNSWMatcher)(nil)
)
