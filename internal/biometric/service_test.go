package biometric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/condoplex/facegate/internal/database"
	"github.com/condoplex/facegate/internal/database/memory"
	"github.com/condoplex/facegate/internal/extractor"
)

type fakeIssuer struct {
	issued []string
}

func (f *fakeIssuer) Issue(ctx context.Context, identityID, attemptID string) (*Session, error) {
	f.issued = append(f.issued, identityID)
	return &Session{
		AccessToken:  "access-" + identityID,
		RefreshToken: "refresh-" + identityID,
		ExpiresAt:    time.Now().Add(30 * time.Minute),
	}, nil
}

func newTestService(t *testing.T, store database.EnrollmentStore, ext Extractor, issuer TokenIssuer) *Service {
	t.Helper()
	engine := &Engine{Threshold: 0.5, Margin: 0.01}
	return NewService(store, ext, NewFlatMatcher(store), engine, issuer)
}

func TestVerify_Match(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{
		"alice": {0, 0, 0, 0},
	})
	ext := okExtractor([]float32{0.1, 0, 0, 0})
	svc := newTestService(t, store, ext, nil)

	d, err := svc.Verify(context.Background(), "alice", testPhoto(t, 1))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !d.Matched {
		t.Error("expected match")
	}
	if d.Mode != ModeVerify {
		t.Errorf("expected verify mode, got %s", d.Mode)
	}
	if d.Distance == nil || *d.Distance >= 0.5 {
		t.Errorf("unexpected distance %v", d.Distance)
	}
	if d.AttemptID == "" {
		t.Error("attempt ID missing")
	}
}

func TestVerify_NonMatch(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{
		"alice": {5, 5, 5, 5},
	})
	ext := okExtractor([]float32{0, 0, 0, 0})
	svc := newTestService(t, store, ext, nil)

	d, err := svc.Verify(context.Background(), "alice", testPhoto(t, 1))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if d.Matched {
		t.Error("expected non-match")
	}
	if d.IdentityID != "alice" {
		t.Errorf("decision must name the subject, got %q", d.IdentityID)
	}
}

func TestVerify_NotEnrolled(t *testing.T) {
	store := memory.NewStore(4)
	svc := newTestService(t, store, okExtractor([]float32{0, 0, 0, 0}), nil)

	// Missing record.
	if _, err := svc.Verify(context.Background(), "nobody", testPhoto(t, 1)); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("missing record: expected ErrNotEnrolled, got %v", err)
	}

	// Present but empty record reports the same.
	_, err := store.Update(context.Background(), "ghost", func(r *database.EnrollmentRecord) error {
		r.DisplayName = "Ghost"
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed empty record: %v", err)
	}
	if _, err := svc.Verify(context.Background(), "ghost", testPhoto(t, 1)); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("empty record: expected ErrNotEnrolled, got %v", err)
	}
}

func TestVerify_FallbackWithoutEmbedding(t *testing.T) {
	store := memory.NewStore(4)
	_, err := store.Update(context.Background(), "alice", func(r *database.EnrollmentRecord) error {
		r.DisplayName = "Alice"
		r.ReferencePhoto = testPhoto(t, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed photo-only record: %v", err)
	}

	dist := 0.3
	ext := &fakeExtractor{compare: &extractor.CompareResult{Matched: true, Distance: &dist}}
	svc := newTestService(t, store, ext, nil)

	d, err := svc.Verify(context.Background(), "alice", testPhoto(t, 2))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if d.Mode != ModeFallback {
		t.Errorf("expected fallback mode, got %s", d.Mode)
	}
	if !d.Matched {
		t.Error("expected fallback match")
	}
	if ext.compareCalls != 1 || ext.extractCalls != 0 {
		t.Errorf("expected one Compare call and no Extract calls, got %d/%d",
			ext.compareCalls, ext.extractCalls)
	}
}

func TestVerify_InvalidProbe(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{"alice": {0, 0, 0, 0}})
	svc := newTestService(t, store, okExtractor([]float32{0, 0, 0, 0}), nil)

	if _, err := svc.Verify(context.Background(), "alice", []byte("junk")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVerify_DimensionMismatch(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{"alice": {0, 0, 0, 0}})
	// Extractor suddenly serves a different model dimension.
	ext := okExtractor([]float32{0, 0, 0})
	svc := newTestService(t, store, ext, nil)

	if _, err := svc.Verify(context.Background(), "alice", testPhoto(t, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestVerify_NoFace(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{"alice": {0, 0, 0, 0}})
	ext := &fakeExtractor{err: extractor.ErrNoFaceFound}
	svc := newTestService(t, store, ext, nil)

	if _, err := svc.Verify(context.Background(), "alice", testPhoto(t, 1)); !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestIdentify_MatchIssuesSession(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{
		"alice": {0, 0, 0, 0},
		"bob":   {5, 5, 5, 5},
	})
	ext := okExtractor([]float32{0.1, 0, 0, 0})
	issuer := &fakeIssuer{}
	svc := newTestService(t, store, ext, issuer)

	d, session, err := svc.Identify(context.Background(), testPhoto(t, 1))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if !d.Matched || d.IdentityID != "alice" {
		t.Fatalf("expected alice, got %+v", d)
	}
	if d.Mode != ModeIdentify {
		t.Errorf("expected identify mode, got %s", d.Mode)
	}
	if session == nil || session.AccessToken != "access-alice" {
		t.Errorf("expected session for alice, got %+v", session)
	}
	if len(issuer.issued) != 1 || issuer.issued[0] != "alice" {
		t.Errorf("unexpected issuer calls: %v", issuer.issued)
	}
}

func TestIdentify_NoMatchIsNotAnError(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{
		"alice": {5, 5, 5, 5},
	})
	ext := okExtractor([]float32{0, 0, 0, 0})
	issuer := &fakeIssuer{}
	svc := newTestService(t, store, ext, issuer)

	d, session, err := svc.Identify(context.Background(), testPhoto(t, 1))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if d.Matched {
		t.Error("expected no match")
	}
	if session != nil {
		t.Error("no session without a match")
	}
	if d.Distance == nil {
		t.Error("best distance should be reported even without a match")
	}
	if len(issuer.issued) != 0 {
		t.Error("issuer must not be called without a match")
	}
}

func TestIdentify_EmptyRoster(t *testing.T) {
	svc := newTestService(t, memory.NewStore(4), okExtractor([]float32{0, 0, 0, 0}), nil)

	d, _, err := svc.Identify(context.Background(), testPhoto(t, 1))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if d.Matched {
		t.Error("expected no match on empty roster")
	}
}

func TestIdentify_Ambiguous(t *testing.T) {
	store := embeddedStore(t, 4, map[string][]float32{
		"alice": {0.1, 0, 0, 0},
		"bob":   {0.1, 0.001, 0, 0},
	})
	ext := okExtractor([]float32{0, 0, 0, 0})
	issuer := &fakeIssuer{}
	svc := newTestService(t, store, ext, issuer)

	_, _, err := svc.Identify(context.Background(), testPhoto(t, 1))
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
	if len(issuer.issued) != 0 {
		t.Error("issuer must not be called on ambiguity")
	}
}

func TestRoster(t *testing.T) {
	store := memory.NewStore(4)
	seed := func(id, name string, emb []float32) {
		_, err := store.Update(context.Background(), id, func(r *database.EnrollmentRecord) error {
			r.DisplayName = name
			r.ReferencePhoto = []byte{0xFF}
			if emb != nil {
				r.PhotoFingerprint = "fp-" + id
				r.Embedding = emb
			}
			return nil
		})
		if err != nil {
			t.Fatalf("failed to seed %s: %v", id, err)
		}
	}
	seed("u1", "José García", []float32{1, 0, 0, 0})
	seed("u2", "Jan Novák", []float32{0, 1, 0, 0})
	seed("u3", "Pending Person", nil)

	svc := newTestService(t, store, okExtractor(nil), nil)

	all, err := svc.Roster(context.Background(), "")
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[2].State != database.StatePhotoOnly {
		t.Errorf("expected photo_only for pending entry, got %s", all[2].State)
	}

	// Diacritics-insensitive filter.
	filtered, err := svc.Roster(context.Background(), "jose garcia")
	if err != nil {
		t.Fatalf("Roster filter failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].IdentityID != "u1" {
		t.Errorf("unexpected filter result: %v", filtered)
	}
}
