package biometric

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/condoplex/facegate/internal/database"
	"github.com/condoplex/facegate/internal/imaging"
)

// Service answers verification and identification requests. It owns no
// state; the store and matcher it wraps do.
type Service struct {
	store     database.EnrollmentStore
	extractor Extractor
	matcher   Matcher
	engine    *Engine
	issuer    TokenIssuer // optional
}

// NewService wires the verification service. issuer may be nil when face
// login is disabled; identification then returns decisions without sessions.
func NewService(store database.EnrollmentStore, ext Extractor, matcher Matcher, engine *Engine, issuer TokenIssuer) *Service {
	return &Service{store: store, extractor: ext, matcher: matcher, engine: engine, issuer: issuer}
}

// extractProbe decodes and embeds a probe image, mapping failures into the
// public taxonomy.
func (s *Service) extractProbe(ctx context.Context, probe []byte) ([]float32, string, error) {
	if _, err := imaging.Decode(probe); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	result, err := s.extractor.Extract(ctx, probe)
	if err != nil {
		return nil, "", mapExtractError(err)
	}
	return result.Embedding, result.Model, nil
}

// Verify runs a 1:1 comparison of the probe image against one identity's
// stored embedding. Only that identity's data is consulted.
//
// When the identity has a reference photo but no embedding yet, the probe
// falls back to a direct photo comparison so residents enrolled moments ago
// are not locked out while extraction retries.
func (s *Service) Verify(ctx context.Context, identityID string, probe []byte) (*Decision, error) {
	if identityID == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidInput)
	}

	rec, err := s.store.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, identityID)
		}
		return nil, err
	}

	if !rec.HasEmbedding() {
		if rec.HasPhoto() {
			return s.verifyFallback(ctx, rec, probe)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, identityID)
	}

	embedding, model, err := s.extractProbe(ctx, probe)
	if err != nil {
		return nil, err
	}

	d, err := Distance(embedding, rec.Embedding)
	if err != nil {
		return nil, err
	}

	return &Decision{
		AttemptID:   uuid.NewString(),
		Mode:        ModeVerify,
		Matched:     s.engine.Decide(d),
		Distance:    &d,
		Threshold:   s.engine.Threshold,
		IdentityID:  identityID,
		DisplayName: rec.DisplayName,
		Model:       model,
	}, nil
}

// verifyFallback compares the probe against the raw reference photo through
// the extraction service.
func (s *Service) verifyFallback(ctx context.Context, rec *database.EnrollmentRecord, probe []byte) (*Decision, error) {
	if _, err := imaging.Decode(probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result, err := s.extractor.Compare(ctx, probe, rec.ReferencePhoto)
	if err != nil {
		return nil, mapExtractError(err)
	}

	return &Decision{
		AttemptID:   uuid.NewString(),
		Mode:        ModeFallback,
		Matched:     result.Matched,
		Distance:    result.Distance,
		Threshold:   s.engine.Threshold,
		IdentityID:  rec.IdentityID,
		DisplayName: rec.DisplayName,
	}, nil
}

// Identify runs a 1:N search of the probe image over every embedded
// enrollment. A successful match mints a session when a token issuer is
// configured. No match is a normal outcome, reported in the decision rather
// than as an error; an ambiguous roster neighborhood is ErrAmbiguousMatch.
func (s *Service) Identify(ctx context.Context, probe []byte) (*Decision, *Session, error) {
	embedding, model, err := s.extractProbe(ctx, probe)
	if err != nil {
		return nil, nil, err
	}

	neighbors, err := s.matcher.Search(ctx, embedding, 2)
	if err != nil {
		return nil, nil, err
	}

	decision := &Decision{
		AttemptID: uuid.NewString(),
		Mode:      ModeIdentify,
		Threshold: s.engine.Threshold,
		Model:     model,
	}
	if len(neighbors) > 0 {
		decision.Distance = &neighbors[0].Distance
	}

	best, err := s.engine.Resolve(neighbors)
	if err != nil {
		return nil, nil, err
	}
	if best == nil {
		return decision, nil, nil
	}

	decision.Matched = true
	decision.IdentityID = best.IdentityID
	decision.DisplayName = best.DisplayName
	decision.Distance = &best.Distance

	var session *Session
	if s.issuer != nil {
		session, err = s.issuer.Issue(ctx, best.IdentityID, decision.AttemptID)
		if err != nil {
			return nil, nil, fmt.Errorf("issue session: %w", err)
		}
	}
	return decision, session, nil
}

// RosterEntry is one identity in the enrollment roster listing.
type RosterEntry struct {
	IdentityID  string                   `json:"identity_id"`
	DisplayName string                   `json:"display_name"`
	State       database.EnrollmentState `json:"state"`
	Model       string                   `json:"model,omitempty"`
}

// Roster lists enrollments, optionally filtered by a normalized display-name
// query so "jose garcia" finds "José García".
func (s *Service) Roster(ctx context.Context, query string) ([]RosterEntry, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	normalized := database.NormalizeDisplayName(query)
	entries := make([]RosterEntry, 0, len(records))
	for i := range records {
		r := &records[i]
		if normalized != "" &&
			!strings.Contains(database.NormalizeDisplayName(r.DisplayName), normalized) {
			continue
		}
		entries = append(entries, RosterEntry{
			IdentityID:  r.IdentityID,
			DisplayName: r.DisplayName,
			State:       r.State(),
			Model:       r.Model,
		})
	}
	return entries, nil
}
