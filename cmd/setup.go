package cmd

import (
	"context"
	"fmt"

	"github.com/condoplex/facegate/internal/auth"
	"github.com/condoplex/facegate/internal/biometric"
	"github.com/condoplex/facegate/internal/config"
	"github.com/condoplex/facegate/internal/database"
	"github.com/condoplex/facegate/internal/database/memory"
	"github.com/condoplex/facegate/internal/database/postgres"
	"github.com/condoplex/facegate/internal/extractor"
)

// services bundles the wired application components for a command run.
type services struct {
	cfg     *config.Config
	store   database.EnrollmentStore
	client  *extractor.Client
	manager *biometric.Manager
	service *biometric.Service
	tokens  *auth.Manager // nil when AUTH_JWT_SECRET is unset

	closeFn func() error
}

func (s *services) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

// buildServices wires store, extractor, matcher and services from the
// environment. Without DATABASE_URL an in-memory store is used; fine for
// the CLI, useless for a real deployment.
func buildServices(ctx context.Context) (*services, error) {
	cfg := config.Load()

	var store database.EnrollmentStore
	closeFn := func() error { return nil }
	if cfg.Database.URL != "" {
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("initializing PostgreSQL: %w", err)
		}
		store = postgres.NewEnrollmentRepository(pool, cfg.Extractor.Dim)
		closeFn = pool.Close
	} else {
		fmt.Println("DATABASE_URL not set, using in-memory store")
		store = memory.NewStore(cfg.Extractor.Dim)
	}

	client := extractor.NewClient(
		cfg.Extractor.URL,
		cfg.Extractor.Model,
		cfg.Extractor.Timeout,
		cfg.Extractor.Workers,
	)

	var matcher biometric.Matcher
	var index biometric.RosterIndex
	if cfg.Match.Index == "hnsw" {
		hnswMatcher := biometric.NewHNSWMatcher(store)
		if err := hnswMatcher.Rebuild(ctx); err != nil {
			closeFn()
			return nil, fmt.Errorf("building HNSW index: %w", err)
		}
		fmt.Printf("HNSW index built with %d identities\n", hnswMatcher.Count())
		matcher = hnswMatcher
		index = hnswMatcher
	} else {
		matcher = biometric.NewFlatMatcher(store)
	}

	var tokens *auth.Manager
	if cfg.Auth.JWTSecret != "" {
		var err error
		tokens, err = auth.NewManager(&cfg.Auth)
		if err != nil {
			closeFn()
			return nil, fmt.Errorf("initializing token manager: %w", err)
		}
	}

	engine := &biometric.Engine{
		Threshold: cfg.EffectiveThreshold(),
		Margin:    cfg.Match.AmbiguityMargin,
	}

	manager := biometric.NewManager(store, client, index, cfg.Extractor.Dim)

	var issuer biometric.TokenIssuer
	if tokens != nil {
		issuer = tokens
	}
	service := biometric.NewService(store, client, matcher, engine, issuer)

	return &services{
		cfg:     cfg,
		store:   store,
		client:  client,
		manager: manager,
		service: service,
		tokens:  tokens,
		closeFn: closeFn,
	}, nil
}
