package main

import (
	"context"
	"fmt"

	"github.com/knowledgehub/knowledgehub-go/internal/analyzer"
	"github.com/knowledgehub/knowledgehub-go/internal/cache"
	"github.com/knowledgehub/knowledgehub-go/internal/integration"
	"github.com/knowledgehub/knowledgehub-go/internal/store"
)

// engineStack bundles the wired components so commands can close them in
// the right order.
type engineStack struct {
	store      store.DocumentStore
	integrator *integration.Integrator
	redis      *cache.Client
	closeStore func() error
}

// buildEngine wires the document store, shared cache, enricher, and both
// analyzers into an integrator. With no Postgres DSN configured it falls
// back to the in-memory store, which is only useful for smoke testing.
func buildEngine(ctx context.Context) (*engineStack, error) {
	stack := &engineStack{}

	if cfg.Storage.PostgresDSN != "" {
		pg, err := store.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		stack.store = pg
		stack.closeStore = pg.Close
	} else {
		logger.Warn("no postgres DSN configured, using in-memory store")
		stack.store = store.NewMemoryStore()
	}

	opts := integration.Options{
		Enricher:     integration.NewEnricher(nil, cfg.Enrichment),
		CacheResults: cfg.Cache.CacheAnalysisResults,
		ResultTTL:    cfg.Cache.TTL,
	}
	if cfg.Cache.RedisAddr != "" {
		redisClient, err := cache.NewClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.TTL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing with in-process cache only")
		} else {
			stack.redis = redisClient
			opts.SharedCache = redisClient
		}
	}

	basic := analyzer.New(cfg.Analysis)
	enhanced := analyzer.NewEnhanced(cfg.Analysis, cfg.Integration)
	stack.integrator = integration.New(basic, enhanced, cfg.Integration, opts)

	return stack, nil
}

// Close releases the stack's external connections
func (s *engineStack) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			logger.WithError(err).Warn("failed to close document store")
		}
	}
}
