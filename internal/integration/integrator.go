package integration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/knowledgehub/knowledgehub-go/internal/cache"
	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/kherrors"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// Analyzer is the contract both the basic and enhanced analyzers satisfy.
// Implementations never return an error; internal failures are recorded in
// result metadata.
type Analyzer interface {
	Analyze(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) *models.CorrelationAnalysisResult
}

// SharedCache is the optional process-external result cache (Redis-backed in
// production). Get reports a miss as (false, nil), not an error.
type SharedCache interface {
	Get(ctx context.Context, key string, target any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// sharedInvalidator is the optional bulk-invalidation capability of a
// SharedCache; the Redis client satisfies it.
type sharedInvalidator interface {
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// Options configures optional integrator collaborators
type Options struct {
	Enricher     *Enricher
	SharedCache  SharedCache
	CacheResults bool
	ResultTTL    time.Duration
}

// Integrator selects an analysis mode per call (auto, enhanced, basic,
// hybrid), owns the richness-classification cache, and handles
// timeout/failure fallback from enhanced to basic analysis.
type Integrator struct {
	basic    Analyzer
	enhanced Analyzer
	cfg      config.IntegrationConfig
	opts     Options

	richness *gocache.Cache // document ID -> bool, no eviction
	results  *gocache.Cache // in-process result cache, nil when disabled

	fallbacks atomic.Int64
	logger    *slog.Logger
}

// New creates an integrator over the two analyzers
func New(basic, enhanced Analyzer, cfg config.IntegrationConfig, opts Options) *Integrator {
	i := &Integrator{
		basic:    basic,
		enhanced: enhanced,
		cfg:      cfg,
		opts:     opts,
		richness: gocache.New(gocache.NoExpiration, 0),
		logger:   slog.Default().With("component", "integrator"),
	}
	if opts.CacheResults {
		ttl := opts.ResultTTL
		if ttl == 0 {
			ttl = 15 * time.Minute
		}
		i.results = gocache.New(ttl, 2*ttl)
	}
	return i
}

// Analyze picks a mode, runs the appropriate analyzer(s), and returns a
// unified result. On any unhandled failure it makes one last-resort attempt
// with the basic analyzer; only if that also fails does the error propagate.
func (i *Integrator) Analyze(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) (*models.CorrelationAnalysisResult, error) {
	result, err := i.analyze(ctx, target, contextDocs)
	if err == nil {
		return result, nil
	}

	i.logger.Warn("analysis failed, attempting basic fallback",
		"document_id", target.ID,
		"error", err,
	)
	i.fallbacks.Add(1)

	fallback := i.basic.Analyze(ctx, target, contextDocs)
	if fallback == nil || fallback.Metadata.Error != "" {
		return nil, kherrors.AnalysisError(err, "analysis failed and basic fallback also failed")
	}
	fallback.Metadata.Mode = models.ModeBasic
	return fallback, nil
}

func (i *Integrator) analyze(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) (*models.CorrelationAnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cached := i.cachedResult(ctx, target); cached != nil {
		return cached, nil
	}

	// Opportunistic enrichment, copy-on-write: originals are never mutated.
	target = i.enrichRecord(ctx, target)
	enriched := make([]models.ChangeRecord, len(contextDocs))
	for idx, doc := range contextDocs {
		enriched[idx] = i.enrichRecord(ctx, doc)
	}

	mode := i.selectMode(target, enriched)
	i.logger.Debug("analysis mode selected",
		"document_id", target.ID,
		"mode", mode,
		"context_size", len(enriched),
	)

	var result *models.CorrelationAnalysisResult
	var err error
	switch mode {
	case models.ModeEnhanced:
		result, err = i.runEnhanced(ctx, target, enriched)
	case models.ModeHybrid:
		result, err = i.runHybrid(ctx, target, enriched)
	default:
		result = i.basic.Analyze(ctx, target, enriched)
		result.Metadata.Mode = models.ModeBasic
	}
	if err != nil {
		return nil, err
	}
	if result.Metadata.Error != "" {
		return nil, kherrors.AnalysisError(fmt.Errorf("%s", result.Metadata.Error), "analyzer reported internal failure")
	}

	i.storeResult(ctx, target, result)
	return result, nil
}

// selectMode implements the mode state machine. A configured mode wins; in
// auto mode the rich-content coverage of target plus context decides.
func (i *Integrator) selectMode(target models.ChangeRecord, contextDocs []models.ChangeRecord) models.AnalysisMode {
	switch strings.ToLower(i.cfg.AnalysisMode) {
	case "enhanced":
		return models.ModeEnhanced
	case "basic":
		return models.ModeBasic
	case "hybrid":
		return models.ModeHybrid
	}

	rich := 0
	if i.isRich(target) {
		rich++
	}
	for _, doc := range contextDocs {
		if i.isRich(doc) {
			rich++
		}
	}
	coverage := float64(rich) / float64(1+len(contextDocs))
	if coverage >= i.cfg.EnhancedThreshold {
		return models.ModeEnhanced
	}
	return models.ModeBasic
}

// isRich classifies a document's content richness, cached per document ID
// for the lifetime of the integrator.
func (i *Integrator) isRich(rec models.ChangeRecord) bool {
	if cached, found := i.richness.Get(rec.ID); found {
		return cached.(bool)
	}
	rich := rec.Content.IsRich()
	i.richness.Set(rec.ID, rich, gocache.NoExpiration)
	return rich
}

// runEnhanced executes the enhanced analyzer bounded by the fallback timeout.
// On timeout the basic analyzer takes over and the fallback counter
// increments; the timeout itself is never surfaced.
func (i *Integrator) runEnhanced(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) (*models.CorrelationAnalysisResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, i.cfg.FallbackTimeout)
	defer cancel()

	done := make(chan *models.CorrelationAnalysisResult, 1)
	go func() {
		done <- i.enhanced.Analyze(timeoutCtx, target, contextDocs)
	}()

	select {
	case result := <-done:
		result.Metadata.Mode = models.ModeEnhanced
		return result, nil
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i.fallbacks.Add(1)
		i.logger.Warn("enhanced analysis timed out, falling back to basic",
			"document_id", target.ID,
			"timeout", i.cfg.FallbackTimeout,
		)
		result := i.basic.Analyze(ctx, target, contextDocs)
		result.Metadata.Mode = models.ModeBasic
		return result, nil
	}
}

// runHybrid races the enhanced and basic analyzers, prefers the enhanced
// result when it completed within the timeout, and attaches counts from both
// for comparison.
func (i *Integrator) runHybrid(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) (*models.CorrelationAnalysisResult, error) {
	var enhancedResult, basicResult *models.CorrelationAnalysisResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		basicResult = i.basic.Analyze(gctx, target, contextDocs)
		return nil
	})
	g.Go(func() error {
		timeoutCtx, cancel := context.WithTimeout(gctx, i.cfg.FallbackTimeout)
		defer cancel()

		done := make(chan *models.CorrelationAnalysisResult, 1)
		go func() {
			done <- i.enhanced.Analyze(timeoutCtx, target, contextDocs)
		}()
		select {
		case r := <-done:
			enhancedResult = r
		case <-timeoutCtx.Done():
			// basic result carries the batch
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compare := &models.HybridStats{}
	if basicResult != nil {
		compare.BasicCorrelations = basicResult.TotalCorrelations()
	}
	if enhancedResult != nil {
		compare.EnhancedCorrelations = enhancedResult.TotalCorrelations()
	}

	result := basicResult
	if enhancedResult != nil {
		result = enhancedResult
	} else {
		i.fallbacks.Add(1)
	}
	if result == nil {
		return nil, kherrors.New(kherrors.ErrorTypeAnalysis, "hybrid analysis produced no result")
	}
	result.Metadata.Mode = models.ModeHybrid
	result.Metadata.HybridCompare = compare
	return result, nil
}

// enrichRecord returns an enriched copy of the record when it lacks richness
// markers, or the record unchanged.
func (i *Integrator) enrichRecord(ctx context.Context, rec models.ChangeRecord) models.ChangeRecord {
	if rec.Content.IsRich() || i.opts.Enricher == nil {
		return rec
	}
	enriched, err := i.opts.Enricher.Enrich(ctx, rec)
	if err != nil {
		i.logger.Debug("enrichment failed, using original record",
			"document_id", rec.ID,
			"error", err,
		)
		return rec
	}
	return enriched
}

func (i *Integrator) cachedResult(ctx context.Context, target models.ChangeRecord) *models.CorrelationAnalysisResult {
	key := cache.AnalysisCacheKey(target.Repository, target.ID)

	if i.results != nil {
		if cached, found := i.results.Get(key); found {
			result := cached.(models.CorrelationAnalysisResult)
			result.Metadata.CacheHit = true
			return &result
		}
	}
	if i.opts.SharedCache != nil && i.opts.CacheResults {
		var result models.CorrelationAnalysisResult
		hit, err := i.opts.SharedCache.Get(ctx, key, &result)
		if err != nil {
			i.logger.Debug("shared cache read failed", "key", key, "error", err)
			return nil
		}
		if hit {
			result.Metadata.CacheHit = true
			return &result
		}
	}
	return nil
}

func (i *Integrator) storeResult(ctx context.Context, target models.ChangeRecord, result *models.CorrelationAnalysisResult) {
	if result == nil {
		return
	}
	key := cache.AnalysisCacheKey(target.Repository, target.ID)

	if i.results != nil {
		i.results.Set(key, *result, gocache.DefaultExpiration)
	}
	if i.opts.SharedCache != nil && i.opts.CacheResults {
		if err := i.opts.SharedCache.Set(ctx, key, result); err != nil {
			i.logger.Debug("shared cache write failed", "key", key, "error", err)
		}
	}
}

// FallbackCount returns how many times analysis fell back to the basic path
func (i *Integrator) FallbackCount() int64 {
	return i.fallbacks.Load()
}

// ClearCaches drops the richness classifications and cached results in every
// tier, including the shared cache when it supports pattern invalidation.
func (i *Integrator) ClearCaches(ctx context.Context) {
	i.richness.Flush()
	if i.results != nil {
		i.results.Flush()
	}
	if inv, ok := i.opts.SharedCache.(sharedInvalidator); ok && i.opts.CacheResults {
		if _, err := inv.DeletePattern(ctx, "analysis:*"); err != nil {
			i.logger.Debug("shared cache invalidation failed", "error", err)
		}
	}
}
