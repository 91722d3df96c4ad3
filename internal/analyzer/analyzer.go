package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// Analyzer discovers temporal, semantic, and breaking-change relationships
// between a target change record and a set of context records.
//
// Analyze never returns an error: a failure inside any of the three analyses
// yields an empty result with the error recorded in metadata, so that one bad
// document can never abort a processing batch.
type Analyzer struct {
	cfg      config.AnalysisConfig
	icfg     config.IntegrationConfig
	enhanced bool
	logger   *slog.Logger
}

// New creates a basic analyzer
func New(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{
		cfg:    cfg,
		logger: slog.Default().With("component", "analyzer"),
	}
}

// NewEnhanced creates an analyzer that additionally blends technology and
// architecture token weights into the same strength formulas. When those
// tokens are absent it scores exactly like the basic analyzer, so it is a
// strict superset and never produces less information.
func NewEnhanced(cfg config.AnalysisConfig, icfg config.IntegrationConfig) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		icfg:     icfg,
		enhanced: true,
		logger:   slog.Default().With("component", "analyzer", "variant", "enhanced"),
	}
}

// Analyze runs all three analyses for one target as independent concurrent
// operations over the same context set and assembles the combined result.
func (a *Analyzer) Analyze(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) *models.CorrelationAnalysisResult {
	start := time.Now()

	result := &models.CorrelationAnalysisResult{
		DocumentID: target.ID,
		Temporal:   []models.TemporalCorrelationResult{},
		Semantic:   []models.SemanticCorrelationResult{},
		Breaking:   []models.BreakingChangeResult{},
	}

	mode := models.ModeBasic
	if a.enhanced {
		mode = models.ModeEnhanced
	}

	var (
		temporal []models.TemporalCorrelationResult
		semantic []models.SemanticCorrelationResult
		breaking []models.BreakingChangeResult
	)

	// Fan-out/fan-in: three bounded concurrent analyses, awaited jointly.
	var g errgroup.Group
	g.Go(func() (err error) {
		defer absorbPanic(&err)
		temporal = a.temporalCorrelations(target, contextDocs)
		return nil
	})
	g.Go(func() (err error) {
		defer absorbPanic(&err)
		semantic = a.semanticCorrelations(target, contextDocs)
		return nil
	})
	g.Go(func() (err error) {
		defer absorbPanic(&err)
		breaking = a.detectBreakingChanges(target)
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("analysis failed",
			"document_id", target.ID,
			"error", err,
		)
		result.Metadata = models.AnalysisMetadata{
			AnalyzedAt:  start,
			Duration:    time.Since(start),
			Mode:        mode,
			RichContent: target.Content.IsRich(),
			ContextSize: len(contextDocs),
			Error:       err.Error(),
		}
		return result
	}

	result.Temporal = temporal
	result.Semantic = semantic
	result.Breaking = breaking
	result.Metadata = models.AnalysisMetadata{
		AnalyzedAt:  start,
		Duration:    time.Since(start),
		Mode:        mode,
		RichContent: target.Content.IsRich(),
		ContextSize: len(contextDocs),
	}

	a.logger.Debug("analysis complete",
		"document_id", target.ID,
		"temporal", len(temporal),
		"semantic", len(semantic),
		"breaking", len(breaking),
		"duration", result.Metadata.Duration,
	)

	return result
}

// absorbPanic converts a panic inside an analysis goroutine into an error so
// the failure surfaces through g.Wait instead of crashing the process.
func absorbPanic(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("analysis panic: %v", r)
	}
}

// richBonus computes the enhanced-mode strength bonus for a record pair.
// Returns zero for the basic analyzer or when no intelligence tokens overlap.
func (a *Analyzer) richBonus(target, doc models.ChangeRecord) (float64, []string) {
	if !a.enhanced {
		return 0, nil
	}

	var bonus float64
	var factors []string

	if ratio, shared := jaccardStrings(target.Content.Technologies, doc.Content.Technologies); ratio > 0 {
		bonus += a.icfg.TechnologyWeight * ratio
		factors = append(factors, fmt.Sprintf("shared technologies (%d)", len(shared)))
	}
	if ratio, shared := jaccardStrings(target.Content.ArchitecturePatterns, doc.Content.ArchitecturePatterns); ratio > 0 {
		bonus += a.icfg.ArchitectureWeight * ratio
		factors = append(factors, fmt.Sprintf("shared architecture patterns (%d)", len(shared)))
	}
	if target.Content.IsRich() && doc.Content.IsRich() {
		bonus += a.icfg.RichContentBonus
	}

	return bonus, factors
}

// sharedTechnologies returns the intersection of technology tags, used to
// annotate enhanced semantic results.
func (a *Analyzer) sharedTechnologies(target, doc models.ChangeRecord) []string {
	if !a.enhanced {
		return nil
	}
	_, shared := jaccardStrings(target.Content.Technologies, doc.Content.Technologies)
	return shared
}

// jaccardStrings computes Jaccard overlap of two string slices and returns
// the sorted intersection.
func jaccardStrings(a, b []string) (float64, []string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	var shared []string
	union := len(setB)
	for s := range setA {
		if setB[s] {
			shared = append(shared, s)
		} else {
			union++
		}
	}
	if union == 0 {
		return 0, nil
	}
	sort.Strings(shared)
	return float64(len(shared)) / float64(union), shared
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
