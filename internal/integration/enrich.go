package integration

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// IntelligenceClient looks up technology/architecture tags for a change
// record from an external intelligence service.
type IntelligenceClient interface {
	Lookup(ctx context.Context, rec models.ChangeRecord) (technologies, patterns []string, err error)
}

// Enricher derives richness markers for records that lack them, either via
// the intelligence service or by pattern-matching against a fixed
// vocabulary. Lookups are rate limited; enrichment is always copy-on-write.
type Enricher struct {
	client  IntelligenceClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEnricher creates an enricher; client may be nil, in which case only the
// vocabulary heuristics apply.
func NewEnricher(client IntelligenceClient, cfg config.EnrichmentConfig) *Enricher {
	limit := rate.Limit(cfg.LookupRateLimit)
	if cfg.LookupRateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.LookupBurst
	if burst < 1 {
		burst = 1
	}
	return &Enricher{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default().With("component", "enricher"),
	}
}

// Enrich returns a copy of the record with derived technology and
// architecture tags merged in. The input record is never mutated.
func (e *Enricher) Enrich(ctx context.Context, rec models.ChangeRecord) (models.ChangeRecord, error) {
	if e.client != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return rec, err
		}
		technologies, patterns, err := e.client.Lookup(ctx, rec)
		if err != nil {
			e.logger.Debug("intelligence lookup failed, using vocabulary heuristics",
				"document_id", rec.ID,
				"error", err,
			)
		} else if len(technologies) > 0 || len(patterns) > 0 {
			return rec.WithEnrichment(technologies, patterns), nil
		}
	}

	technologies, patterns := matchVocabulary(rec)
	if len(technologies) == 0 && len(patterns) == 0 {
		return rec, nil
	}
	return rec.WithEnrichment(technologies, patterns), nil
}

// technologyVocabulary is the fixed set of recognizable stack tokens
var technologyVocabulary = []string{
	"postgres", "mysql", "sqlite", "redis", "kafka", "rabbitmq", "nats",
	"grpc", "graphql", "protobuf", "docker", "kubernetes", "terraform",
	"react", "vue", "django", "flask", "spring", "rails",
	"elasticsearch", "s3", "lambda", "dynamodb",
}

// architectureVocabulary is the fixed set of recognizable pattern tokens
var architectureVocabulary = []string{
	"microservice", "monolith", "event-driven", "cqrs", "saga",
	"pipeline", "worker-queue", "pubsub", "gateway", "sidecar",
}

// matchVocabulary heuristically derives tags by matching repository/service
// names, file paths, and the commit message against the fixed vocabularies.
func matchVocabulary(rec models.ChangeRecord) ([]string, []string) {
	var sb strings.Builder
	sb.WriteString(rec.Repository)
	sb.WriteString(" ")
	sb.WriteString(rec.CommitMessage)
	for _, f := range rec.FilesChanged {
		sb.WriteString(" ")
		sb.WriteString(f)
	}
	text := normalizeForMatch(sb.String())

	var technologies []string
	for _, tech := range technologyVocabulary {
		if strings.Contains(text, normalizeForMatch(tech)) {
			technologies = append(technologies, tech)
		}
	}

	var patterns []string
	for _, pattern := range architectureVocabulary {
		if strings.Contains(text, normalizeForMatch(pattern)) {
			patterns = append(patterns, pattern)
		}
	}

	return technologies, patterns
}

// normalizeForMatch lowercases and flattens separators so "event_driven",
// "event-driven", and "EventDriven" paths all match the same token.
func normalizeForMatch(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer("_", "-", " ", "-", "/", "-", ".", "-")
	return replacer.Replace(s)
}
