package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

func enhancedConfig() (config.AnalysisConfig, config.IntegrationConfig) {
	cfg := config.Default()
	return cfg.Analysis, cfg.Integration
}

func richRecord(id, repo string, at time.Time, techs, patterns []string) models.ChangeRecord {
	rec := record(id, repo, "alice", at, []string{"services/core.go"}, "refactor service wiring")
	rec.Content.Technologies = techs
	rec.Content.ArchitecturePatterns = patterns
	return rec
}

func TestEnhanced_BoostsStrengthOnSharedTechnology(t *testing.T) {
	acfg, icfg := enhancedConfig()
	basic := New(acfg)
	enhanced := NewEnhanced(acfg, icfg)

	target := record("doc-1", "platform", "alice", t0, []string{"services/auth.go"}, "refactor auth")
	target.Content.Technologies = []string{"postgres", "redis"}
	target.Content.ArchitecturePatterns = []string{"event-driven"}

	other := record("doc-2", "billing", "bob", t0.Add(-10*time.Hour), []string{"workers/invoice.go"}, "refactor invoicing")
	other.Content.Technologies = []string{"postgres"}
	other.Content.ArchitecturePatterns = []string{"event-driven"}
	contextDocs := []models.ChangeRecord{other}

	basicResults := basic.temporalCorrelations(target, contextDocs)
	enhancedResults := enhanced.temporalCorrelations(target, contextDocs)

	require.Len(t, basicResults, 1)
	require.Len(t, enhancedResults, 1)
	assert.Greater(t, enhancedResults[0].Strength, basicResults[0].Strength,
		"shared intelligence tokens must raise strength")
}

func TestEnhanced_FallsBackToBasicFormulasWithoutTokens(t *testing.T) {
	acfg, icfg := enhancedConfig()
	basic := New(acfg)
	enhanced := NewEnhanced(acfg, icfg)

	target := record("doc-1", "platform", "alice", t0, []string{"a.go"}, "fix parser bug")
	contextDocs := []models.ChangeRecord{
		record("doc-2", "platform", "bob", t0.Add(-3*time.Hour), []string{"a.go"}, "fix lexer bug"),
	}

	basicResult := basic.Analyze(context.Background(), target, contextDocs)
	enhancedResult := enhanced.Analyze(context.Background(), target, contextDocs)

	require.Len(t, basicResult.Temporal, 1)
	require.Len(t, enhancedResult.Temporal, 1)
	assert.InDelta(t, basicResult.Temporal[0].Strength, enhancedResult.Temporal[0].Strength, 0.0001,
		"without tokens the enhanced analyzer scores like the basic one")
	assert.Equal(t, models.ModeEnhanced, enhancedResult.Metadata.Mode)
	assert.Equal(t, models.ModeBasic, basicResult.Metadata.Mode)
}

func TestEnhanced_NeverProducesFewerCorrelations(t *testing.T) {
	acfg, icfg := enhancedConfig()
	basic := New(acfg)
	enhanced := NewEnhanced(acfg, icfg)

	target := richRecord("doc-1", "platform", t0, []string{"kafka"}, nil)
	var contextDocs []models.ChangeRecord
	for i := 1; i <= 5; i++ {
		doc := richRecord(time.Duration(i).String(), "platform",
			t0.Add(-time.Duration(i*10)*time.Hour), []string{"kafka"}, nil)
		contextDocs = append(contextDocs, doc)
	}

	basicResult := basic.Analyze(context.Background(), target, contextDocs)
	enhancedResult := enhanced.Analyze(context.Background(), target, contextDocs)

	assert.GreaterOrEqual(t, enhancedResult.TotalCorrelations(), basicResult.TotalCorrelations())
	assert.True(t, enhancedResult.Metadata.RichContent)
}

func TestSemantic_SharedTechnologiesAnnotated(t *testing.T) {
	acfg, icfg := enhancedConfig()
	enhanced := NewEnhanced(acfg, icfg)

	target := richRecord("doc-1", "platform", t0, []string{"grpc", "postgres"}, nil)
	contextDocs := []models.ChangeRecord{
		richRecord("doc-2", "billing", t0.Add(-8*time.Hour), []string{"grpc"}, nil),
	}

	results := enhanced.semanticCorrelations(target, contextDocs)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"grpc"}, results[0].SharedTechnologies)
}
