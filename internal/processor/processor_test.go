package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
	"github.com/knowledgehub/knowledgehub-go/internal/store"
)

// stubEngine records the order documents were analyzed in and can be made
// to fail every call.
type stubEngine struct {
	mu           sync.Mutex
	order        []string
	err          error
	correlations int
}

func (s *stubEngine) Analyze(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) (*models.CorrelationAnalysisResult, error) {
	s.mu.Lock()
	s.order = append(s.order, target.ID)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	result := &models.CorrelationAnalysisResult{
		DocumentID: target.ID,
		Metadata: models.AnalysisMetadata{
			AnalyzedAt: time.Now(),
			Mode:       models.ModeBasic,
		},
	}
	for i := 0; i < s.correlations; i++ {
		result.Temporal = append(result.Temporal, models.TemporalCorrelationResult{Strength: 0.5})
	}
	return result, nil
}

func (s *stubEngine) analyzed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func processorConfig() config.ProcessorConfig {
	cfg := config.Default().Processor
	cfg.BatchSize = 5
	cfg.MaxRetries = 3
	cfg.RetryDelay = 30 * time.Second
	return cfg
}

func seededStore(t *testing.T, ids ...string) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	for _, id := range ids {
		s.AddDocument(models.ChangeRecord{
			ID:         id,
			Repository: "platform",
			CommitSHA:  "sha-" + id,
			CreatedAt:  time.Now().Add(-time.Hour),
		})
	}
	return s
}

func TestEnqueue_IdempotentPerDocument(t *testing.T) {
	p := New(processorConfig(), seededStore(t, "doc-1"), &stubEngine{})

	assert.True(t, p.Enqueue("doc-1", "platform", "sha-1", 5))
	assert.True(t, p.Enqueue("doc-1", "platform", "sha-1", 9), "duplicate enqueue is a successful no-op")

	status := p.QueueStatus()
	assert.Equal(t, 1, status[models.StatusPending], "no second task is created")
	assert.Equal(t, 5, p.tasks["doc-1"].Priority, "no-op leaves the original task untouched")
}

func TestEnqueue_AllowedAgainAfterCompletion(t *testing.T) {
	engine := &stubEngine{correlations: 1}
	p := New(processorConfig(), seededStore(t, "doc-1"), engine)

	require.True(t, p.Enqueue("doc-1", "platform", "sha-1", 5))
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.True(t, p.Enqueue("doc-1", "platform", "sha-1", 5), "completed document can be re-analyzed")
}

func TestProcessBatch_PersistsResultsAndStats(t *testing.T) {
	docs := seededStore(t, "doc-1", "doc-2")
	engine := &stubEngine{correlations: 2}
	p := New(processorConfig(), docs, engine)

	p.Enqueue("doc-1", "platform", "sha-1", 5)
	p.Enqueue("doc-2", "platform", "sha-2", 5)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NotNil(t, docs.Correlations("doc-1"))
	require.NotNil(t, docs.Correlations("doc-2"))

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.DocumentsProcessed)
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(4), stats.CorrelationsGenerated)
	assert.False(t, stats.LastBatchAt.IsZero())

	status := p.QueueStatus()
	assert.Equal(t, 2, status[models.StatusCompleted])
}

func TestProcessBatch_PriorityOrdering(t *testing.T) {
	cfg := processorConfig()
	cfg.BatchSize = 2
	engine := &stubEngine{}
	p := New(cfg, seededStore(t, "doc-low", "doc-mid", "doc-high"), engine)

	p.Enqueue("doc-low", "platform", "sha-1", 1)
	p.Enqueue("doc-high", "platform", "sha-2", 9)
	p.Enqueue("doc-mid", "platform", "sha-3", 5)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"doc-high", "doc-mid"}, engine.analyzed())

	status := p.QueueStatus()
	assert.Equal(t, 1, status[models.StatusPending], "lowest priority waits for the next batch")
}

func TestProcessBatch_RetryBackoffThenFailure(t *testing.T) {
	cfg := processorConfig()
	engine := &stubEngine{err: errors.New("analysis exploded")}
	p := New(cfg, seededStore(t, "doc-1"), engine)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	require.True(t, p.Enqueue("doc-1", "platform", "sha-1", 5))

	// First attempt fails and schedules a retry 1 * retry_delay out.
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, p.QueueStatus()[models.StatusPending])

	// Backoff window not yet elapsed: nothing is eligible.
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Second attempt after the backoff; third after a longer one. The
	// third failure hits the retry ceiling and parks the task.
	clock = clock.Add(cfg.RetryDelay)
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	clock = clock.Add(2 * cfg.RetryDelay)
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status := p.QueueStatus()
	assert.Equal(t, 1, status[models.StatusFailed])
	assert.Equal(t, 0, status[models.StatusPending])

	// Parked tasks never run again.
	clock = clock.Add(time.Hour)
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.DocumentsProcessed)
	assert.Equal(t, int64(1), stats.Failed)

	failures := p.RecentFailures(10)
	require.Len(t, failures, 1)
	assert.Equal(t, "doc-1", failures[0].DocumentID)
	assert.Contains(t, failures[0].LastError, "analysis exploded")
}

func TestDiscoverStale_EnqueuesUncorrelatedDocuments(t *testing.T) {
	docs := seededStore(t, "doc-1", "doc-2", "doc-3")
	engine := &stubEngine{correlations: 1}
	p := New(processorConfig(), docs, engine)

	// doc-3 already has correlations stored.
	require.NoError(t, docs.UpdateCorrelations(context.Background(), "doc-3", &models.CorrelationAnalysisResult{DocumentID: "doc-3"}))

	n, err := p.DiscoverStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-discovery is a no-op while those tasks are still active.
	n, err = p.DiscoverStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStalePriority_InverselyProportionalToAge(t *testing.T) {
	p := New(processorConfig(), store.NewMemoryStore(), &stubEngine{})

	now := time.Now()
	fresh := p.stalePriority(now.Add(-time.Minute))
	old := p.stalePriority(now.Add(-23 * time.Hour))
	assert.Greater(t, fresh, old, "newer documents rank higher")
	assert.Equal(t, 10, fresh)
	assert.GreaterOrEqual(t, old, 1)
}

func TestPruneCompleted(t *testing.T) {
	engine := &stubEngine{correlations: 1}
	p := New(processorConfig(), seededStore(t, "doc-1", "doc-2"), engine)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.Enqueue("doc-1", "platform", "sha-1", 5)
	p.Enqueue("doc-2", "platform", "sha-2", 5)
	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	// Nothing old enough yet.
	assert.Equal(t, 0, p.PruneCompleted(time.Hour))

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 2, p.PruneCompleted(time.Hour))
	assert.Empty(t, p.QueueStatus())
}

func TestStartStop(t *testing.T) {
	cfg := processorConfig()
	// Interval far beyond the test deadline: the document can only be
	// processed by the pass that runs before the first tick.
	cfg.ProcessingInterval = time.Hour
	docs := seededStore(t, "doc-1")
	engine := &stubEngine{correlations: 1}
	p := New(cfg, docs, engine)

	require.True(t, p.Start(context.Background()))
	assert.False(t, p.Start(context.Background()), "second start is rejected")

	assert.Eventually(t, func() bool {
		return docs.Correlations("doc-1") != nil
	}, 2*time.Second, 10*time.Millisecond, "first pass runs without waiting for the interval")

	p.Stop()
	p.Stop() // idempotent
}
