package processor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowledgehub/knowledgehub-go/internal/config"
	"github.com/knowledgehub/knowledgehub-go/internal/kherrors"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
	"github.com/knowledgehub/knowledgehub-go/internal/store"
)

// Engine runs correlation analysis for one document against its context
// window. The integration layer's integrator satisfies this.
type Engine interface {
	Analyze(ctx context.Context, target models.ChangeRecord, contextDocs []models.ChangeRecord) (*models.CorrelationAnalysisResult, error)
}

// CorrelationProcessor owns the background task queue: documents are
// enqueued (directly or via stale-document discovery), batched by priority,
// analyzed, and their results persisted. Failed tasks retry with a linear
// backoff until the retry ceiling, then park as failed.
type CorrelationProcessor struct {
	cfg    config.ProcessorConfig
	store  store.DocumentStore
	engine Engine
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*models.CorrelationTask // keyed by document ID
	stats models.ProcessingStats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	now func() time.Time
}

// New creates a processor over a document store and an analysis engine
func New(cfg config.ProcessorConfig, docs store.DocumentStore, engine Engine) *CorrelationProcessor {
	return &CorrelationProcessor{
		cfg:    cfg,
		store:  docs,
		engine: engine,
		logger: slog.Default().With("component", "processor"),
		tasks:  make(map[string]*models.CorrelationTask),
		stats:  models.ProcessingStats{StartedAt: time.Now()},
		now:    time.Now,
	}
}

// Enqueue adds a correlation task for a document and always reports success:
// a duplicate enqueue of an active document is a no-op, not a failure.
// Priority is clamped to 1..10. Completed or failed tasks are replaced so a
// document can be re-analyzed.
func (p *CorrelationProcessor) Enqueue(documentID, repository, commitSHA string, priority int) bool {
	p.enqueue(documentID, repository, commitSHA, priority)
	return true
}

// enqueue reports whether a new task was created, which Enqueue deliberately
// hides but discovery uses for its enqueued count.
func (p *CorrelationProcessor) enqueue(documentID, repository, commitSHA string, priority int) bool {
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.tasks[documentID]; ok {
		switch existing.Status {
		case models.StatusPending, models.StatusInProgress, models.StatusRetrying:
			return false
		}
	}

	now := p.now()
	p.tasks[documentID] = &models.CorrelationTask{
		ID:            uuid.New().String(),
		DocumentID:    documentID,
		Repository:    repository,
		CommitSHA:     commitSHA,
		Priority:      priority,
		CreatedAt:     now,
		Status:        models.StatusPending,
		NextAttemptAt: now,
	}

	p.logger.Debug("task enqueued",
		"document_id", documentID,
		"repository", repository,
		"priority", priority,
	)
	return true
}

// DiscoverStale enqueues documents inside the discovery window that have no
// stored correlations yet, with priority inversely proportional to age:
// the freshest documents are analyzed first. Returns how many new tasks
// were created.
func (p *CorrelationProcessor) DiscoverStale(ctx context.Context) (int, error) {
	since := p.now().Add(-p.cfg.DiscoveryWindow)
	records, err := p.store.ListMissingCorrelations(ctx, since, 10*p.cfg.BatchSize)
	if err != nil {
		return 0, kherrors.DataAccessError(err, "stale document discovery failed")
	}

	enqueued := 0
	for _, rec := range records {
		if p.enqueue(rec.ID, rec.Repository, rec.CommitSHA, p.stalePriority(rec.CreatedAt)) {
			enqueued++
		}
	}

	if enqueued > 0 {
		p.logger.Info("stale documents discovered",
			"candidates", len(records),
			"enqueued", enqueued,
		)
	}
	return enqueued, nil
}

// stalePriority maps document age within the discovery window onto the
// 1..10 priority scale inversely: a just-created document gets 10, one at
// the window edge gets 1.
func (p *CorrelationProcessor) stalePriority(createdAt time.Time) int {
	if p.cfg.DiscoveryWindow <= 0 {
		return 5
	}
	age := p.now().Sub(createdAt)
	frac := float64(age) / float64(p.cfg.DiscoveryWindow)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return 10 - int(frac*9)
}

// Start launches the background loop: each tick discovers stale documents
// and processes one batch. Returns false when already running.
func (p *CorrelationProcessor) Start(ctx context.Context) bool {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return false
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
	p.logger.Info("processor started", "interval", p.cfg.ProcessingInterval)
	return true
}

// Stop signals the background loop and blocks until it exits. Safe to call
// when the processor is not running.
func (p *CorrelationProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done
	p.logger.Info("processor stopped")
}

func (p *CorrelationProcessor) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.ProcessingInterval)
	defer ticker.Stop()

	// First pass runs immediately; after that the ticker paces the loop.
	p.runOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *CorrelationProcessor) runOnce(ctx context.Context) {
	if _, err := p.DiscoverStale(ctx); err != nil {
		p.logger.Warn("discovery failed", "error", err)
	}
	if _, err := p.ProcessBatch(ctx); err != nil {
		p.logger.Warn("batch processing failed", "error", err)
	}
}

// ProcessBatch selects up to batch_size eligible tasks (pending, backoff
// elapsed), fetches one shared context window, and processes the tasks
// sequentially. Returns the number of tasks attempted.
func (p *CorrelationProcessor) ProcessBatch(ctx context.Context) (int, error) {
	batch := p.claimBatch()
	if len(batch) == 0 {
		return 0, nil
	}

	contextDocs, err := p.store.GetDocuments(ctx, models.QueryParams{
		Since: p.now().Add(-p.cfg.ContextTimeRange),
		Limit: p.cfg.MaxContextDocuments,
	})
	if err != nil {
		// The batch cannot run without context; release the claims.
		p.releaseBatch(batch)
		return 0, kherrors.DataAccessError(err, "context window fetch failed")
	}

	for _, task := range batch {
		if err := ctx.Err(); err != nil {
			p.releaseBatch([]*models.CorrelationTask{task})
			continue
		}
		p.processTask(ctx, task, contextDocs)
	}

	p.mu.Lock()
	p.stats.LastBatchAt = p.now()
	p.mu.Unlock()

	return len(batch), nil
}

// claimBatch picks the highest-priority eligible tasks and marks them
// in progress under the lock, so concurrent batch runs never double-claim.
func (p *CorrelationProcessor) claimBatch() []*models.CorrelationTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var eligible []*models.CorrelationTask
	for _, task := range p.tasks {
		if task.Status != models.StatusPending {
			continue
		}
		if task.NextAttemptAt.After(now) {
			continue
		}
		eligible = append(eligible, task)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	if len(eligible) > p.cfg.BatchSize {
		eligible = eligible[:p.cfg.BatchSize]
	}
	for _, task := range eligible {
		task.Status = models.StatusInProgress
	}
	return eligible
}

func (p *CorrelationProcessor) releaseBatch(batch []*models.CorrelationTask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, task := range batch {
		if task.Status == models.StatusInProgress {
			task.Status = models.StatusPending
		}
	}
}

func (p *CorrelationProcessor) processTask(ctx context.Context, task *models.CorrelationTask, contextDocs []models.ChangeRecord) {
	p.mu.Lock()
	task.Attempts++
	attempt := task.Attempts
	p.stats.DocumentsProcessed++
	p.mu.Unlock()

	target, err := p.store.GetDocument(ctx, task.DocumentID)
	if err != nil {
		p.failTask(task, err)
		return
	}

	result, err := p.engine.Analyze(ctx, *target, contextDocs)
	if err != nil {
		p.failTask(task, err)
		return
	}

	if err := p.store.UpdateCorrelations(ctx, task.DocumentID, result); err != nil {
		p.failTask(task, err)
		return
	}

	now := p.now()
	p.mu.Lock()
	task.Status = models.StatusCompleted
	task.CompletedAt = &now
	task.LastError = ""
	p.stats.Succeeded++
	p.stats.CorrelationsGenerated += int64(result.TotalCorrelations())
	p.mu.Unlock()

	p.logger.Info("document processed",
		"document_id", task.DocumentID,
		"attempt", attempt,
		"correlations", result.TotalCorrelations(),
		"mode", result.Metadata.Mode,
	)
}

// failTask records the error and either parks the task as failed (retry
// ceiling reached) or schedules a retry with linear backoff: the n-th
// failure waits n * retry_delay before the task is eligible again.
func (p *CorrelationProcessor) failTask(task *models.CorrelationTask, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task.LastError = cause.Error()

	if task.Attempts >= p.cfg.MaxRetries {
		task.Status = models.StatusFailed
		p.stats.Failed++
		p.logger.Error("task failed permanently",
			"document_id", task.DocumentID,
			"attempts", task.Attempts,
			"error", cause,
		)
		return
	}

	task.Status = models.StatusPending
	task.NextAttemptAt = p.now().Add(time.Duration(task.Attempts) * p.cfg.RetryDelay)

	p.logger.Warn("task scheduled for retry",
		"document_id", task.DocumentID,
		"attempt", task.Attempts,
		"next_attempt_at", task.NextAttemptAt,
		"error", cause,
	)
}

// Stats returns a snapshot of the processing counters
func (p *CorrelationProcessor) Stats() models.ProcessingStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// QueueStatus returns task counts per lifecycle state
func (p *CorrelationProcessor) QueueStatus() map[models.TaskStatus]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[models.TaskStatus]int)
	for _, task := range p.tasks {
		counts[task.Status]++
	}
	return counts
}

// RecentFailures returns up to limit tasks that currently carry an error,
// newest first. Includes both parked tasks and those awaiting retry.
func (p *CorrelationProcessor) RecentFailures(limit int) []models.CorrelationTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	var failures []models.CorrelationTask
	for _, task := range p.tasks {
		if task.LastError == "" {
			continue
		}
		failures = append(failures, *task)
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].CreatedAt.After(failures[j].CreatedAt)
	})
	if limit > 0 && len(failures) > limit {
		failures = failures[:limit]
	}
	return failures
}

// PruneCompleted drops completed tasks that finished more than olderThan
// ago and returns how many were removed.
func (p *CorrelationProcessor) PruneCompleted(olderThan time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-olderThan)
	pruned := 0
	for id, task := range p.tasks {
		if task.Status != models.StatusCompleted || task.CompletedAt == nil {
			continue
		}
		if task.CompletedAt.Before(cutoff) {
			delete(p.tasks, id)
			pruned++
		}
	}

	if pruned > 0 {
		p.logger.Debug("completed tasks pruned", "count", pruned)
	}
	return pruned
}
