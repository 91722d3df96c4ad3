package models

import (
	"time"
)

// ChangeRecord represents one commit/document analyzed for relationships to others.
// Records are immutable once constructed; enrichment produces a copy with an
// expanded Content payload rather than mutating the original.
type ChangeRecord struct {
	ID            string         `json:"id" db:"id"`
	Repository    string         `json:"repository" db:"repository"`
	CommitSHA     string         `json:"commit_sha" db:"commit_sha"`
	Author        string         `json:"author" db:"author"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	ChangeType    string         `json:"change_type" db:"change_type"`
	Content       ContentPayload `json:"content"`
	FilesChanged  []string       `json:"files_changed"`
	CommitMessage string         `json:"commit_message,omitempty" db:"commit_message"`
}

// ContentPayload is the typed form of the open content map a change record
// carries. Known sub-shapes get dedicated fields; anything else stays in Raw.
type ContentPayload struct {
	Technologies         []string                   `json:"technologies,omitempty"`
	ArchitecturePatterns []string                   `json:"architecture_patterns,omitempty"`
	PriorAnalysis        *CorrelationAnalysisResult `json:"prior_analysis,omitempty"`
	Raw                  map[string]any             `json:"raw,omitempty"`
}

// IsRich reports whether the record carries pre-extracted intelligence data,
// which gates enhanced-mode eligibility.
func (c ContentPayload) IsRich() bool {
	return len(c.Technologies) > 0 || len(c.ArchitecturePatterns) > 0 || c.PriorAnalysis != nil
}

// WithEnrichment returns a copy of the record with technology and architecture
// tags merged in. The receiver is never mutated.
func (r ChangeRecord) WithEnrichment(technologies, patterns []string) ChangeRecord {
	enriched := r
	enriched.Content.Technologies = mergeUnique(r.Content.Technologies, technologies)
	enriched.Content.ArchitecturePatterns = mergeUnique(r.Content.ArchitecturePatterns, patterns)
	return enriched
}

func mergeUnique(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	merged := make([]string, 0, len(existing)+len(extra))
	for _, s := range existing {
		if !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	return merged
}

// TaskStatus represents the lifecycle state of a correlation task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusRetrying   TaskStatus = "retrying"
)

// CorrelationTask is one unit of queued analysis work. Owned exclusively by
// the processor; one task exists per document ID.
type CorrelationTask struct {
	ID            string            `json:"id"`
	DocumentID    string            `json:"document_id"`
	Repository    string            `json:"repository"`
	CommitSHA     string            `json:"commit_sha"`
	Priority      int               `json:"priority"` // 1-10, higher = sooner
	CreatedAt     time.Time         `json:"created_at"`
	Status        TaskStatus        `json:"status"`
	Attempts      int               `json:"attempts"`
	LastError     string            `json:"last_error,omitempty"`
	NextAttemptAt time.Time         `json:"next_attempt_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TemporalCorrelationResult captures a relationship inferred from time
// proximity plus corroborating factors (author, repo, file overlap).
type TemporalCorrelationResult struct {
	Repository     string   `json:"repository"`
	CommitSHA      string   `json:"commit_sha"`
	TimeDeltaHours float64  `json:"time_delta_hours"`
	Strength       float64  `json:"strength"` // 0.0 to 1.0
	Factors        []string `json:"factors"`
}

// FileOverlap describes structured file-path overlap between two records
type FileOverlap struct {
	SharedFiles  []string `json:"shared_files"`
	OverlapRatio float64  `json:"overlap_ratio"`
}

// SemanticCorrelationResult captures a relationship inferred from
// content/keyword/path similarity.
type SemanticCorrelationResult struct {
	Repository         string       `json:"repository"`
	CommitSHA          string       `json:"commit_sha"`
	Similarity         float64      `json:"similarity"` // 0.0 to 1.0
	SharedKeywords     []string     `json:"shared_keywords"`
	FileOverlap        *FileOverlap `json:"file_overlap,omitempty"`
	SharedTechnologies []string     `json:"shared_technologies,omitempty"`
}

// BreakingSeverity represents the severity of a detected breaking change
type BreakingSeverity string

const (
	BreakingSeverityLow    BreakingSeverity = "LOW"
	BreakingSeverityMedium BreakingSeverity = "MEDIUM"
	BreakingSeverityHigh   BreakingSeverity = "HIGH"
)

// BreakingChangeResult flags a potentially breaking change in the target record
type BreakingChangeResult struct {
	Category      string           `json:"category"`
	Severity      BreakingSeverity `json:"severity"`
	Description   string           `json:"description"`
	AffectedFiles []string         `json:"affected_files"`
	Confidence    float64          `json:"confidence"` // 0.0 to 1.0
}

// AnalysisMode identifies which analyzer path produced a result
type AnalysisMode string

const (
	ModeAuto     AnalysisMode = "auto"
	ModeBasic    AnalysisMode = "basic"
	ModeEnhanced AnalysisMode = "enhanced"
	ModeHybrid   AnalysisMode = "hybrid"
)

// AnalysisMetadata records how and when an analysis ran
type AnalysisMetadata struct {
	AnalyzedAt    time.Time     `json:"analyzed_at"`
	Duration      time.Duration `json:"duration"`
	Mode          AnalysisMode  `json:"mode"`
	RichContent   bool          `json:"rich_content"`
	ContextSize   int           `json:"context_size"`
	Error         string        `json:"error,omitempty"`
	CacheHit      bool          `json:"cache_hit,omitempty"`
	HybridCompare *HybridStats  `json:"hybrid_compare,omitempty"`
}

// HybridStats compares enhanced and basic output when both ran in hybrid mode
type HybridStats struct {
	EnhancedCorrelations int `json:"enhanced_correlations"`
	BasicCorrelations    int `json:"basic_correlations"`
}

// CorrelationAnalysisResult aggregates all correlations found for one target.
// Produced fresh per analysis call and never mutated afterward.
type CorrelationAnalysisResult struct {
	DocumentID string                      `json:"document_id"`
	Temporal   []TemporalCorrelationResult `json:"temporal_correlations"`
	Semantic   []SemanticCorrelationResult `json:"semantic_correlations"`
	Breaking   []BreakingChangeResult      `json:"breaking_changes"`
	Metadata   AnalysisMetadata            `json:"metadata"`
}

// TotalCorrelations returns the combined count across all three result lists
func (r *CorrelationAnalysisResult) TotalCorrelations() int {
	return len(r.Temporal) + len(r.Semantic) + len(r.Breaking)
}

// ProcessingStats holds running pipeline counters. Mutated only by the
// processor, read by monitoring collaborators.
type ProcessingStats struct {
	DocumentsProcessed    int64     `json:"documents_processed"`
	Succeeded             int64     `json:"succeeded"`
	Failed                int64     `json:"failed"`
	CorrelationsGenerated int64     `json:"correlations_generated"`
	StartedAt             time.Time `json:"started_at"`
	LastBatchAt           time.Time `json:"last_batch_at"`
}

// QueryParams narrows a document-store read
type QueryParams struct {
	Repository string    `json:"repository,omitempty"`
	Since      time.Time `json:"since"`
	Until      time.Time `json:"until,omitempty"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
}
