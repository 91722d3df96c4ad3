package store

import (
	"context"
	"time"

	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// DocumentStore is the data-access boundary of the correlation engine. It is
// consumed for context-window retrieval, stale-document discovery, and the
// single persistence write.
type DocumentStore interface {
	// GetDocuments returns change records matching the query parameters,
	// newest first.
	GetDocuments(ctx context.Context, params models.QueryParams) ([]models.ChangeRecord, error)

	// GetDocument returns the full record for one document ID
	GetDocument(ctx context.Context, id string) (*models.ChangeRecord, error)

	// ListMissingCorrelations returns records created since the given time
	// that have no stored correlation analysis yet.
	ListMissingCorrelations(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error)

	// UpdateCorrelations persists the analysis result for a document
	UpdateCorrelations(ctx context.Context, documentID string, result *models.CorrelationAnalysisResult) error
}
