package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledgehub/knowledgehub-go/internal/kherrors"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

func seedMemoryStore(base time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.AddDocument(models.ChangeRecord{ID: "doc-1", Repository: "platform", CreatedAt: base})
	s.AddDocument(models.ChangeRecord{ID: "doc-2", Repository: "platform", CreatedAt: base.Add(time.Hour)})
	s.AddDocument(models.ChangeRecord{ID: "doc-3", Repository: "billing", CreatedAt: base.Add(2 * time.Hour)})
	return s
}

func TestMemoryStore_GetDocumentsFiltersAndOrders(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := seedMemoryStore(base)

	records, err := s.GetDocuments(context.Background(), models.QueryParams{Since: base})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "doc-3", records[0].ID, "newest first")

	records, err = s.GetDocuments(context.Background(), models.QueryParams{
		Since:      base,
		Repository: "platform",
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = s.GetDocuments(context.Background(), models.QueryParams{
		Since: base,
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "doc-3", records[0].ID)
}

func TestMemoryStore_GetDocumentNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, kherrors.IsDataAccess(err))
}

func TestMemoryStore_ListMissingCorrelations(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := seedMemoryStore(base)

	require.NoError(t, s.UpdateCorrelations(context.Background(), "doc-2", &models.CorrelationAnalysisResult{DocumentID: "doc-2"}))

	missing, err := s.ListMissingCorrelations(context.Background(), base, 0)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "doc-3", missing[0].ID)
	assert.Equal(t, "doc-1", missing[1].ID)
}

func TestMemoryStore_UpdateCorrelationsUnknownDocument(t *testing.T) {
	s := NewMemoryStore()

	err := s.UpdateCorrelations(context.Background(), "missing", &models.CorrelationAnalysisResult{})
	require.Error(t, err)
	assert.True(t, kherrors.IsDataAccess(err))
}
