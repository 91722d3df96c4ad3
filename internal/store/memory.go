package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knowledgehub/knowledgehub-go/internal/kherrors"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// MemoryStore is an in-memory DocumentStore used in tests and local runs
type MemoryStore struct {
	mu           sync.RWMutex
	documents    map[string]models.ChangeRecord
	correlations map[string]*models.CorrelationAnalysisResult
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:    make(map[string]models.ChangeRecord),
		correlations: make(map[string]*models.CorrelationAnalysisResult),
	}
}

// AddDocument inserts or replaces a change record
func (s *MemoryStore) AddDocument(rec models.ChangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[rec.ID] = rec
}

// Correlations returns the stored analysis result for a document, nil if none
func (s *MemoryStore) Correlations(documentID string) *models.CorrelationAnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.correlations[documentID]
}

// GetDocuments returns change records matching the query, newest first
func (s *MemoryStore) GetDocuments(ctx context.Context, params models.QueryParams) ([]models.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []models.ChangeRecord
	for _, rec := range s.documents {
		if rec.CreatedAt.Before(params.Since) {
			continue
		}
		if !params.Until.IsZero() && rec.CreatedAt.After(params.Until) {
			continue
		}
		if params.Repository != "" && rec.Repository != params.Repository {
			continue
		}
		matches = append(matches, rec)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if params.Offset > 0 {
		if params.Offset >= len(matches) {
			return []models.ChangeRecord{}, nil
		}
		matches = matches[params.Offset:]
	}
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}
	return matches, nil
}

// GetDocument returns the full record for one document ID
func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*models.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.documents[id]
	if !ok {
		return nil, kherrors.New(kherrors.ErrorTypeDataAccess, fmt.Sprintf("document %s not found", id))
	}
	return &rec, nil
}

// ListMissingCorrelations returns recent records without stored correlations
func (s *MemoryStore) ListMissingCorrelations(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []models.ChangeRecord
	for id, rec := range s.documents {
		if rec.CreatedAt.Before(since) {
			continue
		}
		if _, analyzed := s.correlations[id]; analyzed {
			continue
		}
		matches = append(matches, rec)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// UpdateCorrelations persists the analysis result for a document
func (s *MemoryStore) UpdateCorrelations(ctx context.Context, documentID string, result *models.CorrelationAnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return kherrors.New(kherrors.ErrorTypeDataAccess, fmt.Sprintf("document %s not found for correlation update", documentID))
	}
	s.correlations[documentID] = result
	return nil
}
