package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/knowledgehub/knowledgehub-go/internal/kherrors"
	"github.com/knowledgehub/knowledgehub-go/internal/models"
)

// PostgresStore implements DocumentStore over PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects to PostgreSQL and returns a document store
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// changeRecordRow is the database shape of a change record; JSONB columns
// are unmarshaled into the typed model.
type changeRecordRow struct {
	ID            string         `db:"id"`
	Repository    string         `db:"repository"`
	CommitSHA     string         `db:"commit_sha"`
	Author        string         `db:"author"`
	CreatedAt     time.Time      `db:"created_at"`
	ChangeType    sql.NullString `db:"change_type"`
	CommitMessage sql.NullString `db:"commit_message"`
	FilesChanged  []byte         `db:"files_changed"`
	Content       []byte         `db:"content"`
}

func (r changeRecordRow) toModel(logger *logrus.Logger) models.ChangeRecord {
	rec := models.ChangeRecord{
		ID:            r.ID,
		Repository:    r.Repository,
		CommitSHA:     r.CommitSHA,
		Author:        r.Author,
		CreatedAt:     r.CreatedAt,
		ChangeType:    r.ChangeType.String,
		CommitMessage: r.CommitMessage.String,
	}
	if len(r.FilesChanged) > 0 {
		if err := json.Unmarshal(r.FilesChanged, &rec.FilesChanged); err != nil {
			logger.WithError(err).WithField("document_id", r.ID).Warn("failed to unmarshal files_changed")
		}
	}
	if len(r.Content) > 0 {
		if err := json.Unmarshal(r.Content, &rec.Content); err != nil {
			logger.WithError(err).WithField("document_id", r.ID).Warn("failed to unmarshal content")
		}
	}
	return rec
}

// GetDocuments returns change records matching the query, newest first
func (s *PostgresStore) GetDocuments(ctx context.Context, params models.QueryParams) ([]models.ChangeRecord, error) {
	query := `
		SELECT id, repository, commit_sha, author, created_at, change_type, commit_message, files_changed, content
		FROM change_records
		WHERE created_at >= $1
		  AND ($2 = '' OR repository = $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	var until *time.Time
	if !params.Until.IsZero() {
		until = &params.Until
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows []changeRecordRow
	if err := s.db.SelectContext(ctx, &rows, query, params.Since, params.Repository, until, limit, params.Offset); err != nil {
		return nil, kherrors.DataAccessError(err, "failed to query change records")
	}

	records := make([]models.ChangeRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel(s.logger))
	}
	return records, nil
}

// GetDocument returns the full record for one document ID
func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*models.ChangeRecord, error) {
	query := `
		SELECT id, repository, commit_sha, author, created_at, change_type, commit_message, files_changed, content
		FROM change_records
		WHERE id = $1
	`

	var row changeRecordRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, kherrors.DataAccessError(err, fmt.Sprintf("document %s not found", id))
		}
		return nil, kherrors.DataAccessError(err, "failed to query change record")
	}

	rec := row.toModel(s.logger)
	return &rec, nil
}

// ListMissingCorrelations returns recent records that have no stored
// correlation analysis yet.
func (s *PostgresStore) ListMissingCorrelations(ctx context.Context, since time.Time, limit int) ([]models.ChangeRecord, error) {
	query := `
		SELECT id, repository, commit_sha, author, created_at, change_type, commit_message, files_changed, content
		FROM change_records
		WHERE created_at >= $1
		  AND (correlations IS NULL OR correlations = 'null'::jsonb)
		ORDER BY created_at DESC
		LIMIT $2
	`

	var rows []changeRecordRow
	if err := s.db.SelectContext(ctx, &rows, query, since, limit); err != nil {
		return nil, kherrors.DataAccessError(err, "failed to query uncorrelated records")
	}

	records := make([]models.ChangeRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel(s.logger))
	}
	return records, nil
}

// UpdateCorrelations persists the analysis result for a document
func (s *PostgresStore) UpdateCorrelations(ctx context.Context, documentID string, result *models.CorrelationAnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal correlation result: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE change_records
		SET correlations = $2, correlated_at = NOW()
		WHERE id = $1
	`, documentID, payload)
	if err != nil {
		return kherrors.DataAccessError(err, "failed to update correlations")
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return kherrors.DataAccessError(sql.ErrNoRows, fmt.Sprintf("document %s not found for correlation update", documentID))
	}

	s.logger.WithFields(logrus.Fields{
		"document_id":  documentID,
		"correlations": result.TotalCorrelations(),
	}).Debug("correlations persisted")

	return nil
}
