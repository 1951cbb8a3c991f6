package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"impact-backend/internal/analysis"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analyses (
	id, prd_document_id, arch_document_id, prd_content, architecture_content,
	repository_url, status, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		a.ID,
		nullString(a.PRDDocumentID),
		nullString(a.ArchDocumentID),
		a.PRDContent,
		a.ArchitectureContent,
		nullString(a.RepositoryURL),
		a.Status,
		a.CreatedAt,
	)
	return err
}

const selectColumns = `
SELECT id, prd_document_id, arch_document_id, prd_content, architecture_content,
       repository_url, status, backend_used, attempts, degraded, recommendation,
       assumptions, report_id, report_content, error_code, error_message,
       error_retryable, created_at, started_at, completed_at
FROM analyses`

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := selectColumns + `
WHERE id = $1
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// List lists analyses ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := selectColumns + `
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkProcessing transitions an analysis to processing.
func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $1, started_at = $2
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, StatusProcessing, startedAt, analysisID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Complete records a finished pipeline run.
func (r *PGRepo) Complete(ctx context.Context, analysisID string, update CompletionUpdate) error {
	const query = `
UPDATE analyses
SET status = $1, backend_used = $2, attempts = $3, degraded = $4,
    recommendation = $5, assumptions = $6, report_id = $7, report_content = $8,
    error_code = $9, error_message = $10, error_retryable = $11, completed_at = $12
WHERE id = $13`

	assumptions, err := marshalAssumptions(update.Assumptions)
	if err != nil {
		return err
	}

	res, err := r.DB.ExecContext(ctx, query,
		StatusCompleted,
		update.BackendUsed,
		update.Attempts,
		update.Degraded,
		update.Recommendation,
		assumptions,
		nullString(update.ReportID),
		update.ReportContent,
		nullString(update.ErrorCode),
		nullString(update.ErrorMessage),
		update.ErrorRetryable,
		update.CompletedAt,
		analysisID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Fail records a terminal failure.
func (r *PGRepo) Fail(ctx context.Context, analysisID, code, message string, retryable bool, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $1, error_code = $2, error_message = $3, error_retryable = $4, completed_at = $5
WHERE id = $6`
	res, err := r.DB.ExecContext(ctx, query, StatusFailed, code, message, retryable, completedAt, analysisID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetRegistration records a successful registration retry.
func (r *PGRepo) SetRegistration(ctx context.Context, analysisID, reportID string) error {
	const query = `
UPDATE analyses
SET report_id = $1, error_code = NULL, error_message = NULL, error_retryable = FALSE
WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, reportID, analysisID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var prdDocID, archDocID, repoURL sql.NullString
	var backendUsed, recommendation, reportID, reportContent sql.NullString
	var errorCode, errorMessage sql.NullString
	var assumptions sql.NullString
	var attempts sql.NullInt64
	var degraded, retryable sql.NullBool
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&prdDocID,
		&archDocID,
		&a.PRDContent,
		&a.ArchitectureContent,
		&repoURL,
		&a.Status,
		&backendUsed,
		&attempts,
		&degraded,
		&recommendation,
		&assumptions,
		&reportID,
		&reportContent,
		&errorCode,
		&errorMessage,
		&retryable,
		&a.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return Analysis{}, err
	}

	a.PRDDocumentID = prdDocID.String
	a.ArchDocumentID = archDocID.String
	a.RepositoryURL = repoURL.String
	a.BackendUsed = backendUsed.String
	a.Attempts = int(attempts.Int64)
	a.Degraded = degraded.Bool
	a.Recommendation = recommendation.String
	a.ReportID = reportID.String
	a.ReportContent = reportContent.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	a.ErrorRetryable = retryable.Bool
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}

	if assumptions.Valid && assumptions.String != "" {
		if err := json.Unmarshal([]byte(assumptions.String), &a.Assumptions); err != nil {
			return Analysis{}, err
		}
	}
	return a, nil
}

func marshalAssumptions(records []analysis.AssumptionRecord) ([]byte, error) {
	if len(records) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(records)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
