package analyses

import (
	"context"
	"time"

	"impact-backend/internal/analysis"
)

// CompletionUpdate carries everything a finished pipeline run persists.
// ReportID is empty when registration failed; ReportContent is always kept so
// registration can be retried without regenerating the report.
type CompletionUpdate struct {
	BackendUsed    string
	Attempts       int
	Degraded       bool
	Recommendation string
	Assumptions    []analysis.AssumptionRecord
	ReportID       string
	ReportContent  string
	ErrorCode      string
	ErrorMessage   string
	ErrorRetryable bool
	CompletedAt    time.Time
}

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, a Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	List(ctx context.Context, limit, offset int) ([]Analysis, error)
	MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error
	Complete(ctx context.Context, analysisID string, update CompletionUpdate) error
	Fail(ctx context.Context, analysisID, code, message string, retryable bool, completedAt time.Time) error
	SetRegistration(ctx context.Context, analysisID, reportID string) error
}
