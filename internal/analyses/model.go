package analyses

import (
	"time"

	"impact-backend/internal/analysis"
)

// Analysis represents one impact-analysis job through its lifecycle.
type Analysis struct {
	ID                  string
	PRDDocumentID       string
	ArchDocumentID      string
	PRDContent          string
	ArchitectureContent string
	RepositoryURL       string
	Status              string
	BackendUsed         string
	Attempts            int
	Degraded            bool
	Recommendation      string
	Assumptions         []analysis.AssumptionRecord
	ReportID            string
	ReportContent       string
	ErrorCode           string
	ErrorMessage        string
	ErrorRetryable      bool
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
}
