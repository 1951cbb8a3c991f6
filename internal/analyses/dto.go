package analyses

import (
	"time"

	"impact-backend/internal/analysis"
)

// createRequest is the JSON body accepted by POST /analyses.
type createRequest struct {
	PRDContent          string `json:"prdContent"`
	PRDDocumentID       string `json:"prdDocumentId"`
	ArchitectureContent string `json:"architectureContent"`
	ArchDocumentID      string `json:"archDocumentId"`
	RepositoryURL       string `json:"repositoryUrl"`
}

// AnalysisResponse is the outward-facing representation of an analysis.
type AnalysisResponse struct {
	AnalysisID     string                      `json:"analysisId"`
	Status         string                      `json:"status"`
	BackendUsed    string                      `json:"backendUsed,omitempty"`
	Attempts       int                         `json:"attempts,omitempty"`
	Degraded       bool                        `json:"degraded"`
	Recommendation string                      `json:"recommendation,omitempty"`
	Assumptions    []analysis.AssumptionRecord `json:"assumptions,omitempty"`
	ReportID       string                      `json:"reportId,omitempty"`
	ErrorCode      string                      `json:"errorCode,omitempty"`
	ErrorMessage   string                      `json:"errorMessage,omitempty"`
	Retryable      bool                        `json:"retryable,omitempty"`
	CreatedAt      time.Time                   `json:"createdAt"`
	CompletedAt    *time.Time                  `json:"completedAt,omitempty"`
}

func toResponse(a Analysis) AnalysisResponse {
	return AnalysisResponse{
		AnalysisID:     a.ID,
		Status:         a.Status,
		BackendUsed:    a.BackendUsed,
		Attempts:       a.Attempts,
		Degraded:       a.Degraded,
		Recommendation: a.Recommendation,
		Assumptions:    a.Assumptions,
		ReportID:       a.ReportID,
		ErrorCode:      a.ErrorCode,
		ErrorMessage:   a.ErrorMessage,
		Retryable:      a.ErrorRetryable,
		CreatedAt:      a.CreatedAt,
		CompletedAt:    a.CompletedAt,
	}
}
