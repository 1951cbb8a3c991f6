package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"impact-backend/internal/analysis"
	"impact-backend/internal/documents"
	"impact-backend/internal/queue"
	"impact-backend/internal/shared/metrics"
	"impact-backend/internal/shared/telemetry"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// CreateInput is what callers supply to start an analysis. PRD and
// architecture content may be inline or referenced by an uploaded document;
// inline content takes precedence when both are given.
type CreateInput struct {
	PRDContent          string
	PRDDocumentID       string
	ArchitectureContent string
	ArchDocumentID      string
	RepositoryURL       string
}

// Service contains business logic for analyses.
type Service struct {
	Repo     Repo
	Docs     *documents.Service
	Pipeline *analysis.Pipeline
	Queue    queue.Client
}

// Create validates and records a new analysis, then hands it off for
// asynchronous processing: to the job queue when one is configured, otherwise
// to an in-process goroutine.
func (s *Service) Create(ctx context.Context, in CreateInput) (Analysis, error) {
	prd, arch, err := s.resolveContent(ctx, in)
	if err != nil {
		return Analysis{}, err
	}

	if strings.TrimSpace(prd) == "" {
		return Analysis{}, &analysis.ValidationError{Field: "prd_content", Reason: "must not be empty"}
	}

	a := Analysis{
		ID:                  uuid.NewString(),
		PRDDocumentID:       in.PRDDocumentID,
		ArchDocumentID:      in.ArchDocumentID,
		PRDContent:          prd,
		ArchitectureContent: arch,
		RepositoryURL:       strings.TrimSpace(in.RepositoryURL),
		Status:              StatusQueued,
		CreatedAt:           time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, a); err != nil {
		return Analysis{}, err
	}

	if s.Queue != nil {
		msg := queue.NewMessage(a.ID, requestIDFromContext(ctx))
		if err := s.Queue.Send(ctx, msg); err != nil {
			telemetry.Error("analysis.enqueue_failed", map[string]any{
				"analysis_id": a.ID,
				"error":       err.Error(),
			})
			go s.processAsync(backgroundWithRequestID(ctx), a.ID)
		}
		return a, nil
	}

	go s.processAsync(backgroundWithRequestID(ctx), a.ID)
	return a, nil
}

func (s *Service) resolveContent(ctx context.Context, in CreateInput) (prd, arch string, err error) {
	prd = in.PRDContent
	if strings.TrimSpace(prd) == "" && in.PRDDocumentID != "" {
		prd, err = s.Docs.Text(ctx, in.PRDDocumentID)
		if err != nil {
			if errors.Is(err, documents.ErrNotFound) {
				return "", "", &analysis.ValidationError{Field: "prd_document_id", Reason: "document not found"}
			}
			return "", "", fmt.Errorf("load prd document %s: %w", in.PRDDocumentID, err)
		}
	}

	arch = in.ArchitectureContent
	if strings.TrimSpace(arch) == "" && in.ArchDocumentID != "" {
		arch, err = s.Docs.Text(ctx, in.ArchDocumentID)
		if err != nil {
			if errors.Is(err, documents.ErrNotFound) {
				return "", "", &analysis.ValidationError{Field: "arch_document_id", Reason: "document not found"}
			}
			return "", "", fmt.Errorf("load architecture document %s: %w", in.ArchDocumentID, err)
		}
	}
	return prd, arch, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns analyses newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Analysis, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Report returns the registered report bytes for a completed analysis. When
// registration is still pending it serves the retained copy.
func (s *Service) Report(ctx context.Context, analysisID string) ([]byte, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusCompleted {
		return nil, ErrReportNotReady
	}

	if a.ReportID != "" {
		report, err := s.Pipeline.Registrar.Fetch(ctx, a.ReportID)
		if err == nil {
			return report, nil
		}
		telemetry.Error("analysis.report_fetch_failed", map[string]any{
			"analysis_id": a.ID,
			"report_id":   a.ReportID,
			"error":       err.Error(),
		})
	}

	if a.ReportContent != "" {
		return []byte(a.ReportContent), nil
	}
	return nil, analysis.ErrReportNotFound
}

// RetryRegistration re-registers the retained report of an analysis whose
// initial registration failed. It never regenerates content.
func (s *Service) RetryRegistration(ctx context.Context, analysisID string) (Analysis, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.Status != StatusCompleted || a.ReportID != "" || a.ReportContent == "" {
		return Analysis{}, ErrNotRetryable
	}

	reportID, err := s.Pipeline.Registrar.Register(ctx, []byte(a.ReportContent))
	if err != nil {
		return Analysis{}, &analysis.RegistrationError{Err: err}
	}

	if err := s.Repo.SetRegistration(ctx, a.ID, reportID); err != nil {
		return Analysis{}, err
	}

	telemetry.Info("analysis.registration_retried", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": a.ID,
		"report_id":   reportID,
	})

	a.ReportID = reportID
	a.ErrorCode = ""
	a.ErrorMessage = ""
	a.ErrorRetryable = false
	return a, nil
}

func (s *Service) processAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	_ = s.Process(ctx, analysisID)
}

// Process runs the pipeline for a queued analysis. It is called from the
// in-process goroutine and from the queue worker.
func (s *Service) Process(ctx context.Context, analysisID string) error {
	startedAt := time.Now().UTC()
	if err := s.Repo.MarkProcessing(ctx, analysisID, startedAt); err != nil {
		s.failAnalysis(ctx, analysisID, fmt.Errorf("set processing failed: %w", err), &startedAt)
		return err
	}

	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, fmt.Errorf("analysis lookup: %w", err), &startedAt)
		return err
	}

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       a.ID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})

	if s.Pipeline == nil {
		err := errors.New("missing pipeline")
		s.failAnalysis(ctx, analysisID, err, &startedAt)
		return err
	}

	req := analysis.AnalysisRequest{
		PRDContent:          a.PRDContent,
		ArchitectureContent: a.ArchitectureContent,
		RepositoryURL:       a.RepositoryURL,
	}

	result, runErr := s.Pipeline.Run(ctx, req)
	if runErr != nil && !analysis.IsRegistrationError(runErr) {
		s.failAnalysis(ctx, analysisID, runErr, &startedAt)
		return runErr
	}

	update := CompletionUpdate{
		BackendUsed:    string(result.Outcome.BackendUsed),
		Attempts:       result.Outcome.Attempts,
		Degraded:       result.Degraded,
		Recommendation: string(result.Report.Recommendation),
		Assumptions:    result.Assumptions,
		ReportID:       result.ReportID,
		ReportContent:  string(result.Rendered),
		CompletedAt:    time.Now().UTC(),
	}
	if runErr != nil {
		update.ErrorCode = ErrorCodeRegistration
		update.ErrorMessage = sanitizeError(runErr)
		update.ErrorRetryable = true
	}

	if err := s.Repo.Complete(ctx, analysisID, update); err != nil {
		s.failAnalysis(ctx, analysisID, fmt.Errorf("set analysis result failed: %w", err), &startedAt)
		return err
	}

	metrics.IncAnalysisCompleted()
	if result.Degraded {
		metrics.IncAnalysisDegraded()
	}
	if result.Outcome.BackendUsed == analysis.BackendFallback {
		metrics.IncBackendFallback()
	}
	completedAt := update.CompletedAt
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))

	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       a.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"backend_used":      update.BackendUsed,
		"degraded":          update.Degraded,
		"recommendation":    update.Recommendation,
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	if runErr != nil {
		telemetry.Error("analysis.registration_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       update.ErrorMessage,
		})
	}
	return runErr
}

func (s *Service) failAnalysis(ctx context.Context, analysisID string, err error, startedAt *time.Time) {
	code, retryable := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.Fail(context.Background(), analysisID, code, msg, retryable, completedAt); updateErr != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"analysis_id": analysisID,
			"error":       updateErr.Error(),
			"original":    msg,
		})
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	if analysis.IsValidationError(err) {
		return ErrorCodeValidation, false
	}
	if analysis.IsRegistrationError(err) {
		return ErrorCodeRegistration, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout, true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") {
		return ErrorCodeLLMTimeout, true
	}
	if strings.Contains(msg, "analysis lookup") || strings.Contains(msg, "analysis result") || strings.Contains(msg, "set processing") {
		return ErrorCodeStorage, true
	}
	return ErrorCodeInternal, false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
