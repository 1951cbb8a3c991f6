package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Analysis
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Analysis)}
}

// Create stores an analysis record.
func (r *MemoryRepo) Create(ctx context.Context, a Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[a.ID] = a
	return nil
}

// GetByID returns an analysis by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// List returns analyses newest-first, honoring limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	out := make([]Analysis, 0, len(r.data))
	for _, a := range r.data {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Analysis{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// MarkProcessing transitions an analysis to processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusProcessing
	a.StartedAt = &startedAt
	r.data[analysisID] = a
	return nil
}

// Complete records a finished pipeline run.
func (r *MemoryRepo) Complete(ctx context.Context, analysisID string, update CompletionUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusCompleted
	a.BackendUsed = update.BackendUsed
	a.Attempts = update.Attempts
	a.Degraded = update.Degraded
	a.Recommendation = update.Recommendation
	a.Assumptions = update.Assumptions
	a.ReportID = update.ReportID
	a.ReportContent = update.ReportContent
	a.ErrorCode = update.ErrorCode
	a.ErrorMessage = update.ErrorMessage
	a.ErrorRetryable = update.ErrorRetryable
	completedAt := update.CompletedAt
	a.CompletedAt = &completedAt
	r.data[analysisID] = a
	return nil
}

// Fail records a terminal failure.
func (r *MemoryRepo) Fail(ctx context.Context, analysisID, code, message string, retryable bool, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusFailed
	a.ErrorCode = code
	a.ErrorMessage = message
	a.ErrorRetryable = retryable
	a.CompletedAt = &completedAt
	r.data[analysisID] = a
	return nil
}

// SetRegistration records a successful registration retry.
func (r *MemoryRepo) SetRegistration(ctx context.Context, analysisID, reportID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[analysisID]
	if !ok {
		return ErrNotFound
	}
	a.ReportID = reportID
	a.ErrorCode = ""
	a.ErrorMessage = ""
	a.ErrorRetryable = false
	r.data[analysisID] = a
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
