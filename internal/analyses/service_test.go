package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"impact-backend/internal/analysis"
	"impact-backend/internal/llm"
	"impact-backend/internal/queue"
)

// stubLLM serves fixed prose for every section.
type stubLLM struct {
	err error
}

func (c *stubLLM) GenerateText(_ context.Context, in llm.GenerateInput) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "Generated body for " + in.Section + ".", nil
}

// stubRegistrar keeps registered reports in memory with a failure toggle.
type stubRegistrar struct {
	mu      sync.Mutex
	next    int
	reports map[string][]byte
	failure error
}

func newStubRegistrar() *stubRegistrar {
	return &stubRegistrar{reports: make(map[string][]byte)}
}

func (r *stubRegistrar) Register(_ context.Context, report []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return "", r.failure
	}
	r.next++
	id := fmt.Sprintf("report-%d", r.next)
	r.reports[id] = append([]byte(nil), report...)
	return id, nil
}

func (r *stubRegistrar) Fetch(_ context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, analysis.ErrReportNotFound
	}
	return report, nil
}

type captureQueue struct {
	mu   sync.Mutex
	sent []queue.Message
	err  error
}

func (q *captureQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

func newTestService(client llm.Client, registrar analysis.Registrar, q queue.Client) *Service {
	return &Service{
		Repo: NewMemoryRepo(),
		Pipeline: &analysis.Pipeline{
			Normalizer: &analysis.Normalizer{},
			Selector:   analysis.NewSelector(client, nil),
			Assembler:  analysis.Assembler{},
			Registrar:  registrar,
		},
		Queue: q,
	}
}

func seedQueued(t *testing.T, svc *Service, prd string) Analysis {
	t.Helper()
	a := Analysis{
		ID:         uuid.NewString(),
		PRDContent: prd,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := svc.Repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func TestCreateRequiresPRDContent(t *testing.T) {
	svc := newTestService(&stubLLM{}, newStubRegistrar(), nil)

	_, err := svc.Create(context.Background(), CreateInput{PRDContent: "  \n "})
	var verr *analysis.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "prd_content" {
		t.Fatalf("field = %q, want prd_content", verr.Field)
	}

	all, _ := svc.Repo.List(context.Background(), 10, 0)
	if len(all) != 0 {
		t.Fatal("invalid input must not be persisted")
	}
}

func TestCreateEnqueuesWhenQueueConfigured(t *testing.T) {
	q := &captureQueue{}
	svc := newTestService(&stubLLM{}, newStubRegistrar(), q)

	a, err := svc.Create(context.Background(), CreateInput{PRDContent: "Build a thing."})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != StatusQueued {
		t.Fatalf("status = %s, want queued", a.Status)
	}
	if len(q.sent) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(q.sent))
	}
	msg := q.sent[0]
	if msg.AnalysisID != a.ID || msg.Version != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// The queue owns processing; the record stays queued here.
	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("status = %s, want queued", got.Status)
	}
}

func TestProcessCompletesAnalysis(t *testing.T) {
	registrar := newStubRegistrar()
	svc := newTestService(&stubLLM{}, registrar, nil)
	a := seedQueued(t, svc, "Build a billing service.")

	if err := svc.Process(context.Background(), a.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.ReportID == "" {
		t.Fatal("expected a report id")
	}
	if got.ReportContent == "" {
		t.Fatal("completed analysis retains the rendered report")
	}
	if got.Recommendation == "" {
		t.Fatal("expected a recommendation")
	}
	if got.BackendUsed != string(analysis.BackendPrimary) {
		t.Fatalf("backend = %s, want PRIMARY", got.BackendUsed)
	}
	if len(got.Assumptions) != 2 {
		t.Fatalf("expected architecture and repository assumptions, got %d", len(got.Assumptions))
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("timestamps not recorded")
	}

	report, err := svc.Report(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !bytes.Equal(report, []byte(got.ReportContent)) {
		t.Fatal("served report differs from retained copy")
	}
}

func TestProcessMarksValidationFailure(t *testing.T) {
	svc := newTestService(&stubLLM{}, newStubRegistrar(), nil)
	a := seedQueued(t, svc, "   ")

	if err := svc.Process(context.Background(), a.ID); err == nil {
		t.Fatal("expected process to fail")
	}

	got, _ := svc.Get(context.Background(), a.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorCode != ErrorCodeValidation {
		t.Fatalf("error code = %s, want %s", got.ErrorCode, ErrorCodeValidation)
	}
	if got.ErrorRetryable {
		t.Fatal("validation failures are not retryable")
	}
}

func TestProcessBackendFailureCompletesDegraded(t *testing.T) {
	// Backend failures never fail the run; every section assembles as a
	// placeholder and the completion is flagged degraded.
	svc := newTestService(&stubLLM{err: llm.Fatal(errors.New("bad prompt"))}, newStubRegistrar(), nil)
	a := seedQueued(t, svc, "Build a billing service.")

	if err := svc.Process(context.Background(), a.ID); err != nil {
		t.Fatalf("placeholder run must complete: %v", err)
	}
	got, _ := svc.Get(context.Background(), a.ID)
	if got.Status != StatusCompleted || !got.Degraded {
		t.Fatalf("expected degraded completion, got status=%s degraded=%v", got.Status, got.Degraded)
	}
}

func TestProcessRegistrationFailureIsRetryable(t *testing.T) {
	registrar := newStubRegistrar()
	registrar.failure = errors.New("bucket unavailable")
	svc := newTestService(&stubLLM{}, registrar, nil)
	a := seedQueued(t, svc, "Build a billing service.")

	err := svc.Process(context.Background(), a.ID)
	if !analysis.IsRegistrationError(err) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}

	got, _ := svc.Get(context.Background(), a.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.ErrorCode != ErrorCodeRegistration || !got.ErrorRetryable {
		t.Fatalf("expected retryable %s, got %s retryable=%v", ErrorCodeRegistration, got.ErrorCode, got.ErrorRetryable)
	}
	if got.ReportID != "" {
		t.Fatal("no report id on registration failure")
	}
	if got.ReportContent == "" {
		t.Fatal("report content must survive registration failure")
	}

	// The retained report still serves.
	report, rerr := svc.Report(context.Background(), a.ID)
	if rerr != nil {
		t.Fatalf("report: %v", rerr)
	}
	if len(report) == 0 {
		t.Fatal("empty report served")
	}

	// Storage recovers; the retry registers the retained bytes.
	registrar.failure = nil
	retried, rerr := svc.RetryRegistration(context.Background(), a.ID)
	if rerr != nil {
		t.Fatalf("retry: %v", rerr)
	}
	if retried.ReportID == "" {
		t.Fatal("retry must assign a report id")
	}

	got, _ = svc.Get(context.Background(), a.ID)
	if got.ReportID != retried.ReportID {
		t.Fatalf("repo report id = %q, want %q", got.ReportID, retried.ReportID)
	}
	if got.ErrorCode != "" || got.ErrorRetryable {
		t.Fatalf("retry must clear the error state, got code=%q retryable=%v", got.ErrorCode, got.ErrorRetryable)
	}

	stored, ferr := registrar.Fetch(context.Background(), retried.ReportID)
	if ferr != nil {
		t.Fatalf("fetch: %v", ferr)
	}
	if !bytes.Equal(stored, []byte(got.ReportContent)) {
		t.Fatal("registered bytes differ from retained report")
	}
}

func TestRetryRegistrationRejectsWrongState(t *testing.T) {
	registrar := newStubRegistrar()
	svc := newTestService(&stubLLM{}, registrar, nil)

	queued := seedQueued(t, svc, "Build a thing.")
	if _, err := svc.RetryRegistration(context.Background(), queued.ID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("queued analysis: got %v, want ErrNotRetryable", err)
	}

	completed := seedQueued(t, svc, "Build another thing.")
	if err := svc.Process(context.Background(), completed.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := svc.RetryRegistration(context.Background(), completed.ID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("registered analysis: got %v, want ErrNotRetryable", err)
	}

	if _, err := svc.RetryRegistration(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing analysis: got %v, want ErrNotFound", err)
	}
}

func TestReportNotReadyBeforeCompletion(t *testing.T) {
	svc := newTestService(&stubLLM{}, newStubRegistrar(), nil)
	a := seedQueued(t, svc, "Build a thing.")

	if _, err := svc.Report(context.Background(), a.ID); !errors.Is(err, ErrReportNotReady) {
		t.Fatalf("got %v, want ErrReportNotReady", err)
	}
	if _, err := svc.Report(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
