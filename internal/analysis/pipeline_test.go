package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// memRegistrar stores registered reports in memory.
type memRegistrar struct {
	mu      sync.Mutex
	next    int
	reports map[string][]byte
	failure error
}

func newMemRegistrar() *memRegistrar {
	return &memRegistrar{reports: make(map[string][]byte)}
}

func (r *memRegistrar) Register(_ context.Context, report []byte) (string, error) {
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

func (r *memRegistrar) Fetch(_ context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}

func testPipeline(client *scriptedClient, registrar Registrar) *Pipeline {
	selector := NewSelector(client, nil)
	noSleep(selector)
	return &Pipeline{
		Normalizer: &Normalizer{Now: fixedNow},
		Selector:   selector,
		Assembler:  Assembler{},
		Registrar:  registrar,
	}
}

func sectionScript(section string, call int) (string, error) {
	switch section {
	case SectionRiskRegister:
		return `[{"description":"Vendor lock-in on the queue","impact":"H","probability":"M","mitigation":"Abstract the queue client","owner":"Tech Lead","timeline":"Sprint 3"}]`, nil
	case SectionImpactAnalysis:
		return `[{"area":"TECHNICAL","description":"New service boundary","severity":"M","likelihood":"M","priority":6,"mitigation":"Spike first"}]`, nil
	default:
		return "Prose for " + section + ".", nil
	}
}

func TestPipelineRunRegistersReport(t *testing.T) {
	registrar := newMemRegistrar()
	p := testPipeline(newScriptedClient(sectionScript), registrar)

	result, err := p.Run(context.Background(), AnalysisRequest{PRDContent: "Build a billing service."})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ReportID == "" {
		t.Fatal("expected a report id")
	}
	if len(result.Report.Risks) != 1 || result.Report.Risks[0].Score != 15 {
		t.Fatalf("risk not scored from generated register: %+v", result.Report.Risks)
	}
	if result.Report.Risks[0].ID != "R-001" {
		t.Fatalf("risk id = %q, want R-001", result.Report.Risks[0].ID)
	}
	if result.Degraded {
		t.Fatal("fully generated run must not be degraded")
	}

	stored, err := registrar.Fetch(context.Background(), result.ReportID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(stored, result.Rendered) {
		t.Fatal("registered bytes differ from rendered report")
	}
}

func TestPipelineRunValidationErrorStops(t *testing.T) {
	registrar := newMemRegistrar()
	p := testPipeline(newScriptedClient(sectionScript), registrar)

	_, err := p.Run(context.Background(), AnalysisRequest{PRDContent: "   "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(registrar.reports) != 0 {
		t.Fatal("nothing must be registered on validation failure")
	}
}

func TestPipelineRunRegistrationFailureKeepsResult(t *testing.T) {
	registrar := newMemRegistrar()
	registrar.failure = errors.New("bucket unavailable")
	p := testPipeline(newScriptedClient(sectionScript), registrar)

	result, err := p.Run(context.Background(), AnalysisRequest{PRDContent: "Build a billing service."})
	if !IsRegistrationError(err) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	if len(result.Rendered) == 0 {
		t.Fatal("rendered report must survive a registration failure")
	}
	if result.ReportID != "" {
		t.Fatalf("no id should be assigned, got %q", result.ReportID)
	}

	// The retained bytes register cleanly once storage recovers.
	registrar.failure = nil
	id, rerr := registrar.Register(context.Background(), result.Rendered)
	if rerr != nil {
		t.Fatalf("retry register: %v", rerr)
	}
	stored, _ := registrar.Fetch(context.Background(), id)
	if !bytes.Equal(stored, result.Rendered) {
		t.Fatal("retried registration stored different bytes")
	}
}

func TestPipelineRunDegradedWhenBackendsFail(t *testing.T) {
	registrar := newMemRegistrar()
	failing := newScriptedClient(func(section string, call int) (string, error) {
		return "", errors.New("backend down")
	})
	p := testPipeline(failing, registrar)

	result, err := p.Run(context.Background(), AnalysisRequest{PRDContent: "Build a billing service."})
	if err != nil {
		t.Fatalf("backend failure must not fail the run: %v", err)
	}
	if !result.Degraded {
		t.Fatal("all-placeholder run must be degraded")
	}
	// The default register keeps risk scoring alive.
	if len(result.Report.Risks) != len(DefaultRiskRegister()) {
		t.Fatalf("expected default risks, got %d", len(result.Report.Risks))
	}
	if result.ReportID == "" {
		t.Fatal("degraded report still registers")
	}
}

func TestPipelineRunCancelledContext(t *testing.T) {
	registrar := newMemRegistrar()
	p := testPipeline(newScriptedClient(sectionScript), registrar)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, AnalysisRequest{PRDContent: "Build a billing service."})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(registrar.reports) != 0 {
		t.Fatal("nothing must be registered after cancellation")
	}
}

func TestPipelineRunAssumptionsFlowIntoReport(t *testing.T) {
	p := testPipeline(newScriptedClient(sectionScript), newMemRegistrar())

	result, err := p.Run(context.Background(), AnalysisRequest{PRDContent: "Build a billing service."})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Assumptions) != 2 {
		t.Fatalf("expected architecture and repository assumptions, got %d", len(result.Assumptions))
	}
	if result.Assumptions[0].Subject != SubjectArchitecture || result.Assumptions[1].Subject != SubjectRepository {
		t.Fatalf("assumption order wrong: %+v", result.Assumptions)
	}
	if got := result.Report.Assumptions; len(got) != 2 {
		t.Fatalf("assumptions missing from report: %+v", got)
	}
}
