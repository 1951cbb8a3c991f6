package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"impact-backend/internal/llm"
)

// scriptedClient returns canned responses keyed by call count per section.
type scriptedClient struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(section string, call int) (string, error)
}

func newScriptedClient(fn func(section string, call int) (string, error)) *scriptedClient {
	return &scriptedClient{calls: make(map[string]int), fn: fn}
}

func (c *scriptedClient) GenerateText(ctx context.Context, in llm.GenerateInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.calls[in.Section]++
	call := c.calls[in.Section]
	c.mu.Unlock()
	return c.fn(in.Section, call)
}

func (c *scriptedClient) callCount(section string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[section]
}

func noSleep(s *Selector) {
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
}

func testInput() NormalizedInput {
	return NormalizedInput{
		PRDContent: "Build the thing.",
		ReceivedAt: fixedNow().Truncate(time.Second),
	}
}

func TestGenerateAllSectionsFromPrimary(t *testing.T) {
	primary := newScriptedClient(func(section string, call int) (string, error) {
		return "text for " + section, nil
	})
	s := NewSelector(primary, nil)
	noSleep(s)

	outcome, err := s.Generate(context.Background(), testInput(), DefaultSectionPrompts())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if outcome.BackendUsed != BackendPrimary {
		t.Fatalf("BackendUsed = %s, want PRIMARY", outcome.BackendUsed)
	}
	if len(outcome.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(outcome.Sections))
	}
	if outcome.Attempts != 4 {
		t.Fatalf("Attempts = %d, want 4", outcome.Attempts)
	}
	if outcome.Sections[SectionExecutiveSummary] != "text for "+SectionExecutiveSummary {
		t.Fatalf("unexpected section text: %q", outcome.Sections[SectionExecutiveSummary])
	}
}

func TestGenerateRetriesTransientThenSucceeds(t *testing.T) {
	primary := newScriptedClient(func(section string, call int) (string, error) {
		if call == 1 {
			return "", llm.Transient(errors.New("status 503"))
		}
		return "recovered", nil
	})
	s := NewSelector(primary, nil)

	var delays []time.Duration
	var mu sync.Mutex
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	prompts := map[string]SectionPrompt{
		SectionExecutiveSummary: DefaultSectionPrompts()[SectionExecutiveSummary],
	}
	outcome, err := s.Generate(context.Background(), testInput(), prompts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if outcome.Sections[SectionExecutiveSummary] != "recovered" {
		t.Fatalf("expected recovered text, got %q", outcome.Sections[SectionExecutiveSummary])
	}
	if outcome.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", outcome.Attempts)
	}
	if len(delays) != 1 || delays[0] != defaultBaseDelay {
		t.Fatalf("expected one backoff of %v, got %v", defaultBaseDelay, delays)
	}
}

func TestGenerateBackoffDoublesAndCaps(t *testing.T) {
	primary := newScriptedClient(func(section string, call int) (string, error) {
		return "", llm.Transient(errors.New("status 503"))
	})
	fallback := newScriptedClient(func(section string, call int) (string, error) {
		return "from fallback", nil
	})
	s := NewSelector(primary, fallback)
	s.MaxRetries = 5
	s.BaseDelay = 2 * time.Second
	s.MaxDelay = 5 * time.Second

	var delays []time.Duration
	var mu sync.Mutex
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	prompts := map[string]SectionPrompt{
		SectionScopeOverview: DefaultSectionPrompts()[SectionScopeOverview],
	}
	outcome, err := s.Generate(context.Background(), testInput(), prompts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if outcome.Sections[SectionScopeOverview] != "from fallback" {
		t.Fatalf("expected fallback text, got %q", outcome.Sections[SectionScopeOverview])
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delays[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestGenerateFatalErrorSkipsRetries(t *testing.T) {
	primary := newScriptedClient(func(section string, call int) (string, error) {
		return "", llm.Fatal(errors.New("status 401"))
	})
	fallback := newScriptedClient(func(section string, call int) (string, error) {
		return "fallback text", nil
	})
	s := NewSelector(primary, fallback)
	noSleep(s)

	prompts := map[string]SectionPrompt{
		SectionRiskRegister: DefaultSectionPrompts()[SectionRiskRegister],
	}
	outcome, err := s.Generate(context.Background(), testInput(), prompts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := primary.callCount(SectionRiskRegister); got != 1 {
		t.Fatalf("primary called %d times, want 1", got)
	}
	if outcome.BackendUsed != BackendFallback {
		t.Fatalf("BackendUsed = %s, want FALLBACK", outcome.BackendUsed)
	}
}

func TestGenerateBothBackendsFailYieldsPlaceholder(t *testing.T) {
	fail := func(section string, call int) (string, error) {
		return "", llm.Fatal(errors.New("nope"))
	}
	s := NewSelector(newScriptedClient(fail), newScriptedClient(fail))
	noSleep(s)

	outcome, err := s.Generate(context.Background(), testInput(), DefaultSectionPrompts())
	if err != nil {
		t.Fatalf("generate must not fail for missing sections: %v", err)
	}
	for name, text := range outcome.Sections {
		if text != Placeholder {
			t.Fatalf("section %s = %q, want placeholder", name, text)
		}
	}
}

func TestGenerateTieBreaksTowardPrimary(t *testing.T) {
	primary := newScriptedClient(func(section string, call int) (string, error) {
		if strings.HasPrefix(section, "executive") || strings.HasPrefix(section, "impact") {
			return "primary text", nil
		}
		return "", llm.Fatal(errors.New("down"))
	})
	fallback := newScriptedClient(func(section string, call int) (string, error) {
		return "fallback text", nil
	})
	s := NewSelector(primary, fallback)
	noSleep(s)

	outcome, err := s.Generate(context.Background(), testInput(), DefaultSectionPrompts())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if outcome.BackendUsed != BackendPrimary {
		t.Fatalf("2-2 split should report PRIMARY, got %s", outcome.BackendUsed)
	}
}

func TestGenerateCancelledContextFails(t *testing.T) {
	primary := newScriptedClient(func(section string, call int) (string, error) {
		return "ok", nil
	})
	s := NewSelector(primary, nil)
	noSleep(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Generate(ctx, testInput(), DefaultSectionPrompts())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
