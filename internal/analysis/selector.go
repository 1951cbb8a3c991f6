package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"impact-backend/internal/llm"
	"impact-backend/internal/shared/telemetry"
)

// Backend identifies which generation backend produced content.
type Backend string

const (
	BackendPrimary  Backend = "PRIMARY"
	BackendFallback Backend = "FALLBACK"
)

// Placeholder is the deterministic text substituted for a section when both
// backends fail. Its presence marks the assembled report as degraded.
const Placeholder = "[Section could not be generated: assumption-based content unavailable]"

const (
	defaultMaxRetries = 2
	defaultBaseDelay  = 300 * time.Millisecond
	defaultMaxDelay   = 5 * time.Second
)

// GenerationOutcome is the transient result of generating all sections. It is
// consumed immediately by the assembler and never persisted.
type GenerationOutcome struct {
	BackendUsed Backend
	Attempts    int
	Sections    map[string]string
}

// Selector coordinates the primary and fallback generation backends. Sections
// are generated concurrently; per-section retry backoff never blocks other
// sections. The selector never fails an invocation for a missing section;
// the worst case for any section is Placeholder text.
type Selector struct {
	Primary    llm.Client
	Fallback   llm.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// sleep is overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSelector wires a selector with default retry policy.
func NewSelector(primary, fallback llm.Client) *Selector {
	return &Selector{Primary: primary, Fallback: fallback}
}

type sectionResult struct {
	section  string
	text     string
	backend  Backend
	attempts int
}

// Generate produces text for every requested section. It returns an error
// only when ctx is cancelled before all sections resolve; completed sections
// are discarded in that case.
func (s *Selector) Generate(ctx context.Context, in NormalizedInput, prompts map[string]SectionPrompt) (GenerationOutcome, error) {
	names := make([]string, 0, len(prompts))
	for name := range prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]sectionResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, prompt SectionPrompt) {
			defer wg.Done()
			results[i] = s.generateSection(ctx, in, prompt)
		}(i, prompts[name])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return GenerationOutcome{}, err
	}

	outcome := GenerationOutcome{Sections: make(map[string]string, len(results))}
	var primaryCount, fallbackCount int
	for _, res := range results {
		outcome.Sections[res.section] = res.text
		outcome.Attempts += res.attempts
		switch res.backend {
		case BackendPrimary:
			primaryCount++
		case BackendFallback:
			fallbackCount++
		}
	}
	// Majority producer, ties broken toward primary. Observability only.
	outcome.BackendUsed = BackendPrimary
	if fallbackCount > primaryCount {
		outcome.BackendUsed = BackendFallback
	}
	return outcome, nil
}

func (s *Selector) generateSection(ctx context.Context, in NormalizedInput, prompt SectionPrompt) sectionResult {
	res := sectionResult{section: prompt.Section}
	input := llm.GenerateInput{
		System:  prompt.System,
		Prompt:  prompt.Build(in),
		Section: prompt.Section,
	}

	text, attempts, err := s.tryPrimary(ctx, input)
	res.attempts += attempts
	if err == nil {
		res.text = text
		res.backend = BackendPrimary
		return res
	}
	if ctx.Err() != nil {
		res.text = Placeholder
		return res
	}
	telemetry.Info("analysis.section_fallback", map[string]any{
		"section":  prompt.Section,
		"attempts": attempts,
		"error":    err.Error(),
	})

	if s.Fallback != nil {
		res.attempts++
		text, ferr := s.Fallback.GenerateText(ctx, input)
		if ferr == nil {
			res.text = text
			res.backend = BackendFallback
			return res
		}
		err = ferr
	}

	telemetry.Error("analysis.section_placeholder", map[string]any{
		"section": prompt.Section,
		"error":   err.Error(),
	})
	res.text = Placeholder
	return res
}

// tryPrimary attempts the primary backend with retry on transient failure.
// Fatal errors skip the retries entirely.
func (s *Selector) tryPrimary(ctx context.Context, input llm.GenerateInput) (string, int, error) {
	if s.Primary == nil {
		return "", 0, llm.ErrNotConfigured
	}

	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := s.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}
	maxDelay := s.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	attempts := 0
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		if try > 0 {
			telemetry.Debug("analysis.section_retry", map[string]any{
				"section": input.Section,
				"try":     try,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			})
			if err := s.wait(ctx, delay); err != nil {
				return "", attempts, err
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
		attempts++
		text, err := s.Primary.GenerateText(ctx, input)
		if err == nil {
			return text, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", attempts, ctx.Err()
		}
		if !llm.IsTransient(err) {
			break
		}
	}
	return "", attempts, lastErr
}

func (s *Selector) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
