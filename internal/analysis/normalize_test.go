package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

type stubAnalyzer struct {
	summary string
	err     error
}

func (s stubAnalyzer) Summarize(ctx context.Context, url string) (string, error) {
	return s.summary, s.err
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
}

func TestNormalizeRejectsEmptyPRD(t *testing.T) {
	n := &Normalizer{Now: fixedNow}
	for _, prd := range []string{"", "   ", "\n\t"} {
		_, _, err := n.Normalize(context.Background(), AnalysisRequest{PRDContent: prd})
		if !IsValidationError(err) {
			t.Fatalf("prd=%q: expected validation error, got %v", prd, err)
		}
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "prd_content" {
			t.Fatalf("prd=%q: unexpected field in %v", prd, err)
		}
	}
}

func TestNormalizeFullInputHasNoAssumptions(t *testing.T) {
	n := &Normalizer{
		RepoAnalyzer: stubAnalyzer{summary: "Languages Detected: .go"},
		Now:          fixedNow,
	}
	in, assumptions, err := n.Normalize(context.Background(), AnalysisRequest{
		PRDContent:          "Build a billing portal.",
		ArchitectureContent: "Three services behind an API gateway.",
		RepositoryURL:       "https://example.com/billing.git",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(assumptions) != 0 {
		t.Fatalf("expected no assumptions, got %+v", assumptions)
	}
	if in.RepositorySummary != "Languages Detected: .go" {
		t.Fatalf("repository summary not captured: %q", in.RepositorySummary)
	}
	if got, want := in.ReceivedAt, fixedNow().Truncate(time.Second); !got.Equal(want) {
		t.Fatalf("ReceivedAt = %v, want %v", got, want)
	}
}

func TestNormalizeMissingOptionalInputsAssumptionOrder(t *testing.T) {
	n := &Normalizer{Now: fixedNow}
	_, assumptions, err := n.Normalize(context.Background(), AnalysisRequest{PRDContent: "Just a PRD."})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(assumptions) != 2 {
		t.Fatalf("expected 2 assumptions, got %d", len(assumptions))
	}
	if assumptions[0].Subject != SubjectArchitecture || assumptions[1].Subject != SubjectRepository {
		t.Fatalf("assumption order wrong: %+v", assumptions)
	}
	for _, a := range assumptions {
		if a.Confidence != ConfidenceHigh {
			t.Fatalf("expected HIGH confidence, got %+v", a)
		}
	}
	if assumptions[0].Statement != "assume modern 3-tier cloud-native architecture with RESTful API and containerized deployment" {
		t.Fatalf("architecture statement drifted: %q", assumptions[0].Statement)
	}
	if assumptions[1].Statement != "assume greenfield project with standard CI/CD and version control practices" {
		t.Fatalf("repository statement drifted: %q", assumptions[1].Statement)
	}
}

func TestNormalizeRepoAnalysisFailureBecomesAssumption(t *testing.T) {
	n := &Normalizer{
		RepoAnalyzer: stubAnalyzer{err: ErrAnalysisUnavailable},
		Now:          fixedNow,
	}
	in, assumptions, err := n.Normalize(context.Background(), AnalysisRequest{
		PRDContent:          "PRD text",
		ArchitectureContent: "Arch text",
		RepositoryURL:       "https://example.com/x.git",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if in.RepositorySummary != "" {
		t.Fatalf("expected empty summary, got %q", in.RepositorySummary)
	}
	if len(assumptions) != 1 {
		t.Fatalf("expected 1 assumption, got %+v", assumptions)
	}
	if assumptions[0].Subject != SubjectTechnicalDetail || assumptions[0].Confidence != ConfidenceMedium {
		t.Fatalf("unexpected assumption: %+v", assumptions[0])
	}
}

func TestNormalizeTruncatesOversizedContent(t *testing.T) {
	n := &Normalizer{MaxPRDChars: 10, MaxArchChars: 5, Now: fixedNow}
	in, assumptions, err := n.Normalize(context.Background(), AnalysisRequest{
		PRDContent:          strings.Repeat("p", 50),
		ArchitectureContent: strings.Repeat("a", 50),
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(in.PRDContent) != 10 {
		t.Fatalf("prd not truncated: %d chars", len(in.PRDContent))
	}
	if len(in.ArchitectureContent) != 5 {
		t.Fatalf("architecture not truncated: %d chars", len(in.ArchitectureContent))
	}
	// Truncation is not an absence; no assumption records.
	if len(assumptions) != 0 {
		t.Fatalf("expected no assumptions for truncation, got %+v", assumptions)
	}
}

func TestNormalizeTruncatesByCharacters(t *testing.T) {
	n := &Normalizer{MaxPRDChars: 5, Now: fixedNow}
	in, _, err := n.Normalize(context.Background(), AnalysisRequest{
		PRDContent: "abcdéfgh",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if in.PRDContent != "abcdé" {
		t.Fatalf("expected rune-bounded prefix, got %q", in.PRDContent)
	}
	if !utf8.ValidString(in.PRDContent) {
		t.Fatalf("truncated content is not valid UTF-8: %q", in.PRDContent)
	}
}

func TestNormalizePropagatesCancellation(t *testing.T) {
	n := &Normalizer{
		RepoAnalyzer: stubAnalyzer{err: context.Canceled},
		Now:          fixedNow,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := n.Normalize(ctx, AnalysisRequest{
		PRDContent:    "PRD",
		RepositoryURL: "https://example.com/x.git",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
