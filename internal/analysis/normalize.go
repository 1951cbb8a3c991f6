package analysis

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"impact-backend/internal/shared/telemetry"
)

const (
	// DefaultMaxPRDChars bounds how much PRD text reaches the prompts.
	DefaultMaxPRDChars = 2000
	// DefaultMaxArchChars bounds how much architecture text reaches the prompts.
	DefaultMaxArchChars = 3000
)

const (
	assumeArchitecture = "assume modern 3-tier cloud-native architecture with RESTful API and containerized deployment"
	assumeRepository   = "assume greenfield project with standard CI/CD and version control practices"
)

// RepositoryAnalyzer is the optional external collaborator that enriches a
// request with a text summary of the referenced repository.
type RepositoryAnalyzer interface {
	Summarize(ctx context.Context, url string) (string, error)
}

// ErrAnalysisUnavailable is returned by a RepositoryAnalyzer when the
// repository cannot be inspected. The pipeline records an assumption instead
// of failing.
var ErrAnalysisUnavailable = errors.New("repository analysis unavailable")

// Normalizer validates mandatory inputs, truncates oversized content and
// emits assumption records for anything absent.
type Normalizer struct {
	MaxPRDChars  int
	MaxArchChars int
	RepoAnalyzer RepositoryAnalyzer
	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// Normalize validates the request and produces the bounded input plus the
// assumption ledger. It fails only when PRDContent is empty or whitespace.
// Assumption ordering is fixed: ARCHITECTURE, REPOSITORY, TECHNICAL_DETAIL.
func (n *Normalizer) Normalize(ctx context.Context, req AnalysisRequest) (NormalizedInput, []AssumptionRecord, error) {
	if strings.TrimSpace(req.PRDContent) == "" {
		return NormalizedInput{}, nil, &ValidationError{Field: "prd_content", Reason: "must not be empty"}
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	out := NormalizedInput{
		PRDContent:          n.truncate("prd_content", req.PRDContent, n.maxPRD()),
		ArchitectureContent: n.truncate("architecture_content", req.ArchitectureContent, n.maxArch()),
		RepositoryURL:       strings.TrimSpace(req.RepositoryURL),
		ReceivedAt:          now().UTC().Truncate(time.Second),
	}

	var assumptions []AssumptionRecord
	if strings.TrimSpace(req.ArchitectureContent) == "" {
		out.ArchitectureContent = ""
		assumptions = append(assumptions, AssumptionRecord{
			Subject:    SubjectArchitecture,
			Statement:  assumeArchitecture,
			Confidence: ConfidenceHigh,
		})
	}

	if out.RepositoryURL == "" {
		assumptions = append(assumptions, AssumptionRecord{
			Subject:    SubjectRepository,
			Statement:  assumeRepository,
			Confidence: ConfidenceHigh,
		})
	} else if n.RepoAnalyzer != nil {
		summary, err := n.RepoAnalyzer.Summarize(ctx, out.RepositoryURL)
		switch {
		case err == nil:
			out.RepositorySummary = summary
		case errors.Is(err, context.Canceled):
			return NormalizedInput{}, nil, err
		default:
			telemetry.Info("analysis.repo_summary_unavailable", map[string]any{
				"repository_url": out.RepositoryURL,
				"error":          err.Error(),
			})
			assumptions = append(assumptions, AssumptionRecord{
				Subject:    SubjectTechnicalDetail,
				Statement:  "assume repository state matches the architecture description; repository could not be inspected",
				Confidence: ConfidenceMedium,
			})
		}
	}

	out.ProjectInfo = ExtractProjectInfo(out.PRDContent, out.ArchitectureContent)
	return out, assumptions, nil
}

func (n *Normalizer) maxPRD() int {
	if n.MaxPRDChars > 0 {
		return n.MaxPRDChars
	}
	return DefaultMaxPRDChars
}

func (n *Normalizer) maxArch() int {
	if n.MaxArchChars > 0 {
		return n.MaxArchChars
	}
	return DefaultMaxArchChars
}

// truncate keeps the prefix up to ceiling characters, never splitting a
// multi-byte rune. Truncation is logged but does not create an assumption
// record.
func (n *Normalizer) truncate(field, content string, ceiling int) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= ceiling {
		return content
	}
	telemetry.Info("analysis.input_truncated", map[string]any{
		"field":    field,
		"original": utf8.RuneCountInString(content),
		"ceiling":  ceiling,
	})
	return string([]rune(content)[:ceiling])
}
