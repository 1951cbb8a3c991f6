package llm

import (
	"context"
	"errors"
)

// Client abstracts text-generation providers. The pipeline issues one call
// per report section, possibly concurrently, so implementations must be safe
// for concurrent use.
type Client interface {
	GenerateText(ctx context.Context, input GenerateInput) (string, error)
}

// GenerateInput carries a single section-generation request.
type GenerateInput struct {
	System  string
	Prompt  string
	Section string
}

// ErrNotConfigured is returned when a provider is constructed without the
// credentials it needs.
var ErrNotConfigured = errors.New("llm provider not configured")
