// Package summary generates billing narratives and matter suggestions from
// finished composition sessions. Implementations are interchangeable; the
// billing workflow tolerates any of them being slow or down.
package summary

import (
	"context"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/domain"
)

// Request carries the inputs for a billing summary.
type Request struct {
	Text           string
	Subject        string
	Recipients     []string
	ElapsedSeconds int64
	Tone           string
}

// Result is a generated billing summary with its metadata.
type Result struct {
	Summary       string  `json:"summary"`
	WordCount     int     `json:"wordCount"`
	SentenceCount int     `json:"sentenceCount"`
	Hours         float64 `json:"hours"`
	ActivityType  string  `json:"activityType"`
	Confidence    float64 `json:"confidence"`
}

// Generator produces summaries and matter suggestions.
type Generator interface {
	// Summarize turns final email text plus elapsed time into a billing
	// narrative.
	Summarize(ctx context.Context, req Request) (*Result, error)

	// Suggest proposes a matter for the email based on its recipients and
	// content.
	Suggest(ctx context.Context, recipients []string, text string) (*domain.MatterSuggestion, error)

	// Name returns the provider name.
	Name() string
}

// New builds the configured generator. Unknown providers fall back to the
// deterministic template generator.
func New(cfg config.SummaryConfig) Generator {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicGenerator(cfg.APIKey, cfg.Model)
	default:
		return NewTemplateGenerator()
	}
}
