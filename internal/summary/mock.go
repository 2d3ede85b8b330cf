package summary

import (
	"context"

	"github.com/soyeahso/billable/internal/domain"
)

// MockGenerator is a test double for Generator.
type MockGenerator struct {
	ProviderName  string
	SummarizeFunc func(ctx context.Context, req Request) (*Result, error)
	SuggestFunc   func(ctx context.Context, recipients []string, text string) (*domain.MatterSuggestion, error)
}

func (m *MockGenerator) Name() string { return m.ProviderName }

func (m *MockGenerator) Summarize(ctx context.Context, req Request) (*Result, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, req)
	}
	return &Result{Summary: "mock summary", Confidence: 1}, nil
}

func (m *MockGenerator) Suggest(ctx context.Context, recipients []string, text string) (*domain.MatterSuggestion, error) {
	if m.SuggestFunc != nil {
		return m.SuggestFunc(ctx, recipients, text)
	}
	return &domain.MatterSuggestion{SuggestedMatter: "mock matter", Confidence: 1}, nil
}
