package summary

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/soyeahso/billable/internal/domain"
)

// TemplateGenerator builds deterministic summaries from word and sentence
// counts. It never fails and is the fallback when the AI provider is
// unavailable or unconfigured.
type TemplateGenerator struct{}

// NewTemplateGenerator creates the template-based generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Name() string { return "template" }

func (g *TemplateGenerator) Summarize(_ context.Context, req Request) (*Result, error) {
	words := len(strings.Fields(req.Text))
	sentences := countSentences(req.Text)
	hours := roundHours(req.ElapsedSeconds)
	activity := classifyActivity(req.Subject + " " + req.Text)

	var text string
	switch {
	case req.Subject != "":
		text = fmt.Sprintf("Drafted email correspondence regarding %q (%d words, %d sentences); %.2f hours.",
			req.Subject, words, sentences, hours)
	case words > 0:
		text = fmt.Sprintf("Drafted email correspondence (%d words, %d sentences); %.2f hours.",
			words, sentences, hours)
	default:
		text = fmt.Sprintf("Email correspondence; %.2f hours.", hours)
	}

	return &Result{
		Summary:       text,
		WordCount:     words,
		SentenceCount: sentences,
		Hours:         hours,
		ActivityType:  activity,
		Confidence:    0.3,
	}, nil
}

func (g *TemplateGenerator) Suggest(_ context.Context, recipients []string, text string) (*domain.MatterSuggestion, error) {
	matterType := classifyActivity(text)

	subject := "General Correspondence"
	if len(recipients) > 0 {
		if _, dom, ok := strings.Cut(recipients[0], "@"); ok && dom != "" {
			subject = fmt.Sprintf("General Correspondence - %s", dom)
		}
	}

	return &domain.MatterSuggestion{
		SuggestedMatter: subject,
		MatterType:      matterType,
		Confidence:      0.3,
		Reasoning:       "keyword heuristics over recipients and body text",
	}, nil
}

// classifyActivity maps body keywords to a coarse activity type.
func classifyActivity(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "contract", "agreement", "amendment", "clause"):
		return "Contract Review"
	case containsAny(lower, "litigation", "lawsuit", "complaint", "discovery", "deposition"):
		return "Litigation"
	case containsAny(lower, "estate", "probate", "trust", "will"):
		return "Estate Planning"
	case containsAny(lower, "patent", "trademark", "copyright"):
		return "Intellectual Property"
	default:
		return "Correspondence"
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// countSentences counts terminator runs; any non-empty text counts as at
// least one sentence.
func countSentences(text string) int {
	count := 0
	inRun := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inRun {
				count++
				inRun = true
			}
		default:
			inRun = false
		}
	}
	if count == 0 && len(strings.TrimSpace(text)) > 0 {
		return 1
	}
	return count
}

// roundHours converts seconds to hours rounded to two decimals, with a
// 0.01h floor for any nonzero duration.
func roundHours(seconds int64) float64 {
	if seconds <= 0 {
		return 0
	}
	h := math.Round(float64(seconds)/3600*100) / 100
	if h < 0.01 {
		return 0.01
	}
	return h
}
