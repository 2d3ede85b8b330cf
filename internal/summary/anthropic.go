package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/billable/internal/domain"
)

const anthropicVersion = "2023-06-01"

// AnthropicGenerator is a direct HTTP client for the Anthropic messages API.
type AnthropicGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicGenerator creates an Anthropic-backed generator.
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	return &AnthropicGenerator{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.anthropic.com",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

func (g *AnthropicGenerator) Summarize(ctx context.Context, req Request) (*Result, error) {
	prompt := fmt.Sprintf(`You are a legal billing assistant. Summarize the email below as a one-sentence billing narrative a law firm would put on an invoice.

Subject: %s
Time spent: %d seconds
Email text:
%s

Respond with only a JSON object: {"summary": string, "activityType": string, "keyPoints": [string], "confidence": number between 0 and 1}`,
		req.Subject, req.ElapsedSeconds, req.Text)

	var out struct {
		Summary      string   `json:"summary"`
		ActivityType string   `json:"activityType"`
		KeyPoints    []string `json:"keyPoints"`
		Confidence   float64  `json:"confidence"`
	}
	if err := g.complete(ctx, prompt, &out); err != nil {
		return nil, err
	}
	if out.Summary == "" {
		return nil, fmt.Errorf("empty summary in response")
	}

	return &Result{
		Summary:       out.Summary,
		WordCount:     len(strings.Fields(req.Text)),
		SentenceCount: countSentences(req.Text),
		Hours:         roundHours(req.ElapsedSeconds),
		ActivityType:  out.ActivityType,
		Confidence:    out.Confidence,
	}, nil
}

func (g *AnthropicGenerator) Suggest(ctx context.Context, recipients []string, text string) (*domain.MatterSuggestion, error) {
	prompt := fmt.Sprintf(`You are a legal billing assistant. Given an email, suggest which legal matter the work belongs to.

Recipients: %s
Email text:
%s

Respond with only a JSON object: {"suggestedMatter": string, "matterType": string, "confidence": number between 0 and 1, "reasoning": string}`,
		strings.Join(recipients, ", "), text)

	var out domain.MatterSuggestion
	if err := g.complete(ctx, prompt, &out); err != nil {
		return nil, err
	}
	if out.SuggestedMatter == "" {
		return nil, fmt.Errorf("empty suggestion in response")
	}
	return &out, nil
}

// complete sends one user message and decodes the JSON object the model
// returns in its first text block.
func (g *AnthropicGenerator) complete(ctx context.Context, prompt string, out any) error {
	body := map[string]interface{}{
		"model":      g.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v1/messages", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	text := result.firstText()
	if text == "" {
		return fmt.Errorf("no text content in response")
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return fmt.Errorf("failed to parse model output: %w", err)
	}
	return nil
}

// extractJSON strips any prose around the first top-level JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Model   string                  `json:"model"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (r *anthropicResponse) firstText() string {
	for _, block := range r.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}
