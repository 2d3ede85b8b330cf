// Package billing turns a finished composition session into a client,
// matter, and time entry. Every step after client resolution degrades to a
// local placeholder instead of aborting: the measured time is the scarce
// resource and is never lost.
package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
	"github.com/soyeahso/billable/internal/practice"
	"github.com/soyeahso/billable/internal/summary"
)

// Hints are optional caller overrides for client/matter resolution.
type Hints struct {
	ClientID string
	MatterID string
}

// Orchestrator runs the four-step billing workflow.
type Orchestrator struct {
	registry    practice.Registry
	generator   summary.Generator
	fallback    *summary.TemplateGenerator
	log         *logging.Logger
	rate        float64
	stepTimeout time.Duration
	now         func() time.Time
}

// New creates an orchestrator over the given collaborators.
func New(registry practice.Registry, generator summary.Generator, log *logging.Logger, cfg config.BillingConfig) *Orchestrator {
	timeout := time.Duration(cfg.StepTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Orchestrator{
		registry:    registry,
		generator:   generator,
		fallback:    summary.NewTemplateGenerator(),
		log:         log.Sub("billing"),
		rate:        cfg.HourlyRate,
		stepTimeout: timeout,
		now:         time.Now,
	}
}

// Finalize implements the tracker's finalizer hook.
func (o *Orchestrator) Finalize(ctx context.Context, sess *domain.Session) *domain.BillingResult {
	return o.Run(ctx, sess, Hints{})
}

// Run executes the workflow: resolve client, suggest and resolve matter,
// summarize, post the time entry. Only client resolution failure aborts;
// a session already billed returns its existing entry untouched.
func (o *Orchestrator) Run(ctx context.Context, sess *domain.Session, hints Hints) *domain.BillingResult {
	if sess.Billing != nil && sess.Billing.TimeEntryPosted && sess.Billing.TimeEntryID != "" {
		o.log.Info().Str("sessionId", sess.ID).Str("timeEntryId", sess.Billing.TimeEntryID).
			Msg("session already billed")
		return &domain.BillingResult{
			Success: true,
			Summary: sess.Summary,
			TimeEntry: &domain.TimeEntry{
				ID:              sess.Billing.TimeEntryID,
				DurationSeconds: o.billableSeconds(sess),
				Amount:          sess.Billing.Amount,
				Source:          domain.SourceReal,
			},
		}
	}

	result := &domain.BillingResult{}

	client, err := o.resolveClient(ctx, sess, hints)
	if err != nil {
		o.log.Error().Str("sessionId", sess.ID).Err(err).Msg("client resolution failed")
		result.Error = fmt.Sprintf("client resolution failed: %v", err)
		return result
	}
	result.Client = client

	result.Suggestion = o.suggest(ctx, sess)
	result.Matter = o.resolveMatter(ctx, sess, client, result.Suggestion, hints)
	result.Summary = o.summarize(ctx, sess)
	result.TimeEntry = o.postTimeEntry(ctx, sess, client, result.Matter, result.Summary)
	result.Success = true

	sess.Summary = result.Summary
	sess.Billing = &domain.BillingInfo{
		Billable: true,
		Amount:   result.TimeEntry.Amount,
	}
	if result.TimeEntry.Source == domain.SourceReal {
		sess.Billing.TimeEntryPosted = true
		sess.Billing.TimeEntryID = result.TimeEntry.ID
	}

	o.log.Info().Str("sessionId", sess.ID).
		Str("clientId", client.ID).
		Str("matterId", result.Matter.ID).
		Bool("mock", result.TimeEntry.Mock).
		Float64("amount", result.TimeEntry.Amount).
		Msg("billing workflow finished")
	return result
}

// resolveClient searches by exact email, then domain, then name fragment,
// and creates a client from the address's local part when nothing matches.
// An unconfigured registry yields a placeholder client; real errors abort.
func (o *Orchestrator) resolveClient(ctx context.Context, sess *domain.Session, hints Hints) (*domain.Client, error) {
	if hints.ClientID != "" {
		return &domain.Client{
			ID:           hints.ClientID,
			Source:       domain.SourceReal,
			SourceReason: "caller override",
		}, nil
	}

	email := sess.Email.PrimaryRecipient()
	if email == "" {
		return nil, errors.New("session has no recipient")
	}
	local, dom, _ := strings.Cut(email, "@")

	queries := []practice.ClientQuery{
		{Email: email},
		{Domain: dom},
		{NameFragment: local},
	}
	for _, q := range queries {
		if q.Term() == "" {
			continue
		}
		client, err := o.findClient(ctx, q)
		if errors.Is(err, practice.ErrNotConfigured) {
			return placeholderClient(email, local), nil
		}
		if err != nil {
			return nil, err
		}
		if client != nil {
			return client, nil
		}
	}

	client, err := o.createClient(ctx, domain.Client{Name: local, Email: email})
	if errors.Is(err, practice.ErrNotConfigured) {
		return placeholderClient(email, local), nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// resolveMatter matches existing matters against keywords from the
// suggestion, creating one when nothing matches. Any failure degrades to a
// placeholder matter.
func (o *Orchestrator) resolveMatter(ctx context.Context, sess *domain.Session, client *domain.Client, sugg *domain.MatterSuggestion, hints Hints) *domain.Matter {
	if hints.MatterID != "" {
		return &domain.Matter{
			ID:           hints.MatterID,
			Source:       domain.SourceReal,
			SourceReason: "caller override",
		}
	}

	suggested := "General Correspondence"
	if sugg != nil && sugg.SuggestedMatter != "" {
		suggested = sugg.SuggestedMatter
	}

	if client.Source.Placeholder() {
		return placeholderMatter(suggested, client.ID, "client is a placeholder")
	}

	keywords := matterKeywords(suggested)
	for _, kw := range keywords {
		matters, err := o.findMatters(ctx, practice.MatterFilter{ClientID: client.ID, Keyword: kw})
		if err != nil {
			o.log.Warn().Str("sessionId", sess.ID).Err(err).Msg("matter search failed")
			return placeholderMatter(suggested, client.ID, fmt.Sprintf("matter search failed: %v", err))
		}
		for _, m := range matters {
			if containsKeyword(m.Description, keywords) {
				found := m
				return &found
			}
		}
	}

	matter, err := o.createMatter(ctx, domain.Matter{
		Description: suggested,
		ClientID:    client.ID,
	})
	if err != nil {
		o.log.Warn().Str("sessionId", sess.ID).Err(err).Msg("matter creation failed")
		return placeholderMatter(suggested, client.ID, fmt.Sprintf("matter creation failed: %v", err))
	}
	return matter
}

// suggest asks the generator for a matter suggestion, falling back to the
// template heuristics on any failure.
func (o *Orchestrator) suggest(ctx context.Context, sess *domain.Session) *domain.MatterSuggestion {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	sugg, err := o.generator.Suggest(stepCtx, sess.Email.Recipients, sess.Email.Body)
	if err == nil && sugg != nil {
		return sugg
	}
	if err != nil {
		o.log.Warn().Str("sessionId", sess.ID).Err(err).Msg("suggestion failed, using template")
	}
	sugg, _ = o.fallback.Suggest(ctx, sess.Email.Recipients, sess.Email.Body)
	return sugg
}

// summarize asks the generator for a billing narrative, falling back to the
// deterministic template so the workflow never stalls on the AI provider.
func (o *Orchestrator) summarize(ctx context.Context, sess *domain.Session) *domain.SessionSummary {
	req := summary.Request{
		Text:           sess.Email.Body,
		Subject:        sess.Email.Subject,
		Recipients:     sess.Email.Recipients,
		ElapsedSeconds: o.billableSeconds(sess),
	}

	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	res, err := o.generator.Summarize(stepCtx, req)
	if err != nil {
		o.log.Warn().Str("sessionId", sess.ID).Err(err).Msg("summary failed, using template")
		res, _ = o.fallback.Summarize(ctx, req)
	}
	return &domain.SessionSummary{
		Text:       res.Summary,
		Confidence: res.Confidence,
	}
}

// postTimeEntry submits the entry, synthesizing a clearly marked local
// placeholder on failure so the session can be billed pending sync.
func (o *Orchestrator) postTimeEntry(ctx context.Context, sess *domain.Session, client *domain.Client, matter *domain.Matter, sum *domain.SessionSummary) *domain.TimeEntry {
	seconds := o.billableSeconds(sess)
	entry := domain.TimeEntry{
		MatterID:        matter.ID,
		ClientID:        client.ID,
		Description:     sum.Text,
		DurationSeconds: seconds,
		Date:            o.now().UTC().Format("2006-01-02"),
		Rate:            o.rate,
		Amount:          roundCents(o.rate * float64(seconds) / 3600),
	}

	if client.Source.Placeholder() || matter.Source.Placeholder() {
		return placeholderEntry(entry, "client or matter is a placeholder")
	}

	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	posted, err := o.registry.PostTimeEntry(stepCtx, entry)
	if errors.Is(err, practice.ErrNotConfigured) {
		return placeholderEntry(entry, "practice management not configured")
	}
	if err != nil {
		o.log.Warn().Str("sessionId", sess.ID).Err(err).Msg("time entry post failed")
		return placeholderEntry(entry, fmt.Sprintf("post failed: %v", err))
	}
	if posted.Amount == 0 {
		posted.Amount = entry.Amount
	}
	return posted
}

// billableSeconds prefers observed active time, falling back to the wall
// span when no activity was measured.
func (o *Orchestrator) billableSeconds(sess *domain.Session) int64 {
	if sess.ActiveDuration > 0 {
		return sess.ActiveDuration
	}
	return sess.TotalDuration
}

func (o *Orchestrator) findClient(ctx context.Context, q practice.ClientQuery) (*domain.Client, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.registry.FindClient(stepCtx, q)
}

func (o *Orchestrator) createClient(ctx context.Context, c domain.Client) (*domain.Client, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.registry.CreateClient(stepCtx, c)
}

func (o *Orchestrator) findMatters(ctx context.Context, f practice.MatterFilter) ([]domain.Matter, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.registry.FindMatters(stepCtx, f)
}

func (o *Orchestrator) createMatter(ctx context.Context, m domain.Matter) (*domain.Matter, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.registry.CreateMatter(stepCtx, m)
}

func placeholderClient(email, name string) *domain.Client {
	return &domain.Client{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Source:       domain.SourcePlaceholder,
		SourceReason: "practice management not configured",
	}
}

func placeholderMatter(description, clientID, reason string) *domain.Matter {
	return &domain.Matter{
		ID:            uuid.New().String(),
		DisplayNumber: "LOCAL-" + uuid.New().String()[:8],
		Description:   description,
		ClientID:      clientID,
		Status:        "Open",
		Source:        domain.SourcePlaceholder,
		SourceReason:  reason,
	}
}

func placeholderEntry(entry domain.TimeEntry, reason string) *domain.TimeEntry {
	entry.ID = uuid.New().String()
	entry.Mock = true
	entry.Source = domain.SourcePlaceholder
	entry.SourceReason = reason
	return &entry
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "general": true,
	"correspondence": true, "matter": true, "regarding": true,
}

// matterKeywords extracts search terms from the suggested matter text.
func matterKeywords(suggested string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(suggested)) {
		w = strings.Trim(w, ".,;:-\"'()")
		if len(w) < 4 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		out = append(out, strings.ToLower(strings.TrimSpace(suggested)))
	}
	return out
}

func containsKeyword(description string, keywords []string) bool {
	lower := strings.ToLower(description)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
