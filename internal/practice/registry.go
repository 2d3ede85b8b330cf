// Package practice is the boundary to the external practice-management
// system. The billing workflow talks to it through the Registry contract
// and treats "not configured" as a distinct condition from failure.
package practice

import (
	"context"
	"errors"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/domain"
)

// ErrNotConfigured is returned by every call when no practice-management
// integration is set up. Callers take the placeholder path, not the error
// path.
var ErrNotConfigured = errors.New("practice management not configured")

// ClientQuery is one lookup criterion. Exactly one field should be set;
// the caller drives the email → domain → name priority order.
type ClientQuery struct {
	Email        string
	Domain       string
	NameFragment string
}

// Term returns the non-empty query value.
func (q ClientQuery) Term() string {
	switch {
	case q.Email != "":
		return q.Email
	case q.Domain != "":
		return q.Domain
	default:
		return q.NameFragment
	}
}

// MatterFilter narrows a matter search.
type MatterFilter struct {
	ClientID string
	Keyword  string
}

// Registry is the practice-management contract. Find calls return
// (nil, nil) when nothing matches.
type Registry interface {
	FindClient(ctx context.Context, q ClientQuery) (*domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) (*domain.Client, error)
	FindMatters(ctx context.Context, f MatterFilter) ([]domain.Matter, error)
	CreateMatter(ctx context.Context, m domain.Matter) (*domain.Matter, error)
	PostTimeEntry(ctx context.Context, e domain.TimeEntry) (*domain.TimeEntry, error)
	Name() string
}

// New builds the configured registry. Without an access token every call
// returns ErrNotConfigured.
func New(cfg config.PracticeConfig) Registry {
	if cfg.AccessToken == "" {
		return unconfigured{}
	}
	return NewClioRegistry(cfg.BaseURL, cfg.AccessToken)
}

type unconfigured struct{}

func (unconfigured) Name() string { return "unconfigured" }

func (unconfigured) FindClient(context.Context, ClientQuery) (*domain.Client, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) CreateClient(context.Context, domain.Client) (*domain.Client, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) FindMatters(context.Context, MatterFilter) ([]domain.Matter, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) CreateMatter(context.Context, domain.Matter) (*domain.Matter, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) PostTimeEntry(context.Context, domain.TimeEntry) (*domain.TimeEntry, error) {
	return nil, ErrNotConfigured
}
