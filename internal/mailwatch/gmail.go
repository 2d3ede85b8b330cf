package mailwatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/logging"
)

// GmailSource reads drafts through the Gmail API.
type GmailSource struct {
	cfg config.GmailConfig
	log *logging.Logger
	svc *gmail.Service
}

// NewGmailSource creates a Gmail draft source authenticating with the
// configured access token.
func NewGmailSource(ctx context.Context, cfg config.GmailConfig, log *logging.Logger) (*GmailSource, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	client := oauth2.NewClient(ctx, src)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return &GmailSource{cfg: cfg, log: log.Sub("gmail"), svc: svc}, nil
}

func (s *GmailSource) Name() string { return "gmail" }

func (s *GmailSource) FetchDrafts(ctx context.Context) ([]Draft, error) {
	list, err := s.svc.Users.Drafts.List("me").MaxResults(fetchWindow).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}

	var drafts []Draft
	for _, d := range list.Drafts {
		full, err := s.svc.Users.Drafts.Get("me", d.Id).Format("metadata").Context(ctx).Do()
		if err != nil {
			s.log.Warn().Str("draftId", d.Id).Err(err).Msg("fetching draft")
			continue
		}
		if full.Message == nil {
			continue
		}
		drafts = append(drafts, draftFromMessage(d.Id, full.Message))
	}

	s.log.Debug().Int("drafts", len(drafts)).Msg("fetched drafts")
	return drafts, nil
}

func draftFromMessage(id string, msg *gmail.Message) Draft {
	d := Draft{
		ID:       id,
		ThreadID: msg.ThreadId,
		SavedAt:  time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		return d
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "to":
			d.Recipients = parseAddressHeader(h.Value)
		case "subject":
			d.Subject = h.Value
		case "message-id":
			d.MessageID = h.Value
		}
	}
	return d
}

// parseAddressHeader extracts bare addresses from a To header, tolerating
// both "Name <a@b.com>" and plain forms.
func parseAddressHeader(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if i := strings.Index(part, "<"); i >= 0 {
			part = strings.Trim(part[i:], "<>")
		}
		if part != "" && strings.Contains(part, "@") {
			out = append(out, part)
		}
	}
	return out
}
