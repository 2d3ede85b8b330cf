package mailwatch

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/soyeahso/billable/internal/config"
	"github.com/soyeahso/billable/internal/logging"
)

// fetchWindow bounds how many of the newest drafts one poll examines.
const fetchWindow = 50

// IMAPSource reads drafts from an IMAP drafts mailbox. Each poll opens a
// fresh connection; drafts folders are small and the interval is long.
type IMAPSource struct {
	cfg config.IMAPConfig
	log *logging.Logger
}

// NewIMAPSource creates an IMAP draft source.
func NewIMAPSource(cfg config.IMAPConfig, log *logging.Logger) *IMAPSource {
	return &IMAPSource{cfg: cfg, log: log.Sub("imap")}
}

func (s *IMAPSource) Name() string { return "imap" }

func (s *IMAPSource) FetchDrafts(ctx context.Context) ([]Draft, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	c, err := client.DialTLS(addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	mbox, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", s.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > fetchWindow {
		from = mbox.Messages - fetchWindow + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	messages := make(chan *imap.Message, fetchWindow)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	var drafts []Draft
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		drafts = append(drafts, Draft{
			ID:         fmt.Sprintf("%d", msg.Uid),
			MessageID:  msg.Envelope.MessageId,
			Recipients: addressList(msg.Envelope.To),
			Subject:    msg.Envelope.Subject,
			SavedAt:    msg.Envelope.Date,
		})
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("imap fetch: %w", err)
		}
	}

	s.log.Debug().Int("drafts", len(drafts)).Msg("fetched drafts")
	return drafts, nil
}

func addressList(addrs []*imap.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.MailboxName != "" && a.HostName != "" {
			out = append(out, a.MailboxName+"@"+a.HostName)
		}
	}
	return out
}
