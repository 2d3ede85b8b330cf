// Package mailwatch polls the user's mail drafts and reports draft_save
// activity to the tracker, keeping a session alive while the user works in
// their mail client instead of the extension.
package mailwatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
)

// Draft is one draft email as seen by a source.
type Draft struct {
	ID         string
	ThreadID   string
	MessageID  string
	Recipients []string
	Subject    string
	SavedAt    time.Time
}

// DraftSource fetches the user's current drafts.
type DraftSource interface {
	FetchDrafts(ctx context.Context) ([]Draft, error)
	Name() string
}

// ActivityReporter is the slice of the tracker the watcher needs.
type ActivityReporter interface {
	Active() []*domain.Session
	ReportActivity(sessionID string, kind domain.ActivityKind, payload map[string]any) error
}

// Watcher polls a draft source and matches drafts to live sessions.
type Watcher struct {
	source   DraftSource
	reporter ActivityReporter
	interval time.Duration
	log      *logging.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time // draft key → SavedAt last reported

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher over the given source.
func NewWatcher(source DraftSource, reporter ActivityReporter, interval time.Duration, log *logging.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		source:   source,
		reporter: reporter,
		interval: interval,
		log:      log.Sub("mailwatch"),
		lastSeen: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the poll loop.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the loop and waits for the current poll to finish.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			if err := w.PollOnce(ctx); err != nil {
				w.log.Warn().Str("source", w.source.Name()).Err(err).Msg("draft poll failed")
			}
			cancel()
		}
	}
}

// PollOnce fetches drafts and reports draft_save for every live session
// whose draft changed since the last poll.
func (w *Watcher) PollOnce(ctx context.Context) error {
	active := w.reporter.Active()
	w.prune(active)
	if len(active) == 0 {
		return nil
	}

	drafts, err := w.source.FetchDrafts(ctx)
	if err != nil {
		return err
	}

	for _, sess := range active {
		draft, ok := matchDraft(sess, drafts)
		if !ok {
			continue
		}
		if !w.changed(sess.ID, draft) {
			continue
		}

		payload := map[string]any{
			"source":  w.source.Name(),
			"draftId": draft.ID,
			"savedAt": draft.SavedAt.UTC().Format(time.RFC3339),
		}
		if err := w.reporter.ReportActivity(sess.ID, domain.ActivityDraftSave, payload); err != nil {
			w.log.Warn().Str("sessionId", sess.ID).Err(err).Msg("reporting draft save")
			continue
		}
		w.log.Debug().Str("sessionId", sess.ID).Str("draftId", draft.ID).
			Msg("draft save reported")
	}
	return nil
}

// changed reports whether the draft was saved since it was last reported
// for this session, and records the new save time.
func (w *Watcher) changed(sessionID string, draft Draft) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := sessionID + "|" + draftKey(draft)
	last, seen := w.lastSeen[key]
	if seen && !draft.SavedAt.After(last) {
		return false
	}
	w.lastSeen[key] = draft.SavedAt
	return true
}

// prune drops lastSeen entries for sessions that are no longer live, so the
// map does not grow for the life of the daemon.
func (w *Watcher) prune(active []*domain.Session) {
	live := make(map[string]bool, len(active))
	for _, sess := range active {
		live[sess.ID] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.lastSeen {
		sessionID, _, _ := strings.Cut(key, "|")
		if !live[sessionID] {
			delete(w.lastSeen, key)
		}
	}
}

func draftKey(d Draft) string {
	if d.ID != "" {
		return d.ID
	}
	if d.ThreadID != "" {
		return d.ThreadID
	}
	return d.MessageID
}

// matchDraft pairs a session with a draft, by draft id, then thread or
// message id, then primary recipient.
func matchDraft(sess *domain.Session, drafts []Draft) (Draft, bool) {
	for _, d := range drafts {
		if d.ID != "" && d.ID == sess.Email.DraftID {
			return d, true
		}
		if d.ThreadID != "" && d.ThreadID == sess.Email.ThreadID {
			return d, true
		}
		if d.MessageID != "" && d.MessageID == sess.Email.MessageID {
			return d, true
		}
	}

	primary := strings.ToLower(sess.Email.PrimaryRecipient())
	if primary == "" {
		return Draft{}, false
	}
	for _, d := range drafts {
		for _, rcpt := range d.Recipients {
			if strings.EqualFold(rcpt, primary) {
				return d, true
			}
		}
	}
	return Draft{}, false
}
