// Package tracker drives composition sessions through their lifecycle in
// response to activity signals, measuring active time across pauses.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
	"github.com/soyeahso/billable/internal/timer"
)

var (
	// ErrSessionNotFound is returned when an activity signal references an
	// unknown or no longer live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionFinished is returned when a signal arrives for a session
	// already in a terminal state.
	ErrSessionFinished = errors.New("session already finished")
)

// Finalizer turns a finished session into a billing record. The tracker
// calls it once per stop and persists whatever it wrote to the session.
type Finalizer interface {
	Finalize(ctx context.Context, sess *domain.Session) *domain.BillingResult
}

// Publisher receives lifecycle events, best-effort.
type Publisher interface {
	Publish(evt domain.Event)
}

// Options tune the tracker's deadlines. Zero values fall back to the
// reference behavior (5s idle, 24h abandonment).
type Options struct {
	IdleTimeout  time.Duration
	AbandonAfter time.Duration
	Clock        func() time.Time
}

// StopResult is what the caller of StopSession receives. It is always
// populated, even when the session is unknown or billing is unavailable.
type StopResult struct {
	SessionID        string                `json:"sessionId"`
	TimeSpentSeconds int64                 `json:"timeSpentSeconds"`
	Summary          string                `json:"summary"`
	Billing          *domain.BillingResult `json:"billing,omitempty"`
	Session          *domain.Session       `json:"session,omitempty"`
}

// liveSession is the in-process state for one active session. All
// transitions for a session hold its mutex, so signals serialize.
type liveSession struct {
	mu      sync.Mutex
	sess    *domain.Session
	watch   *timer.Stopwatch
	idle    *time.Timer
	idleGen uint64
}

// Tracker owns all live sessions and is the single writer of session state.
type Tracker struct {
	store     SessionStore
	log       *logging.Logger
	idle      time.Duration
	abandon   time.Duration
	now       func() time.Time
	finalizer Finalizer
	events    Publisher

	mu   sync.Mutex
	live map[string]*liveSession
}

// New creates a tracker backed by the given store.
func New(store SessionStore, log *logging.Logger, opts Options) *Tracker {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Second
	}
	if opts.AbandonAfter <= 0 {
		opts.AbandonAfter = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Tracker{
		store:   store,
		log:     log.Sub("tracker"),
		idle:    opts.IdleTimeout,
		abandon: opts.AbandonAfter,
		now:     opts.Clock,
		live:    make(map[string]*liveSession),
	}
}

// SetFinalizer wires the billing workflow run on stop.
func (t *Tracker) SetFinalizer(f Finalizer) { t.finalizer = f }

// SetPublisher wires the lifecycle event sink.
func (t *Tracker) SetPublisher(p Publisher) { t.events = p }

// StartSession creates a new active session and starts its timer.
func (t *Tracker) StartSession(userID string, email domain.EmailData) (*domain.Session, error) {
	sess := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		StartTime: t.now().UTC(),
		Status:    domain.StatusActive,
	}
	if err := t.persist(func() error { return t.store.Create(sess) }); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if err := t.appendActivity(sess, domain.ActivityStart, nil); err != nil {
		return nil, err
	}

	ls := &liveSession{
		sess:  sess,
		watch: timer.NewWithClock(t.now),
	}
	t.mu.Lock()
	t.live[sess.ID] = ls
	t.mu.Unlock()

	ls.mu.Lock()
	t.rescheduleIdle(ls)
	ls.mu.Unlock()

	t.log.Info().Str("sessionId", sess.ID).Str("userId", userID).
		Str("recipient", email.PrimaryRecipient()).Msg("session started")
	t.publish(sess, domain.EventSessionStarted, map[string]any{
		"sessionId": sess.ID,
		"subject":   email.Subject,
	})
	return sess, nil
}

// ReportActivity records one activity signal for a live session. Typing
// deltas in the payload (charactersTyped, wordsTyped, deletions) feed the
// session's counters; body/subject/draftId keys update the email fields.
// A signal arriving while the session is idle-paused resumes it.
func (t *Tracker) ReportActivity(sessionID string, kind domain.ActivityKind, payload map[string]any) error {
	switch kind {
	case domain.ActivityContentChange, domain.ActivityDraftSave,
		domain.ActivityPause, domain.ActivityResume:
	default:
		return fmt.Errorf("activity kind %q is not reportable", kind)
	}

	ls := t.lookup(sessionID)
	if ls == nil {
		return ErrSessionNotFound
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	sess := ls.sess
	if sess.Status.Terminal() {
		return ErrSessionFinished
	}

	switch kind {
	case domain.ActivityPause:
		if sess.Status != domain.StatusActive {
			return nil
		}
		return t.pauseLocked(ls, true)

	case domain.ActivityResume:
		if sess.Status != domain.StatusPaused {
			return nil
		}
		return t.resumeLocked(ls)

	default:
		if sess.Status == domain.StatusPaused {
			if err := t.resumeLocked(ls); err != nil {
				return err
			}
		}
		t.applyPayload(sess, payload)
		if err := t.appendActivity(sess, kind, payload); err != nil {
			return err
		}
		if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
			return fmt.Errorf("persisting activity: %w", err)
		}
		t.rescheduleIdle(ls)
		return nil
	}
}

// StopSession finalizes a session and runs the billing workflow. An unknown
// sessionId yields a zero-duration no-op result, not an error. The result is
// always populated even when every external collaborator is down.
func (t *Tracker) StopSession(ctx context.Context, sessionID, finalText string, sendRequested bool) (*StopResult, error) {
	ls := t.lookup(sessionID)
	if ls == nil {
		return t.stopCold(ctx, sessionID, finalText, sendRequested)
	}

	ls.mu.Lock()
	sess := ls.sess
	if sess.Status.Terminal() {
		res := resultFor(sess)
		ls.mu.Unlock()
		return res, nil
	}

	t.cancelIdle(ls)
	ls.watch.Pause()
	if finalText != "" {
		sess.Email.Body = finalText
	}

	kind := domain.ActivityStop
	status := domain.StatusCompleted
	if sendRequested {
		kind = domain.ActivitySend
		status = domain.StatusSent
	}
	if err := t.appendActivity(sess, kind, nil); err != nil {
		ls.mu.Unlock()
		return nil, err
	}

	sess.Status = status
	sess.Finalize(t.now().UTC(), ls.watch.Elapsed())
	if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
		ls.mu.Unlock()
		return nil, fmt.Errorf("persisting stop: %w", err)
	}
	ls.mu.Unlock()

	t.mu.Lock()
	delete(t.live, sessionID)
	t.mu.Unlock()

	t.log.Info().Str("sessionId", sessionID).Str("status", string(status)).
		Int64("totalSec", sess.TotalDuration).Int64("activeSec", sess.ActiveDuration).
		Msg("session stopped")
	t.publish(sess, domain.EventSessionStopped, map[string]any{
		"sessionId":     sessionID,
		"totalDuration": sess.TotalDuration,
		"sent":          sendRequested,
	})

	return t.finalize(ctx, sess), nil
}

// Session returns the current state of a session, live or stored.
func (t *Tracker) Session(sessionID string) (*domain.Session, error) {
	if ls := t.lookup(sessionID); ls != nil {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		return cloneSession(ls.sess), nil
	}
	return t.store.Get(sessionID)
}

// Active returns a snapshot of all live sessions.
func (t *Tracker) Active() []*domain.Session {
	t.mu.Lock()
	live := make([]*liveSession, 0, len(t.live))
	for _, ls := range t.live {
		live = append(live, ls)
	}
	t.mu.Unlock()

	out := make([]*domain.Session, 0, len(live))
	for _, ls := range live {
		ls.mu.Lock()
		out = append(out, cloneSession(ls.sess))
		ls.mu.Unlock()
	}
	return out
}

// Sessions returns a user's session history, most recent first.
func (t *Tracker) Sessions(userID string, limit int) ([]*domain.Session, error) {
	return t.store.ListByUser(userID, limit)
}

// stopCold handles a stop for a session that is not live. Unknown sessions
// get the no-op result; stored non-terminal sessions (daemon restarted under
// them) are finalized from wall-clock bounds, counting the full span as
// active so the time is not lost.
func (t *Tracker) stopCold(ctx context.Context, sessionID, finalText string, sendRequested bool) (*StopResult, error) {
	sess, err := t.store.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		t.log.Warn().Str("sessionId", sessionID).Msg("stop for unknown session")
		return &StopResult{
			SessionID: sessionID,
			Summary:   "No tracked session was found; no time was recorded.",
		}, nil
	}
	if sess.Status.Terminal() {
		return resultFor(sess), nil
	}

	if finalText != "" {
		sess.Email.Body = finalText
	}
	kind := domain.ActivityStop
	sess.Status = domain.StatusCompleted
	if sendRequested {
		kind = domain.ActivitySend
		sess.Status = domain.StatusSent
	}
	if err := t.appendActivity(sess, kind, nil); err != nil {
		return nil, err
	}
	end := t.now().UTC()
	sess.Finalize(end, end.Sub(sess.StartTime))
	if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
		return nil, fmt.Errorf("persisting stop: %w", err)
	}

	t.publish(sess, domain.EventSessionStopped, map[string]any{
		"sessionId":     sessionID,
		"totalDuration": sess.TotalDuration,
		"sent":          sendRequested,
	})
	return t.finalize(ctx, sess), nil
}

// finalize runs the billing workflow and persists its writes. Billing
// failure never hides the measured time from the caller.
func (t *Tracker) finalize(ctx context.Context, sess *domain.Session) *StopResult {
	res := &StopResult{
		SessionID:        sess.ID,
		TimeSpentSeconds: sess.ActiveDuration,
		Session:          sess,
	}
	if t.finalizer == nil {
		res.Summary = fallbackSummary(sess)
		return res
	}

	billing := t.finalizer.Finalize(ctx, sess)
	res.Billing = billing
	if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
		t.log.Error().Str("sessionId", sess.ID).Err(err).Msg("persisting billing result")
	}

	if billing != nil && billing.Summary != nil {
		res.Summary = billing.Summary.Text
	} else {
		res.Summary = fallbackSummary(sess)
	}

	if billing != nil && billing.Success {
		t.publish(sess, domain.EventBillingCreated, map[string]any{
			"sessionId": sess.ID,
			"amount":    amountOf(billing),
		})
	} else {
		t.publish(sess, domain.EventBillingFailed, map[string]any{
			"sessionId": sess.ID,
			"error":     errorOf(billing),
		})
	}
	return res
}

// pauseLocked transitions active → paused. Caller holds ls.mu.
func (t *Tracker) pauseLocked(ls *liveSession, explicit bool) error {
	sess := ls.sess
	t.cancelIdle(ls)
	ls.watch.Pause()
	sess.Status = domain.StatusPaused
	if err := t.appendActivity(sess, domain.ActivityPause, nil); err != nil {
		return err
	}
	if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
		return fmt.Errorf("persisting pause: %w", err)
	}
	reason := "idle"
	if explicit {
		reason = "explicit"
	}
	t.log.Debug().Str("sessionId", sess.ID).Str("reason", reason).Msg("session paused")
	t.publish(sess, domain.EventSessionPaused, map[string]any{"sessionId": sess.ID})
	return nil
}

// resumeLocked transitions paused → active. Caller holds ls.mu.
func (t *Tracker) resumeLocked(ls *liveSession) error {
	sess := ls.sess
	ls.watch.Resume()
	sess.Status = domain.StatusActive
	if err := t.appendActivity(sess, domain.ActivityResume, nil); err != nil {
		return err
	}
	if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
		return fmt.Errorf("persisting resume: %w", err)
	}
	t.rescheduleIdle(ls)
	t.log.Debug().Str("sessionId", sess.ID).Msg("session resumed")
	t.publish(sess, domain.EventSessionResumed, map[string]any{"sessionId": sess.ID})
	return nil
}

// rescheduleIdle arms the inactivity deadline, cancelling any pending one.
// The generation counter resolves the race between a firing deadline and a
// fresh activity signal: a stale callback sees a bumped generation and
// returns without pausing. Caller holds ls.mu.
func (t *Tracker) rescheduleIdle(ls *liveSession) {
	ls.idleGen++
	gen := ls.idleGen
	if ls.idle != nil {
		ls.idle.Stop()
	}
	ls.idle = time.AfterFunc(t.idle, func() { t.idleFired(ls, gen) })
}

// cancelIdle disarms the deadline. Caller holds ls.mu.
func (t *Tracker) cancelIdle(ls *liveSession) {
	ls.idleGen++
	if ls.idle != nil {
		ls.idle.Stop()
		ls.idle = nil
	}
}

func (t *Tracker) idleFired(ls *liveSession, gen uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.idleGen != gen || ls.sess.Status != domain.StatusActive {
		return
	}
	if err := t.pauseLocked(ls, false); err != nil {
		t.log.Error().Str("sessionId", ls.sess.ID).Err(err).Msg("idle pause failed")
	}
}

func (t *Tracker) lookup(sessionID string) *liveSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live[sessionID]
}

// appendActivity records an audit-log entry in memory and in the store.
func (t *Tracker) appendActivity(sess *domain.Session, kind domain.ActivityKind, payload map[string]any) error {
	act := domain.Activity{
		Timestamp: t.now().UTC(),
		Kind:      kind,
		Payload:   payload,
	}
	sess.Activities = append(sess.Activities, act)
	if err := t.persist(func() error { return t.store.AppendActivity(sess.ID, act) }); err != nil {
		sess.Activities = sess.Activities[:len(sess.Activities)-1]
		return fmt.Errorf("recording %s activity: %w", kind, err)
	}
	return nil
}

// persist runs a store write, retrying once before surfacing the error so
// the in-memory state never silently diverges from the durable record.
func (t *Tracker) persist(write func() error) error {
	err := write()
	if err == nil {
		return nil
	}
	t.log.Warn().Err(err).Msg("store write failed, retrying")
	return write()
}

func (t *Tracker) applyPayload(sess *domain.Session, payload map[string]any) {
	if payload == nil {
		return
	}
	sess.Typing.Add(domain.TypingStats{
		CharactersTyped: payloadInt(payload, "charactersTyped"),
		WordsTyped:      payloadInt(payload, "wordsTyped"),
		Deletions:       payloadInt(payload, "deletions"),
	})
	if v, ok := payload["body"].(string); ok {
		sess.Email.Body = v
	}
	if v, ok := payload["subject"].(string); ok {
		sess.Email.Subject = v
	}
	if v, ok := payload["draftId"].(string); ok && sess.Email.DraftID == "" {
		sess.Email.DraftID = v
	}
}

func (t *Tracker) publish(sess *domain.Session, eventType string, payload map[string]any) {
	if t.events == nil {
		return
	}
	t.events.Publish(domain.Event{
		UserID:    sess.UserID,
		Type:      eventType,
		Timestamp: t.now().UTC(),
		Payload:   payload,
	})
}

// payloadInt reads a numeric payload field. JSON decoding delivers numbers
// as float64, but in-process callers may pass int.
func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func resultFor(sess *domain.Session) *StopResult {
	res := &StopResult{
		SessionID:        sess.ID,
		TimeSpentSeconds: sess.ActiveDuration,
		Session:          sess,
		Summary:          fallbackSummary(sess),
	}
	if sess.Summary != nil {
		res.Summary = sess.Summary.Text
	}
	return res
}

func fallbackSummary(sess *domain.Session) string {
	subject := sess.Email.Subject
	if subject == "" {
		subject = "an email"
	}
	if rcpt := sess.Email.PrimaryRecipient(); rcpt != "" {
		return fmt.Sprintf("Composed %s for %s over %d seconds.",
			subject, rcpt, sess.ActiveDuration)
	}
	return fmt.Sprintf("Composed %s over %d seconds.", subject, sess.ActiveDuration)
}

func amountOf(b *domain.BillingResult) float64 {
	if b == nil || b.TimeEntry == nil {
		return 0
	}
	return b.TimeEntry.Amount
}

func errorOf(b *domain.BillingResult) string {
	if b == nil {
		return "billing not configured"
	}
	return b.Error
}
