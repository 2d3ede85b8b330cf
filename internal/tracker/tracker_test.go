package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Publish(evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type stubFinalizer struct {
	result *domain.BillingResult
	calls  int
}

func (f *stubFinalizer) Finalize(_ context.Context, sess *domain.Session) *domain.BillingResult {
	f.calls++
	if f.result != nil && f.result.Summary != nil {
		sess.Summary = f.result.Summary
	}
	return f.result
}

// flakyStore fails the first N writes before delegating.
type flakyStore struct {
	*MemorySessionStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return true
	}
	return false
}

func (s *flakyStore) Update(sess *domain.Session) error {
	if s.fail() {
		return errors.New("disk unavailable")
	}
	return s.MemorySessionStore.Update(sess)
}

func newTestTracker(t *testing.T, clock *fakeClock) (*Tracker, *MemorySessionStore) {
	t.Helper()
	store := NewMemorySessionStore()
	opts := Options{IdleTimeout: time.Hour} // never fires in clock-driven tests
	if clock != nil {
		opts.Clock = clock.now
	}
	return New(store, logging.New(nil, "silent"), opts), store
}

func TestStartSession(t *testing.T) {
	clock := newFakeClock()
	tr, store := newTestTracker(t, clock)

	sess, err := tr.StartSession("user-1", domain.EmailData{
		Recipients: []string{"client@firm.com"},
		Subject:    "Re: engagement letter",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, domain.StatusActive, sess.Status)

	stored, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Activities, 1)
	assert.Equal(t, domain.ActivityStart, stored.Activities[0].Kind)
}

func TestStopSession_ActiveDuration(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	clock.advance(30 * time.Second)
	require.NoError(t, tr.ReportActivity(sess.ID, domain.ActivityContentChange, nil))
	clock.advance(60 * time.Second)

	res, err := tr.StopSession(context.Background(), sess.ID, "final text", false)
	require.NoError(t, err)
	assert.Equal(t, int64(90), res.TimeSpentSeconds)
	require.NotNil(t, res.Session)
	assert.Equal(t, domain.StatusCompleted, res.Session.Status)
	assert.Equal(t, int64(90), res.Session.TotalDuration)
	assert.Equal(t, int64(90), res.Session.ActiveDuration)
	assert.Equal(t, int64(0), res.Session.PauseDuration)
	assert.Equal(t, "final text", res.Session.Email.Body)
}

func TestPauseResume_Accounting(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	clock.advance(10 * time.Second)
	require.NoError(t, tr.ReportActivity(sess.ID, domain.ActivityPause, nil))
	clock.advance(50 * time.Second)
	// typing while paused resumes the session
	require.NoError(t, tr.ReportActivity(sess.ID, domain.ActivityContentChange, nil))
	clock.advance(20 * time.Second)

	res, err := tr.StopSession(context.Background(), sess.ID, "", true)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, domain.StatusSent, res.Session.Status)
	assert.Equal(t, int64(80), res.Session.TotalDuration)
	assert.Equal(t, int64(30), res.Session.ActiveDuration)
	assert.Equal(t, int64(50), res.Session.PauseDuration)

	kinds := make([]domain.ActivityKind, 0, len(res.Session.Activities))
	for _, a := range res.Session.Activities {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []domain.ActivityKind{
		domain.ActivityStart,
		domain.ActivityPause,
		domain.ActivityResume,
		domain.ActivityContentChange,
		domain.ActivitySend,
	}, kinds)
}

func TestIdleDeadline_PausesAndResumes(t *testing.T) {
	store := NewMemorySessionStore()
	tr := New(store, logging.New(nil, "silent"), Options{IdleTimeout: 25 * time.Millisecond})

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := tr.Session(sess.ID)
		return err == nil && got != nil && got.Status == domain.StatusPaused
	}, 2*time.Second, 5*time.Millisecond, "session should auto-pause after idle deadline")

	// activity brings it back
	require.NoError(t, tr.ReportActivity(sess.ID, domain.ActivityContentChange, nil))
	got, err := tr.Session(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	kinds := make([]domain.ActivityKind, 0, len(got.Activities))
	for _, a := range got.Activities {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, domain.ActivityPause)
	assert.Contains(t, kinds, domain.ActivityResume)
}

func TestStopSession_UnknownSession(t *testing.T) {
	tr, _ := newTestTracker(t, newFakeClock())

	res, err := tr.StopSession(context.Background(), "nope", "", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TimeSpentSeconds)
	assert.NotEmpty(t, res.Summary)
	assert.Nil(t, res.Session)
}

func TestStopSession_AlreadyFinished(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)
	clock.advance(42 * time.Second)

	first, err := tr.StopSession(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	require.Equal(t, int64(42), first.TimeSpentSeconds)

	// second stop finds the stored terminal session and reports it as-is
	second, err := tr.StopSession(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), second.TimeSpentSeconds)
	assert.Equal(t, domain.StatusCompleted, second.Session.Status)
}

func TestReportActivity_TypingStats(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	deltas := []map[string]any{
		{"charactersTyped": float64(40), "wordsTyped": float64(8)},
		{"charactersTyped": float64(25), "deletions": float64(3)},
		{"charactersTyped": float64(-10)}, // negative deltas are ignored
	}
	prev := domain.TypingStats{}
	for _, d := range deltas {
		require.NoError(t, tr.ReportActivity(sess.ID, domain.ActivityContentChange, d))
		got, err := tr.Session(sess.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Typing.CharactersTyped, prev.CharactersTyped)
		assert.GreaterOrEqual(t, got.Typing.WordsTyped, prev.WordsTyped)
		assert.GreaterOrEqual(t, got.Typing.Deletions, prev.Deletions)
		prev = got.Typing
	}
	assert.Equal(t, 65, prev.CharactersTyped)
	assert.Equal(t, 8, prev.WordsTyped)
	assert.Equal(t, 3, prev.Deletions)
}

func TestReportActivity_UnknownSession(t *testing.T) {
	tr, _ := newTestTracker(t, newFakeClock())
	err := tr.ReportActivity("nope", domain.ActivityContentChange, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReportActivity_RejectsLifecycleKinds(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)
	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	assert.Error(t, tr.ReportActivity(sess.ID, domain.ActivityStop, nil))
	assert.Error(t, tr.ReportActivity(sess.ID, domain.ActivityStart, nil))
}

func TestConcurrentSessions_IsolatedLogs(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)

	a, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"a@firm.com"}})
	require.NoError(t, err)
	b, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"b@firm.com"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				require.NoError(t, tr.ReportActivity(id, domain.ActivityContentChange,
					map[string]any{"charactersTyped": 1}))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{a.ID, b.ID} {
		got, err := tr.Session(id)
		require.NoError(t, err)
		require.Len(t, got.Activities, 21) // start + 20 content changes
		assert.Equal(t, domain.ActivityStart, got.Activities[0].Kind)
		for _, act := range got.Activities[1:] {
			assert.Equal(t, domain.ActivityContentChange, act.Kind)
		}
		assert.Equal(t, 20, got.Typing.CharactersTyped)
	}
}

func TestPersistence_RetriesThenSurfaces(t *testing.T) {
	clock := newFakeClock()
	store := &flakyStore{MemorySessionStore: NewMemorySessionStore()}
	tr := New(store, logging.New(nil, "silent"), Options{IdleTimeout: time.Hour, Clock: clock.now})

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	// one failure: the retry inside persist absorbs it
	store.failures = 1
	require.NoError(t, tr.ReportActivity(sess.ID, domain.ActivityContentChange, nil))

	// persistent failure: surfaced to the caller
	store.failures = 10
	err = tr.ReportActivity(sess.ID, domain.ActivityContentChange, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk unavailable")
}

func TestStopSession_RunsFinalizer(t *testing.T) {
	clock := newFakeClock()
	tr, store := newTestTracker(t, clock)

	fin := &stubFinalizer{result: &domain.BillingResult{
		Success: true,
		Summary: &domain.SessionSummary{Text: "Drafted engagement letter."},
		TimeEntry: &domain.TimeEntry{
			ID:     "te-1",
			Amount: 6.25,
			Source: domain.SourceReal,
		},
	}}
	rec := &eventRecorder{}
	tr.SetFinalizer(fin)
	tr.SetPublisher(rec)

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)
	clock.advance(90 * time.Second)

	res, err := tr.StopSession(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, fin.calls)
	assert.Equal(t, "Drafted engagement letter.", res.Summary)
	require.NotNil(t, res.Billing)
	assert.True(t, res.Billing.Success)

	stored, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, "Drafted engagement letter.", stored.Summary.Text)

	types := rec.types()
	assert.Contains(t, types, domain.EventSessionStarted)
	assert.Contains(t, types, domain.EventSessionStopped)
	assert.Contains(t, types, domain.EventBillingCreated)
}

func TestSweep_AbandonsStaleActiveSessions(t *testing.T) {
	clock := newFakeClock()
	store := NewMemorySessionStore()
	store.now = clock.now
	tr := New(store, logging.New(nil, "silent"), Options{
		IdleTimeout:  time.Hour,
		AbandonAfter: 24 * time.Hour,
		Clock:        clock.now,
	})
	rec := &eventRecorder{}
	tr.SetPublisher(rec)

	sess, err := tr.StartSession("user-1", domain.EmailData{Recipients: []string{"client@firm.com"}})
	require.NoError(t, err)

	// untouched for less than the threshold: nothing happens
	swept, err := tr.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	clock.advance(25 * time.Hour)
	swept, err = tr.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := tr.Session(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAbandoned, got.Status)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, int64(25*3600), got.TotalDuration)
	assert.Contains(t, rec.types(), domain.EventSessionAbandoned)
}

func TestSweeper_StartStop(t *testing.T) {
	tr, _ := newTestTracker(t, newFakeClock())
	sw := NewSweeper(tr, 10*time.Millisecond, logging.New(nil, "silent"))
	sw.Start()
	time.Sleep(30 * time.Millisecond)
	sw.Stop() // must not hang or panic
}
