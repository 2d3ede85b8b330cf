package tracker

import (
	"fmt"
	"time"

	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
)

// SweepOnce marks sessions left active past the retention threshold as
// abandoned. It returns the number of sessions swept.
func (t *Tracker) SweepOnce() (int, error) {
	cutoff := t.now().Add(-t.abandon)
	stale, err := t.store.FindStale(domain.StatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("finding stale sessions: %w", err)
	}

	swept := 0
	for _, sess := range stale {
		if err := t.abandonSession(sess.ID); err != nil {
			t.log.Error().Str("sessionId", sess.ID).Err(err).Msg("abandoning session")
			continue
		}
		swept++
	}
	return swept, nil
}

// abandonSession finalizes one stale session. Live sessions are finalized
// from their stopwatch; store-only ones (left behind by a previous daemon
// run) get zero active time since nothing observed any activity.
func (t *Tracker) abandonSession(sessionID string) error {
	if ls := t.lookup(sessionID); ls != nil {
		ls.mu.Lock()
		sess := ls.sess
		if sess.Status != domain.StatusActive {
			ls.mu.Unlock()
			return nil
		}
		t.cancelIdle(ls)
		ls.watch.Pause()
		sess.Status = domain.StatusAbandoned
		sess.Finalize(t.now().UTC(), ls.watch.Elapsed())
		err := t.persist(func() error { return t.store.Update(sess) })
		ls.mu.Unlock()
		if err != nil {
			return err
		}

		t.mu.Lock()
		delete(t.live, sessionID)
		t.mu.Unlock()

		t.publish(sess, domain.EventSessionAbandoned, map[string]any{"sessionId": sessionID})
		return nil
	}

	sess, err := t.store.Get(sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.Status != domain.StatusActive {
		return nil
	}
	sess.Status = domain.StatusAbandoned
	sess.Finalize(t.now().UTC(), 0)
	if err := t.persist(func() error { return t.store.Update(sess) }); err != nil {
		return err
	}
	t.publish(sess, domain.EventSessionAbandoned, map[string]any{"sessionId": sessionID})
	return nil
}

// Sweeper runs the abandonment sweep on an interval with clean start/stop
// semantics.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	log      *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper creates a sweeper over the given tracker.
func NewSweeper(tr *Tracker, interval time.Duration, log *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		tracker:  tr,
		interval: interval,
		log:      log.Sub("sweeper"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in the background.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop halts the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			swept, err := s.tracker.SweepOnce()
			if err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if swept > 0 {
				s.log.Info().Int("swept", swept).Msg("abandoned stale sessions")
			}
		}
	}
}
