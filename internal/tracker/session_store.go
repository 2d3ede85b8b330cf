package tracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/billable/internal/domain"
)

// SessionStore is the durable record of composition sessions. All mutation
// goes through the tracker's transition functions; nothing else writes a
// session's status or activity log.
type SessionStore interface {
	// Create persists a new session.
	Create(sess *domain.Session) error

	// Update writes a session's mutable fields back atomically.
	Update(sess *domain.Session) error

	// AppendActivity appends one entry to a session's audit log.
	AppendActivity(sessionID string, act domain.Activity) error

	// Get returns a session by ID, or nil if not found.
	Get(sessionID string) (*domain.Session, error)

	// ListByUser returns a user's sessions, most recent first.
	ListByUser(userID string, limit int) ([]*domain.Session, error)

	// FindStale returns sessions in the given status untouched since cutoff.
	FindStale(status domain.SessionStatus, cutoff time.Time) ([]*domain.Session, error)
}

// MemorySessionStore is an in-memory SessionStore implementation, used by
// tests and by the "memory" store driver.
type MemorySessionStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	sessions map[string]*domain.Session
	touched  map[string]time.Time
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		now:      time.Now,
		sessions: make(map[string]*domain.Session),
		touched:  make(map[string]time.Time),
	}
}

func (s *MemorySessionStore) Create(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	s.touched[sess.ID] = s.now()
	return nil
}

func (s *MemorySessionStore) Update(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[sess.ID]
	if !ok {
		return fmt.Errorf("no such session: %s", sess.ID)
	}
	clone := cloneSession(sess)
	clone.Activities = existing.Activities
	s.sessions[sess.ID] = clone
	s.touched[sess.ID] = s.now()
	return nil
}

func (s *MemorySessionStore) AppendActivity(sessionID string, act domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("no such session: %s", sessionID)
	}
	sess.Activities = append(sess.Activities, act)
	s.touched[sessionID] = s.now()
	return nil
}

func (s *MemorySessionStore) Get(sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

func (s *MemorySessionStore) ListByUser(userID string, limit int) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemorySessionStore) FindStale(status domain.SessionStatus, cutoff time.Time) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for id, sess := range s.sessions {
		if sess.Status == status && s.touched[id].Before(cutoff) {
			out = append(out, cloneSession(sess))
		}
	}
	return out, nil
}

func cloneSession(sess *domain.Session) *domain.Session {
	clone := *sess
	clone.Email.Recipients = append([]string(nil), sess.Email.Recipients...)
	clone.Activities = append([]domain.Activity(nil), sess.Activities...)
	if sess.EndTime != nil {
		end := *sess.EndTime
		clone.EndTime = &end
	}
	if sess.Summary != nil {
		sum := *sess.Summary
		clone.Summary = &sum
	}
	if sess.Billing != nil {
		bill := *sess.Billing
		clone.Billing = &bill
	}
	return &clone
}
