// Package domain defines the core types for composition sessions and billing.
package domain

import "time"

// SessionStatus is the lifecycle state of a composition session.
type SessionStatus string

// Session lifecycle states. Completed, Abandoned and Sent are terminal.
const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
	StatusSent      SessionStatus = "sent"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusAbandoned, StatusSent:
		return true
	}
	return false
}

// Terminal reports whether no transitions may leave this status.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAbandoned, StatusSent:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from one
// status to another. The abandoned state is only reachable from active.
func CanTransition(from, to SessionStatus) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusActive:
		switch to {
		case StatusPaused, StatusCompleted, StatusSent, StatusAbandoned:
			return true
		}
	case StatusPaused:
		switch to {
		case StatusActive, StatusCompleted, StatusSent:
			return true
		}
	}
	return false
}

// ActivityKind identifies a discrete event within a session.
type ActivityKind string

// Activity kinds recorded in the session log.
const (
	ActivityStart         ActivityKind = "start"
	ActivityPause         ActivityKind = "pause"
	ActivityResume        ActivityKind = "resume"
	ActivityContentChange ActivityKind = "content_change"
	ActivityDraftSave     ActivityKind = "draft_save"
	ActivitySend          ActivityKind = "send"
	ActivityStop          ActivityKind = "stop"
)

// Activity is one timestamped entry in a session's append-only audit log.
type Activity struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      ActivityKind   `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EmailData holds the email fields observed during composition.
type EmailData struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
	Body       string   `json:"body,omitempty"`
	DraftID    string   `json:"draftId,omitempty"`
	MessageID  string   `json:"messageId,omitempty"`
	ThreadID   string   `json:"threadId,omitempty"`
}

// PrimaryRecipient returns the first recipient address, or "" if none.
func (e EmailData) PrimaryRecipient() string {
	if len(e.Recipients) == 0 {
		return ""
	}
	return e.Recipients[0]
}

// TypingStats are monotonically non-decreasing composition counters.
type TypingStats struct {
	CharactersTyped int `json:"charactersTyped"`
	WordsTyped      int `json:"wordsTyped"`
	Deletions       int `json:"deletions"`
}

// Add applies a delta to the counters. Negative deltas are ignored so the
// counters never decrease.
func (t *TypingStats) Add(delta TypingStats) {
	if delta.CharactersTyped > 0 {
		t.CharactersTyped += delta.CharactersTyped
	}
	if delta.WordsTyped > 0 {
		t.WordsTyped += delta.WordsTyped
	}
	if delta.Deletions > 0 {
		t.Deletions += delta.Deletions
	}
}

// SessionSummary is the generated billing narrative attached after the
// orchestrator runs.
type SessionSummary struct {
	Text       string   `json:"text"`
	KeyPoints  []string `json:"keyPoints,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// BillingInfo records the billing outcome for a session. At most one time
// entry may ever be posted per session.
type BillingInfo struct {
	Billable        bool    `json:"billable"`
	Amount          float64 `json:"amount,omitempty"`
	TimeEntryPosted bool    `json:"timeEntryPosted"`
	TimeEntryID     string  `json:"clioTimeEntryId,omitempty"`
}

// Session is one tracked episode of composing a single email.
type Session struct {
	ID             string          `json:"sessionId"`
	UserID         string          `json:"userId"`
	Email          EmailData       `json:"emailData"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        *time.Time      `json:"endTime,omitempty"`
	TotalDuration  int64           `json:"totalDuration"`  // whole seconds
	ActiveDuration int64           `json:"activeDuration"` // whole seconds
	PauseDuration  int64           `json:"pauseDuration"`  // whole seconds
	Activities     []Activity      `json:"activities,omitempty"`
	Typing         TypingStats     `json:"typingStats"`
	Status         SessionStatus   `json:"status"`
	Summary        *SessionSummary `json:"summary,omitempty"`
	Billing        *BillingInfo    `json:"billingInfo,omitempty"`
}

// Finalize sets the session end time and derives the whole-second durations.
// Durations are clamped at zero; active time never exceeds total time.
func (s *Session) Finalize(end time.Time, active time.Duration) {
	s.EndTime = &end
	total := int64(end.Sub(s.StartTime).Seconds())
	if total < 0 {
		total = 0
	}
	s.TotalDuration = total

	act := int64(active.Seconds())
	if act < 0 {
		act = 0
	}
	if act > total {
		act = total
	}
	s.ActiveDuration = act
	s.PauseDuration = total - act
}
