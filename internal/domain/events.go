package domain

import "time"

// Notification event types emitted by the core workflow.
const (
	EventSessionStarted   = "session_started"
	EventSessionPaused    = "session_paused"
	EventSessionResumed   = "session_resumed"
	EventSessionStopped   = "session_stopped"
	EventSessionAbandoned = "session_abandoned"
	EventBillingCreated   = "billing_created"
	EventBillingFailed    = "billing_failed"
)

// Event is a lifecycle notification delivered to sinks best-effort.
type Event struct {
	UserID    string         `json:"userId"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}
