package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatus_Terminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusPaused.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusAbandoned.Terminal())
	assert.True(t, StatusSent.Terminal())
}

func TestCanTransition(t *testing.T) {
	// Allowed
	assert.True(t, CanTransition(StatusActive, StatusPaused))
	assert.True(t, CanTransition(StatusActive, StatusCompleted))
	assert.True(t, CanTransition(StatusActive, StatusSent))
	assert.True(t, CanTransition(StatusActive, StatusAbandoned))
	assert.True(t, CanTransition(StatusPaused, StatusActive))
	assert.True(t, CanTransition(StatusPaused, StatusCompleted))
	assert.True(t, CanTransition(StatusPaused, StatusSent))

	// Abandoned only from active
	assert.False(t, CanTransition(StatusPaused, StatusAbandoned))

	// Nothing leaves a terminal state
	assert.False(t, CanTransition(StatusCompleted, StatusActive))
	assert.False(t, CanTransition(StatusSent, StatusPaused))
	assert.False(t, CanTransition(StatusAbandoned, StatusCompleted))
}

func TestTypingStats_Add_Monotonic(t *testing.T) {
	var stats TypingStats
	stats.Add(TypingStats{CharactersTyped: 10, WordsTyped: 2, Deletions: 1})
	stats.Add(TypingStats{CharactersTyped: -5, WordsTyped: -1, Deletions: -3})
	stats.Add(TypingStats{CharactersTyped: 3})

	assert.Equal(t, 13, stats.CharactersTyped)
	assert.Equal(t, 2, stats.WordsTyped)
	assert.Equal(t, 1, stats.Deletions)
}

func TestEmailData_PrimaryRecipient(t *testing.T) {
	assert.Equal(t, "", EmailData{}.PrimaryRecipient())
	e := EmailData{Recipients: []string{"client@firm.com", "cc@firm.com"}}
	assert.Equal(t, "client@firm.com", e.PrimaryRecipient())
}

func TestSession_Finalize(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ID: "s1", StartTime: start, Status: StatusActive}

	s.Finalize(start.Add(90*time.Second), 60*time.Second)

	assert.NotNil(t, s.EndTime)
	assert.Equal(t, int64(90), s.TotalDuration)
	assert.Equal(t, int64(60), s.ActiveDuration)
	assert.Equal(t, int64(30), s.PauseDuration)
}

func TestSession_Finalize_ClampsNegative(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ID: "s1", StartTime: start}

	// End before start must not produce a negative duration.
	s.Finalize(start.Add(-10*time.Second), -5*time.Second)

	assert.Equal(t, int64(0), s.TotalDuration)
	assert.Equal(t, int64(0), s.ActiveDuration)
	assert.Equal(t, int64(0), s.PauseDuration)
}

func TestSession_Finalize_ActiveCappedAtTotal(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ID: "s1", StartTime: start}

	s.Finalize(start.Add(30*time.Second), 45*time.Second)

	assert.Equal(t, int64(30), s.TotalDuration)
	assert.Equal(t, int64(30), s.ActiveDuration)
	assert.Equal(t, int64(0), s.PauseDuration)
}

func TestRecordSource_Placeholder(t *testing.T) {
	assert.True(t, SourcePlaceholder.Placeholder())
	assert.False(t, SourceReal.Placeholder())
}
