package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/billable/internal/domain"
	"github.com/soyeahso/billable/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newSession(userID string) *domain.Session {
	return &domain.Session{
		ID:     uuid.New().String(),
		UserID: userID,
		Email: domain.EmailData{
			Recipients: []string{"client@firm.com"},
			Subject:    "Re: contract review",
		},
		StartTime: time.Now().UTC(),
		Status:    domain.StatusActive,
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_WritePragmas(t *testing.T) {
	db := testDB(t)

	var busy int
	require.NoError(t, db.SQL().QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)

	var sync int
	require.NoError(t, db.SQL().QueryRow("PRAGMA synchronous").Scan(&sync))
	assert.Equal(t, 1, sync, "expected synchronous=NORMAL")
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"sessions", "activities"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Session store tests ---

func TestSessionStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess := newSession("user-1")
	require.NoError(t, ss.Create(sess))

	got, err := ss.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, []string{"client@firm.com"}, got.Email.Recipients)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Nil(t, got.EndTime)
}

func TestSessionStore_Get_NotFound(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	got, err := ss.Get("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_Update(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess := newSession("user-1")
	require.NoError(t, ss.Create(sess))

	end := sess.StartTime.Add(90 * time.Second)
	sess.EndTime = &end
	sess.TotalDuration = 90
	sess.ActiveDuration = 60
	sess.PauseDuration = 30
	sess.Status = domain.StatusCompleted
	sess.Typing = domain.TypingStats{CharactersTyped: 420, WordsTyped: 80, Deletions: 12}
	sess.Summary = &domain.SessionSummary{Text: "Drafted email regarding contract review.", Confidence: 0.9}
	sess.Billing = &domain.BillingInfo{Billable: true, Amount: 6.25, TimeEntryPosted: true, TimeEntryID: "te-1"}
	require.NoError(t, ss.Update(sess))

	got, err := ss.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, int64(90), got.TotalDuration)
	assert.Equal(t, int64(60), got.ActiveDuration)
	assert.Equal(t, 420, got.Typing.CharactersTyped)
	require.NotNil(t, got.EndTime)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Drafted email regarding contract review.", got.Summary.Text)
	require.NotNil(t, got.Billing)
	assert.Equal(t, "te-1", got.Billing.TimeEntryID)
	assert.True(t, got.Billing.TimeEntryPosted)
}

func TestSessionStore_Update_Missing(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess := newSession("user-1")
	err := ss.Update(sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such session")
}

func TestSessionStore_AppendActivity_Order(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess := newSession("user-1")
	require.NoError(t, ss.Create(sess))

	kinds := []domain.ActivityKind{
		domain.ActivityStart,
		domain.ActivityContentChange,
		domain.ActivityPause,
		domain.ActivityResume,
		domain.ActivityStop,
	}
	for _, k := range kinds {
		require.NoError(t, ss.AppendActivity(sess.ID, domain.Activity{
			Timestamp: time.Now().UTC(),
			Kind:      k,
		}))
	}

	got, err := ss.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Activities, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, got.Activities[i].Kind)
	}
}

func TestSessionStore_AppendActivity_Payload(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	sess := newSession("user-1")
	require.NoError(t, ss.Create(sess))

	require.NoError(t, ss.AppendActivity(sess.ID, domain.Activity{
		Timestamp: time.Now().UTC(),
		Kind:      domain.ActivityContentChange,
		Payload:   map[string]any{"charsAdded": float64(12)},
	}))

	got, err := ss.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Activities, 1)
	assert.Equal(t, float64(12), got.Activities[0].Payload["charsAdded"])
}

func TestSessionStore_ListByUser(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	older := newSession("user-1")
	older.StartTime = time.Now().UTC().Add(-time.Hour)
	newer := newSession("user-1")
	other := newSession("user-2")

	require.NoError(t, ss.Create(older))
	require.NoError(t, ss.Create(newer))
	require.NoError(t, ss.Create(other))

	got, err := ss.ListByUser("user-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Most recent first
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestSessionStore_FindStale(t *testing.T) {
	db := testDB(t)
	ss := NewSQLiteSessionStore(db)

	active := newSession("user-1")
	done := newSession("user-1")
	done.Status = domain.StatusCompleted
	require.NoError(t, ss.Create(active))
	require.NoError(t, ss.Create(done))
	require.NoError(t, ss.Update(done))

	// Cutoff in the future: the active session qualifies, the completed one
	// is filtered by status.
	stale, err := ss.FindStale(domain.StatusActive, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, active.ID, stale[0].ID)

	// Cutoff in the past: nothing is stale yet.
	stale, err = ss.FindStale(domain.StatusActive, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}
