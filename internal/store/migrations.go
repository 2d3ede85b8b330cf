package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and activities",
		SQL: `
			CREATE TABLE sessions (
				id              TEXT PRIMARY KEY,
				user_id         TEXT NOT NULL,
				recipients      TEXT NOT NULL DEFAULT '[]',
				subject         TEXT NOT NULL DEFAULT '',
				body            TEXT NOT NULL DEFAULT '',
				draft_id        TEXT NOT NULL DEFAULT '',
				message_id      TEXT NOT NULL DEFAULT '',
				thread_id       TEXT NOT NULL DEFAULT '',
				start_time      TEXT NOT NULL,
				end_time        TEXT,
				total_duration  INTEGER NOT NULL DEFAULT 0,
				active_duration INTEGER NOT NULL DEFAULT 0,
				pause_duration  INTEGER NOT NULL DEFAULT 0,
				chars_typed     INTEGER NOT NULL DEFAULT 0,
				words_typed     INTEGER NOT NULL DEFAULT 0,
				deletions       INTEGER NOT NULL DEFAULT 0,
				status          TEXT NOT NULL,
				summary         TEXT,
				billing         TEXT,
				created_at      TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_user_start ON sessions (user_id, start_time);
			CREATE INDEX idx_sessions_status ON sessions (status, updated_at);

			CREATE TABLE activities (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				timestamp   TEXT NOT NULL,
				kind        TEXT NOT NULL,
				payload     TEXT
			);

			CREATE INDEX idx_activities_session ON activities (session_id, id);
		`,
	},
}
