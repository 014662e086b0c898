package serve

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema tables.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_calls (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session     TEXT NOT NULL,
		tool        TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		called_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS skill_matches (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session      TEXT NOT NULL,
		prompt_chars INTEGER NOT NULL DEFAULT 0,
		file_count   INTEGER NOT NULL DEFAULT 0,
		result_count INTEGER NOT NULL DEFAULT 0,
		top_skill    TEXT NOT NULL DEFAULT '',
		top_score    INTEGER NOT NULL DEFAULT 0,
		matched_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_called_at ON tool_calls(called_at);
	CREATE INDEX IF NOT EXISTS idx_skill_matches_session ON skill_matches(session);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertToolCall records one MCP tool invocation.
func (s *SQLiteStore) InsertToolCall(c ToolCall) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_calls (session, tool, duration_ms, error, called_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Session, c.Tool, c.DurationMS, c.Error, c.CalledAt,
	)
	return err
}

// InsertMatch records a skill-match summary.
func (s *SQLiteStore) InsertMatch(m MatchRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO skill_matches (session, prompt_chars, file_count, result_count, top_skill, top_score, matched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Session, m.PromptChars, m.FileCount, m.ResultCount, m.TopSkill, m.TopScore, m.MatchedAt,
	)
	return err
}

// RecentToolCalls returns recent tool calls, newest first.
func (s *SQLiteStore) RecentToolCalls(limit int) ([]ToolCall, error) {
	rows, err := s.db.Query(
		`SELECT id, session, tool, duration_ms, error, called_at
		 FROM tool_calls ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		var c ToolCall
		if err := rows.Scan(&c.ID, &c.Session, &c.Tool, &c.DurationMS, &c.Error, &c.CalledAt); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// RecentMatches returns recent match summaries, newest first.
func (s *SQLiteStore) RecentMatches(limit int) ([]MatchRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session, prompt_chars, file_count, result_count, top_skill, top_score, matched_at
		 FROM skill_matches ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(&m.ID, &m.Session, &m.PromptChars, &m.FileCount, &m.ResultCount, &m.TopSkill, &m.TopScore, &m.MatchedAt); err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, rows.Err()
}
