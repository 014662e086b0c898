package serve

import "time"

// Store persists tool activity for historical queries. Every write is
// best effort from the server's point of view: a failing store degrades
// to a logged warning and never blocks a tool answer.
type Store interface {
	// Init creates tables if they don't exist.
	Init() error

	// Close closes the store.
	Close() error

	// InsertToolCall records one MCP tool invocation.
	InsertToolCall(c ToolCall) error

	// InsertMatch records a skill-match summary.
	InsertMatch(m MatchRecord) error

	// RecentToolCalls returns recent tool calls, newest first.
	RecentToolCalls(limit int) ([]ToolCall, error)

	// RecentMatches returns recent match summaries, newest first.
	RecentMatches(limit int) ([]MatchRecord, error)
}

// ToolCall is a persisted MCP tool invocation.
type ToolCall struct {
	ID         int64     `json:"id"`
	Session    string    `json:"session"`
	Tool       string    `json:"tool"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CalledAt   time.Time `json:"called_at"`
}

// MatchRecord summarizes one match_skills evaluation.
type MatchRecord struct {
	ID          int64     `json:"id"`
	Session     string    `json:"session"`
	PromptChars int       `json:"prompt_chars"`
	FileCount   int       `json:"file_count"`
	ResultCount int       `json:"result_count"`
	TopSkill    string    `json:"top_skill,omitempty"`
	TopScore    int       `json:"top_score"`
	MatchedAt   time.Time `json:"matched_at"`
}
