package serve

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "trellis.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if err := store.Init(); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreToolCalls(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	calls := []ToolCall{
		{Session: "abc12345", Tool: "get_workflow", DurationMS: 3, CalledAt: now},
		{Session: "abc12345", Tool: "match_skills", DurationMS: 12, CalledAt: now.Add(time.Second)},
		{Session: "abc12345", Tool: "get_current_task", DurationMS: 1, Error: "boom", CalledAt: now.Add(2 * time.Second)},
	}
	for _, c := range calls {
		if err := store.InsertToolCall(c); err != nil {
			t.Fatalf("Failed to insert tool call: %v", err)
		}
	}

	got, err := store.RecentToolCalls(10)
	if err != nil {
		t.Fatalf("Failed to query tool calls: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 tool calls, got %d", len(got))
	}
	if got[0].Tool != "get_current_task" {
		t.Errorf("Expected newest call first, got %q", got[0].Tool)
	}
	if got[0].Error != "boom" {
		t.Errorf("Expected error to round-trip, got %q", got[0].Error)
	}
	if got[2].Tool != "get_workflow" {
		t.Errorf("Expected oldest call last, got %q", got[2].Tool)
	}
	if got[1].DurationMS != 12 {
		t.Errorf("Expected duration 12, got %d", got[1].DurationMS)
	}
}

func TestStoreToolCallsLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		call := ToolCall{Session: "s", Tool: "list_tasks", CalledAt: time.Now()}
		if err := store.InsertToolCall(call); err != nil {
			t.Fatalf("Failed to insert tool call: %v", err)
		}
	}

	got, err := store.RecentToolCalls(2)
	if err != nil {
		t.Fatalf("Failed to query tool calls: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(got))
	}
}

func TestStoreMatches(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	first := MatchRecord{Session: "abc12345", PromptChars: 40, FileCount: 2, ResultCount: 3, TopSkill: "api-conventions", TopScore: 1050, MatchedAt: now}
	second := MatchRecord{Session: "abc12345", PromptChars: 7, ResultCount: 0, MatchedAt: now.Add(time.Second)}
	if err := store.InsertMatch(first); err != nil {
		t.Fatalf("Failed to insert match: %v", err)
	}
	if err := store.InsertMatch(second); err != nil {
		t.Fatalf("Failed to insert match: %v", err)
	}

	got, err := store.RecentMatches(10)
	if err != nil {
		t.Fatalf("Failed to query matches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(got))
	}
	if got[0].PromptChars != 7 {
		t.Errorf("Expected newest match first, got prompt_chars %d", got[0].PromptChars)
	}
	if got[1].TopSkill != "api-conventions" || got[1].TopScore != 1050 {
		t.Errorf("Expected top skill to round-trip, got %q score %d", got[1].TopSkill, got[1].TopScore)
	}
}
