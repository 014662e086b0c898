// Package journal keeps per-developer session journals under
// .trellis/workspace/<dev>: numbered journal-N.md parts that rotate at a
// line threshold, and an index.md whose generated blocks are rewritten
// between @@@auto markers on every addition.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/everydev1618/trellis"
)

// MaxJournalLines is the rotation threshold: a session that would push
// the active journal past this many lines starts a new part instead.
const MaxJournalLines = 2000

const (
	journalPrefix = "journal-"
	indexFile     = "index.md"
)

// Markers delimiting the generated blocks of index.md. Everything
// outside them is user content and survives rewrites.
const (
	markerStatusOpen  = "@@@auto:current-status"
	markerStatusClose = "@@@/auto:current-status"
	markerDocsOpen    = "@@@auto:active-documents"
	markerDocsClose   = "@@@/auto:active-documents"
	markerHistOpen    = "@@@auto:session-history"
	markerHistClose   = "@@@/auto:session-history"
)

// ErrNotInitialized reports that no developer identity is configured.
var ErrNotInitialized = errors.New("developer not initialized")

var journalNumRe = regexp.MustCompile(`journal-(\d+)\.md$`)

// Init bootstraps the developer identity: the .trellis/.developer file,
// the workspace directory, journal-1.md, and an index.md carrying the
// generated-block markers. When a developer is already configured, Init
// returns that name untouched with created=false.
func Init(root, name string) (string, bool, error) {
	if existing := trellis.DeveloperName(root); existing != "" {
		return existing, false, nil
	}
	if name == "" {
		return "", false, errors.New("developer name is required")
	}

	if err := os.MkdirAll(trellis.WorkflowDir(root), 0o755); err != nil {
		return "", false, fmt.Errorf("create workflow dir: %w", err)
	}

	devFile := filepath.Join(trellis.WorkflowDir(root), trellis.FileDeveloper)
	content := fmt.Sprintf("name=%s\ninitialized_at=%s\n", name, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(devFile, []byte(content), 0o644); err != nil {
		return "", false, fmt.Errorf("write developer file: %w", err)
	}

	devDir := trellis.WorkspaceDir(root, name)
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create workspace dir: %w", err)
	}

	journal := filepath.Join(devDir, journalPrefix+"1.md")
	if _, err := os.Stat(journal); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(journal, []byte(firstJournalHeader(name)), 0o644); err != nil {
			return "", false, fmt.Errorf("write journal: %w", err)
		}
	}

	index := filepath.Join(devDir, indexFile)
	if _, err := os.Stat(index); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(index, []byte(indexSeed(name, devDir)), 0o644); err != nil {
			return "", false, fmt.Errorf("write index: %w", err)
		}
	}

	return name, true, nil
}

// Session describes one journal entry.
type Session struct {
	Title   string
	Commits []string // commit hashes; empty means a planning session
	Summary string
	Details string // body of the Main Changes section
}

// Added reports where AddSession landed.
type Added struct {
	Session int    // session number, 1-based
	File    string // journal file the session was appended to
	Rotated bool   // a new journal part was started
}

// AddSession appends a session block to the active journal file,
// rotating to a new part when the append would exceed MaxJournalLines,
// and rewrites the generated blocks of index.md.
func AddSession(root string, s Session) (*Added, error) {
	dev := trellis.DeveloperName(root)
	if dev == "" {
		return nil, ErrNotInitialized
	}
	if s.Title == "" {
		return nil, errors.New("session title is required")
	}

	devDir := trellis.WorkspaceDir(root, dev)
	indexPath := filepath.Join(devDir, indexFile)

	summary := s.Summary
	if summary == "" {
		summary = "(Add summary)"
	}
	details := s.Details
	if details == "" {
		details = "(Add details)"
	}

	latestPath, latestNum, latestLines := latestJournal(devDir)
	session := sessionCount(indexPath) + 1

	today := time.Now().Format("2006-01-02")
	content := fmt.Sprintf(sessionTemplate,
		session, s.Title, today, s.Title, summary, details, commitTable(s.Commits))
	contentLines := len(strings.Split(content, "\n"))

	targetPath, targetNum := latestPath, latestNum
	rotated := false
	switch {
	case latestPath == "":
		// No journal yet; start part 1 rather than failing.
		targetNum = 1
		targetPath = filepath.Join(devDir, journalPrefix+"1.md")
		if err := os.WriteFile(targetPath, []byte(firstJournalHeader(dev)), 0o644); err != nil {
			return nil, fmt.Errorf("write journal: %w", err)
		}
	case latestLines+contentLines > MaxJournalLines:
		targetNum = latestNum + 1
		targetPath = filepath.Join(devDir, fmt.Sprintf("%s%d.md", journalPrefix, targetNum))
		if err := os.WriteFile(targetPath, []byte(continuationHeader(dev, targetNum)), 0o644); err != nil {
			return nil, fmt.Errorf("write journal: %w", err)
		}
		rotated = true
	}

	f, err := os.OpenFile(targetPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return nil, fmt.Errorf("append session: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close journal: %w", err)
	}

	activeFile := fmt.Sprintf("%s%d.md", journalPrefix, targetNum)
	if err := updateIndex(indexPath, s.Title, commitDisplay(s.Commits), session, activeFile, journalTable(devDir, targetNum)); err != nil {
		return nil, err
	}

	return &Added{Session: session, File: activeFile, Rotated: rotated}, nil
}

const sessionTemplate = `

## Session %d: %s

**Date**: %s
**Task**: %s

### Summary

%s

### Main Changes

%s

### Git Commits

%s

### Testing

- [OK] (Add test results)

### Status

[OK] **Completed**

### Next Steps

- None - task complete
`

func firstJournalHeader(dev string) string {
	return fmt.Sprintf("# Journal - %s (Part 1)\n\n> AI development session journal\n> Started: %s\n\n---\n\n",
		dev, time.Now().Format("2006-01-02"))
}

func continuationHeader(dev string, num int) string {
	return fmt.Sprintf("# Journal - %s (Part %d)\n\n> Continuation from `%s%d.md` (archived at ~%d lines)\n> Started: %s\n\n---\n\n",
		dev, num, journalPrefix, num-1, MaxJournalLines, time.Now().Format("2006-01-02"))
}

// indexSeed builds a fresh index.md with the marker blocks AddSession
// rewrites.
func indexSeed(dev, devDir string) string {
	lines := []string{
		"# Workspace Index - " + dev,
		"",
		"> Journal tracking for AI development sessions.",
		"",
		"---",
		"",
		"## Current Status",
		"",
		"<!-- " + markerStatusOpen + " -->",
		"- **Active File**: `" + journalPrefix + "1.md`",
		"- **Total Sessions**: 0",
		"- **Last Active**: -",
		"<!-- " + markerStatusClose + " -->",
		"",
		"---",
		"",
		"## Journal Files",
		"",
		"<!-- " + markerDocsOpen + " -->",
		"| File | Lines | Status |",
		"|------|-------|--------|",
		journalTable(devDir, 1),
		"<!-- " + markerDocsClose + " -->",
		"",
		"---",
		"",
		"## Session History",
		"",
		"<!-- " + markerHistOpen + " -->",
		"| # | Date | Title | Commits |",
		"|---|------|-------|---------|",
		"<!-- " + markerHistClose + " -->",
		"",
		"---",
		"",
		"## Notes",
		"",
		"- Sessions are appended to journal files",
		fmt.Sprintf("- New journal file created when current exceeds %d lines", MaxJournalLines),
		"",
	}
	return strings.Join(lines, "\n")
}

// latestJournal returns the highest-numbered journal file in devDir with
// its number and line count, or ("", 0, 0) when none exists.
func latestJournal(devDir string) (string, int, int) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return "", 0, 0
	}
	best := ""
	bestNum := -1
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), journalPrefix) {
			continue
		}
		m := journalNumRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if num > bestNum {
			bestNum = num
			best = e.Name()
		}
	}
	if best == "" {
		return "", 0, 0
	}
	path := filepath.Join(devDir, best)
	return path, bestNum, countLines(path)
}

func countLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return len(strings.Split(string(data), "\n"))
}

// sessionCount reads the running session total from index.md.
func sessionCount(indexPath string) int {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return 0
	}
	re := regexp.MustCompile(`:\s*(\d+)`)
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.Contains(line, "Total Sessions") {
			continue
		}
		if m := re.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	return 0
}

func commitTable(commits []string) string {
	cleaned := cleanCommits(commits)
	if len(cleaned) == 0 {
		return "(No commits - planning session)"
	}
	var b strings.Builder
	b.WriteString("| Hash | Message |\n|------|---------|")
	for _, c := range cleaned {
		fmt.Fprintf(&b, "\n| `%s` | (see git log) |", c)
	}
	return b.String()
}

func commitDisplay(commits []string) string {
	cleaned := cleanCommits(commits)
	if len(cleaned) == 0 {
		return "-"
	}
	quoted := make([]string, len(cleaned))
	for i, c := range cleaned {
		quoted[i] = "`" + c + "`"
	}
	return strings.Join(quoted, ", ")
}

func cleanCommits(commits []string) []string {
	var out []string
	for _, c := range commits {
		c = strings.TrimSpace(c)
		if c != "" && c != "-" {
			out = append(out, c)
		}
	}
	return out
}

// journalTable renders the Journal Files rows, newest part first.
func journalTable(devDir string, activeNum int) string {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return ""
	}
	type part struct {
		num  int
		name string
	}
	var parts []part
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), journalPrefix) {
			continue
		}
		m := journalNumRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		parts = append(parts, part{num: num, name: e.Name()})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].num > parts[j].num })

	rows := make([]string, 0, len(parts))
	for _, p := range parts {
		status := "Archived"
		if p.num == activeNum {
			status = "Active"
		}
		rows = append(rows, fmt.Sprintf("| `%s` | ~%d | %s |", p.name, countLines(filepath.Join(devDir, p.name)), status))
	}
	return strings.Join(rows, "\n")
}

// updateIndex rewrites the generated blocks of index.md: current status,
// the journal files table, and a new session-history row inserted right
// under the table header. User content outside the markers is kept.
func updateIndex(indexPath, title, commitDisplay string, session int, activeFile, filesTable string) error {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("read index.md: %w", err)
	}
	content := string(data)
	if !strings.Contains(content, markerStatusOpen) {
		return errors.New("index.md is missing its generated-block markers")
	}

	today := time.Now().Format("2006-01-02")
	var result []string
	inStatus, inDocs, inHistory := false, false, false
	rowWritten := false

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.Contains(line, markerStatusOpen):
			result = append(result, line)
			inStatus = true
			result = append(result,
				fmt.Sprintf("- **Active File**: `%s`", activeFile),
				fmt.Sprintf("- **Total Sessions**: %d", session),
				fmt.Sprintf("- **Last Active**: %s", today),
			)
			continue
		case strings.Contains(line, markerStatusClose):
			inStatus = false
			result = append(result, line)
			continue
		case strings.Contains(line, markerDocsOpen):
			result = append(result, line)
			inDocs = true
			result = append(result,
				"| File | Lines | Status |",
				"|------|-------|--------|",
				filesTable,
			)
			continue
		case strings.Contains(line, markerDocsClose):
			inDocs = false
			result = append(result, line)
			continue
		case strings.Contains(line, markerHistOpen):
			result = append(result, line)
			inHistory = true
			rowWritten = false
			continue
		case strings.Contains(line, markerHistClose):
			inHistory = false
			result = append(result, line)
			continue
		}

		if inStatus || inDocs {
			continue
		}
		if inHistory {
			result = append(result, line)
			if strings.HasPrefix(line, "|---") && !rowWritten {
				result = append(result, fmt.Sprintf("| %d | %s | %s | %s |", session, today, title, commitDisplay))
				rowWritten = true
			}
			continue
		}
		result = append(result, line)
	}

	if err := os.WriteFile(indexPath, []byte(strings.Join(result, "\n")), 0o644); err != nil {
		return fmt.Errorf("write index.md: %w", err)
	}
	return nil
}
