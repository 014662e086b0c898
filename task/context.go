package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/everydev1618/trellis"
)

// ContextFiles are the jsonl files a task carries, in display order.
var ContextFiles = []string{"implement.jsonl", "check.jsonl", "debug.jsonl"}

// DevTypes are the recognized development types for context seeding.
var DevTypes = []string{"backend", "frontend", "fullstack", "test", "docs"}

// Entry is one line of a context jsonl file. Older entries may carry the
// location under "path" instead of "file".
type Entry struct {
	File   string `json:"file,omitempty"`
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Location returns the file or path field, whichever is set.
func (e Entry) Location() string {
	if e.File != "" {
		return e.File
	}
	return e.Path
}

// IsDir reports whether the entry points at a directory.
func (e Entry) IsDir() bool {
	return e.Type == "directory"
}

func implementSeed(devType string) []Entry {
	entries := []Entry{
		{File: trellis.DirWorkflow + "/" + trellis.FileWorkflow, Reason: "Project workflow"},
	}
	if devType == "backend" || devType == "fullstack" {
		entries = append(entries, Entry{File: trellis.DirWorkflow + "/" + trellis.DirSpec + "/backend/index.md", Reason: "Backend guide"})
	}
	if devType == "frontend" || devType == "fullstack" {
		entries = append(entries, Entry{File: trellis.DirWorkflow + "/" + trellis.DirSpec + "/frontend/index.md", Reason: "Frontend guide"})
	}
	return entries
}

func checkSeed(devType string) []Entry {
	entries := []Entry{
		{File: ".cursor/commands/trellis-finish-work.md", Reason: "Finish checklist"},
	}
	if devType == "backend" || devType == "fullstack" {
		entries = append(entries, Entry{File: ".cursor/commands/trellis-check-backend.md", Reason: "Backend check"})
	}
	if devType == "frontend" || devType == "fullstack" {
		entries = append(entries, Entry{File: ".cursor/commands/trellis-check-frontend.md", Reason: "Frontend check"})
	}
	return entries
}

func debugSeed(devType string) []Entry {
	var entries []Entry
	if devType == "backend" || devType == "fullstack" {
		entries = append(entries, Entry{File: ".cursor/commands/trellis-check-backend.md", Reason: "Backend spec"})
	}
	if devType == "frontend" || devType == "fullstack" {
		entries = append(entries, Entry{File: ".cursor/commands/trellis-check-frontend.md", Reason: "Frontend spec"})
	}
	return entries
}

// InitContext seeds implement.jsonl, check.jsonl and debug.jsonl inside
// the task directory with the default entries for devType. Existing
// files are overwritten. It returns the entry count per file.
func InitContext(root, dir, devType string) (map[string]int, error) {
	taskDir := resolveDir(root, dir)
	if _, err := os.Stat(taskDir); err != nil {
		return nil, fmt.Errorf("task directory not found: %s", dir)
	}

	seeds := map[string][]Entry{
		"implement.jsonl": implementSeed(devType),
		"check.jsonl":     checkSeed(devType),
		"debug.jsonl":     debugSeed(devType),
	}
	counts := make(map[string]int, len(ContextFiles))
	for _, name := range ContextFiles {
		if err := writeEntries(filepath.Join(taskDir, name), seeds[name]); err != nil {
			return nil, err
		}
		counts[name] = len(seeds[name])
	}
	return counts, nil
}

// AddContext appends an entry for path to the named context file of the
// task at dir. The name may omit the .jsonl suffix. The path must exist
// under root; directories are tagged type "directory". An empty reason
// becomes "Added manually".
func AddContext(root, dir, name, path, reason string) (Entry, error) {
	taskDir := resolveDir(root, dir)
	if !strings.HasSuffix(name, ".jsonl") {
		name += ".jsonl"
	}
	if reason == "" {
		reason = "Added manually"
	}

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(path)))
	if err != nil {
		return Entry{}, fmt.Errorf("path not found: %s", path)
	}
	entry := Entry{File: path, Reason: reason}
	if info.IsDir() {
		entry.Type = "directory"
	}

	if err := appendEntry(filepath.Join(taskDir, name), entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Problem is one failed line found by Validate.
type Problem struct {
	Line int
	Msg  string
}

// Report summarizes validation of one context file.
type Report struct {
	Name     string
	Missing  bool
	Entries  int
	Problems []Problem
}

// Validate checks that every line of the task's context files parses as
// JSON and points at an existing file or directory under root. Missing
// context files are reported as skipped, not as errors.
func Validate(root, dir string) ([]Report, error) {
	taskDir := resolveDir(root, dir)

	reports := make([]Report, 0, len(ContextFiles))
	for _, name := range ContextFiles {
		path := filepath.Join(taskDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				reports = append(reports, Report{Name: name, Missing: true})
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		rep := Report{Name: name}
		for i, line := range strings.Split(string(data), "\n") {
			num := i + 1
			if strings.TrimSpace(line) == "" {
				continue
			}
			rep.Entries++

			var entry Entry
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				rep.Problems = append(rep.Problems, Problem{Line: num, Msg: "Invalid JSON"})
				continue
			}
			loc := entry.Location()
			if loc == "" {
				rep.Problems = append(rep.Problems, Problem{Line: num, Msg: "Missing 'file' field"})
				continue
			}
			info, err := os.Stat(filepath.Join(root, filepath.FromSlash(loc)))
			if entry.IsDir() {
				if err != nil || !info.IsDir() {
					rep.Problems = append(rep.Problems, Problem{Line: num, Msg: "Directory not found: " + loc})
				}
			} else {
				if err != nil || info.IsDir() {
					rep.Problems = append(rep.Problems, Problem{Line: num, Msg: "File not found: " + loc})
				}
			}
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Listed is one line of a context file as presented by list-context.
// Line numbers count physical lines, blanks included.
type Listed struct {
	Line    int
	Entry   Entry
	Invalid bool
}

// ListContext returns the lines of each context file present in the
// task directory, keyed by file name. Absent files have no key.
func ListContext(root, dir string) (map[string][]Listed, error) {
	taskDir := resolveDir(root, dir)

	out := make(map[string][]Listed)
	for _, name := range ContextFiles {
		data, err := os.ReadFile(filepath.Join(taskDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		var lines []Listed
		for i, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var entry Entry
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				lines = append(lines, Listed{Line: i + 1, Invalid: true})
				continue
			}
			lines = append(lines, Listed{Line: i + 1, Entry: entry})
		}
		out[name] = lines
	}
	return out, nil
}

func writeEntries(path string, entries []Entry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode context entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func appendEntry(path string, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode context entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", filepath.Base(path), err)
	}
	return nil
}
