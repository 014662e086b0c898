// Package agentctx assembles the context text and prompt envelopes
// injected into workflow agents. Context is gathered from the per-task
// jsonl manifests (implement/check/debug/finish/research), falling back
// to well-known command documents, and rendered as
// "=== path ===" blocks joined by blank lines.
package agentctx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/task"
)

// Agent types accepted by context requests. AgentFinish is not a
// standalone type: the check agent switches to it for the lightweight
// pre-PR pass.
const (
	AgentImplement = "implement"
	AgentCheck     = "check"
	AgentDebug     = "debug"
	AgentResearch  = "research"
	AgentPlan      = "plan"
	AgentFinish    = "finish"
)

// All lists the requestable agent types.
var All = []string{AgentImplement, AgentCheck, AgentDebug, AgentResearch, AgentPlan}

// Valid reports whether agentType is a requestable agent type.
func Valid(agentType string) bool {
	for _, a := range All {
		if a == agentType {
			return true
		}
	}
	return false
}

// RequiresTask reports whether the agent type needs an active task.
func RequiresTask(agentType string) bool {
	switch agentType {
	case AgentImplement, AgentCheck, AgentDebug:
		return true
	}
	return false
}

// maxDirFiles caps how many markdown files a directory entry expands to.
const maxDirFiles = 20

// section is one context block before rendering.
type section struct {
	path    string
	content string
}

// Build assembles the context text for agentType. taskDir is the task
// path relative to root; plan ignores it and research tolerates "".
func Build(root, taskDir, agentType string) string {
	switch agentType {
	case AgentImplement:
		return implementContext(root, taskDir)
	case AgentCheck:
		return checkContext(root, taskDir)
	case AgentDebug:
		return debugContext(root, taskDir)
	case AgentResearch:
		return researchContext(root, taskDir)
	case AgentPlan:
		return planContext(root)
	case AgentFinish:
		return finishContext(root, taskDir)
	}
	return ""
}

// readText returns the contents of the file at rel under root, or ""
// when it is missing, unreadable, or not a regular file.
func readText(root, rel string) string {
	full := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return ""
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return ""
	}
	return string(data)
}

// readDir returns the markdown files directly inside the directory at
// rel, sorted by name and capped at maxDirFiles.
func readDir(root, rel string) []section {
	full := filepath.Join(root, filepath.FromSlash(rel))
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) > maxDirFiles {
		names = names[:maxDirFiles]
	}

	var out []section
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(full, name))
		if err != nil {
			continue
		}
		out = append(out, section{path: rel + "/" + name, content: string(data)})
	}
	return out
}

// readManifest reads a jsonl manifest and loads every file or directory
// it references. Invalid lines and missing targets are skipped.
func readManifest(root, rel string) []section {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil
	}

	var out []section
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry task.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		loc := entry.Location()
		if loc == "" {
			continue
		}
		if entry.IsDir() {
			out = append(out, readDir(root, loc)...)
			continue
		}
		if content := readText(root, loc); content != "" {
			out = append(out, section{path: loc, content: content})
		}
	}
	return out
}

func render(parts []string) string {
	return strings.Join(parts, "\n\n")
}

func block(path, content string) string {
	return "=== " + path + " ===\n" + content
}

func blockWith(path, note, content string) string {
	return "=== " + path + " (" + note + ") ===\n" + content
}

// baseContext loads the agent's own manifest, falling back to
// spec.jsonl when it is absent or empty.
func baseContext(root, taskDir, agentType string) string {
	entries := readManifest(root, taskDir+"/"+agentType+".jsonl")
	if len(entries) == 0 {
		entries = readManifest(root, taskDir+"/spec.jsonl")
	}
	parts := make([]string, 0, len(entries))
	for _, s := range entries {
		parts = append(parts, block(s.path, s.content))
	}
	return render(parts)
}

func implementContext(root, taskDir string) string {
	var parts []string
	if base := baseContext(root, taskDir, AgentImplement); base != "" {
		parts = append(parts, base)
	}
	if prd := readText(root, taskDir+"/prd.md"); prd != "" {
		parts = append(parts, blockWith(taskDir+"/prd.md", "Requirements", prd))
	}
	if info := readText(root, taskDir+"/info.md"); info != "" {
		parts = append(parts, blockWith(taskDir+"/info.md", "Technical Design", info))
	}
	return render(parts)
}

// checkDocs are the command documents the check context falls back to
// when the task has no check.jsonl, tried under .cursor first and
// .claude second.
var checkDocs = []struct{ path, note string }{
	{"commands/trellis-finish-work.md", "Finish work checklist"},
	{"commands/trellis-check-cross-layer.md", "Cross-layer check spec"},
	{"commands/trellis-check-backend.md", "Backend check spec"},
	{"commands/trellis-check-frontend.md", "Frontend check spec"},
}

var debugDocs = []struct{ path, note string }{
	{"commands/trellis-check-backend.md", "Backend check spec"},
	{"commands/trellis-check-frontend.md", "Frontend check spec"},
	{"commands/trellis-check-cross-layer.md", "Cross-layer check spec"},
}

// commandDoc resolves a doc path for the given editor layout. Cursor
// keeps flat trellis-*.md names under .cursor/commands; the claude
// layout nests them under commands/trellis/ without the prefix.
func commandDoc(editor, doc string) string {
	if editor == ".claude" {
		return editor + "/" + strings.Replace(doc, "commands/trellis-", "commands/trellis/", 1)
	}
	return editor + "/" + doc
}

// fallbackDocs renders the first editor layout that yields any content.
func fallbackDocs(root string, docs []struct{ path, note string }) []string {
	for _, editor := range []string{".cursor", ".claude"} {
		var parts []string
		for _, d := range docs {
			p := commandDoc(editor, d.path)
			if content := readText(root, p); content != "" {
				parts = append(parts, blockWith(p, d.note, content))
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return nil
}

func checkContext(root, taskDir string) string {
	var parts []string

	entries := readManifest(root, taskDir+"/check.jsonl")
	if len(entries) > 0 {
		for _, s := range entries {
			parts = append(parts, block(s.path, s.content))
		}
	} else {
		parts = append(parts, fallbackDocs(root, checkDocs)...)
		for _, s := range readManifest(root, taskDir+"/spec.jsonl") {
			parts = append(parts, blockWith(s.path, "Dev spec", s.content))
		}
	}

	if prd := readText(root, taskDir+"/prd.md"); prd != "" {
		parts = append(parts, blockWith(taskDir+"/prd.md", "Requirements", prd))
	}
	return render(parts)
}

func debugContext(root, taskDir string) string {
	var parts []string

	entries := readManifest(root, taskDir+"/debug.jsonl")
	if len(entries) > 0 {
		for _, s := range entries {
			parts = append(parts, block(s.path, s.content))
		}
	} else {
		for _, s := range readManifest(root, taskDir+"/spec.jsonl") {
			parts = append(parts, blockWith(s.path, "Dev spec", s.content))
		}
		parts = append(parts, fallbackDocs(root, debugDocs)...)
	}

	if review := readText(root, taskDir+"/codex-review-output.txt"); review != "" {
		parts = append(parts, blockWith(taskDir+"/codex-review-output.txt", "Review Results", review))
	}
	return render(parts)
}

func finishContext(root, taskDir string) string {
	var parts []string

	entries := readManifest(root, taskDir+"/finish.jsonl")
	if len(entries) > 0 {
		for _, s := range entries {
			parts = append(parts, block(s.path, s.content))
		}
	} else {
		for _, p := range []string{
			".cursor/commands/trellis-finish-work.md",
			".claude/commands/trellis/finish-work.md",
		} {
			if content := readText(root, p); content != "" {
				parts = append(parts, blockWith(p, "Finish checklist", content))
				break
			}
		}
	}

	if prd := readText(root, taskDir+"/prd.md"); prd != "" {
		parts = append(parts, blockWith(taskDir+"/prd.md", "Requirements - verify all met", prd))
	}
	return render(parts)
}

func planContext(root string) string {
	spec := trellis.DirWorkflow + "/" + trellis.DirSpec
	structure := "## Project Structure for Planning\n\n" +
		"```\n" +
		spec + "/\n" +
		"├── frontend/    # Frontend standards (check before frontend tasks)\n" +
		"├── backend/     # Backend standards (check before backend tasks)\n" +
		"└── guides/      # Cross-layer thinking guides\n" +
		"```\n\n" +
		"## Planning Guidelines\n\n" +
		"1. Understand the requirement fully before creating a task\n" +
		"2. Check if similar functionality exists in the codebase\n" +
		"3. Break down complex features into phases\n" +
		"4. Create task with clear title and requirements (prd.md)\n"

	parts := []string{structure}
	if guides := readText(root, spec+"/guides/index.md"); guides != "" {
		parts = append(parts, "## Available Guides\n\n"+guides)
	}
	return render(parts)
}

func researchContext(root, taskDir string) string {
	spec := trellis.DirWorkflow + "/" + trellis.DirSpec
	structure := "## Project Spec Directory Structure\n\n" +
		"```\n" +
		spec + "/\n" +
		"├── frontend/    # Frontend standards\n" +
		"├── backend/     # Backend standards\n" +
		"└── guides/      # Thinking guides\n\n" +
		trellis.DirWorkflow + "/big-question/  # Known issues and pitfalls\n" +
		"```\n\n" +
		"## Search Tips\n\n" +
		"- Spec files: `" + spec + "/**/*.md`\n" +
		"- Code search: Use Glob and Grep tools\n" +
		"- External search: Use web search tools"

	parts := []string{structure}
	if taskDir != "" {
		entries := readManifest(root, taskDir+"/research.jsonl")
		if len(entries) > 0 {
			parts = append(parts, "\n## Additional Search Context\n")
			for _, s := range entries {
				parts = append(parts, block(s.path, s.content))
			}
		}
	}
	return render(parts)
}
