// Package gitinfo probes the local git repository for the session
// context digest. Probes shell out to git and treat every failure as
// "no information": a missing binary or a non-repo directory yields the
// zero report instead of an error.
package gitinfo

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// commandTimeout bounds each git invocation.
const commandTimeout = 5 * time.Second

// maxRecentCommits caps the commit log excerpt.
const maxRecentCommits = 5

// Info summarizes repository state.
type Info struct {
	Branch             string   `json:"branch"`
	UncommittedChanges int      `json:"uncommitted_changes"`
	IsClean            bool     `json:"is_clean"`
	RecentCommits      []string `json:"recent_commits"`
}

// Probe collects the current branch, the dirty-file count, and the last
// few one-line commits from the repository at root.
func Probe(ctx context.Context, root string) Info {
	info := Info{Branch: "unknown", IsClean: true, RecentCommits: []string{}}

	if out, ok := run(ctx, root, "branch", "--show-current"); ok {
		if branch := strings.TrimSpace(out); branch != "" {
			info.Branch = branch
		}
	}

	if out, ok := run(ctx, root, "status", "--porcelain"); ok {
		dirty := 0
		for _, line := range strings.Split(out, "\n") {
			if strings.TrimSpace(line) != "" {
				dirty++
			}
		}
		info.UncommittedChanges = dirty
		info.IsClean = dirty == 0
	}

	if out, ok := run(ctx, root, "log", "--oneline", "-5"); ok {
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			info.RecentCommits = append(info.RecentCommits, line)
			if len(info.RecentCommits) == maxRecentCommits {
				break
			}
		}
	}

	return info
}

func run(ctx context.Context, dir string, args ...string) (string, bool) {
	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}
