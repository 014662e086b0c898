package skills

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danwakefield/fnmatch"
)

// Matcher scores skills against prompts using the repository's cached
// skill set.
type Matcher struct {
	repo *Repository
}

// NewMatcher creates a matcher over repo.
func NewMatcher(repo *Repository) *Matcher {
	return &Matcher{repo: repo}
}

// Match refreshes the repository and returns every skill whose triggers
// fire for q, sorted by score, then priority, then name. An empty prompt
// returns only always-on skills.
func (m *Matcher) Match(ctx context.Context, q Query) ([]Match, error) {
	if err := m.repo.Load(ctx); err != nil {
		return nil, err
	}
	skillSet := m.repo.snapshot()

	prompt := strings.TrimSpace(q.Prompt)
	if prompt == "" {
		var matches []Match
		for _, s := range skillSet {
			if s.Triggers.Always {
				matches = append(matches, Match{
					Skill:     s,
					Score:     s.Triggers.Priority + scoreAlways,
					MatchedBy: []string{"always"},
				})
			}
		}
		sortMatches(matches)
		return matches, nil
	}

	promptLower := strings.ToLower(truncateChars(prompt, MaxPromptChars))
	tokens := tokenize(promptLower)

	// Regex triggers see a shorter slice of the raw prompt than keyword
	// triggers do.
	promptRegex := truncateChars(prompt, MaxRegexPromptChars)

	files := normalizeFileContext(q.Files, m.repo.opts.ProjectRoot)
	filesLower := make([]string, len(files))
	for i, f := range files {
		filesLower[i] = strings.ToLower(f)
	}

	var matches []Match
	for _, s := range skillSet {
		var matchedBy []string
		if s.Triggers.Always {
			matchedBy = append(matchedBy, "always")
		} else {
			for _, g := range matchFiles(filesLower, s.Triggers.Files) {
				matchedBy = append(matchedBy, "file:"+g)
			}
			for _, p := range m.matchPatterns(promptRegex, s.Triggers.Patterns) {
				matchedBy = append(matchedBy, "pattern:"+p)
			}
			for _, k := range matchKeywords(promptLower, tokens, s) {
				matchedBy = append(matchedBy, "keyword:"+k)
			}
		}
		if len(matchedBy) == 0 {
			continue
		}

		score := s.Triggers.Priority
		if s.Triggers.Always {
			score += scoreAlways
		} else {
			for _, reason := range matchedBy {
				switch {
				case strings.HasPrefix(reason, "file:"):
					score += scoreFile
				case strings.HasPrefix(reason, "pattern:"):
					score += scorePattern
				case strings.HasPrefix(reason, "keyword:"):
					score += scoreKeyword
				}
			}
		}
		matches = append(matches, Match{Skill: s, Score: score, MatchedBy: matchedBy})
	}

	sortMatches(matches)
	return matches, nil
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		pi, pj := matches[i].Skill.Triggers.Priority, matches[j].Skill.Triggers.Priority
		if pi != pj {
			return pi > pj
		}
		return matches[i].Skill.Name < matches[j].Skill.Name
	})
}

// tokenize collects the distinct word tokens of the lowered prompt,
// capped at MaxTokenCount.
func tokenize(promptLower string) map[string]bool {
	tokens := make(map[string]bool)
	wordRuns(promptLower, func(tok string) bool {
		tokens[tok] = true
		return len(tokens) < MaxTokenCount
	})
	return tokens
}

// matchKeywords returns the skill's keywords present in the prompt.
// Single-token keywords check the token set; phrases run their compiled
// word-boundary matcher against the lowered prompt. Matches keep the
// keyword's original casing.
func matchKeywords(promptLower string, tokens map[string]bool, s *Skill) []string {
	if promptLower == "" || len(s.Triggers.Keywords) == 0 {
		return nil
	}
	var matched []string
	for _, kw := range s.Triggers.Keywords {
		lower := strings.ToLower(kw)
		if re, ok := s.phrases[lower]; ok {
			if re.MatchString(promptLower) {
				matched = append(matched, kw)
			}
		} else if tokens[lower] {
			matched = append(matched, kw)
		}
	}
	return matched
}

// matchPatterns returns the trigger regexes that match the prompt.
// Unusable patterns are skipped and timeouts are logged without failing
// the match.
func (m *Matcher) matchPatterns(prompt string, patterns []string) []string {
	if prompt == "" || len(patterns) == 0 {
		return nil
	}
	var matched []string
	for _, pat := range patterns {
		re := m.repo.patterns.get(pat)
		if re == nil {
			continue
		}
		ok, err := re.MatchString(prompt)
		if err != nil {
			if strings.Contains(err.Error(), "timeout") {
				m.repo.log.Warn("Regex timeout in skill trigger", "pattern", truncateChars(pat, 80))
			} else {
				m.repo.log.Warn("Regex match failed in skill trigger", "pattern", truncateChars(pat, 80), "error", err)
			}
			continue
		}
		if ok {
			matched = append(matched, pat)
		}
	}
	return matched
}

// matchFiles returns the glob patterns that match at least one file in
// the normalized, lowercased file context. Globs use shell-style matching
// where * crosses path separators.
func matchFiles(filesLower []string, globs []string) []string {
	if len(filesLower) == 0 || len(globs) == 0 {
		return nil
	}
	var matched []string
	for _, g := range globs {
		norm := strings.ToLower(normalizeMatchPath(g))
		for _, f := range filesLower {
			if fnmatch.Match(norm, f, 0) {
				matched = append(matched, g)
				break
			}
		}
	}
	return matched
}

// normalizeFileContext caps, trims, and normalizes the query's file
// paths. Absolute paths are rewritten relative to root when possible.
func normalizeFileContext(files []string, root string) []string {
	if len(files) > MaxFileContext {
		files = files[:MaxFileContext]
	}
	var out []string
	for _, f := range files {
		s := strings.TrimSpace(f)
		if s == "" {
			continue
		}
		if root != "" && filepath.IsAbs(s) {
			if rel, err := filepath.Rel(root, s); err == nil {
				s = rel
			}
		}
		s = normalizeMatchPath(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalizeMatchPath rewrites separators to forward slashes and strips
// ./ prefixes and a single leading slash so globs compare consistently.
func normalizeMatchPath(p string) string {
	s := strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	s = strings.TrimPrefix(s, "/")
	return s
}
