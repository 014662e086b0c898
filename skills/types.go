// Package skills loads SKILL.md definitions from project and user
// directories and matches them against developer prompts.
//
// A skill file carries YAML front matter followed by markdown
// instructions:
//
//	---
//	name: deploy-checklist
//	description: Pre-flight checks for production deploys
//	triggers:
//	  keywords: [deploy, rollout]
//	  patterns: ['kubectl\s+apply']
//	  files: ["deploy/*.yaml"]
//	  priority: 70
//	---
//	# Deploy Checklist
//	Instructions markdown here...
//
// Matching is scored: every hit starts from the skill's priority (0-100),
// always-on skills add 1000, and each matched file glob, regex pattern,
// and keyword adds 100, 50, and 10 respectively. Results come back sorted
// by score, then priority, then name.
package skills

import (
	"regexp"
	"time"
)

// Safety and performance limits applied while loading and matching.
const (
	// CacheTTL bounds how long a directory scan is trusted.
	CacheTTL = 60 * time.Second

	MaxSkillFilesPerDir     = 500
	MaxSkillsTotal          = 2000
	MaxKeywordsPerSkill     = 100
	MaxPatternsPerSkill     = 50
	MaxFilePatternsPerSkill = 50
	MaxSkillFileBytes       = 1_000_000

	MaxPromptChars      = 20000
	MaxRegexPromptChars = 8000
	MaxFileContext      = 200
	MaxTokenCount       = 5000

	MaxPatternLength    = 512
	MaxCompiledPatterns = 512
	RegexTimeout        = 50 * time.Millisecond
)

// Score contributions per trigger kind.
const (
	scoreAlways  = 1000
	scoreFile    = 100
	scorePattern = 50
	scoreKeyword = 10
)

// Triggers declares when a skill activates.
type Triggers struct {
	// Keywords match whole words or phrases in the prompt.
	Keywords []string

	// Patterns are regular expressions run against the prompt.
	Patterns []string

	// Files are glob patterns matched against the file context.
	Files []string

	// Always includes the skill on every match call.
	Always bool

	// Priority is the base score, clamped to 0-100.
	Priority int
}

// Skill is a parsed SKILL.md definition.
type Skill struct {
	Name        string
	Description string
	Triggers    Triggers
	Content     string
	Path        string
	ModTime     time.Time

	// phrases holds word-boundary matchers for keywords that are not a
	// single word token, keyed by the lowercased keyword.
	phrases map[string]*regexp.Regexp
}

// Match pairs a skill with its relevance score and the triggers that
// fired, formatted as "always", "file:<glob>", "pattern:<regex>", or
// "keyword:<keyword>".
type Match struct {
	Skill     *Skill
	Score     int
	MatchedBy []string
}

// Query is one matching request.
type Query struct {
	// Prompt is the user prompt to match triggers against.
	Prompt string

	// Files lists paths the user is working with, matched against file
	// trigger globs. Absolute paths are rewritten relative to the
	// repository's project root.
	Files []string
}
