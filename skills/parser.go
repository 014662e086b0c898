package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// descriptionStopwords are dropped when deriving keywords from a skill
// description.
var descriptionStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"based": true, "be": true, "by": true, "can": true, "do": true,
	"does": true, "for": true, "from": true, "how": true, "i": true,
	"if": true, "in": true, "into": true, "is": true, "it": true,
	"like": true, "need": true, "of": true, "on": true, "or": true,
	"should": true, "that": true, "the": true, "then": true, "this": true,
	"to": true, "used": true, "use": true, "via": true, "we": true,
	"what": true, "when": true, "where": true, "with": true,
}

const maxDescriptionKeywords = 25

// parseSkillFile reads and parses one SKILL.md file. It returns nil when
// the file should be skipped: oversized or unreadable files, missing or
// unterminated front matter, and malformed YAML all disqualify a skill
// rather than failing the whole scan.
func parseSkillFile(path string, log *slog.Logger) *Skill {
	if info, err := os.Stat(path); err == nil && info.Size() > MaxSkillFileBytes {
		log.Warn("Skill file too large, skipping", "path", path, "size", info.Size())
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Failed reading skill file", "path", path, "error", err)
		return nil
	}

	frontmatter, body, ok := splitFrontmatter(string(data))
	if !ok {
		// Malformed or missing front matter disqualifies the file.
		return nil
	}

	var doc any
	if err := yaml.Unmarshal([]byte(frontmatter), &doc); err != nil {
		log.Warn("Malformed YAML in skill file", "path", path, "error", err)
		return nil
	}
	fm, ok := doc.(map[string]any)
	if !ok {
		if doc != nil {
			// Front matter that is not a mapping is not a skill.
			return nil
		}
		fm = map[string]any{}
	}

	description := falsyToEmpty(fm["description"])

	trigVal, present := fm["triggers"]
	hasTriggers := present && trigVal != nil
	trig, _ := trigVal.(map[string]any)
	if trig == nil {
		trig = map[string]any{}
	}

	var alwaysVal any
	if v, ok := trig["always"]; ok {
		alwaysVal = v
	} else {
		alwaysVal = fm["alwaysApply"]
	}
	always := truthy(alwaysVal)

	priority := 50
	if v, ok := trig["priority"]; ok {
		if n, ok := coerceInt(v); ok {
			priority = n
		}
	}
	if priority < 0 {
		priority = 0
	}
	if priority > 100 {
		priority = 100
	}

	triggers := Triggers{
		Keywords: cleanList(stringList(trig["keywords"]), MaxKeywordsPerSkill),
		Patterns: cleanList(stringList(trig["patterns"]), MaxPatternsPerSkill),
		Files:    cleanList(stringList(trig["files"]), MaxFilePatternsPerSkill),
		Always:   always,
		Priority: priority,
	}

	// Skills without a triggers block fall back to keywords derived from
	// the description.
	if !hasTriggers {
		triggers.Keywords = keywordsFromDescription(description)
	}

	name := strings.TrimSpace(falsyToEmpty(fm["name"]))
	if name == "" {
		name = nameFromPath(path)
	}

	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}

	s := &Skill{
		Name:        name,
		Description: description,
		Triggers:    triggers,
		Content:     strings.TrimSpace(body),
		Path:        path,
		ModTime:     modTime,
	}
	s.compilePhrases()
	return s
}

// splitFrontmatter separates the YAML block from the markdown body. ok is
// false when the file does not open with a --- fence or the closing fence
// is missing.
func splitFrontmatter(raw string) (frontmatter, body string, ok bool) {
	lines := strings.SplitAfter(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", false
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return "", "", false
	}
	frontmatter = strings.Join(lines[1:end], "")
	body = strings.TrimLeft(strings.Join(lines[end+1:], ""), "\r\n")
	return frontmatter, body, true
}

// nameFromPath derives a skill name from its file path. A bare SKILL.md
// takes its directory's name; foo.skill.md becomes foo.
func nameFromPath(path string) string {
	base := filepath.Base(path)
	if strings.ToLower(base) == "skill.md" {
		return filepath.Base(filepath.Dir(path))
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(strings.ToLower(stem), ".skill") {
		stem = stem[:len(stem)-len(".skill")]
	}
	return stem
}

// keywordsFromDescription derives trigger keywords for skills that do not
// declare a triggers block. Stopwords, single characters, and bare numbers
// are dropped.
func keywordsFromDescription(description string) []string {
	if description == "" {
		return nil
	}
	var keywords []string
	seen := make(map[string]bool)
	wordRuns(strings.ToLower(description), func(tok string) bool {
		if utf8.RuneCountInString(tok) < 2 || isDigits(tok) ||
			descriptionStopwords[tok] || seen[tok] {
			return true
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		return len(keywords) < maxDescriptionKeywords
	})
	return keywords
}

// compilePhrases prepares word-boundary matchers for keywords that are
// not a single word token. Single-token keywords are checked against the
// prompt token set instead.
func (s *Skill) compilePhrases() {
	for _, kw := range s.Triggers.Keywords {
		lower := strings.ToLower(kw)
		if isWordToken(lower) {
			continue
		}
		if _, ok := s.phrases[lower]; ok {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(lower) + `\b`)
		if err != nil {
			continue
		}
		if s.phrases == nil {
			s.phrases = make(map[string]*regexp.Regexp)
		}
		s.phrases[lower] = re
	}
}

// stringList coerces a front matter value to a list of strings. Scalars
// become a single-element list and non-string items are stringified.
func stringList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(v)}
	}
}

// cleanList trims entries, drops empties and exact duplicates, and caps
// the result at limit items.
func cleanList(values []string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// falsyToEmpty renders a front matter value as a string, treating nil and
// other empty-ish values as "".
func falsyToEmpty(v any) string {
	if !truthy(v) {
		return ""
	}
	return stringify(v)
}

// truthy applies YAML-value truthiness: nil, false, zero numbers, and
// empty strings, lists, and maps are all false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case uint64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// coerceInt converts ints, floats, and numeric strings. Floats truncate
// toward zero.
func coerceInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case uint64:
		return int(val), true
	case float64:
		return int(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// wordRuns calls fn for each maximal run of word characters in s, in
// order. fn returning false stops the scan.
func wordRuns(s string, fn func(string) bool) {
	start := -1
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if !fn(s[start:i]) {
				return
			}
			start = -1
		}
	}
	if start >= 0 {
		fn(s[start:])
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isWordToken reports whether s is a single word token with no spaces or
// punctuation.
func isWordToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// truncateChars caps s at limit characters, counting runes rather than
// bytes.
func truncateChars(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
