package skills

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/dlclark/regexp2"
)

// patternCache holds compiled trigger regexes with LRU eviction. Patterns
// that fail to compile or exceed MaxPatternLength are cached as nil so
// each bad pattern is logged once rather than on every match call.
type patternCache struct {
	mu      sync.Mutex
	entries map[string]*patternEntry
	order   *list.List // front is least recently used
	limit   int
	log     *slog.Logger
}

type patternEntry struct {
	re *regexp2.Regexp // nil for patterns known to be unusable
	el *list.Element
}

func newPatternCache(limit int, log *slog.Logger) *patternCache {
	return &patternCache{
		entries: make(map[string]*patternEntry),
		order:   list.New(),
		limit:   limit,
		log:     log,
	}
}

// get returns the compiled, timeout-guarded regex for pattern, compiling
// and caching it on first use. It returns nil for unusable patterns.
func (c *patternCache) get(pattern string) *regexp2.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[pattern]; ok {
		c.order.MoveToBack(e.el)
		return e.re
	}

	if len(pattern) > MaxPatternLength {
		c.log.Warn("Regex pattern too long, skipping", "pattern", truncateChars(pattern, 80))
		c.insert(pattern, nil)
		return nil
	}

	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		c.log.Warn("Invalid regex pattern in skill trigger", "pattern", truncateChars(pattern, 80), "error", err)
		c.insert(pattern, nil)
		return nil
	}
	re.MatchTimeout = RegexTimeout

	c.insert(pattern, re)
	return re
}

// insert must be called with c.mu held.
func (c *patternCache) insert(pattern string, re *regexp2.Regexp) {
	el := c.order.PushBack(pattern)
	c.entries[pattern] = &patternEntry{re: re, el: el}
	for len(c.entries) > c.limit {
		c.evictOldest()
	}
}

// prune drops every cached pattern not in used, then trims the cache back
// under its size limit. Called after a reload so compiled regexes only
// survive for currently-loaded skills.
func (c *patternCache) prune(used map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		pattern := el.Value.(string)
		if !used[pattern] {
			c.order.Remove(el)
			delete(c.entries, pattern)
		}
	}
	for len(c.entries) > c.limit {
		c.evictOldest()
	}
}

// evictOldest must be called with c.mu held.
func (c *patternCache) evictOldest() {
	el := c.order.Front()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.entries, el.Value.(string))
}

// size reports the number of cached patterns.
func (c *patternCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
