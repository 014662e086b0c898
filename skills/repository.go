package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/everydev1618/trellis"
)

// skipDirs are pruned from skill directory walks.
var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
}

// Options configure a Repository.
type Options struct {
	// ProjectRoot enables project-level discovery under
	// {root}/.trellis/skills and anchors relative file context paths.
	ProjectRoot string

	// Dirs lists explicit skills directories. When non-empty it replaces
	// directory discovery entirely.
	Dirs []string

	// Logger receives load and match diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// TTL bounds how long a scan result is trusted before directories
	// are rescanned. Defaults to CacheTTL.
	TTL time.Duration
}

// Repository discovers, parses, and caches skill definitions. Loads are
// cheap to repeat: a scan is reused until its TTL expires, the directory
// set changes, or a known skill file's mtime changes.
type Repository struct {
	opts     Options
	log      *slog.Logger
	ttl      time.Duration
	patterns *patternCache

	mu       sync.RWMutex
	byName   map[string]*Skill
	byPath   map[string]*Skill
	lastScan time.Time
	lastDirs []string
}

// NewRepository creates an empty repository. Skills load lazily on first
// use.
func NewRepository(opts Options) *Repository {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = CacheTTL
	}
	return &Repository{
		opts:     opts,
		log:      log,
		ttl:      ttl,
		patterns: newPatternCache(MaxCompiledPatterns, log),
		byName:   make(map[string]*Skill),
		byPath:   make(map[string]*Skill),
	}
}

// Load scans the skills directories, reusing the previous scan when it is
// still fresh. Files whose mtime is unchanged keep their parsed skill;
// name conflicts resolve to the earliest directory in discovery order.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dirs := r.opts.Dirs
	if len(dirs) == 0 {
		dirs = discoverDirs(r.opts.ProjectRoot)
	}

	now := time.Now()
	rescan := now.Sub(r.lastScan) >= r.ttl || !slices.Equal(dirs, r.lastDirs)

	// A fresh scan is still invalidated early when any known skill file
	// changed or vanished.
	if !rescan && len(r.byPath) > 0 {
		for _, s := range r.byPath {
			info, err := os.Stat(s.Path)
			if err != nil || !info.ModTime().Equal(s.ModTime) {
				rescan = true
				break
			}
		}
		if !rescan {
			return nil
		}
	}

	byName := make(map[string]*Skill)
	byPath := make(map[string]*Skill)

scan:
	for _, dir := range dirs {
		for _, path := range collectSkillFiles(dir) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			info, err := os.Stat(path)
			if err != nil {
				continue
			}

			skill := r.byPath[path]
			if skill == nil || !skill.ModTime.Equal(info.ModTime()) {
				skill = parseSkillFile(path, r.log)
			}
			if skill == nil {
				continue
			}

			byPath[path] = skill
			if len(byPath) >= MaxSkillsTotal {
				r.log.Warn("Skill cache capped, additional skills skipped", "limit", MaxSkillsTotal)
				break scan
			}

			// Earlier directory in discovery order wins name conflicts.
			if _, ok := byName[skill.Name]; !ok {
				byName[skill.Name] = skill
			}
		}
	}

	r.byName = byName
	r.byPath = byPath
	r.lastScan = now
	r.lastDirs = dirs

	// Keep compiled regexes only for currently-loaded patterns.
	used := make(map[string]bool)
	for _, s := range byName {
		for _, p := range s.Triggers.Patterns {
			used[p] = true
		}
	}
	r.patterns.prune(used)

	return nil
}

// Get returns a named skill, refreshing the cache first.
func (r *Repository) Get(ctx context.Context, name string) (*Skill, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	s, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("skill not found: %s", name)
	}
	return s, nil
}

// Skills returns all loaded skills sorted by name.
func (r *Repository) Skills(ctx context.Context) ([]*Skill, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*Skill, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Count reports the number of loaded skills without refreshing.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// snapshot hands the current name-keyed skill map to the matcher. The map
// is replaced wholesale on reload, never mutated, so callers may iterate
// without holding the lock.
func (r *Repository) snapshot() map[string]*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName
}

// discoverDirs returns the skills directories in priority order: the
// project tree, then ~/.cursor/skills, then ~/.claude/skills. Missing
// directories are dropped and duplicates collapse after resolving
// symlinks.
func discoverDirs(projectRoot string) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(p string) {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			if abs, absErr := filepath.Abs(p); absErr == nil {
				resolved = abs
			} else {
				resolved = p
			}
		}
		if seen[resolved] {
			return
		}
		if info, err := os.Stat(resolved); err == nil && info.IsDir() {
			seen[resolved] = true
			dirs = append(dirs, resolved)
		}
	}

	if projectRoot != "" {
		add(filepath.Join(projectRoot, trellis.DirWorkflow, trellis.DirSkills))
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".cursor", "skills"))
		add(filepath.Join(home, ".claude", "skills"))
	}
	return dirs
}

// collectSkillFiles walks dir for SKILL.md and *.skill.md files. Vendor
// directories are pruned, entries are visited in sorted order with files
// before subdirectories, and the walk stops at MaxSkillFilesPerDir hits.
// Unreadable directories are skipped.
func collectSkillFiles(dir string) []string {
	base, err := filepath.EvalSymlinks(dir)
	if err != nil {
		base = dir
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return nil
	}

	var files []string
	var walk func(string) bool
	walk = func(d string) bool {
		entries, err := os.ReadDir(d)
		if err != nil {
			return true
		}
		var subdirs []string
		for _, e := range entries {
			if e.IsDir() {
				if !skipDirs[e.Name()] {
					subdirs = append(subdirs, filepath.Join(d, e.Name()))
				}
				continue
			}
			lower := strings.ToLower(e.Name())
			if lower != "skill.md" && !strings.HasSuffix(lower, ".skill.md") {
				continue
			}
			candidate := filepath.Join(d, e.Name())
			if !isWithinDir(baseAbs, candidate) {
				continue
			}
			files = append(files, candidate)
			if len(files) >= MaxSkillFilesPerDir {
				return false
			}
		}
		for _, sd := range subdirs {
			if !walk(sd) {
				return false
			}
		}
		return true
	}
	walk(dir)
	return files
}

// isWithinDir reports whether candidate resolves inside baseAbs, guarding
// against symlinks that escape the skills directory. baseAbs must already
// be resolved and absolute.
func isWithinDir(baseAbs, candidate string) bool {
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return false
	}
	return abs == baseAbs || strings.HasPrefix(abs, baseAbs+string(filepath.Separator))
}
