// Package task manages the task directories under .trellis: creation,
// start/finish, listing, archiving, and the per-task context files that
// feed agent prompts.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/everydev1618/trellis"
)

// ErrNotFound reports that no task directory matched a lookup.
var ErrNotFound = errors.New("task not found")

// ErrNoCurrentTask reports that no task is currently active.
var ErrNoCurrentTask = errors.New("no current task set")

// Step is one planned phase in a task's next_action list.
type Step struct {
	Phase  int    `json:"phase"`
	Action string `json:"action"`
}

// Info is the task.json document.
type Info struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	DevType      *string `json:"dev_type"`
	Priority     string  `json:"priority"`
	Creator      string  `json:"creator"`
	Assignee     string  `json:"assignee"`
	CreatedAt    string  `json:"createdAt"`
	CurrentPhase int     `json:"current_phase"`
	NextAction   []Step  `json:"next_action"`
	CompletedAt  string  `json:"completedAt,omitempty"`
}

// defaultPlan is the phase sequence every new task starts with.
func defaultPlan() []Step {
	return []Step{
		{Phase: 1, Action: "implement"},
		{Phase: 2, Action: "check"},
		{Phase: 3, Action: "finish"},
		{Phase: 4, Action: "create-pr"},
	}
}

// New returns the Info a freshly created task carries.
func New(title, slug, creator string) Info {
	return Info{
		ID:           slug,
		Name:         slug,
		Title:        title,
		Status:       "planning",
		Priority:     "P2",
		Creator:      creator,
		Assignee:     creator,
		CreatedAt:    time.Now().Format("2006-01-02"),
		CurrentPhase: 0,
		NextAction:   defaultPlan(),
	}
}

// Slugify lowercases text and collapses every run of characters outside
// [a-z0-9] into a single dash, trimming dashes from both ends.
func Slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// Create makes a new task directory under .trellis/tasks named
// MM-DD-<slug> and writes its task.json. An empty slug is derived from
// the title. It returns the task path relative to root.
func Create(root, title, slug string) (string, error) {
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return "", fmt.Errorf("could not derive slug from title %q", title)
	}

	creator := trellis.DeveloperName(root)
	if creator == "" {
		creator = "default"
	}

	dirName := time.Now().Format("01-02") + "-" + slug
	dir := filepath.Join(trellis.TasksDir(root), dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}

	if err := writeInfo(dir, New(title, slug, creator)); err != nil {
		return "", err
	}
	return trellis.DirWorkflow + "/" + trellis.DirTasks + "/" + dirName, nil
}

// CreateWorkspace makes a task under the developer workspace
// (.trellis/workspace/<dev>/tasks/MM-DD-<slug>), marks it active, seeds
// its context files and a prd.md skeleton, and sets it as the current
// task. It returns the task path relative to root.
func CreateWorkspace(root, name, title, devType string) (string, error) {
	slug := Slugify(name)
	if slug == "" {
		return "", fmt.Errorf("could not derive slug from name %q", name)
	}
	if devType == "" {
		devType = "fullstack"
	}

	developer := trellis.DeveloperName(root)
	if developer == "" {
		developer = "default"
	}

	dirName := time.Now().Format("01-02") + "-" + slug
	dir := filepath.Join(trellis.WorkspaceDir(root, developer), trellis.DirTasks, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}

	info := New(title, slug, developer)
	info.Status = "active"
	info.DevType = &devType
	if err := writeInfo(dir, info); err != nil {
		return "", err
	}

	prd := fmt.Sprintf("# %s\n\n## Requirements\n\n(Describe your requirements here)\n\n## Acceptance Criteria\n\n- [ ] Criteria 1\n- [ ] Criteria 2\n", title)
	if err := os.WriteFile(filepath.Join(dir, "prd.md"), []byte(prd), 0o644); err != nil {
		return "", fmt.Errorf("write prd.md: %w", err)
	}

	rel := strings.Join([]string{trellis.DirWorkflow, trellis.DirWorkspace, developer, trellis.DirTasks, dirName}, "/")
	if _, err := InitContext(root, rel, devType); err != nil {
		return "", err
	}
	if err := trellis.SetCurrentTask(root, rel); err != nil {
		return "", fmt.Errorf("set current task: %w", err)
	}
	return rel, nil
}

// Start records dir as the current task. Absolute paths are stored
// relative to root. It returns the recorded path.
func Start(root, dir string) (string, error) {
	if filepath.IsAbs(dir) {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return "", fmt.Errorf("relativize task path: %w", err)
		}
		dir = rel
	}
	dir = filepath.ToSlash(dir)

	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(dir))); err != nil {
		return "", fmt.Errorf("task directory not found: %s", dir)
	}
	if err := trellis.SetCurrentTask(root, dir); err != nil {
		return "", fmt.Errorf("set current task: %w", err)
	}
	return dir, nil
}

// Current returns the path of the active task relative to root, or
// ErrNoCurrentTask when none is set.
func Current(root string) (string, error) {
	if cur := trellis.CurrentTask(root); cur != "" {
		return cur, nil
	}
	return "", ErrNoCurrentTask
}

// Finish clears the current task marker and returns the path it held,
// or "" when no task was active.
func Finish(root string) (string, error) {
	current := trellis.CurrentTask(root)
	if current == "" {
		return "", nil
	}
	if err := trellis.ClearCurrentTask(root); err != nil {
		return "", fmt.Errorf("clear current task: %w", err)
	}
	return current, nil
}

// Summary is one row of a task listing.
type Summary struct {
	Dir      string // directory name, e.g. 01-31-refactor-api
	Path     string // path relative to root, forward slashes
	Name     string
	Status   string
	Assignee string
	Current  bool
}

// List returns the active tasks under .trellis/tasks in lexical order,
// skipping the archive directory. Tasks with a missing or unreadable
// task.json report their directory name as name, status "unknown", and
// assignee "-".
func List(root string) ([]Summary, error) {
	tasksDir := trellis.TasksDir(root)
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tasks dir: %w", err)
	}

	current := trellis.CurrentTask(root)
	var out []Summary
	for _, e := range entries {
		if !e.IsDir() || e.Name() == trellis.DirArchive {
			continue
		}
		s := Summary{
			Dir:      e.Name(),
			Path:     trellis.DirWorkflow + "/" + trellis.DirTasks + "/" + e.Name(),
			Name:     e.Name(),
			Status:   "unknown",
			Assignee: "-",
		}
		if info, err := Read(filepath.Join(tasksDir, e.Name())); err == nil {
			if info.Name != "" {
				s.Name = info.Name
			}
			if info.Status != "" {
				s.Status = info.Status
			}
			if info.Assignee != "" {
				s.Assignee = info.Assignee
			}
		}
		s.Current = s.Path == current
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

// Find locates a task directory name by exact match first, then by
// substring or trailing -<name> match against the active directories.
func Find(root, name string) (string, error) {
	tasksDir := trellis.TasksDir(root)
	if _, err := os.Stat(filepath.Join(tasksDir, name)); err == nil {
		return name, nil
	}

	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == trellis.DirArchive {
			continue
		}
		if strings.Contains(e.Name(), name) || strings.HasSuffix(e.Name(), "-"+name) {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Archive marks the named task completed and moves its directory to
// .trellis/tasks/archive/YYYY-MM, replacing any previous archive of the
// same name. The current-task marker is cleared if it points there. It
// returns the archived path relative to root.
func Archive(root, name string) (string, error) {
	dirName, err := Find(root, name)
	if err != nil {
		return "", err
	}
	tasksDir := trellis.TasksDir(root)
	taskDir := filepath.Join(tasksDir, dirName)

	// Best effort: a malformed task.json still archives.
	if raw, err := readRaw(taskDir); err == nil {
		raw["status"] = "completed"
		raw["completedAt"] = time.Now().Format("2006-01-02")
		writeRaw(taskDir, raw)
	}

	if current := trellis.CurrentTask(root); current != "" && strings.Contains(current, dirName) {
		if err := trellis.ClearCurrentTask(root); err != nil {
			return "", fmt.Errorf("clear current task: %w", err)
		}
	}

	yearMonth := time.Now().Format("2006-01")
	archiveDir := filepath.Join(tasksDir, trellis.DirArchive, yearMonth)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	dest := filepath.Join(archiveDir, dirName)
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("replace archived task: %w", err)
		}
	}
	if err := os.Rename(taskDir, dest); err != nil {
		return "", fmt.Errorf("move task to archive: %w", err)
	}

	rel := strings.Join([]string{trellis.DirWorkflow, trellis.DirTasks, trellis.DirArchive, yearMonth, dirName}, "/")
	return rel, nil
}

// UpdatePhase rewrites current_phase in the task.json of the task at
// dir (relative to root or absolute). Fields this package does not know
// about survive the rewrite.
func UpdatePhase(root, dir string, phase int) error {
	taskDir := resolveDir(root, dir)
	raw, err := readRaw(taskDir)
	if err != nil {
		return err
	}
	raw["current_phase"] = phase
	return writeRaw(taskDir, raw)
}

// Read loads the task.json inside dir (an absolute task directory).
func Read(dir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, trellis.FileTask))
	if err != nil {
		return Info{}, fmt.Errorf("read task.json: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("parse task.json: %w", err)
	}
	return info, nil
}

// resolveDir joins a relative task path onto root; absolute paths pass
// through unchanged.
func resolveDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, filepath.FromSlash(dir))
}

func writeInfo(dir string, info Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, trellis.FileTask), data, 0o644); err != nil {
		return fmt.Errorf("write task.json: %w", err)
	}
	return nil
}

// readRaw loads task.json as a generic document so rewrites preserve
// unknown fields.
func readRaw(dir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, trellis.FileTask))
	if err != nil {
		return nil, fmt.Errorf("read task.json: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse task.json: %w", err)
	}
	return raw, nil
}

func writeRaw(dir string, raw map[string]any) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, trellis.FileTask), data, 0o644); err != nil {
		return fmt.Errorf("write task.json: %w", err)
	}
	return nil
}
