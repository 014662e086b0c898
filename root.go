package trellis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known names inside the workflow tree.
const (
	DirWorkflow  = ".trellis"
	DirWorkspace = "workspace"
	DirTasks     = "tasks"
	DirArchive   = "archive"
	DirSpec      = "spec"
	DirSkills    = "skills"

	FileCurrentTask = ".current-task"
	FileDeveloper   = ".developer"
	FileTask        = "task.json"
	FileWorkflow    = "workflow.md"
)

// ErrNoRoot reports that no .trellis directory could be located.
var ErrNoRoot = errors.New("no .trellis directory found")

// FindRoot locates the project root containing the .trellis workflow tree.
// It tries the explicit start path first, then the TRELLIS_PROJECT_ROOT and
// CURSOR_WORKSPACE_ROOT environment variables, then walks upward from the
// working directory. A candidate qualifies only if .trellis exists under it.
func FindRoot(start string) (string, error) {
	if start != "" {
		if abs, err := filepath.Abs(start); err == nil && hasWorkflowDir(abs) {
			return abs, nil
		}
	}
	for _, key := range []string{"TRELLIS_PROJECT_ROOT", "CURSOR_WORKSPACE_ROOT"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if abs, err := filepath.Abs(v); err == nil && hasWorkflowDir(abs) {
			return abs, nil
		}
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("find project root: %w", err)
	}
	for {
		if hasWorkflowDir(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}

func hasWorkflowDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, DirWorkflow))
	return err == nil && info.IsDir()
}

// WorkflowDir returns the .trellis directory under root.
func WorkflowDir(root string) string {
	return filepath.Join(root, DirWorkflow)
}

// TasksDir returns the active tasks directory under root.
func TasksDir(root string) string {
	return filepath.Join(root, DirWorkflow, DirTasks)
}

// WorkspaceDir returns the per-developer workspace directory under root.
func WorkspaceDir(root, developer string) string {
	return filepath.Join(root, DirWorkflow, DirWorkspace, developer)
}

// DefaultDBPath returns the default SQLite database path (.trellis/trellis.db).
func DefaultDBPath(root string) string {
	return filepath.Join(root, DirWorkflow, "trellis.db")
}

// DeveloperName reads the developer identity from .trellis/.developer.
// It returns "" when the file is missing or has no name= line.
func DeveloperName(root string) string {
	data, err := os.ReadFile(filepath.Join(root, DirWorkflow, FileDeveloper))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "name="); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

// CurrentTask returns the relative path of the active task recorded in
// .trellis/.current-task, or "" when no task is active.
func CurrentTask(root string) string {
	data, err := os.ReadFile(filepath.Join(root, DirWorkflow, FileCurrentTask))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetCurrentTask records rel as the active task path.
func SetCurrentTask(root, rel string) error {
	marker := filepath.Join(root, DirWorkflow, FileCurrentTask)
	return os.WriteFile(marker, []byte(rel+"\n"), 0o644)
}

// ClearCurrentTask removes the active task marker. A missing marker is not
// an error.
func ClearCurrentTask(root string) error {
	err := os.Remove(filepath.Join(root, DirWorkflow, FileCurrentTask))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
