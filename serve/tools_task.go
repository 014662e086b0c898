package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/task"
	"github.com/mark3labs/mcp-go/mcp"
)

// readTaskJSON loads a task.json into a generic map. Parse and read
// failures degrade to an empty map so listings never fail on one
// malformed task.
func readTaskJSON(dir string) map[string]any {
	data, err := os.ReadFile(filepath.Join(dir, trellis.FileTask))
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// currentTaskTool reports the active task with its parsed task.json.
type currentTaskTool struct {
	s *Server
}

func (t currentTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("get_current_task",
		mcp.WithDescription("Get current task information including task.json content and task directory path"),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t currentTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	taskDir := trellis.CurrentTask(root)
	if taskDir == "" {
		return mcp.NewToolResultText("No current task set."), nil
	}

	full := filepath.Join(root, filepath.FromSlash(taskDir))
	out := struct {
		TaskDir  string         `json:"task_dir"`
		TaskJSON map[string]any `json:"task_json"`
		FullPath string         `json:"full_path"`
	}{
		TaskDir:  taskDir,
		TaskJSON: readTaskJSON(full),
		FullPath: full,
	}
	return jsonText(out)
}

// setCurrentTaskTool records a task directory as the active task.
type setCurrentTaskTool struct {
	s *Server
}

func (t setCurrentTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("set_current_task",
		mcp.WithDescription("Set the current task by writing to .trellis/.current-task"),
		mcp.WithString("task_path",
			mcp.Required(),
			mcp.Description("Relative path to task directory (e.g., .trellis/workspace/admin/tasks/01-31-feature)"),
		),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t setCurrentTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskPath, err := req.RequireString("task_path")
	if err != nil || taskPath == "" {
		return mcp.NewToolResultText("Error: task_path is required"), nil
	}
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	target := taskPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, filepath.FromSlash(taskPath))
	}
	if _, err := os.Stat(target); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error: Task directory not found: %s", taskPath)), nil
	}
	if _, err := task.Start(root, taskPath); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error setting current task: %v", err)), nil
	}
	return mcp.NewToolResultText("Current task set to: " + taskPath), nil
}

// updatePhaseTool rewrites current_phase in the active task's task.json.
type updatePhaseTool struct {
	s *Server
}

func (t updatePhaseTool) Definition() mcp.Tool {
	return mcp.NewTool("update_phase",
		mcp.WithDescription("Update current_phase in task.json"),
		mcp.WithNumber("phase",
			mcp.Required(),
			mcp.Description("New phase number"),
		),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t updatePhaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phase, err := req.RequireInt("phase")
	if err != nil {
		return mcp.NewToolResultText("Error: phase is required"), nil
	}
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	taskDir := trellis.CurrentTask(root)
	if taskDir == "" {
		return mcp.NewToolResultText("Error: No current task set"), nil
	}
	infoPath := filepath.Join(root, filepath.FromSlash(taskDir), trellis.FileTask)
	if _, err := os.Stat(infoPath); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error: task.json not found at %s", infoPath)), nil
	}
	if err := task.UpdatePhase(root, taskDir, phase); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error updating phase: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Phase updated to: %d", phase)), nil
}

// listTasksTool enumerates tasks across every developer workspace plus
// the shared .trellis/tasks directory.
type listTasksTool struct {
	s *Server
}

type listedTask struct {
	Name     string         `json:"name"`
	Path     string         `json:"path"`
	TaskJSON map[string]any `json:"task_json,omitempty"`
}

func (t listTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks in the workspace"),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t listTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	tasks := []listedTask{}
	wsRoot := filepath.Join(trellis.WorkflowDir(root), trellis.DirWorkspace)
	devs, _ := os.ReadDir(wsRoot)
	for _, dev := range devs {
		if !dev.IsDir() {
			continue
		}
		tasksDir := filepath.Join(wsRoot, dev.Name(), trellis.DirTasks)
		entries, _ := os.ReadDir(tasksDir)
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			rel := trellis.DirWorkflow + "/" + trellis.DirWorkspace + "/" + dev.Name() + "/" + trellis.DirTasks + "/" + e.Name()
			tasks = append(tasks, listedTask{
				Name:     e.Name(),
				Path:     rel,
				TaskJSON: readTaskJSON(filepath.Join(tasksDir, e.Name())),
			})
		}
	}

	rootTasks := trellis.TasksDir(root)
	entries, _ := os.ReadDir(rootTasks)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == trellis.DirArchive {
			continue
		}
		tasks = append(tasks, listedTask{
			Name:     e.Name(),
			Path:     trellis.DirWorkflow + "/" + trellis.DirTasks + "/" + e.Name(),
			TaskJSON: readTaskJSON(filepath.Join(rootTasks, e.Name())),
		})
	}

	out := struct {
		Developer   string       `json:"developer"`
		CurrentTask string       `json:"current_task"`
		Tasks       []listedTask `json:"tasks"`
	}{
		Developer:   trellis.DeveloperName(root),
		CurrentTask: trellis.CurrentTask(root),
		Tasks:       tasks,
	}
	return jsonText(out)
}

// createTaskTool scaffolds a workspace task and makes it current.
type createTaskTool struct {
	s *Server
}

func (t createTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task directory with task.json"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name/slug"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title/description"),
		),
		mcp.WithString("dev_type",
			mcp.Description("Developer type for context seeding"),
			mcp.Enum(task.DevTypes...),
		),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t createTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	title := req.GetString("title", "")
	if name == "" || title == "" {
		return mcp.NewToolResultText("Error: name and title are required"), nil
	}
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	devType := req.GetString("dev_type", "fullstack")
	rel, err := task.CreateWorkspace(root, name, title, devType)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error creating task: %v", err)), nil
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	return mcp.NewToolResultText(fmt.Sprintf("Task created: %s\n\nEdit %s/prd.md to add requirements.", rel, full)), nil
}
