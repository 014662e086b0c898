package serve

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/everydev1618/trellis"
	"github.com/mark3labs/mcp-go/mcp"
)

// newTestProject builds a minimal initialized project tree.
func newTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	dirs := []string{
		".trellis/tasks/01-10-fix-login",
		".trellis/workspace/casey/tasks/01-12-add-api",
		".trellis/spec/frontend",
		".trellis/spec/backend",
		".trellis/skills/api-conventions",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}

	files := map[string]string{
		".trellis/.developer":                                    "name=casey\n",
		".trellis/workflow.md":                                   "# Workflow\n\n1. Plan\n2. Implement\n",
		".trellis/spec/frontend/index.md":                        "# Frontend Specs\n",
		".trellis/spec/backend/index.md":                         "# Backend Specs\n",
		".trellis/tasks/01-10-fix-login/task.json":               `{"name": "Fix login", "status": "active"}`,
		".trellis/workspace/casey/tasks/01-12-add-api/task.json": `{"name": "Add API", "status": "active"}`,
		".trellis/skills/api-conventions/SKILL.md":               "---\nname: api-conventions\ndescription: REST API conventions\ntriggers:\n  keywords: [endpoint, rest]\n---\nUse plural nouns for collections.\n",
	}
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return root
}

func newTestServer(root string) *Server {
	return New(Config{SkillsDirs: []string{filepath.Join(root, trellis.DirWorkflow, trellis.DirSkills)}})
}

func callReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("Handler returned error: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("Expected text content, got %#v", res)
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestResolveRootMissing(t *testing.T) {
	t.Setenv("TRELLIS_PROJECT_ROOT", "")
	t.Setenv("CURSOR_WORKSPACE_ROOT", "")
	t.Chdir(t.TempDir())

	s := newTestServer(t.TempDir())
	res, err := workflowTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": t.TempDir(),
	}))
	got := resultText(t, res, err)
	if !strings.Contains(got, "Error: Could not find .trellis directory.") {
		t.Errorf("Expected missing-root guidance, got %q", got)
	}
	if !strings.Contains(got, "TRELLIS_PROJECT_ROOT") {
		t.Errorf("Expected env hint in guidance, got %q", got)
	}
}

func TestGetCurrentTaskNone(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := currentTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)
	if got != "No current task set." {
		t.Errorf("Expected no-task message, got %q", got)
	}
}

func TestGetCurrentTask(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	taskDir := ".trellis/workspace/casey/tasks/01-12-add-api"
	if err := trellis.SetCurrentTask(root, taskDir); err != nil {
		t.Fatalf("Failed to set current task: %v", err)
	}

	res, err := currentTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)

	var out struct {
		TaskDir  string         `json:"task_dir"`
		TaskJSON map[string]any `json:"task_json"`
		FullPath string         `json:"full_path"`
	}
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if out.TaskDir != taskDir {
		t.Errorf("Expected task_dir %q, got %q", taskDir, out.TaskDir)
	}
	if out.TaskJSON["name"] != "Add API" {
		t.Errorf("Expected task_json name, got %v", out.TaskJSON)
	}
	if out.FullPath != filepath.Join(root, filepath.FromSlash(taskDir)) {
		t.Errorf("Expected absolute full_path, got %q", out.FullPath)
	}
}

func TestSetCurrentTask(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	taskDir := ".trellis/workspace/casey/tasks/01-12-add-api"

	res, err := setCurrentTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"task_path":    taskDir,
	}))
	got := resultText(t, res, err)
	if got != "Current task set to: "+taskDir {
		t.Errorf("Expected confirmation, got %q", got)
	}
	if current := trellis.CurrentTask(root); current != taskDir {
		t.Errorf("Expected current task %q, got %q", taskDir, current)
	}
}

func TestSetCurrentTaskMissingDir(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := setCurrentTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"task_path":    ".trellis/tasks/nope",
	}))
	got := resultText(t, res, err)
	if got != "Error: Task directory not found: .trellis/tasks/nope" {
		t.Errorf("Expected not-found error, got %q", got)
	}
	if current := trellis.CurrentTask(root); current != "" {
		t.Errorf("Expected no current task, got %q", current)
	}
}

func TestSetCurrentTaskMissingArg(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := setCurrentTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)
	if got != "Error: task_path is required" {
		t.Errorf("Expected required-arg error, got %q", got)
	}
}

func TestUpdatePhase(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	taskDir := ".trellis/tasks/01-10-fix-login"
	if err := trellis.SetCurrentTask(root, taskDir); err != nil {
		t.Fatalf("Failed to set current task: %v", err)
	}

	res, err := updatePhaseTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"phase":        2,
	}))
	got := resultText(t, res, err)
	if got != "Phase updated to: 2" {
		t.Errorf("Expected confirmation, got %q", got)
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(taskDir), "task.json"))
	if err != nil {
		t.Fatalf("Failed to read task.json: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("Failed to parse task.json: %v", err)
	}
	if info["current_phase"] != float64(2) {
		t.Errorf("Expected current_phase 2, got %v", info["current_phase"])
	}
}

func TestUpdatePhaseNoTask(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := updatePhaseTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"phase":        1,
	}))
	got := resultText(t, res, err)
	if got != "Error: No current task set" {
		t.Errorf("Expected no-task error, got %q", got)
	}
}

func TestListTasks(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	archived := filepath.Join(root, ".trellis", "tasks", "archive", "01-01-old")
	if err := os.MkdirAll(archived, 0o755); err != nil {
		t.Fatalf("Failed to create archive task: %v", err)
	}

	res, err := listTasksTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)

	var out struct {
		Developer   string `json:"developer"`
		CurrentTask string `json:"current_task"`
		Tasks       []struct {
			Name     string         `json:"name"`
			Path     string         `json:"path"`
			TaskJSON map[string]any `json:"task_json"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	if out.Developer != "casey" {
		t.Errorf("Expected developer casey, got %q", out.Developer)
	}
	if out.CurrentTask != "" {
		t.Errorf("Expected empty current_task, got %q", out.CurrentTask)
	}
	if len(out.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d: %v", len(out.Tasks), out.Tasks)
	}
	if out.Tasks[0].Path != ".trellis/workspace/casey/tasks/01-12-add-api" {
		t.Errorf("Expected workspace task first, got %q", out.Tasks[0].Path)
	}
	if out.Tasks[0].TaskJSON["name"] != "Add API" {
		t.Errorf("Expected task_json attached, got %v", out.Tasks[0].TaskJSON)
	}
	if out.Tasks[1].Path != ".trellis/tasks/01-10-fix-login" {
		t.Errorf("Expected root task second, got %q", out.Tasks[1].Path)
	}
	for _, task := range out.Tasks {
		if strings.Contains(task.Path, "archive") {
			t.Errorf("Expected archive excluded, got %q", task.Path)
		}
	}
}

func TestCreateTask(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := createTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"name":         "cache layer",
		"title":        "Add cache layer",
		"dev_type":     "backend",
	}))
	got := resultText(t, res, err)
	if !strings.HasPrefix(got, "Task created: .trellis/workspace/casey/tasks/") {
		t.Fatalf("Expected creation confirmation, got %q", got)
	}
	if !strings.Contains(got, "-cache-layer") {
		t.Errorf("Expected slug in path, got %q", got)
	}
	if !strings.Contains(got, "/prd.md to add requirements.") {
		t.Errorf("Expected prd.md hint, got %q", got)
	}

	current := trellis.CurrentTask(root)
	if current == "" {
		t.Fatal("Expected new task to become current")
	}
	taskRoot := filepath.Join(root, filepath.FromSlash(current))
	for _, name := range []string{"task.json", "prd.md"} {
		if _, err := os.Stat(filepath.Join(taskRoot, name)); err != nil {
			t.Errorf("Expected %s in new task dir: %v", name, err)
		}
	}
}

func TestCreateTaskMissingArgs(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := createTaskTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"name":         "cache-layer",
	}))
	got := resultText(t, res, err)
	if got != "Error: name and title are required" {
		t.Errorf("Expected required-args error, got %q", got)
	}
}

func TestGetAgentContextInvalidType(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "deploy",
	}))
	got := resultText(t, res, err)
	want := "Error: Invalid agent_type. Must be one of: implement, check, debug, research, plan"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestGetAgentContextRequiresTask(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "implement",
	}))
	got := resultText(t, res, err)
	if !strings.HasPrefix(got, "Error: No current task set.") {
		t.Fatalf("Expected no-task error, got %q", got)
	}
	if !strings.Contains(got, "For implement agent, a task must be active.") {
		t.Errorf("Expected agent named in error, got %q", got)
	}
}

func TestGetAgentContextMissingTaskDir(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	if err := trellis.SetCurrentTask(root, ".trellis/tasks/gone"); err != nil {
		t.Fatalf("Failed to set current task: %v", err)
	}

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "implement",
	}))
	got := resultText(t, res, err)
	if got != "Error: Task directory not found: .trellis/tasks/gone" {
		t.Errorf("Expected not-found error, got %q", got)
	}
}

func TestGetAgentContextImplement(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	taskDir := ".trellis/workspace/casey/tasks/01-12-add-api"
	prd := filepath.Join(root, filepath.FromSlash(taskDir), "prd.md")
	if err := os.WriteFile(prd, []byte("Build the API\n"), 0o644); err != nil {
		t.Fatalf("Failed to write prd.md: %v", err)
	}
	if err := trellis.SetCurrentTask(root, taskDir); err != nil {
		t.Fatalf("Failed to set current task: %v", err)
	}

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "implement",
	}))
	got := resultText(t, res, err)
	if !strings.HasPrefix(got, "# Implement Agent Context") {
		t.Fatalf("Expected implement envelope, got %q", got)
	}
	if !strings.Contains(got, taskDir+"/prd.md (Requirements) ===") {
		t.Errorf("Expected prd block, got %q", got)
	}
	if !strings.Contains(got, "Build the API") {
		t.Errorf("Expected prd content, got %q", got)
	}
}

func TestGetAgentContextFinishFlag(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	taskDir := ".trellis/workspace/casey/tasks/01-12-add-api"
	prd := filepath.Join(root, filepath.FromSlash(taskDir), "prd.md")
	if err := os.WriteFile(prd, []byte("Build the API\n"), 0o644); err != nil {
		t.Fatalf("Failed to write prd.md: %v", err)
	}
	if err := trellis.SetCurrentTask(root, taskDir); err != nil {
		t.Fatalf("Failed to set current task: %v", err)
	}

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "check",
		"is_finish":    true,
	}))
	got := resultText(t, res, err)
	if !strings.HasPrefix(got, "# Finish Phase Context") {
		t.Fatalf("Expected finish envelope, got %q", got)
	}
	if !strings.Contains(got, "FINAL lightweight check") {
		t.Errorf("Expected finish intro, got %q", got)
	}
}

func TestGetAgentContextPlanNoTask(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "plan",
	}))
	got := resultText(t, res, err)
	if !strings.HasPrefix(got, "# Plan Agent Context") {
		t.Fatalf("Expected plan envelope, got %q", got)
	}
	if !strings.Contains(got, "## Planning Guidelines") {
		t.Errorf("Expected planning guidelines, got %q", got)
	}
}

func TestGetAgentContextEmpty(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)
	if err := trellis.SetCurrentTask(root, ".trellis/tasks/01-10-fix-login"); err != nil {
		t.Fatalf("Failed to set current task: %v", err)
	}

	res, err := agentContextTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"agent_type":   "debug",
	}))
	got := resultText(t, res, err)
	if !strings.Contains(got, "(No specific context files found. Check task directory for *.jsonl files.)") {
		t.Errorf("Expected empty-context placeholder, got %q", got)
	}
}

func TestGetWorkflow(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := workflowTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)
	if got != "# Workflow\n\n1. Plan\n2. Implement\n" {
		t.Errorf("Expected workflow.md content, got %q", got)
	}
}

func TestGetWorkflowMissing(t *testing.T) {
	root := newTestProject(t)
	if err := os.Remove(filepath.Join(root, ".trellis", "workflow.md")); err != nil {
		t.Fatalf("Failed to remove workflow.md: %v", err)
	}
	s := newTestServer(root)

	res, err := workflowTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)
	if got != "workflow.md not found" {
		t.Errorf("Expected not-found message, got %q", got)
	}
}

func TestGetSpecIndexAll(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := specIndexTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)
	if !strings.Contains(got, "=== .trellis/spec/frontend/index.md ===\n# Frontend Specs") {
		t.Errorf("Expected frontend block, got %q", got)
	}
	if !strings.Contains(got, "=== .trellis/spec/backend/index.md ===\n# Backend Specs") {
		t.Errorf("Expected backend block, got %q", got)
	}
}

func TestGetSpecIndexSingle(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := specIndexTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"spec_type":    "backend",
	}))
	got := resultText(t, res, err)
	if !strings.Contains(got, "=== .trellis/spec/backend/index.md ===") {
		t.Errorf("Expected backend block, got %q", got)
	}
	if strings.Contains(got, "frontend") {
		t.Errorf("Expected only backend block, got %q", got)
	}
}

func TestGetSpecIndexMissing(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := specIndexTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"spec_type":    "guides",
	}))
	got := resultText(t, res, err)
	if got != "No spec index found for: guides" {
		t.Errorf("Expected not-found message, got %q", got)
	}
}

func TestMatchSkills(t *testing.T) {
	root := newTestProject(t)
	second := filepath.Join(root, ".trellis", "skills", "testing-style")
	if err := os.MkdirAll(second, 0o755); err != nil {
		t.Fatalf("Failed to create skill dir: %v", err)
	}
	skill := "---\nname: testing-style\ndescription: Test layout\ntriggers:\n  keywords: [endpoint]\n---\nTable tests.\n"
	if err := os.WriteFile(filepath.Join(second, "SKILL.md"), []byte(skill), 0o644); err != nil {
		t.Fatalf("Failed to write skill: %v", err)
	}
	s := newTestServer(root)

	res, err := matchSkillsTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"prompt":       "Which rest endpoint layout should the new handler use?",
	}))
	got := resultText(t, res, err)

	var results []matchedSkill
	if err := json.Unmarshal([]byte(got), &results); err != nil {
		t.Fatalf("Failed to parse results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 matches, got %d: %s", len(results), got)
	}
	if results[0].Name != "api-conventions" {
		t.Errorf("Expected api-conventions ranked first, got %q", results[0].Name)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Expected descending scores, got %d then %d", results[0].Score, results[1].Score)
	}
	if len(results[0].MatchedBy) == 0 {
		t.Errorf("Expected matched_by reasons, got %v", results[0])
	}

	res, err = matchSkillsTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
		"prompt":       "Which rest endpoint layout should the new handler use?",
		"max_results":  1,
	}))
	got = resultText(t, res, err)
	results = nil
	if err := json.Unmarshal([]byte(got), &results); err != nil {
		t.Fatalf("Failed to parse results: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected max_results to cap output, got %d", len(results))
	}
}

func TestMatchSkillsMissingPrompt(t *testing.T) {
	root := newTestProject(t)
	s := newTestServer(root)

	res, err := matchSkillsTool{s}.Handle(context.Background(), callReq(map[string]any{
		"project_root": root,
	}))
	got := resultText(t, res, err)
	if got != "Error: prompt is required" {
		t.Errorf("Expected required-arg error, got %q", got)
	}
}
