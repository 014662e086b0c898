package serve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/agentctx"
	"github.com/mark3labs/mcp-go/mcp"
)

// agentContextTool assembles the full prompt for a workflow agent.
type agentContextTool struct {
	s *Server
}

func (t agentContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_agent_context",
		mcp.WithDescription("Get complete context for a specific agent type (implement, check, debug, research, plan). Call this FIRST when starting as a subagent."),
		mcp.WithString("agent_type",
			mcp.Required(),
			mcp.Description("Agent type: implement, check, debug, research, or plan"),
			mcp.Enum(agentctx.All...),
		),
		mcp.WithBoolean("is_finish",
			mcp.Description("For check agent only: if true, use lightweight finish context instead of full check context"),
		),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t agentContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentType, err := req.RequireString("agent_type")
	if err != nil || !agentctx.Valid(agentType) {
		return mcp.NewToolResultText(fmt.Sprintf("Error: Invalid agent_type. Must be one of: %s", strings.Join(agentctx.All, ", "))), nil
	}
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	taskDir := trellis.CurrentTask(root)
	if taskDir == "" && agentctx.RequiresTask(agentType) {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Error: No current task set. Use set_current_task or create_task first.\n\nFor %s agent, a task must be active.", agentType)), nil
	}
	if taskDir != "" {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(taskDir))); err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("Error: Task directory not found: %s", taskDir)), nil
		}
	}

	effective := agentType
	if agentType == agentctx.AgentCheck && req.GetBool("is_finish", false) {
		effective = agentctx.AgentFinish
	}

	contextText := agentctx.Build(root, taskDir, effective)
	if contextText == "" {
		contextText = "(No specific context files found. Check task directory for *.jsonl files.)"
	}
	return mcp.NewToolResultText(agentctx.Prompt(effective, contextText)), nil
}

// workflowTool returns the project workflow document.
type workflowTool struct {
	s *Server
}

func (t workflowTool) Definition() mcp.Tool {
	return mcp.NewTool("get_workflow",
		mcp.WithDescription("Get the project workflow document (.trellis/workflow.md)"),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t workflowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}
	content := fileContent(root, trellis.DirWorkflow+"/"+trellis.FileWorkflow)
	if content == "" {
		return mcp.NewToolResultText("workflow.md not found"), nil
	}
	return mcp.NewToolResultText(content), nil
}

// specIndexTool returns the index files of the spec directories.
type specIndexTool struct {
	s *Server
}

var specTypes = []string{"frontend", "backend", "guides"}

func (t specIndexTool) Definition() mcp.Tool {
	return mcp.NewTool("get_spec_index",
		mcp.WithDescription("Get spec index files (frontend/index.md, backend/index.md, guides/index.md)"),
		mcp.WithString("spec_type",
			mcp.Description("Spec type: frontend, backend, guides, or all"),
			mcp.Enum("frontend", "backend", "guides", "all"),
		),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path. If not provided, searches upward from cwd."),
		),
	)
}

func (t specIndexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, fail := resolveRoot(req)
	if fail != nil {
		return fail, nil
	}

	specType := req.GetString("spec_type", "all")
	selected := specTypes
	if specType != "all" {
		selected = []string{specType}
	}

	var blocks []string
	for _, st := range selected {
		rel := trellis.DirWorkflow + "/" + trellis.DirSpec + "/" + st + "/index.md"
		content := fileContent(root, rel)
		if content == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("=== %s ===\n%s", rel, content))
	}
	if len(blocks) == 0 {
		return mcp.NewToolResultText("No spec index found for: " + specType), nil
	}
	return mcp.NewToolResultText(strings.Join(blocks, "\n\n")), nil
}
