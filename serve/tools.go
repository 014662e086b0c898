package serve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/everydev1618/trellis"
	"github.com/mark3labs/mcp-go/mcp"
)

// missingRootHelp is returned when no .trellis tree is reachable. It is
// guidance for the calling agent, not a protocol error.
const missingRootHelp = "Error: Could not find .trellis directory.\n\n" +
	"Searched: CWD=%s\n\n" +
	"Solutions:\n" +
	"1. Pass project_root parameter: get_agent_context(agent_type=\"...\", project_root=\"/path/to/project\")\n" +
	"2. Set env: TRELLIS_PROJECT_ROOT=/path/to/project\n" +
	"3. Run from a Trellis-initialized project directory"

// resolveRoot locates the project root for a tool call, honoring the
// optional project_root argument. The second return is non-nil when no
// root was found and carries the guidance answer.
func resolveRoot(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	root, err := trellis.FindRoot(req.GetString("project_root", ""))
	if err != nil {
		cwd, _ := os.Getwd()
		return "", mcp.NewToolResultText(fmt.Sprintf(missingRootHelp, cwd))
	}
	return root, nil
}

// fileContent reads the file at rel under root, or returns "" when it
// is missing or unreadable.
func fileContent(root, rel string) string {
	full := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return ""
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return ""
	}
	return string(data)
}

// jsonText marshals v with two-space indentation into a text result.
func jsonText(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
