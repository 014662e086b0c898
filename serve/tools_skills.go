package serve

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/everydev1618/trellis/skills"
	"github.com/mark3labs/mcp-go/mcp"
)

// Result-count bounds applied at the tool boundary; the matcher itself
// always ranks the full skill set.
const (
	defaultMaxResults = 5
	maxMaxResults     = 50
)

// matchedSkill is one match_skills result row.
type matchedSkill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Score       int      `json:"score"`
	MatchedBy   []string `json:"matched_by"`
	Path        string   `json:"path"`
}

type matchSkillsTool struct{ s *Server }

func (t matchSkillsTool) Definition() mcp.Tool {
	return mcp.NewTool("match_skills",
		mcp.WithDescription("Match available skills against a prompt and optional file context. Returns a ranked JSON array of skills with scores and trigger reasons."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("User prompt to match trigger keywords and patterns against"),
		),
		mcp.WithArray("files",
			mcp.Description("File paths being worked on, matched against file-glob triggers"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of skills to return (1-50, default 5)"),
		),
		mcp.WithString("project_root",
			mcp.Description("Optional project root path"),
		),
	)
}

func (t matchSkillsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultText("Error: prompt is required"), nil
	}

	root, missing := resolveRoot(req)
	if missing != nil {
		return missing, nil
	}

	files := req.GetStringSlice("files", nil)
	maxResults := req.GetInt("max_results", defaultMaxResults)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	matches, err := t.s.repos.matcher(root).Match(ctx, skills.Query{Prompt: prompt, Files: files})
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Error matching skills: %v", err)), nil
	}

	record := MatchRecord{
		PromptChars: utf8.RuneCountInString(prompt),
		FileCount:   len(files),
		ResultCount: len(matches),
	}
	if len(matches) > 0 {
		record.TopSkill = matches[0].Skill.Name
		record.TopScore = matches[0].Score
	}
	t.s.recordMatch(record)

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	results := make([]matchedSkill, 0, len(matches))
	for _, m := range matches {
		results = append(results, matchedSkill{
			Name:        m.Skill.Name,
			Description: m.Skill.Description,
			Score:       m.Score,
			MatchedBy:   m.MatchedBy,
			Path:        m.Skill.Path,
		})
	}
	return jsonText(results)
}
