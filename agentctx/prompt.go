package agentctx

import "strings"

// envelope holds the fixed framing wrapped around an agent's context.
type envelope struct {
	title       string
	intro       string
	workflow    []string
	constraints []string
}

var envelopes = map[string]envelope{
	AgentImplement: {
		title: "Implement Agent Context",
		intro: "You are the Implement Agent. Your context has been loaded.",
		workflow: []string{
			"1. **Understand specs** - Read all dev specs above",
			"2. **Understand requirements** - Read prd.md and info.md",
			"3. **Implement feature** - Follow specs and design",
			"4. **Self-check** - Verify code quality",
		},
		constraints: []string{
			"- Do NOT execute git commit",
			"- Follow all dev specs",
			"- Report modified/created files when done",
		},
	},
	AgentCheck: {
		title: "Check Agent Context",
		intro: "You are the Check Agent. Your context has been loaded.",
		workflow: []string{
			"1. **Get changes** - Run `git diff --name-only` and `git diff`",
			"2. **Check against specs** - Verify code follows guidelines",
			"3. **Self-fix** - Fix issues directly, don't just report",
			"4. **Run verification** - Run lint and typecheck",
		},
		constraints: []string{
			"- Fix issues yourself",
			"- Execute complete checklist",
			"- Pay attention to impact analysis",
		},
	},
	AgentDebug: {
		title: "Debug Agent Context",
		intro: "You are the Debug Agent. Your context has been loaded.",
		workflow: []string{
			"1. **Understand issues** - Analyze reported issues",
			"2. **Locate code** - Find positions needing fixes",
			"3. **Fix against specs** - Fix following dev specs",
			"4. **Verify fixes** - Run typecheck",
		},
		constraints: []string{
			"- Do NOT execute git commit",
			"- Run typecheck after each fix",
			"- Report which issues were fixed",
		},
	},
	AgentResearch: {
		title: "Research Agent Context",
		intro: "You are the Research Agent. Your context has been loaded.",
		workflow: []string{
			"1. **Understand query** - Determine search type and scope",
			"2. **Plan search** - List search steps",
			"3. **Execute search** - Run searches in parallel",
			"4. **Organize results** - Output structured report",
		},
		constraints: []string{
			"- Only describe what exists",
			"- Do not suggest improvements unless asked",
			"- Do not modify any files",
		},
	},
	AgentPlan: {
		title: "Plan Agent Context",
		intro: "You are the Plan Agent. Your context has been loaded.",
		workflow: []string{
			"1. **Understand requirement** - Analyze what user wants",
			"2. **Check existing code** - Search for similar functionality",
			"3. **Create task** - Use the create_task tool to create the task directory",
			"4. **Write prd.md** - Document requirements clearly",
			"5. **Configure context** - Set up jsonl files for agents",
		},
		constraints: []string{
			"- Do NOT implement code directly",
			"- Create clear, actionable requirements",
			"- Break complex features into phases",
			"- If requirement is unclear, create REJECTED.md and explain",
		},
	},
	AgentFinish: {
		title: "Finish Phase Context",
		intro: "This is the FINAL lightweight check before creating PR.",
		workflow: []string{
			"1. **Verify requirements** - Check prd.md requirements are all met",
			"2. **Quick sanity check** - No obvious issues",
			"3. **Ready for PR** - Confirm code is ready for review",
		},
		constraints: []string{
			"- This is a LIGHTWEIGHT check, not full code review",
			"- Focus on requirement completion, not code style",
			"- Output: Ready for PR / Not ready (with reasons)",
		},
	},
}

// Prompt wraps context in the fixed envelope for agentType. Unknown
// agent types get a bare header.
func Prompt(agentType, context string) string {
	env, ok := envelopes[agentType]
	if !ok {
		return "# Agent Context\n\n" + context
	}

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(env.title)
	b.WriteString("\n\n")
	b.WriteString(env.intro)
	b.WriteString("\n\n## Your Context\n\n")
	b.WriteString(context)
	b.WriteString("\n\n---\n\n## Workflow\n\n")
	b.WriteString(strings.Join(env.workflow, "\n"))
	b.WriteString("\n\n## Constraints\n\n")
	b.WriteString(strings.Join(env.constraints, "\n"))
	return b.String()
}
