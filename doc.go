// Package trellis defines the on-disk workflow tree shared by the Trellis
// developer tools and locates it from a process's environment.
//
// Trellis keeps a project's workflow state under a single .trellis directory
// at the repository root:
//
//	.trellis/
//	    .developer          developer identity (name=... lines)
//	    .current-task       relative path of the active task directory
//	    workflow.md         project workflow description
//	    skills/             project skill definitions (SKILL.md files)
//	    spec/               frontend/backend/guides spec documents
//	    tasks/              active task directories, archive/ inside
//	    workspace/<dev>/    per-developer journals and context notes
//
// # Quick Start
//
// Discover the root and load skills for a prompt:
//
//	root, err := trellis.FindRoot("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	repo := skills.NewRepository(skills.Options{ProjectRoot: root})
//	matcher := skills.NewMatcher(repo)
//
//	matches, err := matcher.Match(ctx, skills.Query{
//	    Prompt: "refactor the auth middleware",
//	})
//
// The root is resolved in order: an explicit path, the TRELLIS_PROJECT_ROOT
// and CURSOR_WORKSPACE_ROOT environment variables, then an upward walk from
// the working directory. Each candidate qualifies only if it contains the
// .trellis directory.
//
// # Subpackages
//
// The root package holds only the tree layout and discovery. The tools live
// in the subpackages:
//
//   - skills: skill parsing, multi-directory discovery, and prompt matching
//   - task: task lifecycle and per-task context manifests
//   - journal: developer bootstrap and session journaling
//   - agentctx: context aggregation for subagent prompts
//   - gitinfo: best-effort git state probing
//   - serve: the trellis-context MCP server
//
// The trellis CLI in cmd/trellis wires these together.
package trellis
