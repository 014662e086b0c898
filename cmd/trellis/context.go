package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/gitinfo"
	"github.com/everydev1618/trellis/task"
)

func contextCmd(args []string) {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis context [options]

Print the session digest: developer identity, git status, the current
task, and the active task list.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := mustRoot()
	dev := trellis.DeveloperName(root)
	info := gitinfo.Probe(context.Background(), root)
	sums, err := task.List(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	current := trellis.CurrentTask(root)

	if *asJSON {
		printContextJSON(dev, info, sums, current)
		return
	}
	printContextText(root, dev, info, sums, current)
}

func printContextJSON(dev string, info gitinfo.Info, sums []task.Summary, current string) {
	type activeTask struct {
		Dir      string `json:"dir"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Assignee string `json:"assignee"`
	}
	active := make([]activeTask, 0, len(sums))
	for _, s := range sums {
		active = append(active, activeTask{
			Dir:      s.Dir,
			Name:     s.Name,
			Status:   s.Status,
			Assignee: s.Assignee,
		})
	}

	out := map[string]any{
		"developer": dev,
		"git":       info,
		"tasks": map[string]any{
			"current":   current,
			"active":    active,
			"directory": trellis.DirWorkflow + "/" + trellis.DirTasks,
		},
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printContextText(root, dev string, info gitinfo.Info, sums []task.Summary, current string) {
	banner := strings.Repeat("=", 40)
	fmt.Println(banner)
	fmt.Println("SESSION CONTEXT")
	fmt.Println(banner)
	fmt.Println()

	fmt.Println("## DEVELOPER")
	if dev != "" {
		fmt.Printf("Name: %s\n", dev)
	} else {
		fmt.Println("ERROR: Not initialized. Run: trellis init --name <name>")
	}
	fmt.Println()

	fmt.Println("## GIT STATUS")
	fmt.Printf("Branch: %s\n", info.Branch)
	if info.IsClean {
		fmt.Println("Working directory: Clean")
	} else {
		fmt.Printf("Working directory: %d uncommitted change(s)\n", info.UncommittedChanges)
	}
	fmt.Println()

	fmt.Println("## RECENT COMMITS")
	for _, commit := range info.RecentCommits {
		fmt.Printf("  %s\n", commit)
	}
	if len(info.RecentCommits) == 0 {
		fmt.Println("  (no commits)")
	}
	fmt.Println()

	fmt.Println("## CURRENT TASK")
	if current != "" {
		fmt.Printf("Path: %s\n", current)
		if ti, err := task.Read(filepath.Join(root, filepath.FromSlash(current))); err == nil {
			fmt.Printf("Name: %s\n", orUnknown(ti.Name))
			fmt.Printf("Status: %s\n", orUnknown(ti.Status))
		}
	} else {
		fmt.Println("(none)")
	}
	fmt.Println()

	fmt.Println("## ACTIVE TASKS")
	for _, s := range sums {
		marker := ""
		if s.Current {
			marker = " <- current"
		}
		fmt.Printf("  - %s/ (%s)%s\n", s.Dir, s.Status, marker)
	}
	if len(sums) == 0 {
		fmt.Println("  (no active tasks)")
	}
	fmt.Printf("\nTotal: %d task(s)\n", len(sums))
	fmt.Println()

	fmt.Println("## PATHS")
	if dev != "" {
		fmt.Printf("Workspace: %s/%s/%s/\n", trellis.DirWorkflow, trellis.DirWorkspace, dev)
	}
	fmt.Printf("Tasks: %s/%s/\n", trellis.DirWorkflow, trellis.DirTasks)
	fmt.Printf("Spec: %s/%s/\n", trellis.DirWorkflow, trellis.DirSpec)
	fmt.Println()
	fmt.Println(banner)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
