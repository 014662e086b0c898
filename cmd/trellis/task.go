package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/task"
)

// taskCmd dispatches the task subcommands.
func taskCmd(args []string) {
	if len(args) < 1 {
		printTaskUsage()
		os.Exit(1)
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "create":
		taskCreateCmd(rest)
	case "start":
		taskStartCmd(rest)
	case "finish":
		taskFinishCmd(rest)
	case "list":
		taskListCmd(rest)
	case "archive":
		taskArchiveCmd(rest)
	case "init-context":
		taskInitContextCmd(rest)
	case "add-context":
		taskAddContextCmd(rest)
	case "validate":
		taskValidateCmd(rest)
	case "list-context":
		taskListContextCmd(rest)
	case "help", "-h", "--help":
		printTaskUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown task command: %s\n\n", sub)
		printTaskUsage()
		os.Exit(1)
	}
}

func printTaskUsage() {
	fmt.Println(`Usage:
  trellis task <command> [options]

Commands:
  create        Create a new task directory with task.json
  start         Set the current task
  finish        Clear the current task
  list          List active tasks
  archive       Archive a completed task
  init-context  Seed the context jsonl files of a task
  add-context   Append an entry to a context jsonl file
  validate      Check context jsonl entries against the tree
  list-context  Print context jsonl entries

Examples:
  trellis task create "Refactor API error handling"
  trellis task start .trellis/tasks/01-31-refactor-api
  trellis task archive refactor-api`)
}

func taskCreateCmd(args []string) {
	fs := flag.NewFlagSet("task create", flag.ExitOnError)
	slug := fs.String("slug", "", "Directory slug (defaults to the slugified title)")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis task create "title" [options]

Create a task directory under .trellis/tasks named MM-DD-<slug> and
write its task.json. The task path is printed on stdout.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no task title given")
		fs.Usage()
		os.Exit(1)
	}

	root := mustRoot()
	rel, err := task.Create(root, fs.Arg(0), *slug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Created task: %s\n", path.Base(rel))
	fmt.Println(rel)
}

func taskStartCmd(args []string) {
	fs := flag.NewFlagSet("task start", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task start <dir>

Record the task directory as the current task. Absolute paths are
stored relative to the project root.`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no task directory given")
		fs.Usage()
		os.Exit(1)
	}

	root := mustRoot()
	rel, err := task.Start(root, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Current task set to: %s\n", rel)
}

func taskFinishCmd(args []string) {
	fs := flag.NewFlagSet("task finish", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task finish

Clear the current task marker.`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := mustRoot()
	was, err := task.Finish(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if was == "" {
		fmt.Println("No current task set")
		return
	}
	fmt.Printf("Cleared current task (was: %s)\n", was)
}

func taskListCmd(args []string) {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task list

List the active tasks under .trellis/tasks.`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := mustRoot()
	fmt.Println("Active tasks:")

	if _, err := os.Stat(trellis.TasksDir(root)); err != nil {
		fmt.Println("  (no tasks)")
		return
	}

	sums, err := task.List(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, s := range sums {
		marker := ""
		if s.Current {
			marker = " <- current"
		}
		fmt.Printf("  - %s/ (%s) @%s%s\n", s.Dir, s.Status, s.Assignee, marker)
	}
	if len(sums) == 0 {
		fmt.Println("  (no active tasks)")
	}
	fmt.Printf("\nTotal: %d task(s)\n", len(sums))
}

func taskArchiveCmd(args []string) {
	fs := flag.NewFlagSet("task archive", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task archive <name>

Mark the task completed and move it to .trellis/tasks/archive/YYYY-MM.
The name may be the full directory name or a partial match.`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no task name given")
		fs.Usage()
		os.Exit(1)
	}

	root := mustRoot()
	name := fs.Arg(0)
	rel, err := task.Archive(root, name)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: Task not found: %s\n", name)
			fmt.Fprintln(os.Stderr, "Active tasks:")
			sums, _ := task.List(root)
			for _, s := range sums {
				fmt.Fprintf(os.Stderr, "  - %s/\n", s.Dir)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dirName := path.Base(rel)
	yearMonth := path.Base(path.Dir(rel))
	fmt.Fprintf(os.Stderr, "Archived: %s -> archive/%s/\n", dirName, yearMonth)
	fmt.Println(rel)
}

func taskInitContextCmd(args []string) {
	fs := flag.NewFlagSet("task init-context", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task init-context <dir> <dev_type>

Seed implement.jsonl, check.jsonl and debug.jsonl inside the task
directory. Dev types: backend, frontend, fullstack, test, docs.`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Error: task directory and dev type required")
		fs.Usage()
		os.Exit(1)
	}

	root := mustRoot()
	dir := fs.Arg(0)
	devType := fs.Arg(1)

	counts, err := task.InitContext(root, dir, devType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Initializing context for: %s\n", absTaskDir(root, dir))
	fmt.Printf("Dev type: %s\n", devType)
	for _, name := range task.ContextFiles {
		fmt.Printf("  Created %s (%d entries)\n", name, counts[name])
	}
	fmt.Println("Done!")
}

func taskAddContextCmd(args []string) {
	fs := flag.NewFlagSet("task add-context", flag.ExitOnError)
	reason := fs.String("reason", "", "Why the entry matters (defaults to \"Added manually\")")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis task add-context <dir> <jsonl> <path> [options]

Append a context entry pointing at path to the named jsonl file of the
task. The .jsonl suffix may be omitted. Directories are tagged.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 3 {
		fmt.Fprintln(os.Stderr, "Error: task directory, jsonl name, and path required")
		fs.Usage()
		os.Exit(1)
	}

	root := mustRoot()
	entry, err := task.AddContext(root, fs.Arg(0), fs.Arg(1), fs.Arg(2), *reason)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kind := "file"
	if entry.IsDir() {
		kind = "directory"
	}
	fmt.Printf("Added %s: %s\n", kind, entry.Location())
}

func taskValidateCmd(args []string) {
	fs := flag.NewFlagSet("task validate", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task validate [dir]

Check that every context jsonl line parses and points at an existing
path. Without a directory the current task is validated.`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := mustRoot()
	dir := contextTarget(fs, root)

	reports, err := task.Validate(root, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Validating: %s\n", absTaskDir(root, dir))
	totalErrors := 0
	for _, rep := range reports {
		if rep.Missing {
			fmt.Printf("  %s: not found (skipped)\n", rep.Name)
			continue
		}
		for _, p := range rep.Problems {
			fmt.Printf("  %s:%d: %s\n", rep.Name, p.Line, p.Msg)
		}
		if len(rep.Problems) == 0 {
			fmt.Printf("  %s: OK (%d entries)\n", rep.Name, rep.Entries)
		} else {
			fmt.Printf("  %s: %d errors\n", rep.Name, len(rep.Problems))
		}
		totalErrors += len(rep.Problems)
	}
	if totalErrors > 0 {
		os.Exit(1)
	}
}

func taskListContextCmd(args []string) {
	fs := flag.NewFlagSet("task list-context", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: trellis task list-context [dir]

Print the context jsonl entries of the task. Without a directory the
current task is listed.`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root := mustRoot()
	dir := contextTarget(fs, root)

	listed, err := task.ListContext(root, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, name := range task.ContextFiles {
		lines, ok := listed[name]
		if !ok {
			continue
		}
		fmt.Printf("\n[%s]\n", name)
		for _, l := range lines {
			if l.Invalid {
				fmt.Printf("  %d. (invalid JSON)\n", l.Line)
				continue
			}
			marker := ""
			if l.Entry.IsDir() {
				marker = "[DIR]"
			}
			reason := l.Entry.Reason
			if reason == "" {
				reason = "-"
			}
			fmt.Printf("  %d. %s %s\n", l.Line, marker, l.Entry.Location())
			fmt.Printf("     -> %s\n", reason)
		}
	}
}

// contextTarget returns the task directory argument, falling back to
// the current task.
func contextTarget(fs *flag.FlagSet, root string) string {
	if fs.NArg() >= 1 {
		return fs.Arg(0)
	}
	dir, err := task.Current(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: no task directory given and no current task set")
		os.Exit(1)
	}
	return dir
}

// absTaskDir resolves dir against root for display.
func absTaskDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, filepath.FromSlash(dir))
}
