package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/journal"
)

// initCmd bootstraps the developer identity and journal.
func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	name := fs.String("name", "", "Developer name (defaults to $USER)")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis init [options]

Initialize the developer identity: .trellis/.developer, the developer
workspace, the first journal part, and the journal index.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  trellis init
  trellis init --name alice`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	devName := *name
	if devName == "" {
		devName = os.Getenv("USER")
	}
	if devName == "" {
		fmt.Fprintln(os.Stderr, "Error: developer name required (pass --name or set $USER)")
		os.Exit(1)
	}

	// init has to work in a bare repo, so fall back to the working
	// directory when no .trellis exists yet.
	root, err := trellis.FindRoot("")
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	got, created, err := journal.Init(root, devName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !created {
		fmt.Printf("Developer already initialized: %s\n", got)
		fmt.Println()
		fmt.Printf("To reinitialize, remove %s/%s first\n", trellis.DirWorkflow, trellis.FileDeveloper)
		return
	}

	fmt.Printf("Developer initialized: %s\n", got)
	fmt.Printf("  .developer file: %s\n", filepath.Join(trellis.WorkflowDir(root), trellis.FileDeveloper))
	fmt.Printf("  Workspace dir: %s\n", trellis.WorkspaceDir(root, got))
}
