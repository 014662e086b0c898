// Package main provides the Trellis CLI.
package main

import (
	"fmt"
	"os"

	"github.com/everydev1618/trellis"
	"github.com/joho/godotenv"
)

var (
	version = "dev"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "init":
		initCmd(args)
	case "task":
		taskCmd(args)
	case "match":
		matchCmd(args)
	case "context":
		contextCmd(args)
	case "journal":
		journalCmd(args)
	case "serve":
		serveCmd(args)
	case "version":
		fmt.Printf("trellis %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Trellis - workflow context for AI coding agents

Usage:
  trellis <command> [options]

Commands:
  init      Initialize the developer identity and journal
  task      Create and manage task directories
  match     Match skills against a prompt
  context   Print the session context digest
  journal   Append a session to the development journal
  serve     Start the MCP context server on stdio
  version   Print version information
  help      Show this help message

Examples:
  trellis init --name alice
  trellis task create "Refactor API error handling"
  trellis match "add a REST endpoint" --file internal/api/users.go
  trellis serve

Run 'trellis <command> --help' for more information on a command.`)
}

// mustRoot resolves the project root or exits.
func mustRoot() string {
	root, err := trellis.FindRoot("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: no .trellis directory found. Run 'trellis init' in your project root.")
		os.Exit(1)
	}
	return root
}
