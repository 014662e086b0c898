package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/everydev1618/trellis/journal"
)

// journalCmd dispatches the journal subcommands.
func journalCmd(args []string) {
	if len(args) < 1 {
		printJournalUsage()
		os.Exit(1)
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "add-session":
		journalAddSessionCmd(rest)
	case "help", "-h", "--help":
		printJournalUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal command: %s\n\n", sub)
		printJournalUsage()
		os.Exit(1)
	}
}

func printJournalUsage() {
	fmt.Println(`Usage:
  trellis journal <command> [options]

Commands:
  add-session  Append a session block to the journal and refresh index.md

Examples:
  trellis journal add-session --title "Wire up auth" --commit abc123 --summary "Login flow done"
  git log -1 --stat | trellis journal add-session --title "Release prep"`)
}

func journalAddSessionCmd(args []string) {
	fs := flag.NewFlagSet("journal add-session", flag.ExitOnError)
	title := fs.String("title", "", "Session title (required)")
	commit := fs.String("commit", "", "Comma-separated commit hashes")
	summary := fs.String("summary", "", "Brief summary of the session")
	contentFile := fs.String("content-file", "", "Path to a file with the detailed content")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis journal add-session --title "..." [options]

Append a numbered session to the developer journal. The journal rolls
over to a new part when a file would exceed the line cap. Detailed
content is read from --content-file, or from stdin when piped.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *title == "" {
		fmt.Fprintln(os.Stderr, "Error: no session title given (pass --title)")
		fs.Usage()
		os.Exit(1)
	}

	var commits []string
	for _, c := range strings.Split(*commit, ",") {
		if c = strings.TrimSpace(c); c != "" {
			commits = append(commits, c)
		}
	}

	details := readDetails(*contentFile)

	root := mustRoot()
	added, err := journal.AddSession(root, journal.Session{
		Title:   *title,
		Commits: commits,
		Summary: *summary,
		Details: details,
	})
	if err != nil {
		if errors.Is(err, journal.ErrNotInitialized) {
			fmt.Fprintln(os.Stderr, "Error: developer not initialized. Run 'trellis init' first.")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if added.Rotated {
		fmt.Fprintf(os.Stderr, "[!] Exceeds %d lines, creating %s\n", journal.MaxJournalLines, added.File)
	}
	fmt.Printf("Session %d appended to %s\n", added.Session, added.File)
	fmt.Println("Files updated:")
	fmt.Printf("  - %s\n", added.File)
	fmt.Println("  - index.md")
}

// readDetails loads the session body from the content file, or from
// stdin when input is piped in.
func readDetails(contentFile string) string {
	if contentFile != "" {
		data, err := os.ReadFile(contentFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return string(data)
	}
	if st, err := os.Stdin.Stat(); err == nil && st.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return string(data)
	}
	return ""
}
