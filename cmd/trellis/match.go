package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/everydev1618/trellis/skills"
)

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func matchCmd(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	var files stringList
	fs.Var(&files, "file", "File being worked on, matched against file triggers (repeatable)")
	max := fs.Int("max", 5, "Maximum number of results (1-50)")
	asJSON := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis match "prompt" [options]

Score the discovered skills against the prompt and print the matches.
Skills are loaded from .trellis/skills plus the Cursor and Claude
skill directories.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  trellis match "add a REST endpoint"
  trellis match "refactor the login form" --file src/pages/Login.tsx
  trellis match "write tests" --json`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no prompt given")
		fs.Usage()
		os.Exit(1)
	}

	root := mustRoot()
	prompt := strings.Join(fs.Args(), " ")

	matcher := skills.NewMatcher(skills.NewRepository(skills.Options{ProjectRoot: root}))
	matches, err := matcher.Match(context.Background(), skills.Query{Prompt: prompt, Files: []string(files)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	limit := *max
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	if *asJSON {
		type row struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Score       int      `json:"score"`
			MatchedBy   []string `json:"matched_by"`
			Path        string   `json:"path"`
		}
		rows := make([]row, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, row{
				Name:        m.Skill.Name,
				Description: m.Skill.Description,
				Score:       m.Score,
				MatchedBy:   m.MatchedBy,
				Path:        m.Skill.Path,
			})
		}
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if len(matches) == 0 {
		fmt.Println("No matching skills.")
		return
	}
	for i, m := range matches {
		fmt.Printf("%d. %s (score %d)\n", i+1, m.Skill.Name, m.Score)
		fmt.Printf("   %s\n", m.Skill.Description)
		fmt.Printf("   matched: %s\n", strings.Join(m.MatchedBy, ", "))
	}
}
