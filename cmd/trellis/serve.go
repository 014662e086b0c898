package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/everydev1618/trellis"
	"github.com/everydev1618/trellis/serve"
)

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	db := fs.String("db", os.Getenv("TRELLIS_DB"), "SQLite activity store path (default .trellis/trellis.db)")
	skillsDirs := stringList(filepath.SplitList(os.Getenv("TRELLIS_SKILLS_DIRS")))
	fs.Var(&skillsDirs, "skills-dir", "Skill directory, overriding discovery (repeatable)")

	fs.Usage = func() {
		fmt.Println(`Usage: trellis serve [options]

Start the MCP context server on stdio. Tools resolve the project root
per call, so the server works across projects; the activity store is
bound at startup.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dbPath := *db
	if dbPath == "" {
		// Without a reachable root the store stays disabled.
		if root, err := trellis.FindRoot(""); err == nil {
			dbPath = trellis.DefaultDBPath(root)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serve.New(serve.Config{
		DBPath:     dbPath,
		SkillsDirs: []string(skillsDirs),
	})
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
