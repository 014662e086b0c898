// Package serve exposes the workflow tree and skill matcher to agents
// as a stdio MCP server. Each tool resolves the project root per call,
// answers with plain text or JSON, and records its invocation in the
// activity store when one is configured.
package serve

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/everydev1618/trellis/skills"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Name identifies the MCP server to clients.
const Name = "trellis-context"

// Version is set at build time via ldflags.
var Version = "dev"

// Config holds server configuration.
type Config struct {
	// DBPath locates the SQLite activity store. Empty disables activity
	// recording.
	DBPath string

	// SkillsDirs overrides skill directory discovery for every call.
	SkillsDirs []string

	// Logger receives server diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the trellis-context MCP server.
type Server struct {
	mcp     *server.MCPServer
	repos   *repoSet
	store   Store
	session string
	log     *slog.Logger
	cfg     Config
}

// tool is one registered MCP tool: its schema and its handler.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates a Server with all tools registered. The activity store
// opens in Start.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		repos:   newRepoSet(cfg.SkillsDirs, log),
		session: uuid.New().String()[:8],
		log:     log,
		cfg:     cfg,
	}
	s.mcp = server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, t := range []tool{
		matchSkillsTool{s},
		agentContextTool{s},
		currentTaskTool{s},
		setCurrentTaskTool{s},
		updatePhaseTool{s},
		listTasksTool{s},
		createTaskTool{s},
		workflowTool{s},
		specIndexTool{s},
	} {
		def := t.Definition()
		s.mcp.AddTool(def, s.instrument(def.Name, t.Handle))
	}
	return s
}

// Start opens the activity store and serves MCP over stdio. It blocks
// until ctx is cancelled or the client disconnects, then closes the
// store.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.DBPath != "" {
		// A broken store must not take the tools down with it.
		store, err := NewSQLiteStore(s.cfg.DBPath)
		if err == nil {
			if ierr := store.Init(); ierr != nil {
				store.Close()
				err = ierr
			}
		}
		if err != nil {
			s.log.Warn("Activity store disabled", "path", s.cfg.DBPath, "error", err)
		} else {
			s.store = store
		}
	}

	s.log.Info("trellis-context serving", "session", s.session, "db", s.cfg.DBPath)
	err := server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)

	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			s.log.Error("Store close error", "error", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// instrument wraps a tool handler with activity recording. Recording
// failures degrade to warnings.
func (s *Server) instrument(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := h(ctx, req)

		if s.store != nil {
			call := ToolCall{
				Session:    s.session,
				Tool:       name,
				DurationMS: time.Since(start).Milliseconds(),
				CalledAt:   time.Now(),
			}
			if err != nil {
				call.Error = err.Error()
			}
			if ierr := s.store.InsertToolCall(call); ierr != nil {
				s.log.Warn("Failed to record tool call", "tool", name, "error", ierr)
			}
		}
		return res, err
	}
}

// recordMatch persists a match_skills summary, best effort.
func (s *Server) recordMatch(m MatchRecord) {
	if s.store == nil {
		return
	}
	m.Session = s.session
	m.MatchedAt = time.Now()
	if err := s.store.InsertMatch(m); err != nil {
		s.log.Warn("Failed to record match", "error", err)
	}
}

// repoSet caches one skill repository per project root so repeated
// calls reuse compiled patterns and scan results.
type repoSet struct {
	dirs []string
	log  *slog.Logger

	mu       sync.Mutex
	matchers map[string]*skills.Matcher
}

func newRepoSet(dirs []string, log *slog.Logger) *repoSet {
	return &repoSet{dirs: dirs, log: log, matchers: make(map[string]*skills.Matcher)}
}

// matcher returns the matcher bound to the given project root, creating
// it on first use.
func (rs *repoSet) matcher(root string) *skills.Matcher {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if m, ok := rs.matchers[root]; ok {
		return m
	}
	repo := skills.NewRepository(skills.Options{
		ProjectRoot: root,
		Dirs:        rs.dirs,
		Logger:      rs.log,
	})
	m := skills.NewMatcher(repo)
	rs.matchers[root] = m
	return m
}
