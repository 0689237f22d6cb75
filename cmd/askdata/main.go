// Command askdata runs the multi-tenant data assistant.
//
// Usage:
//
//	askdata serve --port 8000
//	askdata toolserver --service "TechCorp Tool Server" --db data/tenant_a.db --port 3001
//	askdata seed --db data/tenant_a.db
//	askdata ingest --vectors data/tenant_a_vectors.gob --docs docs/tenant_a
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ocakhasan/askdata/pkg/agent"
	"github.com/ocakhasan/askdata/pkg/config"
	"github.com/ocakhasan/askdata/pkg/docindex"
	"github.com/ocakhasan/askdata/pkg/embedders"
	"github.com/ocakhasan/askdata/pkg/llms"
	"github.com/ocakhasan/askdata/pkg/logger"
	"github.com/ocakhasan/askdata/pkg/memory"
	"github.com/ocakhasan/askdata/pkg/orchestrator"
	"github.com/ocakhasan/askdata/pkg/seed"
	"github.com/ocakhasan/askdata/pkg/toolserver"
)

// CLI defines the command-line interface.
type CLI struct {
	Version    VersionCmd    `cmd:"" help:"Show version information."`
	Serve      ServeCmd      `cmd:"" help:"Start the central orchestrator."`
	Toolserver ToolserverCmd `cmd:"" help:"Start a per-tenant tool server."`
	Seed       SeedCmd       `cmd:"" help:"Create and populate a tenant database with sample data."`
	Ingest     IngestCmd     `cmd:"" help:"Build a document search index from support docs and release notes."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("askdata version %s\n", version)
	return nil
}

// ServeCmd starts the central orchestrator.
type ServeCmd struct {
	Port      int    `help:"Port to listen on." default:"8000"`
	SessionDB string `name:"session-db" help:"Path to the session memory database (overrides SESSION_DB_PATH)." placeholder:"PATH"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.SessionDB != "" {
		cfg.SessionDBPath = c.SessionDB
	}

	provider, err := llms.NewGeminiProvider(llms.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Host:   cfg.GeminiHost,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	defer provider.Close()

	store := openSessionStore(cfg.SessionDBPath)
	defer store.Close()

	registry := agent.NewRegistry(provider)
	if err := registry.WarmUp(ctx, cfg.Tenants); err != nil {
		slog.Warn("Agent warm-up incomplete", "error", err)
	}

	srv := orchestrator.New(cfg, registry, store)

	addr := fmt.Sprintf(":%d", c.Port)
	fmt.Printf("\nCentral orchestrator ready\n")
	fmt.Printf("   Chat:    http://localhost%s/chat\n", addr)
	fmt.Printf("   Stream:  http://localhost%s/chat/stream\n", addr)
	fmt.Printf("   Health:  http://localhost%s/health\n", addr)
	fmt.Println("\n   Tenants:")
	for _, t := range cfg.Tenants {
		fmt.Printf("     - %s -> %s\n", t.ID, t.Endpoint)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.ListenAndServe(ctx, addr)
}

// openSessionStore opens the sqlite session store, degrading to a no-op
// store when persistence is unavailable. Memory failures never block chat.
func openSessionStore(path string) memory.Store {
	if path == "" {
		slog.Info("Session memory disabled")
		return memory.NoopStore{}
	}
	store, err := memory.NewSQLStore(path)
	if err != nil {
		slog.Warn("Session memory unavailable, continuing without it", "path", path, "error", err)
		return memory.NoopStore{}
	}
	slog.Info("Session memory enabled", "path", path)
	return store
}

// ToolserverCmd starts a per-tenant tool server.
type ToolserverCmd struct {
	Service string `help:"Service name reported by the health endpoint." default:"Tool Server"`
	DB      string `help:"Path to the tenant sqlite database. Created and seeded when missing." default:"data/tenant.db" type:"path"`
	Vectors string `help:"Path to the persisted document index. Empty disables document search." placeholder:"PATH" type:"path"`
	Port    int    `help:"Port to listen on." default:"3001"`
}

func (c *ToolserverCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if _, err := os.Stat(c.DB); os.IsNotExist(err) {
		slog.Info("Database not found, seeding sample data", "path", c.DB)
		stats, err := seed.Run(c.DB, nil)
		if err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
		slog.Info("Database seeded", "projects", stats.Projects, "tasks", stats.Tasks, "runs", stats.Runs)
	}

	index, err := openIndex(ctx, cfg, c.Vectors)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}

	srv, err := toolserver.Open(c.Service, c.DB, index)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", c.Port))
}

// openIndex loads the persisted document index. Search tools stay disabled
// when no path is given or the embedder cannot be created.
func openIndex(ctx context.Context, cfg *config.Config, path string) (*docindex.Index, error) {
	if path == "" {
		slog.Info("Document search disabled, no vector index configured")
		return nil, nil
	}
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, document search disabled")
		return nil, nil
	}
	embedder, err := embedders.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	index, err := docindex.New(embedder, docindex.Config{PersistPath: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open document index: %w", err)
	}
	return index, nil
}

// SeedCmd populates a tenant database with sample data.
type SeedCmd struct {
	DB string `help:"Path to the tenant sqlite database." default:"data/tenant_a.db" type:"path"`
}

func (c *SeedCmd) Run(cli *CLI) error {
	stats, err := seed.Run(c.DB, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %s: %d projects, %d tasks, %d task runs\n", c.DB, stats.Projects, stats.Tasks, stats.Runs)
	return nil
}

// IngestCmd builds a document search index from source files.
type IngestCmd struct {
	Vectors  string `help:"Path where the index is persisted." default:"data/vectors.gob" type:"path"`
	Docs     string `help:"Directory with support docs (*.md)." placeholder:"DIR" type:"path"`
	Notes    string `help:"Directory with release notes (*.yaml)." placeholder:"DIR" type:"path"`
	Compress bool   `help:"Gzip the persisted index."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required to compute embeddings")
	}
	if c.Docs == "" && c.Notes == "" {
		return fmt.Errorf("nothing to ingest: provide --docs and/or --notes")
	}

	embedder, err := embedders.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer embedder.Close()

	index, err := docindex.New(embedder, docindex.Config{PersistPath: c.Vectors, Compress: c.Compress})
	if err != nil {
		return fmt.Errorf("failed to open document index: %w", err)
	}

	if c.Docs != "" {
		n, err := index.IngestSupportDocs(ctx, c.Docs)
		if err != nil {
			return fmt.Errorf("failed to ingest support docs: %w", err)
		}
		fmt.Printf("Indexed %d support doc chunks from %s\n", n, c.Docs)
	}
	if c.Notes != "" {
		n, err := index.IngestReleaseNotes(ctx, c.Notes)
		if err != nil {
			return fmt.Errorf("failed to ingest release notes: %w", err)
		}
		fmt.Printf("Indexed %d release notes from %s\n", n, c.Notes)
	}

	if err := index.Close(); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	fmt.Printf("Index written to %s\n", c.Vectors)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("askdata"),
		kong.Description("askdata - multi-tenant data assistant"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(level, output, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
