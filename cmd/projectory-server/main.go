package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/projectory/projectory-server/internal/ai"
	"github.com/projectory/projectory-server/internal/ai/artifactstore"
	"github.com/projectory/projectory-server/internal/ai/provider"
	"github.com/projectory/projectory-server/internal/auditlog"
	"github.com/projectory/projectory-server/internal/config"
	"github.com/projectory/projectory-server/internal/lockfile"
	"github.com/projectory/projectory-server/internal/monitor"
	"github.com/projectory/projectory-server/internal/projectstore"
	"github.com/projectory/projectory-server/internal/server"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "init":
		initCmd(os.Args[2:])
	case "version":
		fmt.Printf("projectory-server %s (%s)\n", Version, Commit)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `projectory-server

Usage:
  projectory-server run [flags]
  projectory-server init [flags]
  projectory-server version

Commands:
  run       Run the HTTP server using the local config file.
  init      Write a default config file.
  version   Print build information.

`)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultConfigPath(), "Config file path")
	_ = fs.Parse(args)

	path := filepath.Clean(*cfgPath)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "config already exists: %s\n", path)
		os.Exit(1)
	}
	if err := config.Save(path, config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written: %s\n", path)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file path (empty: defaults + env overrides)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*cfgPath)
	if path != "" {
		path = filepath.Clean(path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	lock, err := lockfile.Acquire(filepath.Join(cfg.DataDir, "server.lock"))
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyLocked) {
			return fmt.Errorf("data dir %s is in use by another projectory-server", cfg.DataDir)
		}
		return fmt.Errorf("lock data dir: %w", err)
	}
	defer lock.Release()

	artifacts, err := artifactstore.Open(cfg.ArtifactsDBPath())
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	defer artifacts.Close()

	projects, err := projectstore.Open(cfg.ProjectsDBPath())
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}
	defer projects.Close()

	audit, err := auditlog.New(auditlog.Options{Dir: cfg.AuditDir()})
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	svc, err := ai.NewService(ai.Options{
		Logger:       logger,
		Provider:     prov,
		Artifacts:    artifacts,
		Audit:        audit,
		CacheEnabled: cfg.AI.EffectiveCacheEnabled(),
		CacheTTL:     cfg.AI.CacheTTL(),
		JobTTL:       cfg.AI.JobTTL(),
	})
	if err != nil {
		return fmt.Errorf("init AI service: %w", err)
	}

	srv, err := server.New(server.Options{
		Logger:   logger,
		Addr:     cfg.Addr,
		AI:       svc,
		Projects: projects,
		Monitor:  monitor.NewService(logger),
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("projectory-server started",
		"version", Version, "addr", cfg.Addr, "provider", prov.Name())

	<-ctx.Done()
	return srv.Close()
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.AI.Provider)) {
	case "", "mock":
		return provider.NewMock(), nil
	case "openai":
		key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return provider.NewOpenAI(provider.OpenAIOptions{APIKey: key, Model: cfg.AI.OpenAIModel}), nil
	case "anthropic":
		key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return provider.NewAnthropic(provider.AnthropicOptions{APIKey: key, Model: cfg.AI.AnthropicModel}), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(strings.TrimSpace(cfg.LogFormat)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
