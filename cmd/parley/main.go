package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleysim/parley/internal/anthropic"
	"github.com/parleysim/parley/internal/api"
	"github.com/parleysim/parley/internal/bus"
	"github.com/parleysim/parley/internal/config"
	"github.com/parleysim/parley/internal/judge"
	"github.com/parleysim/parley/internal/replay"
	"github.com/parleysim/parley/internal/runner"
	"github.com/parleysim/parley/internal/scenario"
	"github.com/parleysim/parley/internal/store"
)

func main() {
	replayDir := flag.String("replay", "", "re-adjudicate exported runs in this directory and exit")
	replayFile := flag.String("replay-file", "", "re-adjudicate a single exported run and exit")
	dryRun := flag.Bool("dry-run", false, "with -replay, report verdict changes without rewriting files")
	flag.Parse()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	jdg := judge.New(llm, slog.Default())

	if *replayDir != "" || *replayFile != "" {
		runReplay(replay.Config{
			Dir:        *replayDir,
			SingleFile: *replayFile,
			DryRun:     *dryRun,
		}, jdg)
		return
	}

	slog.Info("parley starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scenarios
	scenarios, err := scenario.LoadDir(cfg.ScenariosDir)
	if err != nil {
		slog.Error("failed to load scenarios", "dir", cfg.ScenariosDir, "error", err)
		os.Exit(1)
	}
	slog.Info("scenarios loaded", "count", len(scenarios), "dir", cfg.ScenariosDir)

	// Database is optional; runs are not persisted without it.
	var db *store.Store
	if cfg.DatabaseURL != "" {
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, runs will not be persisted")
	}

	// NATS is optional; run requests arrive over HTTP only without it.
	var nc *bus.Client
	if cfg.NatsURL != "" {
		nc, err = bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running without the message bus")
	}

	// Runner, the main pipeline
	var pub runner.Publisher
	if nc != nil {
		pub = nc
	}
	run := runner.New(scenarios, llm, jdg, db, pub, cfg.MaxRounds, slog.Default())

	if nc != nil {
		if err := nc.Subscribe(bus.SubjectRunRequested, run.HandleRunRequested); err != nil {
			slog.Error("failed to subscribe to run requests", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, run, runReader(db))
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if nc != nil {
		if err := nc.Publish("parley.agent.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"scenarios": len(scenarios),
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("parley ready", "port", cfg.Port, "scenarios", len(scenarios))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("parley stopped")
}

// runReader keeps a nil *store.Store from becoming a non-nil interface.
func runReader(db *store.Store) api.RunReader {
	if db == nil {
		return nil
	}
	return db
}

func runReplay(cfg replay.Config, jdg *judge.Judge) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sum, err := replay.NewRunner(cfg, jdg, slog.Default()).Run(ctx)
	if err != nil {
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}
	slog.Info("replay complete",
		"files", sum.Files,
		"readjudged", sum.Readjudged,
		"changed", sum.Changed,
		"errors", sum.Errors)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
