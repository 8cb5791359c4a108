package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/profitflip/config"
	"github.com/alejandrodnm/profitflip/internal/adapters/notify"
	"github.com/alejandrodnm/profitflip/internal/adapters/storage"
	"github.com/alejandrodnm/profitflip/internal/application/game"
	"github.com/alejandrodnm/profitflip/internal/application/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "refresh once, run the command and exit")
	dryRun := flag.Bool("dry-run", false, "play against the in-memory simulator, nothing persisted")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full round/bet tables (default: compact 1-line)")
	betDir := flag.String("bet", "", "place a bet on the live round: bull|bear")
	amount := flag.String("amount", "", "bet amount (default: minimum bet)")
	claim := flag.Bool("claim", false, "claim every unclaimed win in one transaction")
	history := flag.Bool("history", false, "print the claim audit log")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dryRun {
		cfg.Feed.Source = config.SourcePaper
	}
	setupLogger(cfg.Log)

	slog.Info("profitflip starting",
		"config", *configPath,
		"source", cfg.Feed.Source,
		"interval", cfg.RefreshInterval(),
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, owner, closeDeps, err := buildDeps(cfg)
	if err != nil {
		slog.Error("failed to build game dependencies", "err", err, "source", cfg.Feed.Source)
		os.Exit(1)
	}
	defer closeDeps()

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		deps.Store = store
	}

	g := game.New(game.Config{
		Owner:          owner,
		MinBet:         cfg.Game.MinBetAmount(),
		WindowCapacity: cfg.Game.WindowCapacity,
		FetchWorkers:   cfg.Game.FetchWorkers,
	}, deps)
	if err := g.Load(ctx); err != nil {
		slog.Warn("restored state has conflicts", "err", err)
	}

	console := notify.NewConsole(*table)
	sched := scheduler.New(scheduler.Config{Interval: cfg.RefreshInterval()}, g, console)

	if err := sched.Tick(ctx); err != nil && *once {
		os.Exit(1)
	}

	cmd := command{
		game:    g,
		console: console,
		store:   store,
		owner:   owner,
	}
	ok := cmd.run(ctx, *history, *betDir, *amount, *claim)

	if *once {
		if !ok {
			os.Exit(1)
		}
		return
	}

	if err := sched.Run(ctx); err != nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("profitflip stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
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
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
