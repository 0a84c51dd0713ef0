// Command sourcewatch monitors a set of social-media accounts, ingests
// their new posts and replies, reconstructs reply-chain conversations, and
// scores participant sentiment when conversations go dormant.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/ibeckermayer/sourcewatch/internal/analyzer"
	"github.com/ibeckermayer/sourcewatch/internal/config"
	"github.com/ibeckermayer/sourcewatch/internal/lifecycle"
	"github.com/ibeckermayer/sourcewatch/internal/poller"
	"github.com/ibeckermayer/sourcewatch/internal/queue"
	"github.com/ibeckermayer/sourcewatch/internal/scheduler"
	"github.com/ibeckermayer/sourcewatch/internal/social"
	"github.com/ibeckermayer/sourcewatch/internal/store"
	"github.com/ibeckermayer/sourcewatch/internal/thread"
)

func main() {
	once := flag.Bool("once", false, "run a single poll tick and exit")
	sweep := flag.Bool("sweep", false, "run a single lifecycle sweep and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	slog.SetDefault(log)

	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				log.Warn("could not save default config", "error", err)
			} else {
				path, _ := config.ConfigPath()
				log.Info("created default config", "path", path)
			}
		} else {
			log.Warn("could not load config, using defaults", "error", err)
			cfg = config.Default()
		}
	}

	handles := cfg.Handles()
	if len(handles) == 0 {
		log.Error("no monitored accounts configured (set [monitor] accounts)")
		os.Exit(1)
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		log.Error("could not resolve database path", "error", err)
		os.Exit(1)
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Error("could not open store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	requests := queue.New(32)
	defer requests.Close()
	client := social.NewHTTPClient(cfg.API.BaseURL, cfg.API.BearerToken, requests)

	builder := thread.NewBuilder(client, st,
		cfg.Agent.ID, cfg.Agent.UserID, cfg.Monitor.MaxThreadDepth, log)

	an, err := analyzer.New(cfg.Analysis, st, cfg.Agent.ID, log)
	if err != nil {
		log.Error("could not create analyzer", "error", err)
		os.Exit(1)
	}

	interval := time.Duration(cfg.Monitor.PollIntervalSeconds) * time.Second
	p := poller.New(client, st, builder, poller.Options{
		Handles:       handles,
		Interval:      interval,
		PageSize:      cfg.Monitor.PageSize,
		RecencyWindow: time.Duration(cfg.Monitor.RecencyWindowMin) * time.Minute,
		AgentID:       cfg.Agent.ID,
		SelfUserID:    cfg.Agent.UserID,
	}, log)

	monitor := lifecycle.NewMonitor(st, an, cfg.Agent.ID,
		time.Duration(cfg.Monitor.InactivityMin)*time.Minute, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *once:
		p.Tick(ctx)
		return
	case *sweep:
		if err := monitor.Sweep(ctx); err != nil {
			log.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		return
	}

	log.Info("sourcewatch starting",
		"accounts", handles, "poll_interval", interval, "db", dbPath)

	sched := scheduler.New(log)
	if err := sched.AddIntervalJob("lifecycle-sweep", interval, monitor.Sweep); err != nil {
		log.Error("could not schedule lifecycle sweep", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	// Blocks until SIGINT/SIGTERM.
	p.Start(ctx)
}
