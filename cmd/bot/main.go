// predictive-edge-bot — an expiration-sniping execution engine for binary
// prediction markets. It watches markets approaching expiry, waits for the
// configured price/edge window, and fires a single latency-sensitive buy
// once a market becomes eligible, racing the venue's own price-discovery
// lag at settlement.
//
// Architecture:
//
//	main.go                  — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	engine/engine.go         — orchestrator: wires every component, drives the execution pipeline
//	marketsource/marketsource.go — polls the Gamma API for soon-to-expire markets, applies hard filters
//	fsm/fsm.go               — per-market lifecycle state machine
//	eligibility/eligibility.go — the expiration-sniping admission predicate
//	scheduler/scheduler.go   — priority queue of Eligible markets, ordered by time-to-expiry
//	risk/gate.go             — kill switches, per-market circuit breaker, exposure limits
//	capital/allocator.go     — bankroll and reservation bookkeeping, order splitting
//	capital/recycler.go      — delayed capital release for venue settlement lag
//	executor/executor.go     — dedupe, rate limit, worker-pool-bounded venue dispatch with retry
//	venue/client.go          — REST + WebSocket adapter for the venue's CLOB API
//	metrics/metrics.go       — rolling latency/outcome percentiles
//	journal/journal.go       — durable append-only trade ledger
//	store/store.go           — crash-safety checkpoint persistence
//
// Exit codes: 0 clean shutdown; 1 configuration error; 2 fatal runtime
// error; 3 a kill switch stayed active past its retention window.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/api"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/engine"
)

func main() {
	cfgPath := "config.yaml"
	if p := os.Getenv("ENGINE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to construct engine", "error", err)
		os.Exit(2)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(2)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("execution engine started",
		"token_side", cfg.Eligibility.TokenSide,
		"time_to_eligibility_sec", cfg.Eligibility.TimeToEligibilitySec,
		"initial_bankroll", cfg.Capital.InitialBankroll,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-eng.Halted():
		logger.Error("kill switch did not clear within retention window, shutting down")
		exitCode = 3
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
	os.Exit(exitCode)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
