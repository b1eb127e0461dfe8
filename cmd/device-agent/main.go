// The device agent runs beside a mobile app's embedded runtime: it keeps the
// installed bundle current against the update server and rolls back updates
// that fail verification.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/agent"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "Path to agent configuration file")
	once := flag.Bool("once", false, "Run a single update cycle and exit")
	flag.Parse()

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "device-agent").
		Logger()

	client := agent.NewClient(cfg.ServerURL, logger)
	store := agent.NewStateStore(cfg.StateDir)
	verifier := agent.VerifierForTier(cfg.Tier, time.Duration(cfg.VerifyWindow))
	reporter := agent.NewReporter(client, logger)

	updater, err := agent.NewUpdater(cfg, client, store, verifier, reporter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize updater")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A pending flag in the loaded state means the last update never got
	// committed; roll back before checking for anything new.
	if err := updater.Recover(ctx); err != nil {
		logger.Fatal().Err(err).Msg("startup recovery failed")
	}

	if *once {
		if err := updater.CheckAndApply(ctx); err != nil {
			logger.Fatal().Err(err).Msg("update cycle failed")
		}
		return
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down")
		cancel()
	}()

	updater.Run(ctx)
}
