package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ratesdesk/riskpipe/internal/config"
	"github.com/ratesdesk/riskpipe/internal/feed"
)

const (
	appName = "curvefeed"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Yield curve tick feed",
		Long:    "Publishes yield curve ticks to Kafka, replayed from CSV or generated synthetically.",
		Version: version,
	}

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay curve snapshots from a CSV file",
		RunE:  runReplay,
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate synthetic curve ticks from a scenario file",
		RunE:  runSimulate,
	}

	rootCmd.AddCommand(replayCmd, simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.LoadFeed()
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer := feed.NewProducer(cfg.BusEndpoint, cfg.BusTopic, log.Logger)
	defer closeProducer(producer)

	log.Info().
		Str("bus", cfg.BusEndpoint).
		Str("topic", cfg.BusTopic).
		Str("file", cfg.DataFile).
		Float64("speed", cfg.ReplaySpeed).
		Bool("loop", cfg.LoopForever).
		Msg("curve feed starting in replay mode")

	replayer := feed.NewReplayer(cfg.DataFile, cfg.ReplaySpeed, cfg.LoopForever, log.Logger)
	err = replayer.Run(ctx, func(tick feed.Tick) error {
		return producer.Publish(ctx, tick)
	})
	if errors.Is(err, context.Canceled) {
		log.Info().Int("published", producer.Published()).Msg("curve feed stopped")
		return nil
	}
	return err
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.LoadFeed()
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	if cfg.ScenarioFile == "" {
		return errors.New("SCENARIO_FILE must be set for simulate mode")
	}
	scenario, err := feed.LoadScenario(cfg.ScenarioFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer := feed.NewProducer(cfg.BusEndpoint, cfg.BusTopic, log.Logger)
	defer closeProducer(producer)

	sim := feed.NewSimulator(scenario, log.Logger)
	err = sim.Run(ctx, func(tick feed.Tick) error {
		return producer.Publish(ctx, tick)
	})
	if errors.Is(err, context.Canceled) {
		log.Info().Int("published", producer.Published()).Msg("curve feed stopped")
		return nil
	}
	return err
}

func closeProducer(p *feed.Producer) {
	if err := p.Close(); err != nil {
		log.Warn().Err(err).Msg("producer close failed")
	}
}

func applyLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
