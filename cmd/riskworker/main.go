package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ratesdesk/riskpipe/internal/config"
	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/engine"
	"github.com/ratesdesk/riskpipe/internal/metrics"
	"github.com/ratesdesk/riskpipe/internal/portfolio"
	"github.com/ratesdesk/riskpipe/internal/risk"
	"github.com/ratesdesk/riskpipe/internal/store"
)

const (
	appName = "riskworker"
	version = "v1.2.0"
)

const (
	exitInitFailure  = 1
	exitFatalRuntime = 2
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Real-time fixed-income risk worker",
		Long:    "Consumes yield curve ticks, reprices the portfolio, and publishes NPV/DV01/KRD to Redis.",
		Version: version,
		RunE:    runWorker,
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(exitInitFailure)
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(exitInitFailure)
	}
	applyLogLevel(cfg.LogLevel)

	log.Info().
		Str("worker", cfg.WorkerID).
		Str("bus", cfg.BusEndpoint).
		Str("topic", cfg.BusTopic).
		Str("group", cfg.BusGroupID).
		Str("store", cfg.StoreHost).
		Str("ref_service", cfg.RefServiceURL).
		Float64("bump_size", cfg.BumpSize).
		Msg("risk worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := portfolio.NewLoader(cfg.RefServiceURL, log.Logger)
	book, err := loader.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("portfolio load failed")
		os.Exit(exitInitFailure)
	}
	if len(book) == 0 {
		log.Error().Msg("no instruments loaded")
		os.Exit(exitInitFailure)
	}

	writer, err := store.NewWriter(ctx, cfg.StoreHost, cfg.StorePort, cfg.StoreTTL, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("store connection failed")
		os.Exit(exitInitFailure)
	}
	defer writer.Close()

	builder := curve.NewBuilder()
	calc := risk.NewCalculator(builder, cfg.BumpSize)
	reg := metrics.NewRegistry()
	reg.InstrumentsTotal.Set(float64(len(book)))

	source := engine.NewSource(cfg.BusEndpoint, cfg.BusTopic, cfg.BusGroupID)
	coord := engine.NewCoordinator(source, builder, calc, writer, book, reg, log.Logger)
	defer coord.Close()

	server := metrics.NewServer(cfg.MetricsAddr, reg, cfg.WorkerID, log.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return coord.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("fatal runtime error")
		os.Exit(exitFatalRuntime)
	}

	log.Info().Msg("risk worker stopped")
	return nil
}

func applyLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
