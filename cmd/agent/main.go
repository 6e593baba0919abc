// The agent command runs the paper-trading loop: it scans the market,
// opens and closes simulated positions and reports status periodically.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dexagent/internal/config"
	"dexagent/internal/engine"
	"dexagent/internal/history"
	"dexagent/internal/marketdata"
	"dexagent/internal/notify"
	"dexagent/internal/observability"
	"dexagent/internal/portfolio"
	"dexagent/internal/runner"
	"dexagent/internal/storage"
	chstore "dexagent/internal/storage/clickhouse"
	"dexagent/internal/storage/memory"
	"dexagent/internal/storage/migrations"
	pgstore "dexagent/internal/storage/postgres"
	"dexagent/internal/timeframe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("agent failed")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var source engine.MarketSource
	if cfg.DemoMode {
		logger.Info().Int64("seed", cfg.DemoSeed).Msg("demo mode: using generated market data")
		source = marketdata.NewDemoSource(cfg.DemoSeed)
	} else {
		source = marketdata.NewClient(cfg.DexScreenerBaseURL, logger,
			marketdata.WithTimeout(cfg.RequestTimeout))
	}

	tracker := history.NewTracker(cfg.HistoryWindow)

	var tradeStore storage.TradeStore
	var snapshotStore storage.SnapshotStore
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}
		tradeStore = pgstore.NewTradeStore(pool)
		snapshotStore = pgstore.NewSnapshotStore(pool)
		logger.Info().Msg("postgres persistence enabled")
	} else {
		tradeStore = memory.NewTradeStore()
		snapshotStore = memory.NewSnapshotStore()
		logger.Info().Msg("no postgres DSN, keeping trades and snapshots in memory")
	}

	var pricePointStore storage.PricePointStore
	if cfg.ClickHouseAddr != "" {
		dsn := fmt.Sprintf("clickhouse://%s/%s", cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()

		pricePointStore = chstore.NewPricePointStore(conn)
		logger.Info().Str("database", cfg.ClickHouseDatabase).Msg("clickhouse archive enabled")
	} else {
		pricePointStore = memory.NewPricePointStore()
		logger.Info().Msg("no clickhouse address, keeping price points in memory")
	}

	notifier := notify.NewSystem(notify.DefaultFilters(), logger)
	notifier.AddChannel(notify.NewConsoleChannel(os.Stdout))
	if cfg.NotificationsDir != "" {
		notifier.AddChannel(notify.NewFileChannel(cfg.NotificationsDir))
	}
	if cfg.WebhookURL != "" {
		notifier.AddChannel(notify.NewWebhookChannel(cfg.WebhookURL))
	}

	pf := portfolio.New(cfg.StartingBalance)
	analyzer := timeframe.NewAnalyzer()
	eng := engine.New(cfg.EngineConfig(), pf, analyzer, logger)

	// Live pair updates feed the history tracker between polls.
	if cfg.DexScreenerWSURL != "" && !cfg.DemoMode {
		stream, err := marketdata.NewPairStream(ctx, cfg.DexScreenerWSURL, logger, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("pair stream unavailable, continuing with polling only")
		} else {
			defer stream.Close()
			go watchPositions(ctx, stream, pf, logger)
			go func() {
				for snapshot := range stream.Updates() {
					tracker.Record(snapshot)
				}
			}()
		}
	}

	r := runner.NewRunner(runner.Options{
		Engine:                eng,
		Portfolio:             pf,
		Source:                source,
		Tracker:               tracker,
		Notifier:              notifier,
		TradeStore:            tradeStore,
		SnapshotStore:         snapshotStore,
		PricePointStore:       pricePointStore,
		SnapshotPath:          cfg.SnapshotPath,
		MarketScanInterval:    cfg.MarketScanInterval,
		PositionCheckInterval: cfg.PositionCheckInterval,
		DeepAnalysisInterval:  cfg.DeepAnalysisInterval,
		StatusReportInterval:  cfg.StatusReportInterval,
		ErrorBackoff:          cfg.ErrorBackoff,
		Logger:                logger,
	})

	logger.Info().
		Float64("starting_balance", cfg.StartingBalance).
		Bool("demo", cfg.DemoMode).
		Msg("starting trading agent")
	return r.Run(ctx)
}

// watchPositions keeps the stream's watch set aligned with open positions.
func watchPositions(ctx context.Context, stream *marketdata.PairStream, pf *portfolio.Portfolio, logger zerolog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			positions := pf.Positions()
			addresses := make([]string, 0, len(positions))
			for _, pos := range positions {
				addresses = append(addresses, pos.TokenAddress)
			}
			if len(addresses) == 0 {
				continue
			}
			if err := stream.Watch(addresses...); err != nil {
				logger.Warn().Err(err).Msg("stream watch update failed")
			}
		}
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
