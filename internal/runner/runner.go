// Package runner drives the agent's polling loops: market scans, position
// checks, deep watchlist analysis and periodic status reports.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"dexagent/internal/domain"
	"dexagent/internal/engine"
	"dexagent/internal/history"
	"dexagent/internal/notify"
	"dexagent/internal/observability"
	"dexagent/internal/portfolio"
	"dexagent/internal/report"
	"dexagent/internal/storage"
)

// Loop names used in logs and metrics labels.
const (
	loopMarketScan    = "market_scan"
	loopPositionCheck = "position_check"
	loopDeepAnalysis  = "deep_analysis"
	loopStatusReport  = "status_report"
)

// DefaultMaxBuysPerScan bounds how many buy decisions one scan may execute.
const DefaultMaxBuysPerScan = 3

// Options contains configuration for creating a Runner.
type Options struct {
	Engine    *engine.Engine
	Portfolio *portfolio.Portfolio
	Source    engine.MarketSource
	Tracker   *history.Tracker
	Notifier  *notify.System

	// Optional stores; nil disables the corresponding persistence.
	TradeStore      storage.TradeStore
	SnapshotStore   storage.SnapshotStore
	PricePointStore storage.PricePointStore

	// SnapshotPath writes a JSON portfolio snapshot each status report.
	// Empty disables the file.
	SnapshotPath string

	MarketScanInterval    time.Duration // Default: 5m
	PositionCheckInterval time.Duration // Default: 1m
	DeepAnalysisInterval  time.Duration // Default: 15m
	StatusReportInterval  time.Duration // Default: 10m
	ErrorBackoff          time.Duration // Default: 1m

	MaxBuysPerScan int // Default: DefaultMaxBuysPerScan

	// ReportWriter receives formatted status reports. Default: os.Stdout.
	ReportWriter io.Writer

	Logger zerolog.Logger
}

// Runner owns the agent's periodic work. Loops share the engine and
// portfolio, which guard their own state; the runner itself runs every
// cycle on one goroutine, so its bookkeeping needs no locking.
type Runner struct {
	engine    *engine.Engine
	portfolio *portfolio.Portfolio
	source    engine.MarketSource
	tracker   *history.Tracker
	notifier  *notify.System

	tradeStore      storage.TradeStore
	snapshotStore   storage.SnapshotStore
	pricePointStore storage.PricePointStore
	snapshotPath    string

	marketScanInterval    time.Duration
	positionCheckInterval time.Duration
	deepAnalysisInterval  time.Duration
	statusReportInterval  time.Duration
	errorBackoff          time.Duration
	maxBuysPerScan        int

	reportWriter io.Writer
	logger       zerolog.Logger

	persistedTrades int       // prefix of the trade history already written
	lastArchive     time.Time // price points before this are already archived
	backoffUntil    time.Time

	now func() time.Time
}

// NewRunner creates a runner around a configured engine.
func NewRunner(opts Options) *Runner {
	marketScan := opts.MarketScanInterval
	if marketScan <= 0 {
		marketScan = 5 * time.Minute
	}
	positionCheck := opts.PositionCheckInterval
	if positionCheck <= 0 {
		positionCheck = time.Minute
	}
	deepAnalysis := opts.DeepAnalysisInterval
	if deepAnalysis <= 0 {
		deepAnalysis = 15 * time.Minute
	}
	statusReport := opts.StatusReportInterval
	if statusReport <= 0 {
		statusReport = 10 * time.Minute
	}
	backoff := opts.ErrorBackoff
	if backoff <= 0 {
		backoff = time.Minute
	}
	maxBuys := opts.MaxBuysPerScan
	if maxBuys <= 0 {
		maxBuys = DefaultMaxBuysPerScan
	}
	reportWriter := opts.ReportWriter
	if reportWriter == nil {
		reportWriter = os.Stdout
	}

	return &Runner{
		engine:                opts.Engine,
		portfolio:             opts.Portfolio,
		source:                opts.Source,
		tracker:               opts.Tracker,
		notifier:              opts.Notifier,
		tradeStore:            opts.TradeStore,
		snapshotStore:         opts.SnapshotStore,
		pricePointStore:       opts.PricePointStore,
		snapshotPath:          opts.SnapshotPath,
		marketScanInterval:    marketScan,
		positionCheckInterval: positionCheck,
		deepAnalysisInterval:  deepAnalysis,
		statusReportInterval:  statusReport,
		errorBackoff:          backoff,
		maxBuysPerScan:        maxBuys,
		reportWriter:          reportWriter,
		logger:                opts.Logger.With().Str("component", "runner").Logger(),
		now:                   time.Now,
	}
}

// WithClock overrides the time source, used in tests.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.now = clock
	return r
}

// Run starts the polling loops and blocks until the context is cancelled.
// The first market scan runs immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("market_scan", r.marketScanInterval).
		Dur("position_check", r.positionCheckInterval).
		Dur("deep_analysis", r.deepAnalysisInterval).
		Dur("status_report", r.statusReportInterval).
		Msg("runner started")

	scanTicker := time.NewTicker(r.marketScanInterval)
	defer scanTicker.Stop()
	positionTicker := time.NewTicker(r.positionCheckInterval)
	defer positionTicker.Stop()
	analysisTicker := time.NewTicker(r.deepAnalysisInterval)
	defer analysisTicker.Stop()
	reportTicker := time.NewTicker(r.statusReportInterval)
	defer reportTicker.Stop()

	r.cycle(ctx, loopMarketScan, r.marketScan)

	for {
		select {
		case <-ctx.Done():
			r.cycle(ctx, loopStatusReport, r.statusReport)
			r.logger.Info().Msg("runner stopping")
			return ctx.Err()
		case <-scanTicker.C:
			r.cycle(ctx, loopMarketScan, r.marketScan)
		case <-positionTicker.C:
			r.cycle(ctx, loopPositionCheck, r.positionCheck)
		case <-analysisTicker.C:
			r.cycle(ctx, loopDeepAnalysis, r.deepAnalysis)
		case <-reportTicker.C:
			r.cycle(ctx, loopStatusReport, r.statusReport)
		}
	}
}

// cycle runs one loop iteration with panic recovery and metrics. A panic
// or error pauses all loops for the error backoff window.
func (r *Runner) cycle(ctx context.Context, loop string, fn func(context.Context) error) {
	if r.now().Before(r.backoffUntil) {
		r.logger.Debug().Str("loop", loop).Time("until", r.backoffUntil).Msg("cycle skipped during backoff")
		return
	}

	start := r.now()
	status := "ok"

	defer func() {
		if rec := recover(); rec != nil {
			status = "panic"
			r.backoffUntil = r.now().Add(r.errorBackoff)
			r.logger.Error().Str("loop", loop).Interface("panic", rec).Msg("cycle panicked")
		}
		observability.RecordCycle(loop, status, r.now().Sub(start).Seconds())
	}()

	if err := fn(ctx); err != nil {
		status = "error"
		r.backoffUntil = r.now().Add(r.errorBackoff)
		r.logger.Error().Err(err).Str("loop", loop).Msg("cycle failed")
		return
	}

	r.logger.Debug().Str("loop", loop).Dur("elapsed", r.now().Sub(start)).Msg("cycle completed")
}

// marketScan pulls the full candidate universe, tracks every decision's
// token, executes sells first and then the highest-confidence buys.
func (r *Runner) marketScan(ctx context.Context) error {
	decisions := r.engine.ScanMarket(ctx, r.source)

	buysExecuted := 0
	for _, decision := range decisions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.tracker.Record(decision.Token)
		observability.RecordDecision(decision.Action)

		switch decision.Action {
		case domain.ActionSell:
			r.execute(ctx, decision)
		case domain.ActionBuy:
			if r.notifier != nil {
				r.notifier.HighOpportunity(ctx, decision.Analysis)
			}
			if buysExecuted >= r.maxBuysPerScan {
				continue
			}
			if r.execute(ctx, decision) {
				buysExecuted++
			}
		}
	}

	observability.RecordSuccessfulScan(r.now().Unix())
	r.logger.Info().
		Int("decisions", len(decisions)).
		Int("buys_executed", buysExecuted).
		Msg("market scan completed")
	return nil
}

// positionCheck refreshes every open position's price, records the history
// points and raises price alerts.
func (r *Runner) positionCheck(ctx context.Context) error {
	positions := r.portfolio.Positions()

	prices := make(map[string]float64, len(positions))
	for _, pos := range positions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pairs := r.source.GetTokenPairs(ctx, pos.TokenAddress)
		if len(pairs) == 0 {
			continue
		}
		token := pairs[0]
		prices[pos.TokenAddress] = token.PriceUSD
		r.tracker.Record(token)

		if decision := r.engine.Evaluate(token); decision != nil && decision.Action == domain.ActionSell {
			r.execute(ctx, decision)
		}
	}
	r.portfolio.UpdateAll(prices)

	for _, alert := range r.tracker.Alerts() {
		observability.RecordAlert(alert.Type)
		if r.notifier != nil {
			r.notifier.PriceAlert(ctx, alert)
		}
	}
	observability.UpdateTokensTracked(len(r.tracker.Tracked()))

	return nil
}

// deepAnalysis re-evaluates every watchlist token against fresh pair data.
// Watched tokens that ripened into entries are bought here between scans.
func (r *Runner) deepAnalysis(ctx context.Context) error {
	for _, address := range r.engine.Watchlist() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pairs := r.source.GetTokenPairs(ctx, address)
		if len(pairs) == 0 {
			continue
		}
		token := pairs[0]
		r.tracker.Record(token)

		if r.notifier != nil {
			r.notifier.PriceMovement(ctx, token)
		}

		decision := r.engine.Evaluate(token)
		if decision == nil {
			continue
		}
		observability.RecordDecision(decision.Action)
		r.execute(ctx, decision)
	}
	return nil
}

// statusReport prints the status and portfolio summaries, persists the
// snapshot and flushes new trades and price points to the stores.
func (r *Runner) statusReport(ctx context.Context) error {
	stats := r.engine.Stats()

	fmt.Fprintln(r.reportWriter, report.FormatStatus(stats, r.engine.MaxPositions()))
	fmt.Fprintln(r.reportWriter, report.FormatPortfolio(r.portfolio))

	observability.UpdatePortfolioGauges(
		stats.TotalValue, stats.AvailableCapital, stats.TotalProfit,
		stats.PositionsOpen, stats.WatchlistSize,
	)

	snap := r.portfolio.Snapshot()
	if r.snapshotPath != "" {
		if err := report.WriteSnapshot(r.snapshotPath, snap); err != nil {
			r.logger.Error().Err(err).Str("path", r.snapshotPath).Msg("snapshot write failed")
		}
	}
	if r.snapshotStore != nil {
		start := r.now()
		err := r.snapshotStore.Insert(ctx, &snap)
		observability.RecordDBQuery("postgres", "insert_snapshot", r.now().Sub(start).Seconds(), err)
		if err != nil {
			r.logger.Error().Err(err).Msg("snapshot store insert failed")
		}
	}

	r.persistTrades(ctx)
	r.archivePricePoints(ctx)

	return nil
}

// persistTrades writes the not-yet-persisted suffix of the trade history.
// The history is append-only, so an index is enough to track progress.
func (r *Runner) persistTrades(ctx context.Context) {
	if r.tradeStore == nil {
		return
	}

	trades := r.portfolio.TradeHistory()
	if r.persistedTrades >= len(trades) {
		return
	}

	pending := make([]*domain.Trade, 0, len(trades)-r.persistedTrades)
	for i := r.persistedTrades; i < len(trades); i++ {
		t := trades[i]
		pending = append(pending, &t)
	}

	start := r.now()
	err := r.tradeStore.InsertBulk(ctx, pending)
	observability.RecordDBQuery("postgres", "insert_trades", r.now().Sub(start).Seconds(), err)
	if err != nil {
		// Duplicates mean a previous partial run already wrote these.
		if !errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Error().Err(err).Int("trades", len(pending)).Msg("trade persist failed")
			return
		}
	}
	r.persistedTrades = len(trades)
}

// archivePricePoints flushes tracker points newer than the last archive
// cut-off to the price point store.
func (r *Runner) archivePricePoints(ctx context.Context) {
	if r.pricePointStore == nil {
		return
	}

	// The archive key is (address, millisecond). The stream feed and a
	// polling loop can record the same token within one millisecond, and a
	// duplicate fails the whole batch, so collapse those here.
	type pointKey struct {
		address string
		ms      int64
	}
	cutoff := r.lastArchive
	seen := make(map[pointKey]struct{})
	var pending []*domain.PricePoint
	for _, address := range r.tracker.Tracked() {
		for _, point := range r.tracker.Points(address) {
			if !point.Timestamp.After(cutoff) {
				continue
			}
			key := pointKey{address, point.Timestamp.UnixMilli()}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			p := point
			pending = append(pending, &p)
		}
	}
	if len(pending) == 0 {
		return
	}

	start := r.now()
	err := r.pricePointStore.InsertBulk(ctx, pending)
	observability.RecordDBQuery("clickhouse", "insert_price_points", r.now().Sub(start).Seconds(), err)
	if err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Error().Err(err).Int("points", len(pending)).Msg("price point archive failed")
			return
		}
	}
	r.lastArchive = r.now()
}

// execute runs a decision through the engine and reports the outcome.
func (r *Runner) execute(ctx context.Context, decision *domain.TradingDecision) bool {
	executed := r.engine.Execute(decision)
	observability.RecordTrade(decision.Action, executed)
	if executed && r.notifier != nil {
		r.notifier.TradeExecuted(ctx, *decision)
	}
	return executed
}
