// Package engine holds the trading agent's decision logic: entry and exit
// evaluation per token, strategy selection, position sizing and capital
// gating. Decisions and execution are separate steps; execution re-validates
// capital and position-count checks at mutation time, so a decision that
// went stale between scan loops simply fails to execute.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dexagent/internal/domain"
	"dexagent/internal/portfolio"
	"dexagent/internal/timeframe"
)

// Stats summarizes the agent's performance for reporting.
type Stats struct {
	TotalValue       float64 `json:"total_value"`
	TotalProfit      float64 `json:"total_profit"`
	ROIPercent       float64 `json:"roi_percent"`
	TotalTrades      int     `json:"total_trades"`
	SuccessfulTrades int     `json:"successful_trades"`
	FailedTrades     int     `json:"failed_trades"`
	WinRate          float64 `json:"win_rate"`
	PositionsOpen    int     `json:"positions_open"`
	AvailableCapital float64 `json:"available_capital"`
	TokensAnalyzed   int     `json:"tokens_analyzed"`
	WatchlistSize    int     `json:"watchlist_size"`
}

// Engine composes the timeframe analyzer and the portfolio into buy/sell
// decisions. Safe for use from multiple polling loops.
type Engine struct {
	cfg       Config
	portfolio *portfolio.Portfolio
	analyzer  *timeframe.Analyzer
	logger    zerolog.Logger

	mu         sync.Mutex
	analyzed   map[string]*domain.MultiTimeframeAnalysis
	watchlist  []string
	watchSet   map[string]struct{}
	strategies map[string]string // open position address -> strategy

	totalTrades      int
	successfulTrades int
	failedTrades     int
	totalProfit      float64

	now func() time.Time
}

// New creates an engine around a shared portfolio.
func New(cfg Config, pf *portfolio.Portfolio, analyzer *timeframe.Analyzer, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		portfolio:  pf,
		analyzer:   analyzer,
		logger:     logger.With().Str("component", "engine").Logger(),
		analyzed:   make(map[string]*domain.MultiTimeframeAnalysis),
		watchSet:   make(map[string]struct{}),
		strategies: make(map[string]string),
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.now = clock
	return e
}

// AvailableCapital is total portfolio value minus the fixed reserve,
// floored at zero.
func (e *Engine) AvailableCapital() float64 {
	return math.Max(0, e.portfolio.TotalValue()-e.cfg.CapitalReserve)
}

// CanOpenPosition reports whether both the position-count and the
// minimum-capital gates pass right now.
func (e *Engine) CanOpenPosition() bool {
	return e.portfolio.OpenCount() < e.cfg.MaxPositions &&
		e.AvailableCapital() > e.cfg.MinPositionCapital
}

// PositionSize converts confidence into a token quantity: 10% of available
// capital at confidence 50, scaling linearly to 20% at confidence 100.
func (e *Engine) PositionSize(tokenPrice, confidence float64) float64 {
	if tokenPrice <= 0 {
		return 0
	}
	half := e.cfg.MaxPositionFraction / 2
	factor := clamp((confidence-50)/50, 0, 1)
	positionValue := e.AvailableCapital() * (half + half*factor)
	return positionValue / tokenPrice
}

// Evaluate decides what to do about one token this cycle. Tokens with an
// open position go through exit evaluation; everything else through entry
// evaluation. A nil return means hold.
func (e *Engine) Evaluate(token domain.TokenSnapshot) *domain.TradingDecision {
	if _, open := e.portfolio.Position(token.Address); open {
		return e.evaluateExit(token)
	}
	return e.evaluateEntry(token)
}

func (e *Engine) evaluateEntry(token domain.TokenSnapshot) *domain.TradingDecision {
	analysis := e.analyzer.Analyze(token, nil, nil)

	e.mu.Lock()
	e.analyzed[token.Address] = analysis
	e.mu.Unlock()

	if analysis.ConfidenceLevel < e.cfg.MinConfidence {
		return nil
	}
	if analysis.EntryTiming == domain.EntryAvoid {
		return nil
	}

	switch {
	case analysis.OverallScore >= e.cfg.BuyScore && analysis.EntryTiming == domain.EntryImmediate:
		strategy := e.selectStrategy(analysis)
		return &domain.TradingDecision{
			Action: domain.ActionBuy,
			Token:  token,
			Reason: fmt.Sprintf("High score (%.0f), %s trend, good entry",
				analysis.OverallScore, analysis.OverallTrend),
			Confidence:      analysis.ConfidenceLevel,
			SuggestedAmount: e.PositionSize(token.PriceUSD, analysis.ConfidenceLevel),
			Strategy:        strategy,
			Analysis:        analysis,
		}
	case analysis.OverallScore >= e.cfg.WatchScore && analysis.EntryTiming == domain.EntryWaitDip:
		e.addToWatchlist(token.Address)
		return nil
	}
	return nil
}

// evaluateExit runs the exit rules in fixed priority order: stop-loss, then
// take-profit, then trend reversal, then the scalping time limit. The first
// matching rule wins.
func (e *Engine) evaluateExit(token domain.TokenSnapshot) *domain.TradingDecision {
	e.portfolio.UpdateAll(map[string]float64{token.Address: token.PriceUSD})
	pos, open := e.portfolio.Position(token.Address)
	if !open {
		return nil
	}

	analysis := e.analyzer.Analyze(token, nil, nil)
	strategy := e.positionStrategy(token.Address)

	var reason string
	switch {
	case pos.PnLPercent <= -e.cfg.StopLossPercent:
		reason = fmt.Sprintf("Stop loss triggered (%.1f%%)", pos.PnLPercent)
	case pos.PnLPercent >= e.cfg.takeProfitTarget(strategy):
		reason = fmt.Sprintf("Take profit target reached (%.1f%%)", pos.PnLPercent)
	case trendBearish(analysis.OverallTrend) && pos.PnLPercent > e.cfg.ReversalMinPnL:
		reason = fmt.Sprintf("Trend reversal detected, securing %.1f%% profit", pos.PnLPercent)
	case strategy == domain.StrategyScalping &&
		pos.HoursHeld(e.now()) > e.cfg.ScalpingMaxHours &&
		pos.PnLPercent > e.cfg.ScalpingExitMinPnL:
		reason = fmt.Sprintf("Scalping time limit reached with %.1f%% profit", pos.PnLPercent)
	default:
		return nil
	}

	return &domain.TradingDecision{
		Action:          domain.ActionSell,
		Token:           token,
		Reason:          reason,
		Confidence:      e.cfg.SellConfidence,
		SuggestedAmount: pos.Quantity,
		Strategy:        strategy,
		Analysis:        analysis,
	}
}

// selectStrategy picks a hold style from the analysis: high volatility
// scalps, a strong confirmed trend holds, everything else swings.
func (e *Engine) selectStrategy(analysis *domain.MultiTimeframeAnalysis) string {
	if analysis.AvgVolatility() > 15 {
		return domain.StrategyScalping
	}
	if analysis.OverallTrend == domain.MomentumStrongBullish && analysis.RiskRewardRatio > 2 {
		return domain.StrategyPosition
	}
	return domain.StrategySwing
}

// Execute applies a decision to the portfolio. Buys re-validate the capital
// and position-count gates and the cash balance at this moment; sells
// succeed whenever the position still exists.
func (e *Engine) Execute(decision *domain.TradingDecision) bool {
	switch decision.Action {
	case domain.ActionBuy:
		return e.executeBuy(decision)
	case domain.ActionSell:
		return e.executeSell(decision)
	default:
		return false
	}
}

func (e *Engine) executeBuy(decision *domain.TradingDecision) bool {
	if !e.CanOpenPosition() {
		e.logger.Info().
			Str("token", decision.Token.Symbol).
			Msg("cannot open new position: limit reached or insufficient capital")
		return false
	}

	cost := decision.Token.PriceUSD * decision.SuggestedAmount
	if cost > e.portfolio.CurrentBalance() {
		e.logger.Info().
			Str("token", decision.Token.Symbol).
			Float64("cost", cost).
			Msg("insufficient balance")
		return false
	}

	opened := e.portfolio.Open(domain.Position{
		TokenSymbol:  decision.Token.Symbol,
		TokenAddress: decision.Token.Address,
		EntryPrice:   decision.Token.PriceUSD,
		CurrentPrice: decision.Token.PriceUSD,
		Quantity:     decision.SuggestedAmount,
		EntryTime:    e.now(),
	})
	if !opened {
		return false
	}

	e.mu.Lock()
	e.strategies[decision.Token.Address] = decision.Strategy
	e.totalTrades++
	e.mu.Unlock()

	e.logger.Info().
		Str("token", decision.Token.Symbol).
		Float64("cost", cost).
		Float64("price", decision.Token.PriceUSD).
		Str("strategy", decision.Strategy).
		Str("reason", decision.Reason).
		Msg("BUY")
	return true
}

func (e *Engine) executeSell(decision *domain.TradingDecision) bool {
	pos, open := e.portfolio.Position(decision.Token.Address)
	if !open {
		return false
	}

	pnl := decision.Token.PriceUSD*pos.Quantity - pos.EntryPrice*pos.Quantity
	if !e.portfolio.Close(decision.Token.Address, decision.Token.PriceUSD, decision.Reason) {
		return false
	}

	e.mu.Lock()
	delete(e.strategies, decision.Token.Address)
	if pnl > 0 {
		e.successfulTrades++
	} else {
		e.failedTrades++
	}
	e.totalProfit += pnl
	e.mu.Unlock()

	e.logger.Info().
		Str("token", decision.Token.Symbol).
		Float64("pnl", pnl).
		Str("reason", decision.Reason).
		Msg("SELL")
	return true
}

// Watchlist returns the addresses queued for dip buying, oldest first.
func (e *Engine) Watchlist() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.watchlist))
	copy(out, e.watchlist)
	return out
}

// Analysis returns the latest analysis recorded for an address, if any.
func (e *Engine) Analysis(address string) (*domain.MultiTimeframeAnalysis, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	analysis, ok := e.analyzed[address]
	return analysis, ok
}

// Stats returns a snapshot of the agent's performance counters.
func (e *Engine) Stats() Stats {
	totalValue := e.portfolio.TotalValue()
	starting := e.portfolio.StartingBalance()

	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		TotalValue:       totalValue,
		TotalProfit:      e.totalProfit,
		TotalTrades:      e.totalTrades,
		SuccessfulTrades: e.successfulTrades,
		FailedTrades:     e.failedTrades,
		PositionsOpen:    e.portfolio.OpenCount(),
		AvailableCapital: math.Max(0, totalValue-e.cfg.CapitalReserve),
		TokensAnalyzed:   len(e.analyzed),
		WatchlistSize:    len(e.watchlist),
	}
	if starting > 0 {
		stats.ROIPercent = (totalValue - starting) / starting * 100
	}
	if e.totalTrades > 0 {
		stats.WinRate = float64(e.successfulTrades) / float64(e.totalTrades) * 100
	}
	return stats
}

// MaxPositions exposes the configured position cap for reporting.
func (e *Engine) MaxPositions() int {
	return e.cfg.MaxPositions
}

func (e *Engine) addToWatchlist(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, seen := e.watchSet[address]; seen {
		return
	}
	e.watchSet[address] = struct{}{}
	e.watchlist = append(e.watchlist, address)
}

func (e *Engine) positionStrategy(address string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strategy, ok := e.strategies[address]; ok {
		return strategy
	}
	return domain.StrategySwing
}

func trendBearish(trend string) bool {
	return trend == domain.MomentumBearish || trend == domain.MomentumStrongBearish
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
