package engine

import "dexagent/internal/domain"

// Config holds the decision engine's trading thresholds. All fields are
// read-only after construction; build one with DefaultConfig and adjust
// before passing it to New.
type Config struct {
	// Chain restricts market scans to one chain; empty scans all chains.
	Chain string

	// CapitalReserve is the slice of total portfolio value never made
	// available for trading.
	CapitalReserve float64
	// MinPositionCapital is the smallest available-capital figure that
	// still permits opening a position.
	MinPositionCapital float64
	// MaxPositions caps concurrent open positions.
	MaxPositions int
	// MaxPositionFraction caps one position at this fraction of available
	// capital. Sizing scales from half this fraction up to the cap with
	// confidence.
	MaxPositionFraction float64

	// MinConfidence rejects entries below this analysis confidence.
	MinConfidence float64
	// BuyScore is the overall score needed for an immediate buy.
	BuyScore float64
	// WatchScore is the overall score that puts a wait-dip token on the
	// watchlist.
	WatchScore float64
	// SellConfidence is the fixed confidence attached to exit decisions.
	SellConfidence float64

	// StopLossPercent triggers an exit at -StopLossPercent P&L.
	StopLossPercent float64
	// TakeProfitTargets maps strategy to its take-profit percentage.
	TakeProfitTargets map[string]float64
	// ScalpingMaxHours is the hold limit for the scalping time exit.
	ScalpingMaxHours float64
	// ScalpingExitMinPnL is the minimum profit for the scalping time exit.
	ScalpingExitMinPnL float64
	// ReversalMinPnL is the minimum profit secured on a trend reversal.
	ReversalMinPnL float64
}

// DefaultConfig returns the standard trading thresholds.
func DefaultConfig() Config {
	return Config{
		CapitalReserve:      500,
		MinPositionCapital:  50,
		MaxPositions:        5,
		MaxPositionFraction: 0.2,

		MinConfidence:  65,
		BuyScore:       80,
		WatchScore:     70,
		SellConfidence: 90,

		StopLossPercent: 15,
		TakeProfitTargets: map[string]float64{
			domain.StrategyScalping: 25,
			domain.StrategySwing:    50,
			domain.StrategyPosition: 100,
		},
		ScalpingMaxHours:   4,
		ScalpingExitMinPnL: 5,
		ReversalMinPnL:     10,
	}
}

// takeProfitTarget returns the target for a strategy, defaulting to the
// swing target for unknown strategies.
func (c Config) takeProfitTarget(strategy string) float64 {
	if target, ok := c.TakeProfitTargets[strategy]; ok {
		return target
	}
	return c.TakeProfitTargets[domain.StrategySwing]
}
