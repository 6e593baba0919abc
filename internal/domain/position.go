package domain

import "time"

// Position is one open holding inside a Portfolio, keyed by token address.
// Derived fields are recomputed by UpdatePrice; nothing else mutates them.
type Position struct {
	TokenSymbol  string
	TokenAddress string
	EntryPrice   float64
	CurrentPrice float64
	Quantity     float64
	EntryTime    time.Time

	// Derived, maintained by UpdatePrice.
	ValueUSD   float64 // Quantity * CurrentPrice
	PnLUSD     float64 // ValueUSD - cost basis
	PnLPercent float64 // PnLUSD / cost basis * 100
}

// UpdatePrice sets the current price and recomputes value and P&L.
// The derived fields are pure functions of (price, quantity, entry price),
// so repeated calls with the same price are idempotent.
func (p *Position) UpdatePrice(price float64) {
	p.CurrentPrice = price
	p.ValueUSD = p.Quantity * p.CurrentPrice
	costBasis := p.Quantity * p.EntryPrice
	p.PnLUSD = p.ValueUSD - costBasis
	if costBasis > 0 {
		p.PnLPercent = p.PnLUSD / costBasis * 100
	} else {
		p.PnLPercent = 0
	}
}

// HoursHeld returns how long the position has been open at the given time.
func (p *Position) HoursHeld(now time.Time) float64 {
	return now.Sub(p.EntryTime).Hours()
}

// Trade actions.
const (
	TradeActionBuy  = "buy"
	TradeActionSell = "sell"
)

// Trade is one executed buy or sell, appended to the portfolio's trade
// history. The history is an append-only log.
type Trade struct {
	TradeID      string // deterministic hash, see idhash
	Timestamp    time.Time
	Action       string // buy | sell
	TokenSymbol  string
	TokenAddress string
	Price        float64
	Quantity     float64
	ValueUSD     float64
	Reason       string
}
