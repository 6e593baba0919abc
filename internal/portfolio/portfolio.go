// Package portfolio tracks paper-trading capital, open positions and the
// append-only trade log. All mutations go through the Portfolio's mutex so
// concurrent polling loops can share one instance.
package portfolio

import (
	"sort"
	"sync"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/idhash"
)

// Portfolio holds cash and open positions keyed by token address.
// At most one open position per address; re-buying after a close creates a
// brand-new position.
type Portfolio struct {
	mu sync.RWMutex

	startingBalance float64
	currentBalance  float64
	positions       map[string]*domain.Position
	trades          []domain.Trade
	realizedPnL     float64
	unrealizedPnL   float64
	winCount        int
	lossCount       int

	now func() time.Time
}

// New creates a portfolio with the given starting cash balance.
func New(startingBalance float64) *Portfolio {
	return &Portfolio{
		startingBalance: startingBalance,
		currentBalance:  startingBalance,
		positions:       make(map[string]*domain.Position),
		now:             time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (p *Portfolio) WithClock(clock func() time.Time) *Portfolio {
	p.now = clock
	return p
}

// Open adds a new position, deducts its cost from cash and records the buy
// trade. Returns false without mutating anything if the address already has
// an open position. Capital sufficiency is the caller's check, not ours.
func (p *Portfolio) Open(pos domain.Position) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.positions[pos.TokenAddress]; exists {
		return false
	}

	pos.UpdatePrice(pos.CurrentPrice)
	p.positions[pos.TokenAddress] = &pos
	cost := pos.Quantity * pos.EntryPrice
	p.currentBalance -= cost

	p.appendTrade(domain.Trade{
		Timestamp:    pos.EntryTime,
		Action:       domain.TradeActionBuy,
		TokenSymbol:  pos.TokenSymbol,
		TokenAddress: pos.TokenAddress,
		Price:        pos.EntryPrice,
		Quantity:     pos.Quantity,
		ValueUSD:     cost,
		Reason:       "Initial position",
	})
	return true
}

// Close sells an open position at exitPrice: credits the proceeds to cash,
// accumulates realized P&L, bumps the win/loss counter and records the sell
// trade. Returns false if the address has no open position.
func (p *Portfolio) Close(address string, exitPrice float64, reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, exists := p.positions[address]
	if !exists {
		return false
	}

	pos.UpdatePrice(exitPrice)
	p.currentBalance += pos.ValueUSD
	p.realizedPnL += pos.PnLUSD

	if pos.PnLUSD > 0 {
		p.winCount++
	} else {
		p.lossCount++
	}

	p.appendTrade(domain.Trade{
		Timestamp:    p.now(),
		Action:       domain.TradeActionSell,
		TokenSymbol:  pos.TokenSymbol,
		TokenAddress: pos.TokenAddress,
		Price:        exitPrice,
		Quantity:     pos.Quantity,
		ValueUSD:     pos.ValueUSD,
		Reason:       reason,
	})

	delete(p.positions, address)
	return true
}

// UpdateAll refreshes open positions from the price map and recomputes total
// unrealized P&L from scratch. Positions absent from the map keep their
// last-known price but still count toward the total, so callers wanting an
// accurate read should supply a complete map.
func (p *Portfolio) UpdateAll(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unrealizedPnL = 0
	for address, pos := range p.positions {
		if price, ok := prices[address]; ok {
			pos.UpdatePrice(price)
		}
		p.unrealizedPnL += pos.PnLUSD
	}
}

// Position returns a copy of the open position for address, if any.
func (p *Portfolio) Position(address string) (domain.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.positions[address]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, ordered by token address.
func (p *Portfolio) Positions() []domain.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out
}

// OpenCount returns the number of open positions.
func (p *Portfolio) OpenCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

// CurrentBalance returns uncommitted cash.
func (p *Portfolio) CurrentBalance() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentBalance
}

// StartingBalance returns the initial cash balance.
func (p *Portfolio) StartingBalance() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.startingBalance
}

// RealizedPnL returns cumulative realized profit and loss.
func (p *Portfolio) RealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// UnrealizedPnL returns the total from the last UpdateAll pass.
func (p *Portfolio) UnrealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrealizedPnL
}

// TotalValue returns cash plus the value of all open positions.
func (p *Portfolio) TotalValue() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalValueLocked()
}

func (p *Portfolio) totalValueLocked() float64 {
	total := p.currentBalance
	for _, pos := range p.positions {
		total += pos.ValueUSD
	}
	return total
}

// TotalPnL returns realized plus unrealized profit and loss.
func (p *Portfolio) TotalPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL + p.unrealizedPnL
}

// ROI returns total return as a percentage of the starting balance.
func (p *Portfolio) ROI() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.startingBalance == 0 {
		return 0
	}
	return (p.totalValueLocked() - p.startingBalance) / p.startingBalance * 100
}

// WinRate returns the percentage of closed positions that realized a profit,
// or 0 before any close.
func (p *Portfolio) WinRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := p.winCount + p.lossCount
	if total == 0 {
		return 0
	}
	return float64(p.winCount) / float64(total) * 100
}

// WinLoss returns the closed-position win and loss counts.
func (p *Portfolio) WinLoss() (wins, losses int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.winCount, p.lossCount
}

// TradeHistory returns a copy of the full trade log, oldest first.
func (p *Portfolio) TradeHistory() []domain.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Snapshot captures the full serializable portfolio state for the
// persistence collaborator. Positions are ordered by address and the trade
// list is capped to the most recent entries.
func (p *Portfolio) Snapshot() domain.PortfolioSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := domain.PortfolioSnapshot{
		Timestamp:       p.now(),
		StartingBalance: p.startingBalance,
		CurrentBalance:  p.currentBalance,
		RealizedPnL:     p.realizedPnL,
		UnrealizedPnL:   p.unrealizedPnL,
		WinCount:        p.winCount,
		LossCount:       p.lossCount,
	}

	for _, pos := range p.positions {
		snap.Positions = append(snap.Positions, domain.PositionSnapshot{
			TokenSymbol:  pos.TokenSymbol,
			TokenAddress: pos.TokenAddress,
			EntryPrice:   pos.EntryPrice,
			CurrentPrice: pos.CurrentPrice,
			Quantity:     pos.Quantity,
			EntryTime:    pos.EntryTime,
			PnLUSD:       pos.PnLUSD,
			PnLPercent:   pos.PnLPercent,
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].TokenAddress < snap.Positions[j].TokenAddress
	})

	start := 0
	if len(p.trades) > maxSnapshotTrades {
		start = len(p.trades) - maxSnapshotTrades
	}
	for _, trade := range p.trades[start:] {
		snap.RecentTrades = append(snap.RecentTrades, domain.TradeSnapshot{
			Timestamp:    trade.Timestamp,
			Action:       trade.Action,
			TokenSymbol:  trade.TokenSymbol,
			TokenAddress: trade.TokenAddress,
			Price:        trade.Price,
			Quantity:     trade.Quantity,
			ValueUSD:     trade.ValueUSD,
			Reason:       trade.Reason,
		})
	}
	return snap
}

const maxSnapshotTrades = 20

// appendTrade assigns the deterministic trade ID and appends to the log.
// Callers must hold the write lock.
func (p *Portfolio) appendTrade(trade domain.Trade) {
	trade.TradeID = idhash.ComputeTradeID(
		trade.TokenAddress,
		trade.Action,
		trade.Timestamp.UnixMilli(),
		len(p.trades),
	)
	p.trades = append(p.trades, trade)
}
