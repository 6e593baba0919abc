// Package report renders operator-facing status, portfolio, and market scan
// reports, and persists portfolio snapshots to disk.
package report

import (
	"fmt"
	"strings"

	"dexagent/internal/engine"
	"dexagent/internal/portfolio"
)

const ruleWidth = 50

func rule() string {
	return strings.Repeat("=", ruleWidth)
}

// FormatStatus renders the agent status block.
func FormatStatus(stats engine.Stats, maxPositions int) string {
	var b strings.Builder
	b.WriteString("\nTRADING AGENT STATUS\n")
	b.WriteString(rule() + "\n")
	fmt.Fprintf(&b, "Total Value: $%.2f (%+.1f%% ROI)\n", stats.TotalValue, stats.ROIPercent)
	fmt.Fprintf(&b, "Available Capital: $%.2f\n", stats.AvailableCapital)
	fmt.Fprintf(&b, "Open Positions: %d/%d\n", stats.PositionsOpen, maxPositions)
	fmt.Fprintf(&b, "Total Trades: %d (Win Rate: %.1f%%)\n", stats.TotalTrades, stats.WinRate)
	fmt.Fprintf(&b, "Tokens Analyzed: %d\n", stats.TokensAnalyzed)
	fmt.Fprintf(&b, "Watchlist: %d tokens", stats.WatchlistSize)
	return b.String()
}

// FormatPortfolio renders the portfolio block with every open position.
func FormatPortfolio(p *portfolio.Portfolio) string {
	wins, losses := p.WinLoss()

	var b strings.Builder
	b.WriteString("\nPORTFOLIO STATUS\n")
	b.WriteString(rule() + "\n")
	fmt.Fprintf(&b, "Total Value: $%.2f\n", p.TotalValue())
	fmt.Fprintf(&b, "Total P&L: $%.2f (%+.2f%%)\n", p.TotalPnL(), p.ROI())
	fmt.Fprintf(&b, "Cash Balance: $%.2f\n", p.CurrentBalance())
	fmt.Fprintf(&b, "Win Rate: %.1f%% (%dW/%dL)\n", p.WinRate(), wins, losses)

	positions := p.Positions()
	if len(positions) == 0 {
		return b.String()
	}

	b.WriteString("\nOPEN POSITIONS\n")
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	for _, pos := range positions {
		marker := "+"
		if pos.PnLPercent < 0 {
			marker = "-"
		}
		fmt.Fprintf(&b, "[%s] %s\n", marker, pos.TokenSymbol)
		fmt.Fprintf(&b, "    Entry: $%.8f -> Current: $%.8f\n", pos.EntryPrice, pos.CurrentPrice)
		fmt.Fprintf(&b, "    Value: $%.2f | P&L: $%.2f (%+.1f%%)\n", pos.ValueUSD, pos.PnLUSD, pos.PnLPercent)
	}
	return strings.TrimRight(b.String(), "\n")
}
