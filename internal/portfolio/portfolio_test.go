package portfolio

import (
	"math"
	"testing"
	"time"

	"dexagent/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testPortfolio(balance float64) *Portfolio {
	return New(balance).WithClock(func() time.Time { return testNow })
}

func testPosition(address string, entryPrice, quantity float64) domain.Position {
	return domain.Position{
		TokenSymbol:  "TEST",
		TokenAddress: address,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		Quantity:     quantity,
		EntryTime:    testNow,
	}
}

// reconciled checks the bookkeeping invariant:
// cash + open position value == starting balance + realized + unrealized.
func reconciled(t *testing.T, p *Portfolio) {
	t.Helper()

	lhs := p.TotalValue()
	rhs := p.StartingBalance() + p.RealizedPnL() + p.UnrealizedPnL()
	if math.Abs(lhs-rhs) > 1e-6 {
		t.Fatalf("portfolio out of balance: total %v != starting+pnl %v", lhs, rhs)
	}
}

func TestOpenDeductsCashAndRecordsTrade(t *testing.T) {
	p := testPortfolio(1000)

	if !p.Open(testPosition("0xaaa", 2.0, 100)) {
		t.Fatal("open failed")
	}

	if got := p.CurrentBalance(); got != 800 {
		t.Errorf("balance = %v, want 800", got)
	}
	if got := p.OpenCount(); got != 1 {
		t.Errorf("open count = %d, want 1", got)
	}

	trades := p.TradeHistory()
	if len(trades) != 1 {
		t.Fatalf("trade history length = %d, want 1", len(trades))
	}
	if trades[0].Action != domain.TradeActionBuy {
		t.Errorf("action = %q, want buy", trades[0].Action)
	}
	if trades[0].ValueUSD != 200 {
		t.Errorf("trade value = %v, want 200", trades[0].ValueUSD)
	}
	if trades[0].TradeID == "" {
		t.Error("trade id not assigned")
	}
	reconciled(t, p)
}

func TestOpenRejectsDuplicateAddress(t *testing.T) {
	p := testPortfolio(1000)

	if !p.Open(testPosition("0xaaa", 1.0, 100)) {
		t.Fatal("first open failed")
	}
	if p.Open(testPosition("0xaaa", 2.0, 50)) {
		t.Fatal("duplicate open must fail")
	}

	if got := p.CurrentBalance(); got != 900 {
		t.Errorf("balance changed on rejected open: %v", got)
	}
	if got := len(p.TradeHistory()); got != 1 {
		t.Errorf("trade recorded on rejected open: %d entries", got)
	}
}

func TestCloseRealizesProfit(t *testing.T) {
	p := testPortfolio(1000)
	p.Open(testPosition("0xaaa", 1.0, 100))

	if !p.Close("0xaaa", 1.5, "Take profit") {
		t.Fatal("close failed")
	}

	if got := p.CurrentBalance(); got != 1050 {
		t.Errorf("balance = %v, want 1050", got)
	}
	if got := p.RealizedPnL(); got != 50 {
		t.Errorf("realized pnl = %v, want 50", got)
	}
	wins, losses := p.WinLoss()
	if wins != 1 || losses != 0 {
		t.Errorf("win/loss = %d/%d, want 1/0", wins, losses)
	}
	if _, open := p.Position("0xaaa"); open {
		t.Error("position still open after close")
	}

	trades := p.TradeHistory()
	sells := 0
	for _, trade := range trades {
		if trade.Action == domain.TradeActionSell && trade.TokenAddress == "0xaaa" {
			sells++
			if trade.Reason != "Take profit" {
				t.Errorf("sell reason = %q", trade.Reason)
			}
		}
	}
	if sells != 1 {
		t.Errorf("sell trades = %d, want exactly 1", sells)
	}
	reconciled(t, p)
}

func TestCloseLossCountsAsLoss(t *testing.T) {
	p := testPortfolio(1000)
	p.Open(testPosition("0xaaa", 1.0, 100))

	p.Close("0xaaa", 0.8, "Stop loss")

	wins, losses := p.WinLoss()
	if wins != 0 || losses != 1 {
		t.Errorf("win/loss = %d/%d, want 0/1", wins, losses)
	}
	if got := p.RealizedPnL(); math.Abs(got-(-20)) > 1e-9 {
		t.Errorf("realized pnl = %v, want -20", got)
	}
	if got := p.WinRate(); got != 0 {
		t.Errorf("win rate = %v, want 0", got)
	}
}

func TestCloseUnknownAddressFails(t *testing.T) {
	p := testPortfolio(1000)

	if p.Close("0xmissing", 1.0, "whatever") {
		t.Fatal("close of unknown address must fail")
	}
	if got := p.CurrentBalance(); got != 1000 {
		t.Errorf("balance changed: %v", got)
	}
}

func TestUpdateAllRecomputesUnrealized(t *testing.T) {
	p := testPortfolio(1000)
	p.Open(testPosition("0xaaa", 1.0, 100))
	p.Open(testPosition("0xbbb", 2.0, 50))

	p.UpdateAll(map[string]float64{"0xaaa": 1.2, "0xbbb": 1.8})

	// +20 on the first, -10 on the second.
	if got := p.UnrealizedPnL(); math.Abs(got-10) > 1e-9 {
		t.Errorf("unrealized pnl = %v, want 10", got)
	}
	reconciled(t, p)

	// Partial map: the missing position keeps its last-known price but
	// still counts toward the total.
	p.UpdateAll(map[string]float64{"0xaaa": 1.5})
	if got := p.UnrealizedPnL(); math.Abs(got-40) > 1e-9 {
		t.Errorf("unrealized pnl after partial update = %v, want 40", got)
	}
	reconciled(t, p)
}

func TestReconciliationAcrossLifecycle(t *testing.T) {
	p := testPortfolio(1000)

	p.Open(testPosition("0xaaa", 0.5, 400))
	reconciled(t, p)

	p.Open(testPosition("0xbbb", 2.0, 100))
	reconciled(t, p)

	p.UpdateAll(map[string]float64{"0xaaa": 0.6, "0xbbb": 1.5})
	reconciled(t, p)

	p.Close("0xaaa", 0.6, "Take profit")
	// Stale unrealized total still includes the closed position until the
	// next full update pass.
	p.UpdateAll(map[string]float64{"0xbbb": 1.5})
	reconciled(t, p)

	p.Close("0xbbb", 1.4, "Stop loss")
	p.UpdateAll(nil)
	reconciled(t, p)

	if got := p.OpenCount(); got != 0 {
		t.Errorf("open count = %d, want 0", got)
	}
	// Realized: +40 on the first close, -60 on the second.
	if got := p.RealizedPnL(); math.Abs(got-(-20)) > 1e-9 {
		t.Errorf("realized pnl = %v, want -20", got)
	}
	if got := p.WinRate(); got != 50 {
		t.Errorf("win rate = %v, want 50", got)
	}
}

func TestROI(t *testing.T) {
	p := testPortfolio(1000)
	p.Open(testPosition("0xaaa", 1.0, 100))
	p.UpdateAll(map[string]float64{"0xaaa": 2.0})

	// Portfolio worth 900 cash + 200 position = 1100.
	if got := p.ROI(); math.Abs(got-10) > 1e-9 {
		t.Errorf("roi = %v, want 10", got)
	}
}

func TestSnapshot(t *testing.T) {
	p := testPortfolio(1000)
	p.Open(testPosition("0xbbb", 2.0, 50))
	p.Open(testPosition("0xaaa", 1.0, 100))
	p.UpdateAll(map[string]float64{"0xaaa": 1.1, "0xbbb": 2.2})

	snap := p.Snapshot()

	if !snap.Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v, want %v", snap.Timestamp, testNow)
	}
	if snap.StartingBalance != 1000 {
		t.Errorf("starting balance = %v", snap.StartingBalance)
	}
	if len(snap.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(snap.Positions))
	}
	// Ordered by address for stable output.
	if snap.Positions[0].TokenAddress != "0xaaa" || snap.Positions[1].TokenAddress != "0xbbb" {
		t.Errorf("positions not ordered by address: %s, %s",
			snap.Positions[0].TokenAddress, snap.Positions[1].TokenAddress)
	}
	if len(snap.RecentTrades) != 2 {
		t.Errorf("recent trades = %d, want 2", len(snap.RecentTrades))
	}
}

func TestSnapshotTradeCap(t *testing.T) {
	p := testPortfolio(1_000_000)

	for i := 0; i < 15; i++ {
		address := string(rune('a'+i)) + "-token"
		p.Open(testPosition(address, 1.0, 10))
		p.Close(address, 1.1, "cycle")
	}

	snap := p.Snapshot()
	if len(snap.RecentTrades) != maxSnapshotTrades {
		t.Errorf("recent trades = %d, want %d", len(snap.RecentTrades), maxSnapshotTrades)
	}
	// The cap keeps the newest entries.
	last := snap.RecentTrades[len(snap.RecentTrades)-1]
	if last.Action != domain.TradeActionSell {
		t.Errorf("last trade action = %q, want sell", last.Action)
	}
}
