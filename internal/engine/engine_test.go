package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dexagent/internal/domain"
	"dexagent/internal/portfolio"
	"dexagent/internal/timeframe"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testEngine wires an engine around a fresh portfolio with a controllable
// clock. Returned clock pointer can be advanced by tests.
func testEngine(balance float64) (*Engine, *portfolio.Portfolio, *time.Time) {
	current := testNow
	clock := func() time.Time { return current }

	pf := portfolio.New(balance).WithClock(clock)
	analyzer := timeframe.NewAnalyzer().WithClock(clock)
	e := New(DefaultConfig(), pf, analyzer, zerolog.Nop()).WithClock(clock)
	return e, pf, &current
}

func buyDecision(address string, price, quantity float64, strategy string) *domain.TradingDecision {
	return &domain.TradingDecision{
		Action: domain.ActionBuy,
		Token: domain.TokenSnapshot{
			Address:  address,
			Symbol:   "TEST",
			PriceUSD: price,
		},
		Reason:          "test entry",
		Confidence:      80,
		SuggestedAmount: quantity,
		Strategy:        strategy,
	}
}

func heldToken(address string, price, change24h float64) domain.TokenSnapshot {
	return domain.TokenSnapshot{
		Address:        address,
		Symbol:         "TEST",
		PriceUSD:       price,
		PriceChange24h: change24h,
		Volume24h:      1_000_000,
		MarketCap:      5_000_000,
		LiquidityUSD:   300_000,
	}
}

func TestAvailableCapitalRespectsReserve(t *testing.T) {
	e, _, _ := testEngine(1000)
	if got := e.AvailableCapital(); got != 500 {
		t.Errorf("available = %v, want 500", got)
	}

	low, _, _ := testEngine(400)
	if got := low.AvailableCapital(); got != 0 {
		t.Errorf("available below reserve = %v, want 0", got)
	}
}

func TestCanOpenPositionGates(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.CanOpenPosition() {
		t.Fatal("fresh portfolio must allow positions")
	}

	// Available capital at 20 is under the 50 minimum.
	tight, _, _ := testEngine(520)
	if tight.CanOpenPosition() {
		t.Error("available capital below minimum must block")
	}

	// Fill the position slots.
	full, _, _ := testEngine(100_000)
	addresses := []string{"0xa", "0xb", "0xc", "0xd", "0xe"}
	for _, addr := range addresses {
		if !full.Execute(buyDecision(addr, 1.0, 100, domain.StrategySwing)) {
			t.Fatalf("buy for %s failed", addr)
		}
	}
	if full.CanOpenPosition() {
		t.Error("position cap reached must block")
	}
}

func TestPositionSizeScalesWithConfidence(t *testing.T) {
	e, _, _ := testEngine(10_500) // available = 10000

	cases := []struct {
		confidence float64
		wantValue  float64
	}{
		{50, 1000},  // 10%
		{75, 1500},  // 15%
		{100, 2000}, // 20%
		{120, 2000}, // factor clamped
		{30, 1000},  // factor floored
	}
	for _, tc := range cases {
		quantity := e.PositionSize(2.0, tc.confidence)
		if got := quantity * 2.0; math.Abs(got-tc.wantValue) > 1e-6 {
			t.Errorf("confidence %v: position value = %v, want %v", tc.confidence, got, tc.wantValue)
		}
	}

	if got := e.PositionSize(0, 80); got != 0 {
		t.Errorf("zero price sizing = %v, want 0", got)
	}
}

func TestEvaluateRejectsLowConfidence(t *testing.T) {
	e, _, _ := testEngine(10_000)

	// Flat token: neutral trend keeps confidence under the minimum.
	token := heldToken("0xflat", 1.0, 0)
	if decision := e.Evaluate(token); decision != nil {
		t.Errorf("unexpected decision: %+v", decision)
	}

	if _, ok := e.Analysis("0xflat"); !ok {
		t.Error("analysis not recorded for evaluated token")
	}
	if got := e.Stats().TokensAnalyzed; got != 1 {
		t.Errorf("tokens analyzed = %d, want 1", got)
	}
}

func TestExitStopLoss(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategySwing)) {
		t.Fatal("buy failed")
	}

	decision := e.Evaluate(heldToken("0xpos", 0.84, -16))
	if decision == nil {
		t.Fatal("expected sell decision")
	}
	if decision.Action != domain.ActionSell {
		t.Errorf("action = %q, want sell", decision.Action)
	}
	if !strings.Contains(decision.Reason, "Stop loss") {
		t.Errorf("reason = %q, want stop loss", decision.Reason)
	}
	if decision.Confidence != 90 {
		t.Errorf("confidence = %v, want 90", decision.Confidence)
	}
	if decision.SuggestedAmount != 100 {
		t.Errorf("suggested amount = %v, want full quantity", decision.SuggestedAmount)
	}
}

func TestExitTakeProfitScalping(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategyScalping)) {
		t.Fatal("buy failed")
	}

	// Neutral trend; +26% clears the 25% scalping target anyway.
	decision := e.Evaluate(heldToken("0xpos", 1.26, 0))
	if decision == nil {
		t.Fatal("expected sell decision")
	}
	if !strings.Contains(decision.Reason, "Take profit") {
		t.Errorf("reason = %q, want take profit", decision.Reason)
	}
}

func TestExitTakeProfitSwingNotReached(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategySwing)) {
		t.Fatal("buy failed")
	}

	// +26% is under the 50% swing target; neutral trend, no other rule.
	if decision := e.Evaluate(heldToken("0xpos", 1.26, 0)); decision != nil {
		t.Errorf("unexpected decision: %+v", decision)
	}
}

func TestExitTrendReversal(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategySwing)) {
		t.Fatal("buy failed")
	}

	// Collapsing 24h change drives every timeframe bearish while the
	// position still holds a +20% profit.
	decision := e.Evaluate(heldToken("0xpos", 1.2, -60))
	if decision == nil {
		t.Fatal("expected sell decision")
	}
	if !strings.Contains(decision.Reason, "Trend reversal") {
		t.Errorf("reason = %q, want trend reversal", decision.Reason)
	}
}

func TestExitScalpingTimeLimit(t *testing.T) {
	e, _, clock := testEngine(10_000)
	if !e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategyScalping)) {
		t.Fatal("buy failed")
	}

	*clock = testNow.Add(5 * time.Hour)

	// +10% is under the scalping take-profit but over the time-exit
	// minimum, and the hold is past four hours.
	decision := e.Evaluate(heldToken("0xpos", 1.10, 0))
	if decision == nil {
		t.Fatal("expected sell decision")
	}
	if !strings.Contains(decision.Reason, "time limit") {
		t.Errorf("reason = %q, want time limit", decision.Reason)
	}
}

func TestExitScalpingTimeLimitNeedsProfit(t *testing.T) {
	e, _, clock := testEngine(10_000)
	if !e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategyScalping)) {
		t.Fatal("buy failed")
	}

	*clock = testNow.Add(5 * time.Hour)

	// +3% does not clear the time-exit minimum.
	if decision := e.Evaluate(heldToken("0xpos", 1.03, 0)); decision != nil {
		t.Errorf("unexpected decision: %+v", decision)
	}
}

func TestExecuteBuyInsufficientBalance(t *testing.T) {
	e, pf, _ := testEngine(1000)

	// Cost 2000 exceeds cash even though available-capital gating passes.
	if e.Execute(buyDecision("0xpos", 2.0, 1000, domain.StrategySwing)) {
		t.Fatal("buy must fail on insufficient cash")
	}
	if got := pf.OpenCount(); got != 0 {
		t.Errorf("open count = %d, want 0", got)
	}
}

func TestExecuteSellUpdatesStats(t *testing.T) {
	e, pf, _ := testEngine(10_000)
	e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategySwing))

	sell := &domain.TradingDecision{
		Action: domain.ActionSell,
		Token:  domain.TokenSnapshot{Address: "0xpos", Symbol: "TEST", PriceUSD: 1.5},
		Reason: "Take profit target reached",
	}
	if !e.Execute(sell) {
		t.Fatal("sell failed")
	}

	stats := e.Stats()
	if stats.SuccessfulTrades != 1 || stats.FailedTrades != 0 {
		t.Errorf("trades = %d/%d, want 1/0", stats.SuccessfulTrades, stats.FailedTrades)
	}
	if math.Abs(stats.TotalProfit-50) > 1e-9 {
		t.Errorf("total profit = %v, want 50", stats.TotalProfit)
	}
	if got := pf.OpenCount(); got != 0 {
		t.Errorf("position not removed")
	}

	// Selling again must fail: the position is gone.
	if e.Execute(sell) {
		t.Error("second sell must fail")
	}
}

func TestStatsROI(t *testing.T) {
	e, pf, _ := testEngine(1000)
	e.Execute(buyDecision("0xpos", 1.0, 100, domain.StrategySwing))
	pf.UpdateAll(map[string]float64{"0xpos": 2.0})

	stats := e.Stats()
	if math.Abs(stats.ROIPercent-10) > 1e-9 {
		t.Errorf("roi = %v, want 10", stats.ROIPercent)
	}
	if stats.PositionsOpen != 1 {
		t.Errorf("positions open = %d, want 1", stats.PositionsOpen)
	}
}
