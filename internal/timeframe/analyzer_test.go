package timeframe

import (
	"math"
	"testing"
	"time"

	"dexagent/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testAnalyzer() *Analyzer {
	return NewAnalyzer().WithClock(func() time.Time { return testNow })
}

func TestVolumeTrendClassification(t *testing.T) {
	cases := []struct {
		name    string
		volumes []float64
		want    string
	}{
		{"second half double", []float64{100, 100, 100, 200, 200, 200}, domain.VolumeTrendIncreasing},
		{"second half halved", []float64{200, 200, 200, 100, 100, 100}, domain.VolumeTrendDecreasing},
		{"equal halves", []float64{150, 150, 150, 150}, domain.VolumeTrendStable},
		{"too short", []float64{100}, domain.VolumeTrendStable},
		{"empty", nil, domain.VolumeTrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := volumeTrend(tc.volumes); got != tc.want {
				t.Errorf("volumeTrend(%v) = %q, want %q", tc.volumes, got, tc.want)
			}
		})
	}
}

func TestMomentumLabel(t *testing.T) {
	cases := []struct {
		change float64
		want   string
	}{
		{60, domain.MomentumStrongBullish},
		{30, domain.MomentumBullish},
		{0, domain.MomentumNeutral},
		{-20, domain.MomentumBearish},
		{-40, domain.MomentumStrongBearish},
	}

	for _, tc := range cases {
		if got := momentumLabel(tc.change); got != tc.want {
			t.Errorf("momentumLabel(%v) = %q, want %q", tc.change, got, tc.want)
		}
	}
}

func TestSupportResistance(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	support, resistance := supportResistance(prices)
	if support >= resistance {
		t.Fatalf("support %v must be below resistance %v", support, resistance)
	}
	// Linear interpolation over 10 points: 20th pct = 2.8, 80th = 8.2.
	if math.Abs(support-2.8) > 1e-9 {
		t.Errorf("support = %v, want 2.8", support)
	}
	if math.Abs(resistance-8.2) > 1e-9 {
		t.Errorf("resistance = %v, want 8.2", resistance)
	}

	support, resistance = supportResistance(nil)
	if support != 0 || resistance != 0 {
		t.Errorf("empty series must yield 0/0, got %v/%v", support, resistance)
	}
}

func TestVolatility(t *testing.T) {
	if v := volatility([]float64{1.0}); v != 0 {
		t.Errorf("single point volatility = %v, want 0", v)
	}
	if v := volatility([]float64{1.0, 1.0, 1.0}); v != 0 {
		t.Errorf("flat series volatility = %v, want 0", v)
	}
	if v := volatility([]float64{1.0, 1.5, 0.8, 1.2}); v <= 0 {
		t.Errorf("choppy series volatility = %v, want > 0", v)
	}
}

func TestOverallTrendWeighting(t *testing.T) {
	allBullish := map[string]domain.TimeframeMetrics{}
	for _, tf := range domain.Timeframes {
		allBullish[tf] = domain.TimeframeMetrics{Timeframe: tf, Momentum: domain.MomentumStrongBullish}
	}
	if got := overallTrend(allBullish); got != domain.MomentumStrongBullish {
		t.Errorf("all strong_bullish → %q, want strong_bullish", got)
	}

	allBearish := map[string]domain.TimeframeMetrics{}
	for _, tf := range domain.Timeframes {
		allBearish[tf] = domain.TimeframeMetrics{Timeframe: tf, Momentum: domain.MomentumStrongBearish}
	}
	if got := overallTrend(allBearish); got != domain.MomentumStrongBearish {
		t.Errorf("all strong_bearish → %q, want strong_bearish", got)
	}

	mixed := map[string]domain.TimeframeMetrics{}
	for _, tf := range domain.Timeframes {
		mixed[tf] = domain.TimeframeMetrics{Timeframe: tf, Momentum: domain.MomentumNeutral}
	}
	if got := overallTrend(mixed); got != domain.MomentumNeutral {
		t.Errorf("all neutral → %q, want neutral", got)
	}
}

func TestEntryTimingMissingShortTimeframes(t *testing.T) {
	token := domain.TokenSnapshot{PriceUSD: 1.0}

	// Only long timeframes present: conservative default applies.
	timeframes := map[string]domain.TimeframeMetrics{
		domain.Timeframe24H: {Timeframe: domain.Timeframe24H, Momentum: domain.MomentumBullish},
		domain.Timeframe3D:  {Timeframe: domain.Timeframe3D, Momentum: domain.MomentumBullish},
	}
	if got := entryTiming(token, timeframes, domain.MomentumBullish); got != domain.EntryWaitDip {
		t.Errorf("entryTiming without 1h/4h = %q, want wait_dip", got)
	}
}

func TestEntryTimingBranches(t *testing.T) {
	base := func() map[string]domain.TimeframeMetrics {
		return map[string]domain.TimeframeMetrics{
			domain.Timeframe1H: {Timeframe: domain.Timeframe1H, Support: 1.0, Resistance: 2.0},
			domain.Timeframe4H: {Timeframe: domain.Timeframe4H},
		}
	}

	// Non-bullish overall trend is always avoid.
	token := domain.TokenSnapshot{PriceUSD: 1.05}
	if got := entryTiming(token, base(), domain.MomentumNeutral); got != domain.EntryAvoid {
		t.Errorf("neutral trend = %q, want avoid", got)
	}

	// Overheated short term waits for a dip.
	hot := base()
	hot[domain.Timeframe1H] = domain.TimeframeMetrics{
		Timeframe: domain.Timeframe1H, PriceChange: 40, Volatility: 12, Support: 1.0, Resistance: 2.0,
	}
	if got := entryTiming(token, hot, domain.MomentumBullish); got != domain.EntryWaitDip {
		t.Errorf("overheated 1h = %q, want wait_dip", got)
	}

	// Price near support: immediate.
	if got := entryTiming(token, base(), domain.MomentumBullish); got != domain.EntryImmediate {
		t.Errorf("near support = %q, want immediate", got)
	}

	// Price pressing resistance: wait for breakout.
	pressing := domain.TokenSnapshot{PriceUSD: 1.95}
	if got := entryTiming(pressing, base(), domain.MomentumBullish); got != domain.EntryWaitBreakout {
		t.Errorf("near resistance = %q, want wait_breakout", got)
	}
}

func TestRiskRewardClamp(t *testing.T) {
	token := domain.TokenSnapshot{PriceUSD: 1.0}

	// No level data: default 1.0.
	if got := riskReward(token, map[string]domain.TimeframeMetrics{}); got != 1.0 {
		t.Errorf("no levels = %v, want 1.0", got)
	}

	// Price sitting exactly on support: zero loss, max ratio.
	onSupport := map[string]domain.TimeframeMetrics{
		domain.Timeframe1H: {Support: 1.0, Resistance: 2.0},
	}
	if got := riskReward(token, onSupport); got != 3.0 {
		t.Errorf("zero potential loss = %v, want 3.0", got)
	}

	// Huge upside clamps at 3.
	wideRange := map[string]domain.TimeframeMetrics{
		domain.Timeframe1H: {Support: 0.99, Resistance: 10.0},
	}
	if got := riskReward(token, wideRange); got != 3.0 {
		t.Errorf("clamped ratio = %v, want 3.0", got)
	}
}

func TestConfidenceClamp(t *testing.T) {
	// Every bonus applied must still clamp to 100.
	timeframes := map[string]domain.TimeframeMetrics{}
	for _, tf := range domain.Timeframes {
		timeframes[tf] = domain.TimeframeMetrics{
			Timeframe:   tf,
			Momentum:    domain.MomentumStrongBullish,
			VolumeTrend: domain.VolumeTrendIncreasing,
		}
	}
	got := confidenceLevel(timeframes, 2.5)
	if got < 0 || got > 100 {
		t.Fatalf("confidence out of bounds: %v", got)
	}
	// 50 base + 25 trend + 25 volume + 15 rr = 115 before the clamp.
	if got != 100 {
		t.Errorf("confidence = %v, want 100", got)
	}
}

func TestAnalyzeWithSyntheticHistory(t *testing.T) {
	token := domain.TokenSnapshot{
		Address:        "0xabc",
		Symbol:         "TEST",
		PriceUSD:       0.0005,
		PriceChange24h: 45,
		Volume24h:      8_000_000,
		MarketCap:      5_000_000,
		LiquidityUSD:   400_000,
	}

	analysis := testAnalyzer().Analyze(token, nil, nil)

	if len(analysis.Timeframes) != len(domain.Timeframes) {
		t.Fatalf("expected %d timeframes, got %d", len(domain.Timeframes), len(analysis.Timeframes))
	}
	for _, tf := range domain.Timeframes {
		metrics, ok := analysis.Timeframes[tf]
		if !ok {
			t.Fatalf("missing timeframe %s", tf)
		}
		if metrics.Support > metrics.Resistance {
			t.Errorf("%s: support %v above resistance %v", tf, metrics.Support, metrics.Resistance)
		}
		if metrics.Volatility < 0 {
			t.Errorf("%s: negative volatility %v", tf, metrics.Volatility)
		}
	}
	if analysis.RiskRewardRatio < 0 || analysis.RiskRewardRatio > 3 {
		t.Errorf("risk/reward out of bounds: %v", analysis.RiskRewardRatio)
	}
	if analysis.ConfidenceLevel < 0 || analysis.ConfidenceLevel > 100 {
		t.Errorf("confidence out of bounds: %v", analysis.ConfidenceLevel)
	}
	if analysis.OverallScore < 0 || analysis.OverallScore > 100 {
		t.Errorf("overall score out of bounds: %v", analysis.OverallScore)
	}
	if !analysis.Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v, want %v", analysis.Timestamp, testNow)
	}
}

func TestAnalyzeWithSuppliedHistory(t *testing.T) {
	token := domain.TokenSnapshot{PriceUSD: 2.0, PriceChange24h: -5}

	priceHistory := map[string][]float64{}
	volumeHistory := map[string][]float64{}
	for _, tf := range domain.Timeframes {
		// 1.0 → 2.0 is a +100% move: strong bullish on every timeframe.
		priceHistory[tf] = []float64{1.0, 1.2, 1.5, 1.8, 2.0}
		volumeHistory[tf] = []float64{100, 100, 300, 300}
	}

	analysis := testAnalyzer().Analyze(token, priceHistory, volumeHistory)

	if analysis.OverallTrend != domain.MomentumStrongBullish {
		t.Errorf("overall trend = %q, want strong_bullish", analysis.OverallTrend)
	}
	for _, tf := range domain.Timeframes {
		if got := analysis.Timeframes[tf].VolumeTrend; got != domain.VolumeTrendIncreasing {
			t.Errorf("%s volume trend = %q, want increasing", tf, got)
		}
	}
}

func TestSyntheticHistoryShape(t *testing.T) {
	token := domain.TokenSnapshot{PriceUSD: 1.5, PriceChange24h: 20, Volume24h: 240}

	history := syntheticPriceHistory(token)
	wantLen := map[string]int{"1h": 12, "4h": 12, "12h": 12, "24h": 24, "3d": 36}
	for tf, want := range wantLen {
		series := history[tf]
		if len(series) != want {
			t.Errorf("%s: length %d, want %d", tf, len(series), want)
		}
		if last := series[len(series)-1]; last != token.PriceUSD {
			t.Errorf("%s: last point %v, want current price %v", tf, last, token.PriceUSD)
		}
	}

	// Deterministic: same snapshot, same series.
	again := syntheticPriceHistory(token)
	for tf, series := range history {
		for i := range series {
			if series[i] != again[tf][i] {
				t.Fatalf("%s: synthetic history not deterministic at %d", tf, i)
			}
		}
	}
}
