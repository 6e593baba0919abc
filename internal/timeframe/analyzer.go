// Package timeframe computes multi-timeframe technical analyses of token
// snapshots: per-timeframe momentum, volume trend, support/resistance and
// volatility, aggregated into an overall trend, entry timing, risk/reward
// and confidence read.
package timeframe

import (
	"math"
	"time"

	"dexagent/internal/domain"
)

// Analyzer produces MultiTimeframeAnalysis values. It is stateless apart
// from its clock and safe for concurrent use.
type Analyzer struct {
	now func() time.Time
}

// NewAnalyzer creates an Analyzer using the wall clock.
func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// WithClock overrides the analyzer's clock. Used by tests for deterministic
// timestamps.
func (a *Analyzer) WithClock(clock func() time.Time) *Analyzer {
	a.now = clock
	return a
}

// Analyze performs the full multi-timeframe analysis of one snapshot.
// priceHistory and volumeHistory map timeframe labels to series ordered
// oldest first; either may be nil, in which case a deterministic synthetic
// series anchored to the current price is used instead.
func (a *Analyzer) Analyze(token domain.TokenSnapshot, priceHistory, volumeHistory map[string][]float64) *domain.MultiTimeframeAnalysis {
	if priceHistory == nil {
		priceHistory = syntheticPriceHistory(token)
	}
	if volumeHistory == nil {
		volumeHistory = syntheticVolumeHistory(token)
	}

	timeframes := make(map[string]domain.TimeframeMetrics, len(domain.Timeframes))
	for _, tf := range domain.Timeframes {
		timeframes[tf] = analyzeTimeframe(token, tf, priceHistory[tf], volumeHistory[tf])
	}

	overallTrend := overallTrend(timeframes)
	entryTiming := entryTiming(token, timeframes, overallTrend)
	riskReward := riskReward(token, timeframes)
	confidence := confidenceLevel(timeframes, riskReward)
	score := overallScore(token, overallTrend, riskReward, confidence)

	return &domain.MultiTimeframeAnalysis{
		Token:           token,
		Timeframes:      timeframes,
		OverallTrend:    overallTrend,
		OverallScore:    score,
		EntryTiming:     entryTiming,
		RiskRewardRatio: riskReward,
		ConfidenceLevel: confidence,
		Timestamp:       a.now(),
	}
}

// analyzeTimeframe computes the technical features for one timeframe.
func analyzeTimeframe(token domain.TokenSnapshot, tf string, prices, volumes []float64) domain.TimeframeMetrics {
	priceChange := token.PriceChange24h // fallback when no series
	if len(prices) > 0 && prices[0] != 0 {
		priceChange = (prices[len(prices)-1] - prices[0]) / prices[0] * 100
	}

	volumeAvg := token.Volume24h
	if len(volumes) > 0 {
		volumeAvg = mean(volumes)
	}

	support, resistance := supportResistance(prices)

	return domain.TimeframeMetrics{
		Timeframe:   tf,
		PriceChange: priceChange,
		VolumeAvg:   volumeAvg,
		VolumeTrend: volumeTrend(volumes),
		Momentum:    momentumLabel(priceChange),
		Support:     support,
		Resistance:  resistance,
		Volatility:  volatility(prices),
	}
}

// momentumLabel categorizes a timeframe's percent change on the analyzer's
// coarse 5-way scale.
func momentumLabel(priceChange float64) string {
	switch {
	case priceChange > 50:
		return domain.MomentumStrongBullish
	case priceChange > 20:
		return domain.MomentumBullish
	case priceChange > -10:
		return domain.MomentumNeutral
	case priceChange > -30:
		return domain.MomentumBearish
	default:
		return domain.MomentumStrongBearish
	}
}

// volumeTrend compares the mean of the first half of the series against the
// second half. Ratio above 1.3 reads as increasing, below 0.7 decreasing.
func volumeTrend(volumes []float64) string {
	if len(volumes) < 2 {
		return domain.VolumeTrendStable
	}

	mid := len(volumes) / 2
	firstHalf := mean(volumes[:mid])
	secondHalf := mean(volumes[mid:])

	ratio := secondHalf / (firstHalf + 1)
	switch {
	case ratio > 1.3:
		return domain.VolumeTrendIncreasing
	case ratio < 0.7:
		return domain.VolumeTrendDecreasing
	default:
		return domain.VolumeTrendStable
	}
}

// supportResistance estimates levels as the 20th and 80th percentiles of
// the price series.
func supportResistance(prices []float64) (support, resistance float64) {
	if len(prices) == 0 {
		return 0, 0
	}
	return percentile(prices, 0.20), percentile(prices, 0.80)
}

// volatility is the standard deviation of step-wise returns, in percent.
// Fewer than 2 points yields 0.
func volatility(prices []float64) float64 {
	returns := stepReturns(prices)
	if len(returns) == 0 {
		return 0
	}
	return stddev(returns) * 100
}

// overallTrend reduces per-timeframe momentum to a single 5-way label via
// the fixed weight table.
func overallTrend(timeframes map[string]domain.TimeframeMetrics) string {
	weighted := 0.0
	for tf, metrics := range timeframes {
		weighted += float64(domain.MomentumScore[metrics.Momentum]) * domain.TimeframeWeights[tf]
	}

	switch {
	case weighted > 1.5:
		return domain.MomentumStrongBullish
	case weighted > 0.5:
		return domain.MomentumBullish
	case weighted > -0.5:
		return domain.MomentumNeutral
	case weighted > -1.5:
		return domain.MomentumBearish
	default:
		return domain.MomentumStrongBearish
	}
}

// entryTiming recommends when to enter relative to short-term levels.
// Missing 1h or 4h data falls back to wait_dip as the conservative default.
func entryTiming(token domain.TokenSnapshot, timeframes map[string]domain.TimeframeMetrics, overallTrend string) string {
	shortTerm, okShort := timeframes[domain.Timeframe1H]
	_, okMedium := timeframes[domain.Timeframe4H]
	if !okShort || !okMedium {
		return domain.EntryWaitDip
	}

	if overallTrend != domain.MomentumBullish && overallTrend != domain.MomentumStrongBullish {
		return domain.EntryAvoid
	}

	switch {
	case shortTerm.PriceChange > 30 && shortTerm.Volatility > 10:
		// Short-term overheated: wait for a pullback.
		return domain.EntryWaitDip
	case token.PriceUSD < shortTerm.Support*1.1:
		return domain.EntryImmediate
	case token.PriceUSD > shortTerm.Resistance*0.95:
		return domain.EntryWaitBreakout
	default:
		return domain.EntryImmediate
	}
}

// riskReward is potential gain to resistance over potential loss to
// support, averaged across timeframes with nonzero levels, clamped to
// [0, 3]. No level data defaults to 1.0; zero potential loss returns the
// maximum.
func riskReward(token domain.TokenSnapshot, timeframes map[string]domain.TimeframeMetrics) float64 {
	var supports, resistances []float64
	for _, metrics := range timeframes {
		if metrics.Support > 0 {
			supports = append(supports, metrics.Support)
		}
		if metrics.Resistance > 0 {
			resistances = append(resistances, metrics.Resistance)
		}
	}

	if len(supports) == 0 || len(resistances) == 0 {
		return 1.0
	}

	avgSupport := mean(supports)
	avgResistance := mean(resistances)

	potentialLoss := math.Abs(token.PriceUSD - avgSupport)
	potentialGain := math.Abs(avgResistance - token.PriceUSD)

	if potentialLoss == 0 {
		return 3.0
	}
	return clamp(potentialGain/potentialLoss, 0, 3)
}

// confidenceLevel starts from a base of 50 and adjusts for trend alignment,
// volume trends, risk/reward and volatility, clamped to [0, 100].
func confidenceLevel(timeframes map[string]domain.TimeframeMetrics, riskReward float64) float64 {
	confidence := 50.0

	for _, metrics := range timeframes {
		if metrics.Momentum == domain.MomentumBullish || metrics.Momentum == domain.MomentumStrongBullish {
			confidence += 5
		}
		if metrics.VolumeTrend == domain.VolumeTrendIncreasing {
			confidence += 5
		}
	}

	switch {
	case riskReward > 2:
		confidence += 15
	case riskReward > 1.5:
		confidence += 10
	case riskReward > 1:
		confidence += 5
	}

	var volatilities []float64
	for _, metrics := range timeframes {
		volatilities = append(volatilities, metrics.Volatility)
	}
	avgVolatility := mean(volatilities)
	if avgVolatility > 20 {
		confidence -= 10
	} else if avgVolatility > 15 {
		confidence -= 5
	}

	return clamp(confidence, 0, 100)
}

// overallScore composes the 0-100 opportunity score from trend, volume
// ratio, market-cap sweet spot, risk/reward and confidence components.
func overallScore(token domain.TokenSnapshot, overallTrend string, riskReward, confidence float64) float64 {
	score := 0.0

	switch overallTrend {
	case domain.MomentumStrongBullish:
		score += 30
	case domain.MomentumBullish:
		score += 20
	case domain.MomentumNeutral:
		score += 10
	}

	volumeRatio := token.Volume24h / (token.MarketCap + 1)
	switch {
	case volumeRatio > 2:
		score += 20
	case volumeRatio > 1:
		score += 15
	case volumeRatio > 0.5:
		score += 10
	case volumeRatio > 0.2:
		score += 5
	}

	mcap := token.MarketCap
	switch {
	case mcap >= 1_000_000 && mcap <= 10_000_000:
		score += 20
	case mcap >= 500_000 && mcap <= 20_000_000:
		score += 15
	case mcap >= 100_000 && mcap <= 50_000_000:
		score += 10
	}

	score += math.Min(riskReward*5, 15)
	score += confidence * 0.15

	return math.Min(score, 100)
}
