package domain

import "time"

// Timeframe labels used by the multi-timeframe analyzer.
const (
	Timeframe1H  = "1h"
	Timeframe4H  = "4h"
	Timeframe12H = "12h"
	Timeframe24H = "24h"
	Timeframe3D  = "3d"
)

// Timeframes lists all analyzer timeframes, shortest first.
var Timeframes = []string{Timeframe1H, Timeframe4H, Timeframe12H, Timeframe24H, Timeframe3D}

// TimeframeWeights are the fixed aggregation weights per timeframe.
// They sum to 1.0.
var TimeframeWeights = map[string]float64{
	Timeframe1H:  0.15,
	Timeframe4H:  0.25,
	Timeframe12H: 0.25,
	Timeframe24H: 0.20,
	Timeframe3D:  0.15,
}

// Momentum categories, strongest bearish to strongest bullish.
const (
	MomentumStrongBearish = "strong_bearish"
	MomentumBearish       = "bearish"
	MomentumNeutral       = "neutral"
	MomentumBullish       = "bullish"
	MomentumStrongBullish = "strong_bullish"
)

// MomentumScore maps a momentum category to its numeric score used for
// weighted trend aggregation.
var MomentumScore = map[string]int{
	MomentumStrongBullish: 2,
	MomentumBullish:       1,
	MomentumNeutral:       0,
	MomentumBearish:       -1,
	MomentumStrongBearish: -2,
}

// Volume trend categories.
const (
	VolumeTrendIncreasing = "increasing"
	VolumeTrendStable     = "stable"
	VolumeTrendDecreasing = "decreasing"
)

// Entry timing recommendations.
const (
	EntryImmediate    = "immediate"
	EntryWaitDip      = "wait_dip"
	EntryWaitBreakout = "wait_breakout"
	EntryAvoid        = "avoid"
)

// TimeframeMetrics holds the technical features computed for one timeframe.
type TimeframeMetrics struct {
	Timeframe   string  // one of the Timeframe* labels
	PriceChange float64 // percent change over the series
	VolumeAvg   float64 // mean volume over the series
	VolumeTrend string  // increasing | stable | decreasing
	Momentum    string  // 5-way momentum category
	Support     float64 // 20th percentile of the price series
	Resistance  float64 // 80th percentile of the price series
	Volatility  float64 // stddev of step returns, in percent
}

// MultiTimeframeAnalysis aggregates per-timeframe metrics into an overall
// read on a token. Produced per token per analysis cycle; only the latest
// value is retained.
type MultiTimeframeAnalysis struct {
	Token           TokenSnapshot
	Timeframes      map[string]TimeframeMetrics
	OverallTrend    string  // 5-way momentum category
	OverallScore    float64 // 0-100 opportunity score
	EntryTiming     string  // immediate | wait_dip | wait_breakout | avoid
	RiskRewardRatio float64 // clamped to [0, 3]
	ConfidenceLevel float64 // clamped to [0, 100]
	Timestamp       time.Time
}

// AvgVolatility returns the mean volatility across all timeframes.
// Returns 0 when no timeframe data is present.
func (a *MultiTimeframeAnalysis) AvgVolatility() float64 {
	if len(a.Timeframes) == 0 {
		return 0
	}
	sum := 0.0
	for _, tf := range a.Timeframes {
		sum += tf.Volatility
	}
	return sum / float64(len(a.Timeframes))
}
