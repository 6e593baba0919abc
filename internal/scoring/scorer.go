// Package scoring classifies token snapshots into heuristic tiers and
// computes the 0-100 opportunity score used to rank candidates.
// All functions are pure and total: malformed numeric inputs are accepted
// as-is and produce degenerate tier outputs rather than errors.
package scoring

import (
	"math"
	"time"

	"dexagent/internal/domain"
)

// Market-cap tiers.
const (
	TierNano  = "nano"  // < 100K
	TierMicro = "micro" // < 1M
	TierSmall = "small" // < 10M
	TierMid   = "mid"   // < 100M
	TierLarge = "large" // >= 100M
)

// Volume activity ratings.
const (
	VolumeVeryLow  = "very_low"
	VolumeLow      = "low"
	VolumeModerate = "moderate"
	VolumeHigh     = "high"
	VolumeVeryHigh = "very_high"
)

// Liquidity health ratings.
const (
	LiquidityCritical  = "critical"
	LiquidityPoor      = "poor"
	LiquidityFair      = "fair"
	LiquidityGood      = "good"
	LiquidityExcellent = "excellent"
)

// 24h momentum categories, extending the analyzer's 5-way scale with
// mild and explosive buckets.
const (
	MomentumExplosive     = "explosive"
	MomentumStrongBullish = "strong_bullish"
	MomentumBullish       = "bullish"
	MomentumMildBullish   = "mild_bullish"
	MomentumNeutral       = "neutral"
	MomentumMildBearish   = "mild_bearish"
	MomentumBearish       = "bearish"
	MomentumStrongBearish = "strong_bearish"
)

// Risk levels.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskExtreme  = "extreme"
)

// Classification is the full heuristic read on one snapshot.
type Classification struct {
	MarketCapTier    string
	VolumeRatio      float64 // volume_24h / (market_cap + 1)
	VolumeRating     string
	LiquidityRatio   float64 // liquidity / (market_cap + 1)
	LiquidityHealth  string
	Momentum         string
	RiskLevel        string
	OpportunityScore float64 // 0-100
}

// Classify computes the full classification for a snapshot. now is used
// only for token age in the risk assessment.
func Classify(token domain.TokenSnapshot, now time.Time) Classification {
	return Classification{
		MarketCapTier:    MarketCapTier(token.MarketCap),
		VolumeRatio:      volumeRatio(token),
		VolumeRating:     VolumeRating(token),
		LiquidityRatio:   liquidityRatio(token),
		LiquidityHealth:  LiquidityHealth(token),
		Momentum:         Momentum24h(token.PriceChange24h),
		RiskLevel:        RiskLevel(token, now),
		OpportunityScore: OpportunityScore(token),
	}
}

// MarketCapTier buckets market cap at 100K/1M/10M/100M boundaries.
func MarketCapTier(marketCap float64) string {
	switch {
	case marketCap < 100_000:
		return TierNano
	case marketCap < 1_000_000:
		return TierMicro
	case marketCap < 10_000_000:
		return TierSmall
	case marketCap < 100_000_000:
		return TierMid
	default:
		return TierLarge
	}
}

// volumeRatio is 24h volume over market cap. The +1 denominator guards
// against division by zero on near-zero caps.
func volumeRatio(token domain.TokenSnapshot) float64 {
	return token.Volume24h / (token.MarketCap + 1)
}

// VolumeRating buckets the volume/mcap ratio at 0.1/0.5/1/2.
func VolumeRating(token domain.TokenSnapshot) string {
	ratio := volumeRatio(token)
	switch {
	case ratio > 2:
		return VolumeVeryHigh
	case ratio > 1:
		return VolumeHigh
	case ratio > 0.5:
		return VolumeModerate
	case ratio > 0.1:
		return VolumeLow
	default:
		return VolumeVeryLow
	}
}

func liquidityRatio(token domain.TokenSnapshot) float64 {
	return token.LiquidityUSD / (token.MarketCap + 1)
}

// LiquidityHealth buckets the liquidity/mcap ratio at 0.05/0.1/0.2/0.5.
func LiquidityHealth(token domain.TokenSnapshot) string {
	ratio := liquidityRatio(token)
	switch {
	case ratio > 0.5:
		return LiquidityExcellent
	case ratio > 0.2:
		return LiquidityGood
	case ratio > 0.1:
		return LiquidityFair
	case ratio > 0.05:
		return LiquidityPoor
	default:
		return LiquidityCritical
	}
}

// Momentum24h categorizes the 24h percent change.
func Momentum24h(change24h float64) string {
	switch {
	case change24h > 100:
		return MomentumExplosive
	case change24h > 50:
		return MomentumStrongBullish
	case change24h > 20:
		return MomentumBullish
	case change24h > 5:
		return MomentumMildBullish
	case math.Abs(change24h) <= 5:
		return MomentumNeutral
	case change24h > -20:
		return MomentumMildBearish
	case change24h > -50:
		return MomentumBearish
	default:
		return MomentumStrongBearish
	}
}

// RiskLevel accumulates integer risk factors and maps the total to a level.
// An unparsable creation timestamp counts as one factor: unknown age is
// treated as risk, not as an error.
func RiskLevel(token domain.TokenSnapshot, now time.Time) string {
	factors := 0

	if token.LiquidityUSD < 50_000 {
		factors += 2
	} else if token.LiquidityUSD < 100_000 {
		factors++
	}

	if math.Abs(token.PriceChange24h) > 50 {
		factors++
	}

	if age, ok := token.AgeHours(now); ok {
		if age < 24 {
			factors += 2
		} else if age < 72 {
			factors++
		}
	} else {
		factors++
	}

	if token.MarketCap < 1_000_000 {
		factors++
	}

	switch {
	case factors >= 4:
		return RiskExtreme
	case factors >= 3:
		return RiskHigh
	case factors >= 2:
		return RiskModerate
	default:
		return RiskLow
	}
}

// OpportunityScore sums four independently capped sub-scores:
// volume activity (0-30), price momentum (0-20), liquidity health (0-20)
// and market-cap sweet spot (0-30). The result is clamped to 100.
func OpportunityScore(token domain.TokenSnapshot) float64 {
	score := 0.0

	ratio := volumeRatio(token)
	switch {
	case ratio > 2:
		score += 30
	case ratio > 1:
		score += 20
	case ratio > 0.5:
		score += 10
	}

	change := token.PriceChange24h
	switch {
	case change >= 20 && change <= 100:
		score += 20
	case change >= 10 && change < 20:
		score += 15
	case change >= 5 && change < 10:
		score += 10
	}

	switch {
	case token.LiquidityUSD > 200_000:
		score += 20
	case token.LiquidityUSD > 100_000:
		score += 15
	case token.LiquidityUSD > 50_000:
		score += 10
	}

	mcap := token.MarketCap
	switch {
	case mcap >= 1_000_000 && mcap <= 10_000_000:
		score += 30
	case mcap >= 500_000 && mcap < 1_000_000:
		score += 20
	case mcap > 10_000_000 && mcap <= 50_000_000:
		score += 15
	}

	return math.Min(score, 100)
}
