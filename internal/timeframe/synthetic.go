package timeframe

import (
	"math"

	"dexagent/internal/domain"
)

// seriesLengths fixes the number of synthesized points per timeframe.
var seriesLengths = map[string]int{
	domain.Timeframe1H:  12,
	domain.Timeframe4H:  12,
	domain.Timeframe12H: 12,
	domain.Timeframe24H: 24,
	domain.Timeframe3D:  36,
}

// syntheticPriceHistory builds a deterministic stand-in price series per
// timeframe when the caller supplies no real history. The series ramps from
// the back-projected 24h-ago price to the current price with a small
// deterministic ripple, and the last point always equals the current price.
// Production callers supply real history; this keeps the analyzer total.
func syntheticPriceHistory(token domain.TokenSnapshot) map[string][]float64 {
	current := token.PriceUSD
	change := token.PriceChange24h / 100

	start := current
	if 1+change > 0 {
		start = current / (1 + change)
	}

	history := make(map[string][]float64, len(seriesLengths))
	for tf, points := range seriesLengths {
		prices := make([]float64, points)
		if current <= 0 || start <= 0 {
			// Degenerate snapshot; a flat series keeps the analyzer total.
			for i := range prices {
				prices[i] = current
			}
			history[tf] = prices
			continue
		}
		for i := 0; i < points; i++ {
			frac := float64(i) / float64(points-1)
			base := start * math.Pow(current/start, frac)
			// Ripple gives the series nonzero volatility without
			// disturbing the endpoints' trend.
			ripple := 1 + 0.02*math.Sin(float64(i)*2.399)
			prices[i] = base * ripple
		}
		prices[points-1] = current
		history[tf] = prices
	}
	return history
}

// syntheticVolumeHistory builds a deterministic stand-in volume series per
// timeframe, varying around the hourly average volume.
func syntheticVolumeHistory(token domain.TokenSnapshot) map[string][]float64 {
	base := token.Volume24h / 24

	history := make(map[string][]float64, len(seriesLengths))
	for tf, points := range seriesLengths {
		volumes := make([]float64, points)
		for i := 0; i < points; i++ {
			volumes[i] = base * (1 + 0.5*math.Sin(float64(i)*1.618))
		}
		history[tf] = volumes
	}
	return history
}
