package domain

import "time"

// TokenSnapshot is an immutable view of one token's market stats at a point
// in time, as reported by the market-data source. Snapshots for the same
// Address supersede prior ones; they are never merged.
type TokenSnapshot struct {
	Address        string  // token address, unique id across the system
	Symbol         string  // ticker symbol
	Name           string  // human-readable name
	PriceUSD       float64 // current price in USD
	PriceChange24h float64 // 24h change in percent, signed
	Volume24h      float64 // 24h traded volume in USD
	LiquidityUSD   float64 // pooled liquidity in USD
	MarketCap      float64 // market capitalization in USD
	FDV            float64 // fully diluted valuation in USD
	Chain          string  // chain id, e.g. "ethereum", "solana"
	PairAddress    string  // primary pair address
	PairCreatedAt  string  // pair creation timestamp, RFC3339; may be empty
}

// AgeHours returns the token age in hours at the given time, derived from
// PairCreatedAt. The second return is false when the creation timestamp is
// missing or unparsable.
func (t TokenSnapshot) AgeHours(now time.Time) (float64, bool) {
	if t.PairCreatedAt == "" {
		return 0, false
	}
	created, err := time.Parse(time.RFC3339, t.PairCreatedAt)
	if err != nil {
		return 0, false
	}
	return now.Sub(created).Hours(), true
}

// GainersLosers groups the top movers returned by the market-data source.
type GainersLosers struct {
	Gainers []TokenSnapshot
	Losers  []TokenSnapshot
}
