package marketdata

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/engine"
)

// DemoSource generates plausible token data without touching the network.
// A fixed seed makes the stream reproducible. For addresses it has handed
// out before, GetTokenPairs answers with a small price drift so positions
// see live-looking updates.
type DemoSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	known map[string]domain.TokenSnapshot // address -> last snapshot
}

var _ engine.MarketSource = (*DemoSource)(nil)

// NewDemoSource creates a demo source seeded for reproducible output.
func NewDemoSource(seed int64) *DemoSource {
	return &DemoSource{
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
		known: make(map[string]domain.TokenSnapshot),
	}
}

// WithClock overrides the time source. Intended for tests.
func (d *DemoSource) WithClock(clock func() time.Time) *DemoSource {
	d.now = clock
	return d
}

func (d *DemoSource) randomAddress() string {
	buf := make([]byte, 20)
	d.rng.Read(buf)
	return "0x" + hex.EncodeToString(buf)
}

// generateToken fabricates a token around a base price and market cap,
// with ±20% variation and a volume ratio between 0.5 and 3.
func (d *DemoSource) generateToken(symbol string, basePrice, baseMcap float64) domain.TokenSnapshot {
	variation := 0.8 + d.rng.Float64()*0.4
	price := basePrice * variation
	mcap := baseMcap * variation
	volumeRatio := 0.5 + d.rng.Float64()*2.5
	ageHours := 1 + d.rng.Intn(168)

	token := domain.TokenSnapshot{
		Address:        d.randomAddress(),
		Symbol:         symbol,
		Name:           fmt.Sprintf("%s Token", symbol),
		PriceUSD:       price,
		PriceChange24h: -30 + d.rng.Float64()*130,
		Volume24h:      mcap * volumeRatio,
		LiquidityUSD:   mcap * (0.1 + d.rng.Float64()*0.4),
		MarketCap:      mcap,
		FDV:            mcap * 1.2,
		Chain:          "ethereum",
		PairAddress:    d.randomAddress(),
		PairCreatedAt:  d.now().Add(-time.Duration(ageHours) * time.Hour).Format(time.RFC3339),
	}
	d.known[token.Address] = token
	return token
}

// SearchPairs answers the reference tickers with stable base valuations.
func (d *DemoSource) SearchPairs(_ context.Context, query string) []domain.TokenSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch query {
	case "DUST":
		return []domain.TokenSnapshot{d.generateToken("DUST", 0.000312, 15_000_000)}
	case "PRICELESS":
		return []domain.TokenSnapshot{d.generateToken("PRICELESS", 0.00001156, 8_000_000)}
	}
	return nil
}

// GetTrendingTokens fabricates a batch of trending meme tokens.
func (d *DemoSource) GetTrendingTokens(context.Context, string) []domain.TokenSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	symbols := []string{"WAGMI", "MOON", "ROCKET", "PUMP", "HODL"}
	out := make([]domain.TokenSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		basePrice := 0.00001 + d.rng.Float64()*0.01
		baseMcap := 1_000_000 + d.rng.Float64()*49_000_000
		out = append(out, d.generateToken(symbol, basePrice, baseMcap))
	}
	return out
}

// GetNewPairs fabricates freshly listed pairs.
func (d *DemoSource) GetNewPairs(context.Context, string, int) []domain.TokenSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	symbols := []string{"GEM", "ALPHA", "BETA"}
	out := make([]domain.TokenSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		basePrice := 0.000001 + d.rng.Float64()*0.001
		baseMcap := 100_000 + d.rng.Float64()*4_900_000
		out = append(out, d.generateToken(symbol, basePrice, baseMcap))
	}
	return out
}

// GetGainersLosers fabricates top movers with forced 24h changes.
func (d *DemoSource) GetGainersLosers(context.Context, string) domain.GainersLosers {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result domain.GainersLosers
	for _, symbol := range []string{"BULL", "PUMP", "MOON"} {
		token := d.generateToken(symbol, 0.0001+d.rng.Float64()*0.01, 2_000_000+d.rng.Float64()*18_000_000)
		token.PriceChange24h = 50 + d.rng.Float64()*150
		d.known[token.Address] = token
		result.Gainers = append(result.Gainers, token)
	}
	for _, symbol := range []string{"BEAR", "DUMP", "RUG"} {
		token := d.generateToken(symbol, 0.0001+d.rng.Float64()*0.01, 1_000_000+d.rng.Float64()*9_000_000)
		token.PriceChange24h = -60 + d.rng.Float64()*40
		d.known[token.Address] = token
		result.Losers = append(result.Losers, token)
	}
	return result
}

// GetTokenPairs answers price-refresh lookups for tokens this source has
// generated before, drifting the price by ±5%. Unknown addresses get
// nothing, matching the live client's no-data behavior.
func (d *DemoSource) GetTokenPairs(_ context.Context, address string) []domain.TokenSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	token, ok := d.known[address]
	if !ok {
		return nil
	}
	drift := 0.95 + d.rng.Float64()*0.1
	token.PriceUSD *= drift
	token.PriceChange24h = (drift - 1) * 100
	d.known[address] = token
	return []domain.TokenSnapshot{token}
}
