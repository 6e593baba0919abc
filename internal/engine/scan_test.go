package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"dexagent/internal/domain"
	"dexagent/internal/observability"
	"dexagent/internal/portfolio"
	"dexagent/internal/timeframe"
)

// fakeSource serves canned market data and records pair lookups.
type fakeSource struct {
	trending   []domain.TokenSnapshot
	newPairs   []domain.TokenSnapshot
	gainers    []domain.TokenSnapshot
	search     map[string][]domain.TokenSnapshot
	tokenPairs map[string][]domain.TokenSnapshot

	pairLookups []string
	chains      []string
}

func (f *fakeSource) SearchPairs(_ context.Context, query string) []domain.TokenSnapshot {
	return f.search[query]
}

func (f *fakeSource) GetTrendingTokens(_ context.Context, chain string) []domain.TokenSnapshot {
	f.chains = append(f.chains, chain)
	return f.trending
}

func (f *fakeSource) GetNewPairs(_ context.Context, chain string, _ int) []domain.TokenSnapshot {
	f.chains = append(f.chains, chain)
	return f.newPairs
}

func (f *fakeSource) GetGainersLosers(_ context.Context, chain string) domain.GainersLosers {
	f.chains = append(f.chains, chain)
	return domain.GainersLosers{Gainers: f.gainers}
}

func (f *fakeSource) GetTokenPairs(_ context.Context, address string) []domain.TokenSnapshot {
	f.pairLookups = append(f.pairLookups, address)
	return f.tokenPairs[address]
}

var _ MarketSource = (*fakeSource)(nil)

func TestScanMarketChecksOpenPositions(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.Execute(buyDecision("0xheld", 1.0, 100, domain.StrategySwing)) {
		t.Fatal("buy failed")
	}

	source := &fakeSource{
		trending: []domain.TokenSnapshot{heldToken("0xother", 1.0, 0)},
		tokenPairs: map[string][]domain.TokenSnapshot{
			"0xheld": {heldToken("0xheld", 0.80, -20)},
		},
	}

	decisions := e.ScanMarket(context.Background(), source)

	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	if decisions[0].Action != domain.ActionSell || decisions[0].Token.Address != "0xheld" {
		t.Errorf("unexpected decision: %+v", decisions[0])
	}
	if len(source.pairLookups) != 1 || source.pairLookups[0] != "0xheld" {
		t.Errorf("pair lookups = %v, want [0xheld]", source.pairLookups)
	}
}

func TestScanMarketDeduplicatesCandidates(t *testing.T) {
	e, _, _ := testEngine(10_000)
	if !e.Execute(buyDecision("0xheld", 1.0, 100, domain.StrategySwing)) {
		t.Fatal("buy failed")
	}

	held := heldToken("0xheld", 0.80, -20)
	source := &fakeSource{
		// The held token shows up in the candidate feeds too; the exit
		// check must not run twice.
		trending: []domain.TokenSnapshot{held},
		gainers:  []domain.TokenSnapshot{held},
	}

	decisions := e.ScanMarket(context.Background(), source)

	if len(decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(decisions))
	}
	if len(source.pairLookups) != 0 {
		t.Errorf("pair lookup for a token already seen in candidates: %v", source.pairLookups)
	}
}

func TestScanMarketEmptySource(t *testing.T) {
	e, _, _ := testEngine(10_000)

	decisions := e.ScanMarket(context.Background(), &fakeSource{})
	if len(decisions) != 0 {
		t.Errorf("decisions = %d, want 0", len(decisions))
	}
}

func TestScanMarketHonorsCancellation(t *testing.T) {
	e, _, _ := testEngine(10_000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{
		trending: []domain.TokenSnapshot{heldToken("0xa", 1.0, 0), heldToken("0xb", 1.0, 0)},
	}
	decisions := e.ScanMarket(ctx, source)
	if len(decisions) != 0 {
		t.Errorf("decisions after cancel = %d, want 0", len(decisions))
	}
}

func TestScanMarketPassesConfiguredChain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chain = "solana"
	pf := portfolio.New(10_000)
	e := New(cfg, pf, timeframe.NewAnalyzer(), zerolog.Nop())

	source := &fakeSource{}
	e.ScanMarket(context.Background(), source)

	if len(source.chains) != 3 {
		t.Fatalf("chain-scoped calls = %d, want 3", len(source.chains))
	}
	for _, chain := range source.chains {
		if chain != "solana" {
			t.Errorf("chain = %q, want solana", chain)
		}
	}
}

func TestScanMarketCountsEvaluatedCandidates(t *testing.T) {
	e, _, _ := testEngine(10_000)
	source := &fakeSource{
		trending: []domain.TokenSnapshot{heldToken("0xa", 1.0, 0), heldToken("0xb", 1.0, 0)},
		newPairs: []domain.TokenSnapshot{heldToken("0xa", 1.0, 0)},
	}

	before := testutil.ToFloat64(observability.DefaultMetrics.CandidatesEvaluated)
	e.ScanMarket(context.Background(), source)
	delta := testutil.ToFloat64(observability.DefaultMetrics.CandidatesEvaluated) - before

	// 0xa appears twice but is evaluated once.
	if delta != 2 {
		t.Errorf("candidates evaluated = %v, want 2", delta)
	}
}
