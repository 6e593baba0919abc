package engine

import (
	"context"
	"sort"

	"dexagent/internal/domain"
	"dexagent/internal/observability"
)

// MarketSource is the slice of the market-data collaborator the scan needs.
// Implementations surface fetch failures as empty results, never as errors
// the scan has to handle.
type MarketSource interface {
	SearchPairs(ctx context.Context, query string) []domain.TokenSnapshot
	GetTrendingTokens(ctx context.Context, chain string) []domain.TokenSnapshot
	GetNewPairs(ctx context.Context, chain string, hours int) []domain.TokenSnapshot
	GetGainersLosers(ctx context.Context, chain string) domain.GainersLosers
	GetTokenPairs(ctx context.Context, address string) []domain.TokenSnapshot
}

// Reference profile tickers searched on every scan.
const (
	searchDust      = "DUST"
	searchPriceless = "PRICELESS"
)

// ScanMarket pulls trending tokens, fresh pairs, gainers and the reference
// tickers, evaluates each candidate, re-checks every open position against
// its latest pair data, and returns the resulting decisions ordered by
// confidence descending.
func (e *Engine) ScanMarket(ctx context.Context, source MarketSource) []*domain.TradingDecision {
	var decisions []*domain.TradingDecision

	candidates := source.GetTrendingTokens(ctx, e.cfg.Chain)
	candidates = append(candidates, source.GetNewPairs(ctx, e.cfg.Chain, 4)...)
	candidates = append(candidates, source.GetGainersLosers(ctx, e.cfg.Chain).Gainers...)
	if found := source.SearchPairs(ctx, searchDust); len(found) > 0 {
		candidates = append(candidates, found[0])
	}
	if found := source.SearchPairs(ctx, searchPriceless); len(found) > 0 {
		candidates = append(candidates, found[0])
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, token := range candidates {
		if ctx.Err() != nil {
			return decisions
		}
		if _, dup := seen[token.Address]; dup {
			continue
		}
		seen[token.Address] = struct{}{}

		observability.RecordCandidateEvaluated()
		if decision := e.Evaluate(token); decision != nil {
			decisions = append(decisions, decision)
		}
	}

	for _, pos := range e.portfolio.Positions() {
		if ctx.Err() != nil {
			return decisions
		}
		if _, done := seen[pos.TokenAddress]; done {
			continue
		}
		pairs := source.GetTokenPairs(ctx, pos.TokenAddress)
		if len(pairs) == 0 {
			continue
		}
		if decision := e.evaluateExit(pairs[0]); decision != nil {
			decisions = append(decisions, decision)
		}
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Confidence > decisions[j].Confidence
	})
	return decisions
}
