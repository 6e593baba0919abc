package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"dexagent/internal/domain"
	"dexagent/internal/engine"
	"dexagent/internal/scoring"
)

// Caps on how many entries each report section carries.
const (
	maxProfileMatches = 10
	maxTopGainers     = 5
	maxDisplayTokens  = 6
	maxDisplayGems    = 5
	maxDisplayAlerts  = 5
)

// newGemScore is the opportunity score a fresh pair must clear to count as
// a gem.
const newGemScore = 70

// Market sentiment labels.
const (
	SentimentBullish = "bullish"
	SentimentNeutral = "neutral"
	SentimentBearish = "bearish"
)

// TokenReview is one token with its heuristic read and a recommendation.
type TokenReview struct {
	Token          domain.TokenSnapshot
	Classification scoring.Classification
	Recommendation string
}

// MarketSummary aggregates the scanned universe.
type MarketSummary struct {
	TokensAnalyzed int
	TotalVolume24h float64
	AvgPriceChange float64
	GainersCount   int
	LosersCount    int
	TierCounts     map[string]int
	Sentiment      string
}

// MarketReport is the one-shot market scan output.
type MarketReport struct {
	Timestamp          time.Time
	DustReference      *TokenReview
	PricelessReference *TokenReview
	DustLike           []TokenReview
	PricelessLike      []TokenReview
	Trending           []TokenReview
	NewGems            []TokenReview
	TopGainers         []TokenReview
	Alerts             []domain.PriceAlert
	Summary            MarketSummary
}

// AlertSource yields short-window price alerts for the report. The history
// tracker satisfies it; a nil source means no alert section.
type AlertSource interface {
	Alerts() []domain.PriceAlert
}

func review(token domain.TokenSnapshot, now time.Time) TokenReview {
	cls := scoring.Classify(token, now)
	return TokenReview{
		Token:          token,
		Classification: cls,
		Recommendation: Recommendation(cls),
	}
}

// Recommendation maps a classification to a one-line verdict.
func Recommendation(cls scoring.Classification) string {
	risky := cls.RiskLevel == scoring.RiskHigh || cls.RiskLevel == scoring.RiskExtreme
	switch {
	case cls.OpportunityScore >= 80 && !risky:
		return "Strong Buy - High opportunity with manageable risk"
	case cls.OpportunityScore >= 70 && cls.RiskLevel != scoring.RiskExtreme:
		return "Buy - Good opportunity, monitor closely"
	case cls.OpportunityScore >= 60 && cls.RiskLevel != scoring.RiskExtreme:
		return "Consider - Moderate opportunity, research further"
	case cls.OpportunityScore >= 50:
		return "Watch - Potential opportunity developing"
	case cls.RiskLevel == scoring.RiskExtreme:
		return "Avoid - High risk outweighs potential"
	default:
		return "Pass - Better opportunities available"
	}
}

// BuildMarketReport gathers trending tokens, fresh pairs and gainers from
// the source, classifies them against the reference profiles, and returns
// the assembled report. alerts may be nil.
func BuildMarketReport(ctx context.Context, source engine.MarketSource, alerts AlertSource, now time.Time) MarketReport {
	report := MarketReport{Timestamp: now}

	trending := source.GetTrendingTokens(ctx, "")
	newPairs := source.GetNewPairs(ctx, "", 4)
	movers := source.GetGainersLosers(ctx, "")

	if found := source.SearchPairs(ctx, "DUST"); len(found) > 0 {
		ref := review(found[0], now)
		report.DustReference = &ref
	}
	if found := source.SearchPairs(ctx, "PRICELESS"); len(found) > 0 {
		ref := review(found[0], now)
		report.PricelessReference = &ref
	}

	universe := make([]domain.TokenSnapshot, 0, len(trending)+len(newPairs)+len(movers.Gainers))
	universe = append(universe, trending...)
	universe = append(universe, newPairs...)
	universe = append(universe, movers.Gainers...)

	for _, match := range capMatches(scoring.FindDustLike(universe, now)) {
		report.DustLike = append(report.DustLike, matchReview(match))
	}
	for _, match := range capMatches(scoring.FindPricelessLike(universe, now)) {
		report.PricelessLike = append(report.PricelessLike, matchReview(match))
	}

	for i, token := range trending {
		if i == maxProfileMatches {
			break
		}
		report.Trending = append(report.Trending, review(token, now))
	}

	for _, token := range newPairs {
		r := review(token, now)
		if r.Classification.OpportunityScore > newGemScore {
			report.NewGems = append(report.NewGems, r)
		}
	}
	sort.SliceStable(report.NewGems, func(i, j int) bool {
		return report.NewGems[i].Classification.OpportunityScore >
			report.NewGems[j].Classification.OpportunityScore
	})

	for i, token := range movers.Gainers {
		if i == maxTopGainers {
			break
		}
		report.TopGainers = append(report.TopGainers, review(token, now))
	}

	if alerts != nil {
		report.Alerts = alerts.Alerts()
	}

	report.Summary = summarize(universe, movers)
	return report
}

func capMatches(matches []scoring.Match) []scoring.Match {
	if len(matches) > maxProfileMatches {
		return matches[:maxProfileMatches]
	}
	return matches
}

func matchReview(match scoring.Match) TokenReview {
	return TokenReview{
		Token:          match.Token,
		Classification: match.Classification,
		Recommendation: Recommendation(match.Classification),
	}
}

func summarize(universe []domain.TokenSnapshot, movers domain.GainersLosers) MarketSummary {
	summary := MarketSummary{
		TokensAnalyzed: len(universe),
		GainersCount:   len(movers.Gainers),
		LosersCount:    len(movers.Losers),
		TierCounts:     make(map[string]int),
		Sentiment:      SentimentNeutral,
	}
	for _, token := range universe {
		summary.TotalVolume24h += token.Volume24h
		summary.AvgPriceChange += token.PriceChange24h
		summary.TierCounts[scoring.MarketCapTier(token.MarketCap)]++
	}
	if len(universe) > 0 {
		summary.AvgPriceChange /= float64(len(universe))
	}
	switch {
	case summary.AvgPriceChange > 10:
		summary.Sentiment = SentimentBullish
	case summary.AvgPriceChange <= -10:
		summary.Sentiment = SentimentBearish
	}
	return summary
}

// FormatMarketReport renders the report for console display.
func FormatMarketReport(r MarketReport) string {
	var b strings.Builder
	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	b.WriteString("MARKET ANALYSIS REPORT\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString("MARKET SUMMARY\n")
	fmt.Fprintf(&b, "Sentiment: %s\n", strings.ToUpper(r.Summary.Sentiment))
	fmt.Fprintf(&b, "Tokens Analyzed: %d\n", r.Summary.TokensAnalyzed)
	fmt.Fprintf(&b, "Avg Price Change: %.2f%%\n", r.Summary.AvgPriceChange)
	fmt.Fprintf(&b, "Total Volume: $%.0f\n\n", r.Summary.TotalVolume24h)

	writeProfileSection(&b, "DUST-LIKE TOKENS", r.DustReference, r.DustLike)
	writeProfileSection(&b, "PRICELESS-LIKE TOKENS", r.PricelessReference, r.PricelessLike)

	if len(r.NewGems) > 0 {
		b.WriteString("NEW GEMS\n")
		for i, gem := range r.NewGems {
			if i == maxDisplayGems {
				break
			}
			fmt.Fprintf(&b, "- %s - $%.8f\n", gem.Token.Symbol, gem.Token.PriceUSD)
			fmt.Fprintf(&b, "  Score: %.0f/100 | Risk: %s\n", gem.Classification.OpportunityScore, gem.Classification.RiskLevel)
			fmt.Fprintf(&b, "  %s\n\n", gem.Recommendation)
		}
	}

	if len(r.Alerts) > 0 {
		b.WriteString("PRICE ALERTS\n")
		for i, alert := range r.Alerts {
			if i == maxDisplayAlerts {
				break
			}
			fmt.Fprintf(&b, "- %s - %s\n", strings.ToUpper(alert.Type), alert.Token.Symbol)
			fmt.Fprintf(&b, "  1h Change: %+.1f%%\n\n", alert.Change1h)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeProfileSection(b *strings.Builder, title string, ref *TokenReview, matches []TokenReview) {
	if ref == nil && len(matches) == 0 {
		return
	}
	b.WriteString(title + "\n")
	if ref != nil {
		writeTokenLines(b, *ref, "REFERENCE: ")
	}
	shown := 0
	for _, match := range matches {
		if shown == maxDisplayTokens {
			break
		}
		writeTokenLines(b, match, "- ")
		shown++
	}
}

func writeTokenLines(b *strings.Builder, r TokenReview, prefix string) {
	token := r.Token
	fmt.Fprintf(b, "%s%s - $%.8f\n", prefix, token.Symbol, token.PriceUSD)
	fmt.Fprintf(b, "  24h: %+.1f%% | MCap: $%.0f\n", token.PriceChange24h, token.MarketCap)
	fmt.Fprintf(b, "  Vol/MCap: %.2f | Liq: $%.0f\n", r.Classification.VolumeRatio, token.LiquidityUSD)
	fmt.Fprintf(b, "  %s\n\n", r.Recommendation)
}
