package scoring

import (
	"sort"
	"time"

	"dexagent/internal/domain"
)

// Profile is a named set of gating ranges describing a token archetype.
// The gates are exclusionary pre-filters: a candidate failing any gate is
// dropped regardless of its opportunity score.
type Profile struct {
	Name           string
	MarketCapMin   float64
	MarketCapMax   float64
	VolumeRatioMin float64 // volume_24h / (market_cap + 1)
	VolumeRatioMax float64
	LiquidityFloor float64 // minimum liquidity in USD
}

// Reference profiles derived from the DUST and PRICELESS archetypes.
var (
	ProfileDust = Profile{
		Name:           "DUST",
		MarketCapMin:   1_000_000,
		MarketCapMax:   50_000_000,
		VolumeRatioMin: 0.5,
		VolumeRatioMax: 3.0,
		LiquidityFloor: 100_000,
	}

	ProfilePriceless = Profile{
		Name:           "PRICELESS",
		MarketCapMin:   500_000,
		MarketCapMax:   20_000_000,
		VolumeRatioMin: 1.0,
		VolumeRatioMax: 5.0,
		LiquidityFloor: 50_000,
	}
)

// Match is one candidate that passed a profile's gates, with its score.
type Match struct {
	Token           domain.TokenSnapshot
	SimilarityScore float64 // opportunity score scaled to [0, 1]
	Classification  Classification
}

// matches gate checks for a single candidate.
func (p Profile) matches(token domain.TokenSnapshot) bool {
	if token.MarketCap < p.MarketCapMin || token.MarketCap > p.MarketCapMax {
		return false
	}
	ratio := volumeRatio(token)
	if ratio < p.VolumeRatioMin || ratio > p.VolumeRatioMax {
		return false
	}
	return token.LiquidityUSD >= p.LiquidityFloor
}

// FindMatches filters candidates through the profile's gates and ranks the
// survivors by opportunity score, descending.
func FindMatches(profile Profile, candidates []domain.TokenSnapshot, now time.Time) []Match {
	var matches []Match
	for _, token := range candidates {
		if !profile.matches(token) {
			continue
		}
		cls := Classify(token, now)
		matches = append(matches, Match{
			Token:           token,
			SimilarityScore: cls.OpportunityScore / 100,
			Classification:  cls,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	return matches
}

// FindDustLike returns candidates matching the DUST profile, best first.
func FindDustLike(candidates []domain.TokenSnapshot, now time.Time) []Match {
	return FindMatches(ProfileDust, candidates, now)
}

// FindPricelessLike returns candidates matching the PRICELESS profile,
// best first.
func FindPricelessLike(candidates []domain.TokenSnapshot, now time.Time) []Match {
	return FindMatches(ProfilePriceless, candidates, now)
}
