// Package history keeps a bounded, time-windowed price and volume history per
// tracked token and answers windowed queries over it: change over the last N
// hours, volume trend, and short-window movement alerts.
package history

import (
	"math"
	"sort"
	"sync"
	"time"

	"dexagent/internal/domain"
)

// DefaultWindow bounds how much history is retained per token.
const DefaultWindow = 24 * time.Hour

// Volume trend labels over a wall-clock window.
const (
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// Volume trend breakpoints: ratio of second-half average volume to first-half
// average volume over the queried window.
const (
	volumeIncreaseRatio = 1.5
	volumeDecreaseRatio = 0.7
)

// Alert thresholds over the last hour.
const (
	alertChangePercent  = 20 // |1h change| beyond this raises pump/dump
	alertSeverePercent  = 50 // |1h change| beyond this is severity high
	alertVolumeSpikeMin = 10 // 1h change required alongside increasing volume
	alertWindowHours    = 1
)

// TokenSummary is the per-token view returned by Summary.
type TokenSummary struct {
	Token       domain.TokenSnapshot
	Changes     map[string]float64 // keys "1h", "4h", "24h"; absent when not computable
	VolumeTrend string
	LastUpdate  time.Time
	Points      int
}

// Tracker records observations for a set of tracked tokens and prunes each
// token's series to the retention window on every write. All methods are safe
// for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	window time.Duration
	latest map[string]domain.TokenSnapshot
	points map[string][]domain.PricePoint
	now    func() time.Time
}

// NewTracker returns a tracker retaining the given window of history per
// token. A non-positive window falls back to DefaultWindow.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window: window,
		latest: make(map[string]domain.TokenSnapshot),
		points: make(map[string][]domain.PricePoint),
		now:    time.Now,
	}
}

// WithClock overrides the tracker's time source. Intended for tests.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.now = clock
	return t
}

// Record appends one observation for the token and prunes its series to the
// retention window. The snapshot becomes the token's latest known state.
func (t *Tracker) Record(token domain.TokenSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	point := domain.PricePoint{
		TokenAddress: token.Address,
		Timestamp:    now,
		Price:        token.PriceUSD,
		Volume:       token.Volume24h,
		Liquidity:    token.LiquidityUSD,
		MarketCap:    token.MarketCap,
	}
	series := append(t.points[token.Address], point)

	cutoff := now.Add(-t.window)
	kept := series[:0]
	for _, p := range series {
		if p.Timestamp.After(cutoff) {
			kept = append(kept, p)
		}
	}
	t.points[token.Address] = kept
	t.latest[token.Address] = token
}

// Untrack drops the token and its history.
func (t *Tracker) Untrack(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.points, address)
	delete(t.latest, address)
}

// Tracked returns the tracked token addresses, sorted.
func (t *Tracker) Tracked() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addrs := make([]string, 0, len(t.latest))
	for addr := range t.latest {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Points returns a copy of the token's retained series, oldest first.
func (t *Tracker) Points(address string) []domain.PricePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	series := t.points[address]
	if len(series) == 0 {
		return nil
	}
	out := make([]domain.PricePoint, len(series))
	copy(out, series)
	return out
}

// ChangeOverWindow returns the percent price change over the last `hours`
// hours. The second return is false when the series has fewer than two
// points, no point old enough to anchor the window, or a zero anchor price.
func (t *Tracker) ChangeOverWindow(address string, hours float64) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changeOverWindow(address, hours)
}

func (t *Tracker) changeOverWindow(address string, hours float64) (float64, bool) {
	series := t.points[address]
	if len(series) < 2 {
		return 0, false
	}
	cutoff := t.now().Add(-time.Duration(hours * float64(time.Hour)))
	oldPrice := 0.0
	found := false
	for _, p := range series {
		if !p.Timestamp.After(cutoff) {
			oldPrice = p.Price
			found = true
		}
	}
	if !found || oldPrice == 0 {
		return 0, false
	}
	current := series[len(series)-1].Price
	return (current - oldPrice) / oldPrice * 100, true
}

// VolumeTrend classifies the token's volume direction over the last `hours`
// hours by comparing the second half of the window against the first.
func (t *Tracker) VolumeTrend(address string, hours float64) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volumeTrend(address, hours)
}

func (t *Tracker) volumeTrend(address string, hours float64) string {
	cutoff := t.now().Add(-time.Duration(hours * float64(time.Hour)))
	var recent []domain.PricePoint
	for _, p := range t.points[address] {
		if p.Timestamp.After(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) < 2 {
		return TrendInsufficient
	}
	mid := len(recent) / 2
	firstAvg := averageVolume(recent[:mid])
	secondAvg := averageVolume(recent[mid:])
	ratio := secondAvg / (firstAvg + 1)
	switch {
	case ratio > volumeIncreaseRatio:
		return TrendIncreasing
	case ratio < volumeDecreaseRatio:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func averageVolume(points []domain.PricePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.Volume
	}
	return sum / float64(len(points))
}

// Alerts scans every tracked token for significant movement over the last
// hour: pump/dump when |change| exceeds 20 (severity high beyond 50), and a
// volume spike when volume is increasing alongside a change above 10.
func (t *Tracker) Alerts() []domain.PriceAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	addrs := make([]string, 0, len(t.latest))
	for addr := range t.latest {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var alerts []domain.PriceAlert
	for _, addr := range addrs {
		token := t.latest[addr]
		change, ok := t.changeOverWindow(addr, alertWindowHours)
		if ok && math.Abs(change) > alertChangePercent {
			alertType := domain.AlertTypePump
			if change < 0 {
				alertType = domain.AlertTypeDump
			}
			severity := domain.AlertSeverityMedium
			if math.Abs(change) > alertSeverePercent {
				severity = domain.AlertSeverityHigh
			}
			alerts = append(alerts, domain.PriceAlert{
				Type:     alertType,
				Token:    token,
				Change1h: change,
				Severity: severity,
			})
		}
		if ok && change > alertVolumeSpikeMin && t.volumeTrend(addr, alertWindowHours) == TrendIncreasing {
			alerts = append(alerts, domain.PriceAlert{
				Type:     domain.AlertTypeVolumeSpike,
				Token:    token,
				Change1h: change,
				Severity: domain.AlertSeverityMedium,
			})
		}
	}
	return alerts
}

// Summary reports the current state of every tracked token, sorted by
// address.
func (t *Tracker) Summary() []TokenSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	addrs := make([]string, 0, len(t.latest))
	for addr := range t.latest {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	out := make([]TokenSummary, 0, len(addrs))
	for _, addr := range addrs {
		series := t.points[addr]
		summary := TokenSummary{
			Token:       t.latest[addr],
			Changes:     make(map[string]float64, 3),
			VolumeTrend: t.volumeTrend(addr, 24),
			Points:      len(series),
		}
		if len(series) > 0 {
			summary.LastUpdate = series[len(series)-1].Timestamp
		}
		for label, hours := range map[string]float64{"1h": 1, "4h": 4, "24h": 24} {
			if change, ok := t.changeOverWindow(addr, hours); ok {
				summary.Changes[label] = change
			}
		}
		out = append(out, summary)
	}
	return out
}
