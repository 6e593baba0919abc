package notify

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dexagent/internal/domain"
)

// maxHistory bounds the in-memory notification history.
const maxHistory = 200

// Filters decide which events are worth a notification.
type Filters struct {
	MinOpportunityScore float64
	MinPriceChange      float64 // percent, absolute
}

// DefaultFilters returns the standard thresholds.
func DefaultFilters() Filters {
	return Filters{
		MinOpportunityScore: 70,
		MinPriceChange:      20,
	}
}

// System fans notifications out to every registered channel and keeps a
// bounded history. Channel failures are logged, never fatal: one broken
// webhook must not silence the console.
type System struct {
	mu       sync.Mutex
	channels []Channel
	history  []Notification
	filters  Filters
	logger   zerolog.Logger
	now      func() time.Time
}

func NewSystem(filters Filters, logger zerolog.Logger) *System {
	return &System{
		filters: filters,
		logger:  logger.With().Str("component", "notify").Logger(),
		now:     time.Now,
	}
}

// WithClock overrides the system's time source. Intended for tests.
func (s *System) WithClock(clock func() time.Time) *System {
	s.now = clock
	return s
}

// AddChannel registers a delivery channel.
func (s *System) AddChannel(channel Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channel)
}

// Notify records the notification and delivers it through every channel.
func (s *System) Notify(ctx context.Context, n Notification) {
	s.mu.Lock()
	s.history = append(s.history, n)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	channels := make([]Channel, len(s.channels))
	copy(channels, s.channels)
	s.mu.Unlock()

	for _, channel := range channels {
		if err := channel.Send(ctx, n); err != nil {
			s.logger.Error().Err(err).Str("type", n.Type).Str("title", n.Title).
				Msg("notification delivery failed")
		}
	}
}

// History returns a copy of the retained notifications, oldest first.
func (s *System) History() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.history))
	copy(out, s.history)
	return out
}

// HighOpportunity notifies about a token whose opportunity score clears the
// filter threshold. Returns true when a notification was sent.
func (s *System) HighOpportunity(ctx context.Context, analysis *domain.MultiTimeframeAnalysis) bool {
	if analysis == nil || analysis.OverallScore < s.filters.MinOpportunityScore {
		return false
	}
	token := analysis.Token
	message := fmt.Sprintf(
		"High opportunity token detected\n\n"+
			"Symbol: %s\nPrice: $%.8f\nMarket Cap: $%.0f\n24h Change: %+.1f%%\n"+
			"Opportunity Score: %.0f/100\nConfidence: %.0f%%\nEntry Timing: %s\n\n"+
			"Chain: %s\nContract: %s",
		token.Symbol, token.PriceUSD, token.MarketCap, token.PriceChange24h,
		analysis.OverallScore, analysis.ConfidenceLevel, analysis.EntryTiming,
		token.Chain, token.Address,
	)
	s.Notify(ctx, Notification{
		Timestamp: s.now(),
		Type:      TypeHighOpportunity,
		Priority:  PriorityHigh,
		Title:     fmt.Sprintf("High opportunity: %s", token.Symbol),
		Message:   message,
		Data: map[string]any{
			"token":   token.Symbol,
			"address": token.Address,
			"score":   analysis.OverallScore,
		},
	})
	return true
}

// PriceMovement notifies about a 24h move past the filter threshold.
// Moves beyond 50 percent are high priority. Returns true when sent.
func (s *System) PriceMovement(ctx context.Context, token domain.TokenSnapshot) bool {
	if math.Abs(token.PriceChange24h) < s.filters.MinPriceChange {
		return false
	}
	direction := "PUMP"
	if token.PriceChange24h < 0 {
		direction = "DUMP"
	}
	priority := PriorityMedium
	if math.Abs(token.PriceChange24h) > 50 {
		priority = PriorityHigh
	}
	message := fmt.Sprintf(
		"%s alert\n\nSymbol: %s\nPrice: $%.8f\n24h Change: %+.1f%%\n"+
			"Volume: $%.0f\nLiquidity: $%.0f",
		direction, token.Symbol, token.PriceUSD, token.PriceChange24h,
		token.Volume24h, token.LiquidityUSD,
	)
	s.Notify(ctx, Notification{
		Timestamp: s.now(),
		Type:      TypePriceMovement,
		Priority:  priority,
		Title:     fmt.Sprintf("%s: %s %+.1f%%", direction, token.Symbol, token.PriceChange24h),
		Message:   message,
		Data: map[string]any{
			"token":      token.Symbol,
			"change_24h": token.PriceChange24h,
		},
	})
	return true
}

// PriceAlert forwards a short-window alert from the history tracker.
// The alert's severity becomes the notification priority.
func (s *System) PriceAlert(ctx context.Context, alert domain.PriceAlert) {
	token := alert.Token
	message := fmt.Sprintf(
		"Price alert\n\nType: %s\nToken: %s\n1h Change: %+.1f%%\nCurrent Price: $%.8f",
		alert.Type, token.Symbol, alert.Change1h, token.PriceUSD,
	)
	s.Notify(ctx, Notification{
		Timestamp: s.now(),
		Type:      TypePriceAlert,
		Priority:  alert.Severity,
		Title:     fmt.Sprintf("Price alert: %s - %s", token.Symbol, alert.Type),
		Message:   message,
		Data: map[string]any{
			"token":     token.Symbol,
			"address":   token.Address,
			"type":      alert.Type,
			"change_1h": alert.Change1h,
		},
	})
}

// TradeExecuted announces an executed paper trade.
func (s *System) TradeExecuted(ctx context.Context, decision domain.TradingDecision) {
	token := decision.Token
	message := fmt.Sprintf(
		"Trade executed\n\nAction: %s\nToken: %s\nPrice: $%.8f\nQuantity: %.4f\n"+
			"Strategy: %s\nConfidence: %.0f%%\nReason: %s",
		decision.Action, token.Symbol, token.PriceUSD, decision.SuggestedAmount,
		decision.Strategy, decision.Confidence, decision.Reason,
	)
	s.Notify(ctx, Notification{
		Timestamp: s.now(),
		Type:      TypeTradeExecuted,
		Priority:  PriorityHigh,
		Title:     fmt.Sprintf("%s %s @ $%.8f", decision.Action, token.Symbol, token.PriceUSD),
		Message:   message,
		Data: map[string]any{
			"action":  decision.Action,
			"token":   token.Symbol,
			"address": token.Address,
		},
	})
}
