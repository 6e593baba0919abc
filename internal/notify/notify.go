// Package notify fans alert and trade notifications out to pluggable
// channels (console, file, webhook), with score and movement filters
// deciding what is worth sending.
package notify

import (
	"context"
	"time"
)

// Notification types.
const (
	TypePriceAlert      = "price_alert"
	TypeHighOpportunity = "high_opportunity"
	TypePriceMovement   = "price_movement"
	TypeTradeExecuted   = "trade_executed"
	TypeStatusReport    = "status_report"
)

// Notification priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Notification is one event worth telling the operator about.
type Notification struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel delivers a notification to one destination.
type Channel interface {
	Send(ctx context.Context, n Notification) error
}
