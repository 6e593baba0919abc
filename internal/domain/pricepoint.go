package domain

import "time"

// PricePoint is one observation of a tracked token, recorded by the price
// history tracker and archived in the price_points table in ClickHouse.
type PricePoint struct {
	TokenAddress string
	Timestamp    time.Time
	Price        float64
	Volume       float64
	Liquidity    float64
	MarketCap    float64
}

// Alert types raised by the price history tracker.
const (
	AlertTypePump        = "pump"
	AlertTypeDump        = "dump"
	AlertTypeVolumeSpike = "volume_spike"
)

// Alert severities.
const (
	AlertSeverityMedium = "medium"
	AlertSeverityHigh   = "high"
)

// PriceAlert flags a significant short-window movement in a tracked token.
type PriceAlert struct {
	Type     string // pump | dump | volume_spike
	Token    TokenSnapshot
	Change1h float64 // percent change over the last hour
	Severity string // medium | high
}
