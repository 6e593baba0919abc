package domain

import "time"

// PositionSnapshot is the serializable form of an open position.
type PositionSnapshot struct {
	TokenSymbol  string    `json:"token_symbol"`
	TokenAddress string    `json:"token_address"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	Quantity     float64   `json:"quantity"`
	EntryTime    time.Time `json:"entry_time"`
	PnLUSD       float64   `json:"pnl_usd"`
	PnLPercent   float64   `json:"pnl_percent"`
}

// TradeSnapshot is the serializable form of one executed trade.
type TradeSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	TokenSymbol  string    `json:"token_symbol"`
	TokenAddress string    `json:"token_address"`
	Price        float64   `json:"price"`
	Quantity     float64   `json:"quantity"`
	ValueUSD     float64   `json:"value_usd"`
	Reason       string    `json:"reason"`
}

// PortfolioSnapshot is the full serializable portfolio state handed to the
// persistence collaborator. There is no read path back: process restart
// starts from a fresh portfolio.
type PortfolioSnapshot struct {
	Timestamp       time.Time          `json:"timestamp"`
	StartingBalance float64            `json:"starting_balance"`
	CurrentBalance  float64            `json:"current_balance"`
	RealizedPnL     float64            `json:"realized_pnl"`
	UnrealizedPnL   float64            `json:"unrealized_pnl"`
	WinCount        int                `json:"win_count"`
	LossCount       int                `json:"loss_count"`
	Positions       []PositionSnapshot `json:"positions"`
	RecentTrades    []TradeSnapshot    `json:"recent_trades"` // last 20
}
