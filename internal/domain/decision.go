package domain

// Trading strategies, by intended hold duration.
const (
	StrategyScalping = "scalping" // 1-4h holds
	StrategySwing    = "swing"    // 4-24h holds
	StrategyPosition = "position" // 1-3d holds
)

// Decision actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// TradingDecision is the decision engine's verdict for one token in one
// scan cycle. It is ephemeral: the executor consumes it immediately and it
// is never stored as a system of record. A hold is expressed by the absence
// of a decision.
type TradingDecision struct {
	Action          string // buy | sell
	Token           TokenSnapshot
	Reason          string  // human-readable justification
	Confidence      float64 // 0-100
	SuggestedAmount float64 // quantity in token units
	Strategy        string  // scalping | swing | position
	Analysis        *MultiTimeframeAnalysis
}
