package domain

import "time"

// TradeAction is the kind of event recorded for a scheduling tick.
type TradeAction string

const (
	ActionBuy   TradeAction = "buy"
	ActionSell  TradeAction = "sell"
	ActionPause TradeAction = "pause"
	ActionError TradeAction = "error"
	ActionStart TradeAction = "start"
	ActionStop  TradeAction = "stop"
)

// TradeLogEntry is an append-only record of one scheduling tick,
// including pauses and errors. Never mutated after creation.
type TradeLogEntry struct {
	ID           string      `json:"id"`
	Owner        string      `json:"owner"`
	TokenAddress string      `json:"tokenAddress"`
	Action       TradeAction `json:"action"`
	Amount       float64     `json:"amount"`
	PriceBefore  float64     `json:"priceBefore"`
	PriceAfter   float64     `json:"priceAfter"`
	TxHash       string      `json:"txHash,omitempty"`
	USDTBalance  float64     `json:"usdtBalance"`
	TokenBalance float64     `json:"tokenBalance"`
	Success      bool        `json:"success"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	NextTradeAt  *time.Time  `json:"nextTradeAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// TradeLogRepository defines append-only trade log persistence.
type TradeLogRepository interface {
	Append(entry *TradeLogEntry) error
	History(owner, tokenAddress string, limit int) []*TradeLogEntry
	Recent(limit int) []*TradeLogEntry
}
