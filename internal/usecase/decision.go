package usecase

import (
	"marketmaker-backend/internal/domain"
)

// DecisionInput is the live state a trade decision is computed from.
// Balances and price are always read fresh from the chain; the stored
// bot balances are for display only.
type DecisionInput struct {
	USDTBalance      float64
	TokenBalance     float64
	Price            float64
	BudgetUSDT       float64
	GrowthBuyBias    float64
	ConsecutiveBuys  int
	ConsecutiveSells int
}

// Decision is the outcome of one scheduling tick. Amount is always
// denominated in USDT; a sell is converted to token units at execution.
type Decision struct {
	Action domain.TradeAction
	Amount float64
}

const (
	// Forced alternation thresholds. A streak longer than this forces
	// the opposite side when it is affordable.
	maxConsecutiveBuys  = 5
	maxConsecutiveSells = 3

	// Portfolio imbalance thresholds (USDT share of total value).
	severeImbalanceHigh   = 80.0
	severeImbalanceLow    = 20.0
	moderateImbalanceHigh = 60.0
	moderateImbalanceLow  = 40.0
	preferBuyAbove        = 55.0
	preferSellBelow       = 45.0
)

// Decide picks the next action for a bot given its live balances and
// price. It has no side effects; randomness comes only from draw, which
// returns uniform values in [0,1).
func Decide(in DecisionInput, draw func() float64) Decision {
	tokenValue := in.TokenBalance * in.Price
	total := in.USDTBalance + tokenValue

	usdtPct := 50.0
	if total > 0 {
		usdtPct = in.USDTBalance / total * 100
	}
	tokenPct := 100 - usdtPct

	minPct, maxPct := tradeSizeRange(usdtPct)
	amount := (minPct + draw()*(maxPct-minPct)) / 100 * in.BudgetUSDT

	canBuy := amount <= in.USDTBalance
	canSell := amount <= tokenValue

	// Forced alternation bounds one-directional streaks regardless of
	// the imbalance heuristic below.
	if in.ConsecutiveBuys >= maxConsecutiveBuys && tokenPct > 20 && canSell {
		return Decision{Action: domain.ActionSell, Amount: amount}
	}
	if in.ConsecutiveSells >= maxConsecutiveSells && usdtPct > 20 && canBuy {
		return Decision{Action: domain.ActionBuy, Amount: amount}
	}

	var preferBuy bool
	switch {
	case usdtPct > preferBuyAbove:
		preferBuy = true
	case usdtPct < preferSellBelow:
		preferBuy = false
	default:
		// Balanced portfolio: skew toward buying so price drifts up
		// over time. Conservative default bias of 0.02 yields p=0.6.
		preferBuy = draw() < buyProbability(in.GrowthBuyBias)
	}

	if preferBuy && canBuy {
		return Decision{Action: domain.ActionBuy, Amount: amount}
	}
	if !preferBuy && canSell {
		return Decision{Action: domain.ActionSell, Amount: amount}
	}

	// Preferred side unaffordable, try the opposite one.
	if preferBuy && canSell {
		return Decision{Action: domain.ActionSell, Amount: amount}
	}
	if !preferBuy && canBuy {
		return Decision{Action: domain.ActionBuy, Amount: amount}
	}

	return Decision{Action: domain.ActionPause}
}

// tradeSizeRange selects the adaptive trade-size band (percent of
// budget) from the portfolio imbalance tier. A severely lopsided
// portfolio trades bigger to rebalance faster.
func tradeSizeRange(usdtPct float64) (float64, float64) {
	switch {
	case usdtPct > severeImbalanceHigh || usdtPct < severeImbalanceLow:
		return 3, 8
	case usdtPct > moderateImbalanceHigh || usdtPct < moderateImbalanceLow:
		return 2, 5
	default:
		return 1, 3
	}
}

// buyProbability maps the growth-buy bias onto the dead-band buy
// probability, clamped so a saturated bias never forces a guaranteed
// direction.
func buyProbability(bias float64) float64 {
	p := 0.5 + bias*5
	if p > 0.95 {
		return 0.95
	}
	if p < 0.5 {
		return 0.5
	}
	return p
}
