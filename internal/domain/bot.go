package domain

import (
	"errors"
	"fmt"
	"time"
)

// Bot represents one market-making bot. There is at most one bot per
// (owner, token) pair; its custody wallet holds the trading budget
// separately from the owner's main wallet.
type Bot struct {
	Owner         string `json:"owner"`
	TokenAddress  string `json:"tokenAddress"`
	WalletAddress string `json:"walletAddress"`
	PrivateKey    string `json:"-"` // hex, custody wallet signer

	// Configuration
	TargetGrowthPerHour float64 `json:"targetGrowthPerHour"` // percent, e.g. 1.5 = 1.5%/h
	BudgetUSDT          float64 `json:"budgetUsdt"`
	MinTradePct         float64 `json:"minTradePct"` // percent of budget
	MaxTradePct         float64 `json:"maxTradePct"`
	MinPauseSec         int     `json:"minPauseSec"`
	MaxPauseSec         int     `json:"maxPauseSec"`
	GrowthBuyBias       float64 `json:"growthBuyBias"` // fractional extra weight toward buying

	// Mutable state
	Active           bool       `json:"active"`
	ConsecutiveBuys  int        `json:"consecutiveBuys"`
	ConsecutiveSells int        `json:"consecutiveSells"`
	TotalTrades      int        `json:"totalTrades"`
	TotalBuyVolume   float64    `json:"totalBuyVolume"`
	TotalSellVolume  float64    `json:"totalSellVolume"`
	LastUSDTBalance  float64    `json:"lastUsdtBalance"`
	LastTokenBalance float64    `json:"lastTokenBalance"`
	InitialPrice     float64    `json:"initialPrice"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastTradeAt      *time.Time `json:"lastTradeAt,omitempty"`
	NextTradeAt      *time.Time `json:"nextTradeAt,omitempty"`
}

// Key returns the unique scheduling key for a (owner, token) pair.
func (b *Bot) Key() string {
	return BotKey(b.Owner, b.TokenAddress)
}

// BotKey builds the map key used by the scheduler and repositories.
func BotKey(owner, tokenAddress string) string {
	return owner + ":" + tokenAddress
}

// RecordBuy increments the buy streak and resets the sell streak.
// The two counters are mutually exclusive.
func (b *Bot) RecordBuy(amount float64) {
	b.ConsecutiveBuys++
	b.ConsecutiveSells = 0
	b.TotalTrades++
	b.TotalBuyVolume += amount
}

// RecordSell increments the sell streak and resets the buy streak.
func (b *Bot) RecordSell(amount float64) {
	b.ConsecutiveSells++
	b.ConsecutiveBuys = 0
	b.TotalTrades++
	b.TotalSellVolume += amount
}

// Configuration bounds.
const (
	MaxBudgetUSDT = 100000.0

	MinGrowthBuyBias = 0.001
	MaxGrowthBuyBias = 0.2

	MinPauseFloorSec   = 10
	MaxPauseCeilingSec = 300
)

var (
	ErrBotExists    = errors.New("bot already exists for this token")
	ErrBotNotFound  = errors.New("bot not found")
	ErrBotActive    = errors.New("bot is already active")
	ErrUnknownToken = errors.New("token not found")
)

// ValidateConfig checks the operator-supplied creation parameters.
// Invalid configurations are rejected before anything is persisted.
func ValidateConfig(targetGrowthPerHour, budgetUSDT float64) error {
	if targetGrowthPerHour < 0 || targetGrowthPerHour > 100 {
		return fmt.Errorf("target growth must be between 0 and 100 percent per hour, got %.2f", targetGrowthPerHour)
	}
	if budgetUSDT <= 0 || budgetUSDT > MaxBudgetUSDT {
		return fmt.Errorf("budget must be between 0 and %.0f USDT, got %.2f", MaxBudgetUSDT, budgetUSDT)
	}
	return nil
}

// BotRepository defines bot persistence. A bot record is always written
// back as a whole document; per-bot mutations are serialized by the
// single-timer-per-bot discipline in the scheduler.
type BotRepository interface {
	Create(bot *Bot) error
	Get(owner, tokenAddress string) (*Bot, error)
	Update(bot *Bot) error
	Delete(owner, tokenAddress string) error
	GetActive() []*Bot
}
