package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"marketmaker-backend/internal/domain"
)

// Native balance kept in the custody wallet on refund so the token
// refund transfer can still pay for gas.
const refundGasReserve = 0.01

// BotManager is the lifecycle state machine for market-making bots:
// absent -> inactive -> active <-> inactive -> deleted. It is the entry
// point the API layer calls; all dependencies are injected.
type BotManager struct {
	bots      domain.BotRepository
	logs      domain.TradeLogRepository
	tokens    domain.TokenRegistry
	oracle    domain.PriceOracle
	exchange  domain.Exchange
	wallets   domain.WalletFactory
	owners    domain.OwnerWalletStore
	scheduler *TradeScheduler
	alerts    TradeAlerter

	now func() time.Time
}

func NewBotManager(
	bots domain.BotRepository,
	logs domain.TradeLogRepository,
	tokens domain.TokenRegistry,
	oracle domain.PriceOracle,
	exchange domain.Exchange,
	wallets domain.WalletFactory,
	owners domain.OwnerWalletStore,
	scheduler *TradeScheduler,
	alerts TradeAlerter,
) *BotManager {
	return &BotManager{
		bots:      bots,
		logs:      logs,
		tokens:    tokens,
		oracle:    oracle,
		exchange:  exchange,
		wallets:   wallets,
		owners:    owners,
		scheduler: scheduler,
		alerts:    alerts,
		now:       time.Now,
	}
}

// tradeParams are the adaptive parameters derived from the growth
// target at creation. Higher targets trade bigger and more often.
type tradeParams struct {
	growthBuyBias float64
	minPauseSec   int
	maxPauseSec   int
	minTradePct   float64
	maxTradePct   float64
}

func adaptiveParams(targetGrowthPerHour float64) tradeParams {
	switch {
	case targetGrowthPerHour <= 2: // conservative
		return tradeParams{growthBuyBias: 0.02, minPauseSec: 40, maxPauseSec: 80, minTradePct: 1, maxTradePct: 3}
	case targetGrowthPerHour <= 5: // moderate
		return tradeParams{growthBuyBias: 0.05, minPauseSec: 20, maxPauseSec: 60, minTradePct: 2, maxTradePct: 5}
	default: // aggressive
		return tradeParams{growthBuyBias: 0.1, minPauseSec: 15, maxPauseSec: 45, minTradePct: 3, maxTradePct: 8}
	}
}

// CreateBot validates the configuration, funds a fresh custody wallet
// from the owner's wallet and persists the bot as inactive. If the
// budget transfer fails the just-created record is deleted again so the
// operation is never left half-applied.
func (m *BotManager) CreateBot(ctx context.Context, owner, tokenAddress string, targetGrowthPerHour, budgetUSDT float64) (*domain.Bot, error) {
	if err := domain.ValidateConfig(targetGrowthPerHour, budgetUSDT); err != nil {
		return nil, err
	}

	if existing, _ := m.bots.Get(owner, tokenAddress); existing != nil {
		return nil, domain.ErrBotExists
	}

	known, err := m.tokens.Exists(ctx, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("checking token: %w", err)
	}
	if !known {
		return nil, domain.ErrUnknownToken
	}

	initialPrice, err := m.oracle.GetPrice(ctx, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("reading initial price: %w", err)
	}

	wallet, err := m.wallets.GenerateWallet()
	if err != nil {
		return nil, fmt.Errorf("generating custody wallet: %w", err)
	}

	params := adaptiveParams(targetGrowthPerHour)
	bot := &domain.Bot{
		Owner:               owner,
		TokenAddress:        tokenAddress,
		WalletAddress:       wallet.Address,
		PrivateKey:          wallet.PrivateKey,
		TargetGrowthPerHour: targetGrowthPerHour,
		BudgetUSDT:          budgetUSDT,
		MinTradePct:         params.minTradePct,
		MaxTradePct:         params.maxTradePct,
		MinPauseSec:         params.minPauseSec,
		MaxPauseSec:         params.maxPauseSec,
		GrowthBuyBias:       params.growthBuyBias,
		InitialPrice:        initialPrice,
		CreatedAt:           m.now(),
	}
	if err := m.bots.Create(bot); err != nil {
		return nil, err
	}

	ownerWallet, err := m.owners.Get(ctx, owner)
	if err != nil {
		m.bots.Delete(owner, tokenAddress)
		return nil, fmt.Errorf("resolving owner wallet: %w", err)
	}
	if _, err := m.exchange.TransferUSDT(ctx, ownerWallet.PrivateKey, wallet.Address, budgetUSDT); err != nil {
		// Compensating action: never leave an unfunded bot behind.
		m.bots.Delete(owner, tokenAddress)
		return nil, fmt.Errorf("funding custody wallet: %w", err)
	}

	// Balances are re-read from the custody wallet rather than assumed
	// from the transfer amount.
	if balances, err := m.oracle.GetBalances(ctx, wallet.Address, tokenAddress); err == nil {
		bot.LastUSDTBalance = balances.USDT
		bot.LastTokenBalance = balances.Token
		if err := m.bots.Update(bot); err != nil {
			log.Printf("Failed to store initial balances for %s: %v", bot.Key(), err)
		}
	}

	log.Printf("🤖 Created bot %s | budget %.2f USDT | target %.2f%%/h | wallet %s",
		bot.Key(), budgetUSDT, targetGrowthPerHour, wallet.Address)
	return bot, nil
}

// StartBot activates the bot and arms its first timer.
func (m *BotManager) StartBot(ctx context.Context, owner, tokenAddress string) error {
	bot, err := m.bots.Get(owner, tokenAddress)
	if err != nil || bot == nil {
		return domain.ErrBotNotFound
	}
	if bot.Active {
		return domain.ErrBotActive
	}

	now := m.now()
	bot.Active = true
	bot.LastTradeAt = &now
	if err := m.bots.Update(bot); err != nil {
		return err
	}
	if err := m.scheduler.ScheduleNext(owner, tokenAddress); err != nil {
		return err
	}
	if fresh, _ := m.bots.Get(owner, tokenAddress); fresh != nil {
		bot = fresh // pick up the NextTradeAt the scheduler just persisted
	}

	m.appendLifecycleLog(bot, domain.ActionStart)
	log.Printf("▶ Started bot %s", bot.Key())
	return nil
}

// StopBot cancels any outstanding timer and deactivates the bot. An
// in-flight trade completes but no further timer is armed.
func (m *BotManager) StopBot(ctx context.Context, owner, tokenAddress string) error {
	bot, err := m.bots.Get(owner, tokenAddress)
	if err != nil || bot == nil {
		return domain.ErrBotNotFound
	}

	m.scheduler.Cancel(owner, tokenAddress)
	bot.Active = false
	bot.NextTradeAt = nil
	if err := m.bots.Update(bot); err != nil {
		return err
	}

	m.appendLifecycleLog(bot, domain.ActionStop)
	log.Printf("⏸ Stopped bot %s", bot.Key())
	return nil
}

// DeleteBot stops the bot if needed, sweeps custody balances back to
// the owner best-effort, and removes the record. Refund failures are
// logged for manual reconciliation but never block deletion: funds must
// not strand a bot forever.
func (m *BotManager) DeleteBot(ctx context.Context, owner, tokenAddress string) error {
	bot, err := m.bots.Get(owner, tokenAddress)
	if err != nil || bot == nil {
		return domain.ErrBotNotFound
	}
	if bot.Active {
		if err := m.StopBot(ctx, owner, tokenAddress); err != nil {
			return err
		}
	}

	ownerWallet, ownerErr := m.owners.Get(ctx, owner)
	balances, balErr := m.oracle.GetBalances(ctx, bot.WalletAddress, tokenAddress)

	if ownerErr != nil || balErr != nil {
		log.Printf("Refund skipped for %s (owner wallet: %v, balances: %v)", bot.Key(), ownerErr, balErr)
	} else {
		// The reserve stays behind to pay gas for the token transfer,
		// so a residual balance at or below it is not swept.
		if amount := balances.USDT - refundGasReserve; amount > 0 {
			if _, err := m.exchange.TransferUSDT(ctx, bot.PrivateKey, ownerWallet.Address, amount); err != nil {
				m.recordRefundFailure(bot, "USDT", amount, err)
			}
		}
		if balances.Token > 0 {
			if _, err := m.exchange.TransferToken(ctx, bot.PrivateKey, ownerWallet.Address, tokenAddress, balances.Token); err != nil {
				m.recordRefundFailure(bot, "token", balances.Token, err)
			}
		}
	}

	if err := m.bots.Delete(owner, tokenAddress); err != nil {
		return err
	}
	log.Printf("🗑 Deleted bot %s", bot.Key())
	return nil
}

// BotStatus is the externally visible snapshot of a bot.
type BotStatus struct {
	Bot            *domain.Bot    `json:"bot"`
	CurrentPrice   float64        `json:"currentPrice"`
	USDTBalance    float64        `json:"usdtBalance"`
	TokenBalance   float64        `json:"tokenBalance"`
	PortfolioValue float64        `json:"portfolioValue"`
	Growth         GrowthProgress `json:"growth"`
}

// GetStatus returns the current status of a bot, or nil if none exists
// for the pair.
func (m *BotManager) GetStatus(ctx context.Context, owner, tokenAddress string) (*BotStatus, error) {
	bot, err := m.bots.Get(owner, tokenAddress)
	if err != nil || bot == nil {
		return nil, nil
	}

	status := &BotStatus{
		Bot:          bot,
		USDTBalance:  bot.LastUSDTBalance,
		TokenBalance: bot.LastTokenBalance,
	}

	price, err := m.oracle.GetPrice(ctx, tokenAddress)
	if err != nil {
		price = bot.InitialPrice
	}
	if balances, err := m.oracle.GetBalances(ctx, bot.WalletAddress, tokenAddress); err == nil {
		status.USDTBalance = balances.USDT
		status.TokenBalance = balances.Token
	}

	status.CurrentPrice = price
	status.PortfolioValue = status.USDTBalance + status.TokenBalance*price
	status.Growth = EvaluateGrowth(bot.InitialPrice, price, bot.TargetGrowthPerHour, bot.CreatedAt, m.now())
	return status, nil
}

// InitializeOnStartup re-arms every persisted active bot. Called once
// when the process starts.
func (m *BotManager) InitializeOnStartup() {
	m.scheduler.RescheduleActive()
}

func (m *BotManager) recordRefundFailure(bot *domain.Bot, asset string, amount float64, err error) {
	log.Printf("Refund of %.4f %s failed for %s: %v", amount, asset, bot.Key(), err)
	if m.alerts != nil {
		m.alerts.RefundFailed(bot, asset, err)
	}
	m.logs.Append(&domain.TradeLogEntry{
		ID:           uuid.NewString(),
		Owner:        bot.Owner,
		TokenAddress: bot.TokenAddress,
		Action:       domain.ActionError,
		Amount:       amount,
		Success:      false,
		ErrorMessage: fmt.Sprintf("refund %s failed: %v", asset, err),
		CreatedAt:    m.now(),
	})
}

func (m *BotManager) appendLifecycleLog(bot *domain.Bot, action domain.TradeAction) {
	entry := &domain.TradeLogEntry{
		ID:           uuid.NewString(),
		Owner:        bot.Owner,
		TokenAddress: bot.TokenAddress,
		Action:       action,
		USDTBalance:  bot.LastUSDTBalance,
		TokenBalance: bot.LastTokenBalance,
		Success:      true,
		NextTradeAt:  bot.NextTradeAt,
		CreatedAt:    m.now(),
	}
	if err := m.logs.Append(entry); err != nil {
		log.Printf("Failed to append %s log for %s: %v", action, bot.Key(), err)
	}
}
