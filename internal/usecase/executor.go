package usecase

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"marketmaker-backend/internal/domain"
)

const (
	// Backoff used instead of the random pause after a failed or
	// errored tick, so a single bad trade never stalls a bot.
	failedTradeBackoff = 2 * time.Minute
	internalErrBackoff = time.Minute

	tickTimeout = 3 * time.Minute
)

// TradeExecutor runs one full read-decide-submit-analyze-reschedule
// sequence per timer fire. Within one bot execution is sequential: the
// next timer is armed only after the tick completes.
type TradeExecutor struct {
	bots      domain.BotRepository
	logs      domain.TradeLogRepository
	oracle    domain.PriceOracle
	exchange  domain.Exchange
	scheduler *TradeScheduler
	alerts    TradeAlerter

	draw      func() float64
	now       func() time.Time
	priceWait func(ctx context.Context, oracle domain.PriceOracle, tokenAddress string, priceBefore float64) float64
}

// TradeAlerter pushes out-of-band alerts for conditions that need
// operator attention. May be nil-implemented.
type TradeAlerter interface {
	TradeFailed(bot *domain.Bot, err error)
	RefundFailed(bot *domain.Bot, asset string, err error)
}

func NewTradeExecutor(
	bots domain.BotRepository,
	logs domain.TradeLogRepository,
	oracle domain.PriceOracle,
	exchange domain.Exchange,
	scheduler *TradeScheduler,
	alerts TradeAlerter,
) *TradeExecutor {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	e := &TradeExecutor{
		bots:      bots,
		logs:      logs,
		oracle:    oracle,
		exchange:  exchange,
		scheduler: scheduler,
		alerts:    alerts,
		draw:      rng.Float64,
		now:       time.Now,
		priceWait: WaitForPriceUpdate,
	}
	scheduler.SetExecutor(e.Execute)
	return e
}

// Execute is the tick entry point invoked by the scheduler. It never
// panics out: unexpected failures are logged as error entries and the
// bot is rescheduled with a backoff.
func (e *TradeExecutor) Execute(owner, tokenAddress string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in trade tick for %s: %v", domain.BotKey(owner, tokenAddress), r)
			e.scheduler.ScheduleAfter(owner, tokenAddress, internalErrBackoff)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	bot, err := e.bots.Get(owner, tokenAddress)
	if err != nil || bot == nil {
		return
	}
	// A stop issued between scheduling and firing lands here: the fire
	// is a no-op pause entry and no further timer is armed.
	if !bot.Active {
		e.appendLog(bot, domain.ActionPause, 0, 0, 0, "", true, "bot stopped", nil)
		return
	}

	balances, err := e.oracle.GetBalances(ctx, bot.WalletAddress, bot.TokenAddress)
	if err != nil {
		e.tickError(bot, fmt.Errorf("reading balances: %w", err))
		return
	}
	price, err := e.oracle.GetPrice(ctx, bot.TokenAddress)
	if err != nil {
		e.tickError(bot, fmt.Errorf("reading price: %w", err))
		return
	}

	decision := Decide(DecisionInput{
		USDTBalance:      balances.USDT,
		TokenBalance:     balances.Token,
		Price:            price,
		BudgetUSDT:       bot.BudgetUSDT,
		GrowthBuyBias:    bot.GrowthBuyBias,
		ConsecutiveBuys:  bot.ConsecutiveBuys,
		ConsecutiveSells: bot.ConsecutiveSells,
	}, e.draw)

	if decision.Action == domain.ActionPause {
		e.scheduler.ScheduleNext(owner, tokenAddress)
		e.appendLog(e.reload(bot), domain.ActionPause, 0, price, price, "", true, "no affordable trade", &balances)
		return
	}

	var txHash string
	switch decision.Action {
	case domain.ActionBuy:
		txHash, err = e.exchange.Buy(ctx, bot.PrivateKey, bot.TokenAddress, decision.Amount)
	case domain.ActionSell:
		tokenAmount := decision.Amount / price
		txHash, err = e.exchange.Sell(ctx, bot.PrivateKey, bot.TokenAddress, tokenAmount)
	}
	if err != nil {
		log.Printf("Trade failed for %s (%s %.2f USDT): %v", bot.Key(), decision.Action, decision.Amount, err)
		if e.alerts != nil {
			e.alerts.TradeFailed(bot, err)
		}
		e.scheduler.ScheduleAfter(owner, tokenAddress, failedTradeBackoff)
		e.appendLog(e.reload(bot), decision.Action, decision.Amount, price, price, "", false, err.Error(), &balances)
		return
	}

	// The indexer lags the chain; wait for the post-trade price before
	// scoring the impact.
	priceAfter := e.priceWait(ctx, e.oracle, bot.TokenAddress, price)

	after, err := e.oracle.GetBalances(ctx, bot.WalletAddress, bot.TokenAddress)
	if err != nil {
		// Trade went through; fall back to pre-trade numbers for display.
		after = balances
	}

	switch decision.Action {
	case domain.ActionBuy:
		bot.RecordBuy(decision.Amount)
	case domain.ActionSell:
		bot.RecordSell(decision.Amount)
	}
	bot.LastUSDTBalance = after.USDT
	bot.LastTokenBalance = after.Token
	now := e.now()
	bot.LastTradeAt = &now

	analysis := AnalyzeImpact(decision.Action, price, priceAfter, bot.TargetGrowthPerHour)
	progress := EvaluateGrowth(bot.InitialPrice, priceAfter, bot.TargetGrowthPerHour, bot.CreatedAt, now)
	if AdjustStrategy(bot, analysis, progress) {
		log.Printf("Bot %s adjusted: bias=%.4f pause=%d-%ds (impact=%.3f%% rec=%s hourly=%.3f%%/h)",
			bot.Key(), bot.GrowthBuyBias, bot.MinPauseSec, bot.MaxPauseSec,
			analysis.PriceChangePercent, analysis.Recommendation, progress.HourlyGrowthRate)
	}

	if err := e.bots.Update(bot); err != nil {
		log.Printf("Failed to persist bot %s after trade: %v", bot.Key(), err)
	}
	e.scheduler.ScheduleNext(owner, tokenAddress)

	log.Printf("✓ Bot %s %s %.2f USDT | price %.8f -> %.8f | tx %s",
		bot.Key(), decision.Action, decision.Amount, price, priceAfter, txHash)
	e.appendLog(e.reload(bot), decision.Action, decision.Amount, price, priceAfter, txHash, true, "", &after)
}

// tickError records an unexpected failure and reschedules with a fixed
// backoff; the scheduler never dies from a single tick.
func (e *TradeExecutor) tickError(bot *domain.Bot, err error) {
	log.Printf("Trade tick error for %s: %v", bot.Key(), err)
	e.scheduler.ScheduleAfter(bot.Owner, bot.TokenAddress, internalErrBackoff)
	e.appendLog(e.reload(bot), domain.ActionError, 0, 0, 0, "", false, err.Error(), nil)
}

// reload re-reads the bot so the log entry carries the just-persisted
// next trade time; falls back to the in-memory copy.
func (e *TradeExecutor) reload(bot *domain.Bot) *domain.Bot {
	fresh, err := e.bots.Get(bot.Owner, bot.TokenAddress)
	if err != nil || fresh == nil {
		return bot
	}
	return fresh
}

func (e *TradeExecutor) appendLog(bot *domain.Bot, action domain.TradeAction, amount, priceBefore, priceAfter float64, txHash string, success bool, errMsg string, balances *domain.Balances) {
	entry := &domain.TradeLogEntry{
		ID:           uuid.NewString(),
		Owner:        bot.Owner,
		TokenAddress: bot.TokenAddress,
		Action:       action,
		Amount:       amount,
		PriceBefore:  priceBefore,
		PriceAfter:   priceAfter,
		TxHash:       txHash,
		Success:      success,
		ErrorMessage: errMsg,
		NextTradeAt:  bot.NextTradeAt,
		CreatedAt:    e.now(),
	}
	if balances != nil {
		entry.USDTBalance = balances.USDT
		entry.TokenBalance = balances.Token
	}
	if err := e.logs.Append(entry); err != nil {
		log.Printf("Failed to append trade log for %s: %v", bot.Key(), err)
	}
}
