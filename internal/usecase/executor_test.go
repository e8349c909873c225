package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"marketmaker-backend/internal/domain"
	"marketmaker-backend/internal/repository"
)

type executorFixture struct {
	executor *TradeExecutor
	bots     *repository.InMemoryBotRepository
	logs     *repository.InMemoryTradeLogRepository
	market   *fakeMarket
	alerts   *fakeAlerter
	sched    *TradeScheduler
	timers   *timerStub
}

func newExecutorFixture(t *testing.T, seed int64) *executorFixture {
	t.Helper()

	bots := repository.NewInMemoryBotRepository()
	logs := repository.NewInMemoryTradeLogRepository()
	market := newFakeMarket(1.0)
	market.applyTrades = true
	alerts := &fakeAlerter{}

	sched := NewTradeScheduler(bots)
	timers := &timerStub{}
	sched.afterFunc = timers.afterFunc

	rng := rand.New(rand.NewSource(seed))
	sched.draw = rng.Float64

	e := NewTradeExecutor(bots, logs, market, market, sched, alerts)
	e.draw = rng.Float64
	e.priceWait = func(ctx context.Context, oracle domain.PriceOracle, tokenAddress string, priceBefore float64) float64 {
		p, err := oracle.GetPrice(ctx, tokenAddress)
		if err != nil {
			return priceBefore
		}
		return p
	}

	return &executorFixture{executor: e, bots: bots, logs: logs, market: market, alerts: alerts, sched: sched, timers: timers}
}

func (fx *executorFixture) seedActiveBot(t *testing.T, usdt, token float64) *domain.Bot {
	t.Helper()
	bot := &domain.Bot{
		Owner:               "alice",
		TokenAddress:        "0xtoken",
		WalletAddress:       "0xcustody1",
		PrivateKey:          "custodykey1",
		TargetGrowthPerHour: 2,
		BudgetUSDT:          usdt + token,
		MinPauseSec:         40,
		MaxPauseSec:         80,
		GrowthBuyBias:       0.02,
		InitialPrice:        1.0,
		Active:              true,
		CreatedAt:           time.Now().Add(-time.Hour),
	}
	if err := fx.bots.Create(bot); err != nil {
		t.Fatalf("seeding bot: %v", err)
	}
	fx.market.balances[bot.WalletAddress] = domain.Balances{USDT: usdt, Token: token}
	fx.market.keyToAddr[bot.PrivateKey] = bot.WalletAddress
	return bot
}

// At a constant price, buys and sells only shuffle value between the
// two holdings: total portfolio value must stay put over many ticks.
func TestExecutePreservesPortfolioValue(t *testing.T) {
	fx := newExecutorFixture(t, 7)
	bot := fx.seedActiveBot(t, 1000, 0)

	for i := 0; i < 50; i++ {
		fx.executor.Execute("alice", "0xtoken")
	}

	b := fx.market.balances[bot.WalletAddress]
	total := b.USDT + b.Token*fx.market.price
	if math.Abs(total-1000) > 1e-6 {
		t.Fatalf("portfolio value drifted: got=%v want=1000", total)
	}
	if b.USDT < 0 || b.Token < 0 {
		t.Fatalf("balance went negative: %+v", b)
	}
	if len(fx.market.buys)+len(fx.market.sells) == 0 {
		t.Fatalf("no trades executed in 50 ticks")
	}
}

func TestExecuteReschedulesAfterTrade(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.seedActiveBot(t, 1000, 0)

	fx.executor.Execute("alice", "0xtoken")

	if got := fx.sched.PendingCount(); got != 1 {
		t.Fatalf("pending timers got=%d want=1", got)
	}
	bot, _ := fx.bots.Get("alice", "0xtoken")
	if bot.TotalTrades != 1 {
		t.Fatalf("total trades got=%d want=1", bot.TotalTrades)
	}
	if bot.LastTradeAt == nil {
		t.Fatalf("LastTradeAt not set")
	}

	history := fx.logs.History("alice", "0xtoken", 1)
	if len(history) != 1 {
		t.Fatalf("log entries got=%d want=1", len(history))
	}
	entry := history[0]
	if !entry.Success || entry.TxHash == "" {
		t.Fatalf("log entry got=%+v want successful with tx hash", entry)
	}
	if entry.NextTradeAt == nil {
		t.Fatalf("log entry missing next trade time")
	}
}

func TestExecuteStoppedBotIsNoop(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	bot := fx.seedActiveBot(t, 1000, 0)
	bot.Active = false
	if err := fx.bots.Update(bot); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fx.executor.Execute("alice", "0xtoken")

	if got := fx.sched.PendingCount(); got != 0 {
		t.Fatalf("pending timers got=%d want=0 for stopped bot", got)
	}
	if len(fx.market.buys)+len(fx.market.sells) != 0 {
		t.Fatalf("stopped bot traded")
	}
	history := fx.logs.History("alice", "0xtoken", 1)
	if len(history) != 1 || history[0].Action != domain.ActionPause {
		t.Fatalf("stopped tick log got=%+v want single pause entry", history)
	}
}

func TestExecuteMissingBotIsSilent(t *testing.T) {
	fx := newExecutorFixture(t, 1)

	fx.executor.Execute("ghost", "0xtoken")

	if got := fx.sched.PendingCount(); got != 0 {
		t.Fatalf("pending timers got=%d want=0", got)
	}
	if len(fx.logs.Recent(10)) != 0 {
		t.Fatalf("log entries for a missing bot")
	}
}

func TestExecuteTradeFailureAlertsAndBacksOff(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.seedActiveBot(t, 1000, 0)
	fx.market.buyErr = errors.New("execution reverted")
	fx.market.sellErr = errors.New("execution reverted")

	fx.executor.Execute("alice", "0xtoken")

	if fx.alerts.tradeFailed != 1 {
		t.Fatalf("trade-failed alerts got=%d want=1", fx.alerts.tradeFailed)
	}
	if got := fx.sched.PendingCount(); got != 1 {
		t.Fatalf("pending timers got=%d want=1 (backoff reschedule)", got)
	}
	if got := fx.timers.delays[len(fx.timers.delays)-1]; got != failedTradeBackoff {
		t.Fatalf("backoff delay got=%v want=%v", got, failedTradeBackoff)
	}

	history := fx.logs.History("alice", "0xtoken", 1)
	if len(history) != 1 || history[0].Success {
		t.Fatalf("failure log got=%+v want unsuccessful entry", history)
	}
	bot, _ := fx.bots.Get("alice", "0xtoken")
	if bot.TotalTrades != 0 {
		t.Fatalf("failed trade counted: total=%d", bot.TotalTrades)
	}
}

func TestExecuteBalanceReadFailureBacksOff(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.seedActiveBot(t, 1000, 0)
	fx.market.balErr = errors.New("rpc timeout")

	fx.executor.Execute("alice", "0xtoken")

	if got := fx.sched.PendingCount(); got != 1 {
		t.Fatalf("pending timers got=%d want=1", got)
	}
	if got := fx.timers.delays[len(fx.timers.delays)-1]; got != internalErrBackoff {
		t.Fatalf("backoff delay got=%v want=%v", got, internalErrBackoff)
	}
	if len(fx.market.buys)+len(fx.market.sells) != 0 {
		t.Fatalf("traded despite balance read failure")
	}
}

// Streak accounting feeds forced alternation: a buy resets the sell
// streak and vice versa, and volumes accumulate per side.
func TestExecuteRecordsStreaks(t *testing.T) {
	fx := newExecutorFixture(t, 3)
	fx.seedActiveBot(t, 900, 100)

	for i := 0; i < 30; i++ {
		fx.executor.Execute("alice", "0xtoken")

		fresh, _ := fx.bots.Get("alice", "0xtoken")
		if fresh.ConsecutiveBuys > 0 && fresh.ConsecutiveSells > 0 {
			t.Fatalf("iter %d: both streaks set: buys=%d sells=%d", i, fresh.ConsecutiveBuys, fresh.ConsecutiveSells)
		}
	}

	fresh, _ := fx.bots.Get("alice", "0xtoken")
	if fresh.TotalTrades != len(fx.market.buys)+len(fx.market.sells) {
		t.Fatalf("total trades got=%d want=%d", fresh.TotalTrades, len(fx.market.buys)+len(fx.market.sells))
	}
	if fresh.TotalBuyVolume < 0 || fresh.TotalSellVolume < 0 {
		t.Fatalf("negative volume: %+v", fresh)
	}
}
