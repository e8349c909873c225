package usecase

import (
	"context"
	"log"
	"math"
	"time"

	"marketmaker-backend/internal/domain"
)

const (
	// The indexer trails the chain, so the post-trade price is polled
	// until it moves or the timeout elapses.
	priceUpdateTimeout = 30 * time.Second
	priceUpdatePoll    = 2 * time.Second

	// Rough trades-per-hour estimate used to translate the hourly
	// growth target into an expected per-trade price impact.
	estTradesPerHour = 20.0

	growthTolerance = 0.2 // +-20% band around the hourly target
	adjustStep      = 0.2 // nudge levers by 20% per adjustment

	RecommendAdjustUp   = "adjust_up"
	RecommendAdjustDown = "adjust_down"
	RecommendContinue   = "continue"
)

// ImpactAnalysis scores the realized effect of a single trade.
type ImpactAnalysis struct {
	PriceChangePercent float64
	ExpectedDirection  bool
	Effectiveness      float64
	Recommendation     string
}

// GrowthProgress compares realized growth since creation to the target.
type GrowthProgress struct {
	ElapsedHours       float64
	TotalGrowthPercent float64
	HourlyGrowthRate   float64
	IsOnTarget         bool
}

// WaitForPriceUpdate polls the oracle until the reported price differs
// from priceBefore or the timeout elapses, and returns whichever price
// is current at that point. A timeout is not an error: the analysis
// proceeds with the possibly stale price.
func WaitForPriceUpdate(ctx context.Context, oracle domain.PriceOracle, tokenAddress string, priceBefore float64) float64 {
	deadline := time.Now().Add(priceUpdateTimeout)
	for time.Now().Before(deadline) {
		price, err := oracle.GetPrice(ctx, tokenAddress)
		if err == nil && price != priceBefore {
			return price
		}
		select {
		case <-ctx.Done():
			return priceBefore
		case <-time.After(priceUpdatePoll):
		}
	}

	price, err := oracle.GetPrice(ctx, tokenAddress)
	if err != nil {
		return priceBefore
	}
	return price
}

// AnalyzeImpact evaluates a completed buy or sell against the growth
// target. A buy is expected to move price up, a sell down; moving the
// wrong way scores negative.
func AnalyzeImpact(action domain.TradeAction, priceBefore, priceAfter, targetGrowthPerHour float64) ImpactAnalysis {
	change := 0.0
	if priceBefore > 0 {
		change = (priceAfter - priceBefore) / priceBefore * 100
	}

	expected := (action == domain.ActionBuy && change > 0) ||
		(action == domain.ActionSell && change < 0)

	perTrade := targetGrowthPerHour / estTradesPerHour
	if perTrade < 0.001 {
		perTrade = 0.001
	}

	score := math.Abs(change) / perTrade
	if score > 2 {
		score = 2
	}
	if !expected {
		score = -score
	}

	rec := RecommendContinue
	switch {
	case !expected:
		rec = RecommendAdjustUp
	case action == domain.ActionBuy && change < perTrade*0.5:
		// Buy impact far below target, push harder.
		rec = RecommendAdjustUp
	case action == domain.ActionBuy && change > perTrade*3:
		rec = RecommendAdjustDown
	}

	return ImpactAnalysis{
		PriceChangePercent: change,
		ExpectedDirection:  expected,
		Effectiveness:      score,
		Recommendation:     rec,
	}
}

// EvaluateGrowth computes realized growth since creation and whether
// the bot is inside the tolerance band around its hourly target.
func EvaluateGrowth(initialPrice, currentPrice, targetGrowthPerHour float64, createdAt, now time.Time) GrowthProgress {
	elapsed := now.Sub(createdAt).Hours()
	if elapsed <= 0 {
		elapsed = 1.0 / 3600 // sub-second bots count as one second old
	}

	total := 0.0
	if initialPrice > 0 {
		total = (currentPrice - initialPrice) / initialPrice * 100
	}
	hourly := total / elapsed

	band := targetGrowthPerHour * growthTolerance
	onTarget := math.Abs(hourly-targetGrowthPerHour) <= band

	return GrowthProgress{
		ElapsedHours:       elapsed,
		TotalGrowthPercent: total,
		HourlyGrowthRate:   hourly,
		IsOnTarget:         onTarget,
	}
}

// AdjustStrategy tunes the bot's levers when it is off target: the
// growth-buy bias and the pause range, both clamped. When one lever is
// saturated the other still gives the control loop room; if both are
// saturated nothing changes and that is logged. Returns whether any
// parameter moved.
func AdjustStrategy(bot *domain.Bot, analysis ImpactAnalysis, progress GrowthProgress) bool {
	if progress.IsOnTarget && analysis.Recommendation == RecommendContinue {
		return false
	}

	speedUp := analysis.Recommendation == RecommendAdjustUp ||
		(analysis.Recommendation != RecommendAdjustDown && progress.HourlyGrowthRate < bot.TargetGrowthPerHour)

	biasMoved := adjustBias(bot, speedUp)
	pauseMoved := adjustPause(bot, speedUp)

	if !biasMoved && !pauseMoved {
		log.Printf("Bot %s: strategy levers saturated (bias=%.4f pause=%d-%ds), no adjustment",
			bot.Key(), bot.GrowthBuyBias, bot.MinPauseSec, bot.MaxPauseSec)
		return false
	}
	return true
}

func adjustBias(bot *domain.Bot, up bool) bool {
	prev := bot.GrowthBuyBias
	if up {
		bot.GrowthBuyBias = math.Min(prev*(1+adjustStep), domain.MaxGrowthBuyBias)
	} else {
		bot.GrowthBuyBias = math.Max(prev*(1-adjustStep), domain.MinGrowthBuyBias)
	}
	return bot.GrowthBuyBias != prev
}

// adjustPause narrows the pause range to trade faster or widens it to
// trade slower, keeping both bounds in [MinPauseFloorSec, MaxPauseCeilingSec]
// and min <= max.
func adjustPause(bot *domain.Bot, faster bool) bool {
	prevMin, prevMax := bot.MinPauseSec, bot.MaxPauseSec

	factor := 1 + adjustStep
	if faster {
		factor = 1 - adjustStep
	}

	newMin := int(math.Round(float64(prevMin) * factor))
	newMax := int(math.Round(float64(prevMax) * factor))

	newMin = clampInt(newMin, domain.MinPauseFloorSec, domain.MaxPauseCeilingSec)
	newMax = clampInt(newMax, domain.MinPauseFloorSec, domain.MaxPauseCeilingSec)
	if newMax < newMin {
		newMax = newMin
	}

	bot.MinPauseSec, bot.MaxPauseSec = newMin, newMax
	return newMin != prevMin || newMax != prevMax
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
