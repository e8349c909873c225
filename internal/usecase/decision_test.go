package usecase

import (
	"math/rand"
	"testing"

	"marketmaker-backend/internal/domain"
)

// drawSeq returns a draw func cycling through fixed values, so a
// decision is fully deterministic.
func drawSeq(vals ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := vals[i%len(vals)]
		i++
		return v
	}
}

func TestDecideSevereImbalancePrefersBuy(t *testing.T) {
	// 85% USDT share puts the portfolio in the severe tier: the engine
	// must buy, sized 3-8% of budget.
	in := DecisionInput{
		USDTBalance:   850,
		TokenBalance:  150,
		Price:         1,
		BudgetUSDT:    1000,
		GrowthBuyBias: 0.02,
	}

	d := Decide(in, drawSeq(0.5))
	if d.Action != domain.ActionBuy {
		t.Fatalf("action got=%s want=buy", d.Action)
	}
	if d.Amount < 30 || d.Amount > 80 {
		t.Fatalf("amount %.2f outside severe tier range [30,80]", d.Amount)
	}
}

func TestDecideForcedSellOverridesBuyPreference(t *testing.T) {
	// usdtPct=70 would prefer a buy, but five consecutive buys with
	// enough token holdings force a sell.
	in := DecisionInput{
		USDTBalance:     700,
		TokenBalance:    300,
		Price:           1,
		BudgetUSDT:      1000,
		GrowthBuyBias:   0.02,
		ConsecutiveBuys: 5,
	}

	d := Decide(in, drawSeq(0.5))
	if d.Action != domain.ActionSell {
		t.Fatalf("action got=%s want=sell (forced alternation)", d.Action)
	}
}

func TestDecideForcedBuyBreaksSellStreak(t *testing.T) {
	in := DecisionInput{
		USDTBalance:      300,
		TokenBalance:     700,
		Price:            1,
		BudgetUSDT:       1000,
		GrowthBuyBias:    0.02,
		ConsecutiveSells: 3,
	}

	d := Decide(in, drawSeq(0.5))
	if d.Action != domain.ActionBuy {
		t.Fatalf("action got=%s want=buy (forced alternation)", d.Action)
	}
}

func TestDecideNoForcedSellWhenTokenShareTooSmall(t *testing.T) {
	// Streak at the threshold but token share below 20%: the forced
	// sell does not apply and the imbalance preference wins.
	in := DecisionInput{
		USDTBalance:     900,
		TokenBalance:    100,
		Price:           1,
		BudgetUSDT:      1000,
		GrowthBuyBias:   0.02,
		ConsecutiveBuys: 5,
	}

	d := Decide(in, drawSeq(0.1))
	if d.Action != domain.ActionBuy {
		t.Fatalf("action got=%s want=buy", d.Action)
	}
}

func TestDecidePausesWhenNothingAffordable(t *testing.T) {
	in := DecisionInput{
		USDTBalance:   0,
		TokenBalance:  0,
		Price:         1,
		BudgetUSDT:    1000,
		GrowthBuyBias: 0.02,
	}

	d := Decide(in, drawSeq(0.5, 0.5))
	if d.Action != domain.ActionPause {
		t.Fatalf("action got=%s want=pause", d.Action)
	}
}

func TestDecideFallsBackToSellWhenBuyUnaffordable(t *testing.T) {
	// 15% USDT share: severe tier sizes start at 3% of budget, which
	// the USDT balance cannot cover, so the engine sells instead.
	in := DecisionInput{
		USDTBalance:   150,
		TokenBalance:  850,
		Price:         1,
		BudgetUSDT:    10000,
		GrowthBuyBias: 0.02,
	}

	d := Decide(in, drawSeq(0.5))
	if d.Action != domain.ActionSell {
		t.Fatalf("action got=%s want=sell", d.Action)
	}
	if d.Amount > 850 {
		t.Fatalf("sell amount %.2f exceeds token value 850", d.Amount)
	}
}

// Affordability invariant: across random states the engine never
// returns a buy exceeding the USDT balance or a sell exceeding the
// token value.
func TestDecideAffordabilityInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		in := DecisionInput{
			USDTBalance:      rng.Float64() * 2000,
			TokenBalance:     rng.Float64() * 20000,
			Price:            rng.Float64()*2 + 0.0001,
			BudgetUSDT:       rng.Float64()*5000 + 1,
			GrowthBuyBias:    0.02,
			ConsecutiveBuys:  rng.Intn(8),
			ConsecutiveSells: rng.Intn(8),
		}
		// A bot never has both streaks going at once.
		if in.ConsecutiveBuys > 0 {
			in.ConsecutiveSells = 0
		}

		d := Decide(in, rng.Float64)
		switch d.Action {
		case domain.ActionBuy:
			if d.Amount > in.USDTBalance {
				t.Fatalf("iter %d: buy %.4f exceeds USDT balance %.4f", i, d.Amount, in.USDTBalance)
			}
		case domain.ActionSell:
			if d.Amount > in.TokenBalance*in.Price {
				t.Fatalf("iter %d: sell %.4f exceeds token value %.4f", i, d.Amount, in.TokenBalance*in.Price)
			}
		}
	}
}

func TestTradeSizeRangeTiers(t *testing.T) {
	cases := []struct {
		usdtPct  float64
		min, max float64
	}{
		{85, 3, 8},
		{15, 3, 8},
		{70, 2, 5},
		{30, 2, 5},
		{50, 1, 3},
		{60, 1, 3},
		{40, 1, 3},
	}
	for _, tc := range cases {
		min, max := tradeSizeRange(tc.usdtPct)
		if min != tc.min || max != tc.max {
			t.Fatalf("usdtPct=%.0f got=[%v,%v] want=[%v,%v]", tc.usdtPct, min, max, tc.min, tc.max)
		}
	}
}

func TestBuyProbabilityClamps(t *testing.T) {
	if got := buyProbability(0.02); got != 0.6 {
		t.Fatalf("default bias probability got=%v want=0.6", got)
	}
	if got := buyProbability(0.2); got != 0.95 {
		t.Fatalf("saturated bias probability got=%v want=0.95", got)
	}
	if got := buyProbability(0); got != 0.5 {
		t.Fatalf("zero bias probability got=%v want=0.5", got)
	}
}

func TestDecideZeroTotalDefaultsBalanced(t *testing.T) {
	// Zero holdings default to a 50% share: dead band, so the draw
	// decides the preference, and with nothing affordable it pauses.
	in := DecisionInput{BudgetUSDT: 1000, GrowthBuyBias: 0.02, Price: 1}
	d := Decide(in, drawSeq(0.0, 0.9))
	if d.Action != domain.ActionPause {
		t.Fatalf("action got=%s want=pause", d.Action)
	}
}
