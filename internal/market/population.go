package market

import (
	"fmt"

	"github.com/talgya/bazaar/internal/config"
	"github.com/talgya/bazaar/internal/entropy"
	"github.com/talgya/bazaar/internal/trade"
)

// GenerateBuyers samples count buyers for one tick. In fixed scenario mode
// the parameters come from the pinned lists instead of the uniform ranges.
func GenerateBuyers(rng *entropy.Stream, count, step int, cfg config.Market, fixed *config.FixedScenario) []trade.BuyerState {
	buyers := make([]trade.BuyerState, 0, count)
	for i := 0; i < count; i++ {
		b := trade.BuyerState{
			ID:       fmt.Sprintf("buyer_t%d_%03d", step, i),
			Value:    round2(rng.Uniform(cfg.BuyerValueMin, cfg.BuyerValueMax)),
			Budget:   round2(rng.Uniform(cfg.BuyerBudgetMin, cfg.BuyerBudgetMax)),
			Patience: rng.IntBetween(cfg.BuyerPatienceMin, cfg.BuyerPatienceMax),
		}
		if fixed != nil {
			if v, ok := pickFloat(fixed.BuyerValue, i, fixed.Selection, rng); ok {
				b.Value = v
			}
			if v, ok := pickFloat(fixed.BuyerBudget, i, fixed.Selection, rng); ok {
				b.Budget = v
			}
			if v, ok := pickInt(fixed.BuyerPatience, i, fixed.Selection, rng); ok {
				b.Patience = v
			}
		}
		buyers = append(buyers, b)
	}
	return buyers
}

// GenerateSellers samples count sellers for one tick.
func GenerateSellers(rng *entropy.Stream, count, step int, cfg config.Market, fixed *config.FixedScenario) []trade.SellerState {
	sellers := make([]trade.SellerState, 0, count)
	for i := 0; i < count; i++ {
		s := trade.SellerState{
			ID:           fmt.Sprintf("seller_t%d_%03d", step, i),
			Cost:         round2(rng.Uniform(cfg.SellerCostMin, cfg.SellerCostMax)),
			TargetMargin: round4(rng.Uniform(cfg.SellerMarginMin, cfg.SellerMarginMax)),
			Patience:     rng.IntBetween(cfg.SellerPatienceMin, cfg.SellerPatienceMax),
		}
		if fixed != nil {
			if v, ok := pickFloat(fixed.SellerCost, i, fixed.Selection, rng); ok {
				s.Cost = v
			}
			if v, ok := pickFloat(fixed.SellerTargetMargin, i, fixed.Selection, rng); ok {
				s.TargetMargin = v
			}
			if v, ok := pickInt(fixed.SellerPatience, i, fixed.Selection, rng); ok {
				s.Patience = v
			}
		}
		sellers = append(sellers, s)
	}
	return sellers
}

// pickFloat selects from a pinned parameter list. "cycle" walks the list
// by agent index so a population larger than the list repeats it; "random"
// draws uniformly from the stream.
func pickFloat(vals []float64, i int, selection string, rng *entropy.Stream) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	if selection == "random" {
		return vals[rng.Intn(len(vals))], true
	}
	return vals[i%len(vals)], true
}

func pickInt(vals []int, i int, selection string, rng *entropy.Stream) (int, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	if selection == "random" {
		return vals[rng.Intn(len(vals))], true
	}
	return vals[i%len(vals)], true
}
