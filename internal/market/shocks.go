package market

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/bazaar/internal/config"
	"github.com/talgya/bazaar/internal/entropy"
	"github.com/talgya/bazaar/internal/trade"
)

// Sentiment produces a smooth market-wide mood multiplier over ticks.
// Demand and supply ride the same underlying noise in opposite directions:
// a bullish tick lifts buyer valuations and lowers seller costs.
type Sentiment struct {
	noise     opensimplex.Noise
	amplitude float64
	scale     float64
}

// NewSentiment builds a sentiment curve from the run seed.
func NewSentiment(seed int64, cfg config.Shock) *Sentiment {
	if !cfg.DriftEnabled {
		return nil
	}
	return &Sentiment{
		noise:     opensimplex.NewNormalized(seed),
		amplitude: cfg.DriftAmplitude,
		scale:     cfg.DriftScale,
	}
}

// At returns (demandFactor, supplyFactor) for a tick. A nil Sentiment is
// flat: both factors are 1.
func (s *Sentiment) At(tick int) (float64, float64) {
	if s == nil {
		return 1, 1
	}
	// Eval2 is normalized to [0, 1]; recenter to [-1, 1].
	mood := 2*s.noise.Eval2(float64(tick)*s.scale, 0) - 1
	return 1 + s.amplitude*mood, 1 - s.amplitude*mood
}

// ApplyShocks perturbs buyer values and seller costs in place and returns
// the shocked populations. Each agent is shocked independently with
// probability cfg.ShockProbability and its own sampled multiplier, so a
// large population sees a mix of shocked and unshocked agents every tick.
// Budgets and margins are hard constraints and never shocked.
func ApplyShocks(
	buyers []trade.BuyerState,
	sellers []trade.SellerState,
	rng *entropy.Stream,
	cfg config.Shock,
	sentiment *Sentiment,
	tick int,
) ([]trade.BuyerState, []trade.SellerState) {
	demandBase, supplyBase := sentiment.At(tick)

	if !cfg.Enabled {
		if sentiment == nil {
			return buyers, sellers
		}
		// Drift without shocks still moves the whole market.
		for i := range buyers {
			buyers[i].Value = round2(buyers[i].Value * demandBase)
		}
		for i := range sellers {
			sellers[i].Cost = round2(sellers[i].Cost * supplyBase)
		}
		return buyers, sellers
	}

	for i := range buyers {
		mult := demandBase
		if rng.Float64() < cfg.ShockProbability {
			mult *= rng.Uniform(cfg.DemandMultiplierMin, cfg.DemandMultiplierMax)
		}
		buyers[i].Value = round2(buyers[i].Value * mult)
	}
	for i := range sellers {
		mult := supplyBase
		if rng.Float64() < cfg.ShockProbability {
			mult *= rng.Uniform(cfg.SupplyMultiplierMin, cfg.SupplyMultiplierMax)
		}
		sellers[i].Cost = round2(sellers[i].Cost * mult)
	}
	return buyers, sellers
}
