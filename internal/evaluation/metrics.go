// Package evaluation computes aggregate statistics from negotiation
// results. All functions here are pure: no state, no side effects.
package evaluation

import (
	"math"
	"sort"

	"github.com/talgya/bazaar/internal/trade"
)

// Metrics is the run-wide summary written to summary.json.
type Metrics struct {
	TotalNegotiations       int     `json:"total_negotiations"`
	DealsMade               int     `json:"deals_made"`
	DealSuccessRate         float64 `json:"deal_success_rate"`
	AvgPrice                float64 `json:"avg_price"`
	MedianPrice             float64 `json:"median_price"`
	PriceStd                float64 `json:"price_std"`
	BuyerSurplusMean        float64 `json:"buyer_surplus_mean"`
	SellerSurplusMean       float64 `json:"seller_surplus_mean"`
	WelfareMean             float64 `json:"welfare_mean"`
	AvgRoundsToClose        float64 `json:"avg_rounds_to_close"`
	AvgRoundsAll            float64 `json:"avg_rounds_all"`
	BudgetViolationAttempts int     `json:"budget_violation_attempts"`
	CostViolationAttempts   int     `json:"cost_violation_attempts"`
	DeadlockRate            float64 `json:"deadlock_rate"`
	Timeouts                int     `json:"timeouts"`
	TotalRiskEvents         int     `json:"total_risk_events"`
}

// ComputeMetrics aggregates a full run. Price statistics cover deal prices
// only; surplus means cover deals only (zero-surplus convention for
// non-deal outcomes keeps them out of the deal-only means).
func ComputeMetrics(results []*trade.NegotiationResult) Metrics {
	var m Metrics
	m.TotalNegotiations = len(results)
	if len(results) == 0 {
		return m
	}

	var dealPrices, buyerSurpluses, sellerSurpluses, welfare, dealRounds, allRounds []float64
	for _, r := range results {
		allRounds = append(allRounds, float64(r.RoundsTaken))
		for _, e := range r.RiskEvents {
			switch e.ViolationType {
			case trade.ViolationBudget:
				m.BudgetViolationAttempts++
			case trade.ViolationCost:
				m.CostViolationAttempts++
			}
			m.TotalRiskEvents++
		}
		if r.TerminationReason == trade.TerminationTimeout {
			m.Timeouts++
		}
		if !r.DealMade {
			continue
		}
		m.DealsMade++
		if r.DealPrice != nil {
			dealPrices = append(dealPrices, *r.DealPrice)
		}
		buyerSurpluses = append(buyerSurpluses, r.BuyerSurplus)
		sellerSurpluses = append(sellerSurpluses, r.SellerSurplus)
		welfare = append(welfare, r.Welfare())
		dealRounds = append(dealRounds, float64(r.RoundsTaken))
	}

	total := float64(m.TotalNegotiations)
	m.DealSuccessRate = round4(float64(m.DealsMade) / total)
	m.DeadlockRate = round4(float64(m.Timeouts) / total)
	m.AvgPrice = round2(mean(dealPrices))
	m.MedianPrice = round2(median(dealPrices))
	m.PriceStd = round2(stddev(dealPrices))
	m.BuyerSurplusMean = round2(mean(buyerSurpluses))
	m.SellerSurplusMean = round2(mean(sellerSurpluses))
	m.WelfareMean = round2(mean(welfare))
	m.AvgRoundsToClose = round2(mean(dealRounds))
	m.AvgRoundsAll = round2(mean(allRounds))
	return m
}

// ComputeTickStats aggregates one tick's results. Every rate and moment is
// defined as 0 when its denominator would be zero.
func ComputeTickStats(tick int, results []*trade.NegotiationResult) trade.MarketTickStats {
	stats := trade.MarketTickStats{Tick: tick, NumSessions: len(results)}
	if len(results) == 0 {
		return stats
	}

	var prices, buyerSurpluses, sellerSurpluses []float64
	for _, r := range results {
		if !r.DealMade {
			continue
		}
		stats.DealsMade++
		if r.DealPrice != nil {
			prices = append(prices, *r.DealPrice)
		}
		buyerSurpluses = append(buyerSurpluses, r.BuyerSurplus)
		sellerSurpluses = append(sellerSurpluses, r.SellerSurplus)
	}

	n := float64(stats.NumSessions)
	stats.FailRate = round4(float64(stats.NumSessions-stats.DealsMade) / n)
	stats.Liquidity = round4(float64(stats.DealsMade) / n)
	stats.MeanPrice = round2(mean(prices))
	stats.PriceStd = round2(stddev(prices))
	stats.BuyerSurplusMean = round2(mean(buyerSurpluses))
	stats.SellerSurplusMean = round2(mean(sellerSurpluses))
	return stats
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// stddev is the sample standard deviation, 0 for fewer than two values.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
