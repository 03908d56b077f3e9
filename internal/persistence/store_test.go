package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bazaar/internal/trade"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleResult(step int, buyerID, sellerID string, deal bool) *trade.NegotiationResult {
	r := &trade.NegotiationResult{
		Item:              trade.Item{ID: "item_000", Name: "Widget A", ReferencePrice: 90},
		BuyerID:           buyerID,
		SellerID:          sellerID,
		DealMade:          deal,
		TerminationReason: trade.TerminationTimeout,
		RoundsTaken:       10,
		BuyerValue:        120,
		SellerCost:        80,
		TimeStep:          step,
	}
	if deal {
		r.DealPrice = trade.Float64Ptr(95)
		r.TerminationReason = trade.TerminationAccepted
		r.RoundsTaken = 4
		r.BuyerSurplus = 25
		r.SellerSurplus = 15
	}
	return r
}

func TestSaveAndQueryRunState(t *testing.T) {
	st := openTestStore(t)

	run := RunRecord{
		ID:           "run-1",
		Seed:         42,
		Steps:        2,
		Mode:         "market",
		ScenarioMode: "distribution",
		BuyerPolicy:  "rule_based",
		SellerPolicy: "rule_based",
	}
	results := []*trade.NegotiationResult{
		sampleResult(0, "buyer_t0_000", "seller_t0_001", true),
		sampleResult(1, "buyer_t1_000", "seller_t1_001", false),
	}
	results[1].RiskEvents = []trade.RiskEvent{{
		Round:           2,
		Role:            trade.RoleBuyer,
		ViolationType:   trade.ViolationBudget,
		Reason:          "offered above budget",
		AttemptedAction: trade.ActionCounter,
		AttemptedPrice:  trade.Float64Ptr(140),
		TimeStep:        1,
	}}
	stats := []trade.MarketTickStats{
		{Tick: 0, NumSessions: 1, DealsMade: 1, MeanPrice: 95, Liquidity: 1},
		{Tick: 1, NumSessions: 1, DealsMade: 0, FailRate: 1},
	}

	require.NoError(t, st.SaveRunState(run, results, stats))

	runs, err := st.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, int64(42), runs[0].Seed)
	assert.NotEmpty(t, runs[0].CreatedAt)

	rows, err := st.ResultsForRun("run-1", 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].DealMade)
	require.NotNil(t, rows[0].DealPrice)
	assert.Equal(t, 95.0, *rows[0].DealPrice)
	assert.False(t, rows[1].DealMade)
	assert.Nil(t, rows[1].DealPrice)
	assert.Equal(t, "timeout", rows[1].Termination)

	got, err := st.TickStatsForRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	n, err := st.RiskEventCount("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResultsScopedByRun(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.SaveRun(RunRecord{ID: "a", Mode: "session", ScenarioMode: "distribution", BuyerPolicy: "rule_based", SellerPolicy: "rule_based"}))
	require.NoError(t, st.SaveRun(RunRecord{ID: "b", Mode: "session", ScenarioMode: "distribution", BuyerPolicy: "rule_based", SellerPolicy: "rule_based"}))
	require.NoError(t, st.SaveResults("a", []*trade.NegotiationResult{sampleResult(0, "b0", "s0", true)}))

	rows, err := st.ResultsForRun("b", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = st.ResultsForRun("a", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSaveTickStatsEmptyIsNoop(t *testing.T) {
	st := openTestStore(t)
	assert.NoError(t, st.SaveTickStats("x", nil))
}
