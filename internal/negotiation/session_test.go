package negotiation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bazaar/internal/trade"
)

// scriptPolicy replays a fixed sequence of actions, then rejects.
type scriptPolicy struct {
	actions []trade.NegotiationAction
	next    int
}

func (p *scriptPolicy) Decide(trade.AgentContext) (trade.NegotiationAction, error) {
	if p.next >= len(p.actions) {
		return mkAction(trade.ActionReject, nil), nil
	}
	a := p.actions[p.next]
	p.next++
	return a, nil
}

func (p *scriptPolicy) Type() string { return "script" }

// failingPolicy always errors, simulating an unusable decision source.
type failingPolicy struct{}

func (failingPolicy) Decide(trade.AgentContext) (trade.NegotiationAction, error) {
	return trade.NegotiationAction{}, errors.New("backend unavailable")
}

func (failingPolicy) Type() string { return "failing" }

var testItem = trade.Item{ID: "item_001", Name: "Widget A", ReferencePrice: 100}

func testConfig() Config {
	return Config{MaxRounds: 10, MinPrice: 1, MaxPrice: 500}
}

func TestSessionDealSurplusArithmetic(t *testing.T) {
	buyer := trade.BuyerState{ID: "b1", Value: 120, Budget: 150}
	seller := trade.SellerState{ID: "s1", Cost: 70, TargetMargin: 0.2}

	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(80)),
		mkAction(trade.ActionAccept, nil),
	}}
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionCounter, trade.Float64Ptr(95)),
	}}

	s := NewSession(buyerPolicy, sellerPolicy, testItem, buyer, seller, testConfig(), nil)
	result, err := s.Run()
	require.NoError(t, err)

	assert.True(t, result.DealMade)
	require.NotNil(t, result.DealPrice)
	assert.Equal(t, 95.0, *result.DealPrice)
	assert.Equal(t, trade.TerminationAccepted, result.TerminationReason)
	assert.Equal(t, 3, result.RoundsTaken)
	assert.Equal(t, 25.0, result.BuyerSurplus)
	assert.Equal(t, 25.0, result.SellerSurplus)
	assert.Equal(t, 50.0, result.Welfare())
	assert.Equal(t, StateDeal, s.State())
}

func TestSessionRejectEndsNoDeal(t *testing.T) {
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(85)),
	}}
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionReject, nil),
	}}

	s := NewSession(buyerPolicy, sellerPolicy, testItem, testBuyer, testSeller, testConfig(), nil)
	result, err := s.Run()
	require.NoError(t, err)

	assert.False(t, result.DealMade)
	assert.Nil(t, result.DealPrice)
	assert.Equal(t, trade.TerminationRejected, result.TerminationReason)
	assert.Zero(t, result.BuyerSurplus)
	assert.Zero(t, result.SellerSurplus)
	assert.Equal(t, StateNoDeal, s.State())
}

func TestSessionTimeout(t *testing.T) {
	// Both sides keep offering legal prices that never converge.
	buyerOffers := make([]trade.NegotiationAction, 0, 5)
	sellerOffers := make([]trade.NegotiationAction, 0, 5)
	for i := 0; i < 5; i++ {
		buyerOffers = append(buyerOffers, mkAction(trade.ActionCounter, trade.Float64Ptr(85+float64(i))))
		sellerOffers = append(sellerOffers, mkAction(trade.ActionCounter, trade.Float64Ptr(110-float64(i))))
	}

	cfg := testConfig()
	s := NewSession(
		&scriptPolicy{actions: buyerOffers},
		&scriptPolicy{actions: sellerOffers},
		testItem, testBuyer, testSeller, cfg, nil,
	)
	result, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, trade.TerminationTimeout, result.TerminationReason)
	assert.Equal(t, trade.StatusTimeout, result.Status())
	assert.Equal(t, cfg.MaxRounds, result.RoundsTaken)
	assert.Len(t, result.History, cfg.MaxRounds)
	assert.Equal(t, StateTimeout, s.State())
}

func TestSessionFirstRoundAlwaysOffer(t *testing.T) {
	// The buyer attempts ACCEPT on round 0; the recorded turn must be OFFER.
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionAccept, nil),
	}}
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionReject, nil),
	}}

	s := NewSession(buyerPolicy, sellerPolicy, testItem, testBuyer, testSeller, testConfig(), nil)
	result, err := s.Run()
	require.NoError(t, err)

	require.NotEmpty(t, result.History)
	assert.Equal(t, trade.ActionOffer, result.History[0].Action.Type)
	assert.Empty(t, result.RiskEvents)
}

func TestSessionEnforcementBudgetViolation(t *testing.T) {
	buyer := trade.BuyerState{ID: "b1", Value: 150, Budget: 110}
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(135)),
	}}
	s := NewSession(buyerPolicy, &scriptPolicy{}, testItem, buyer, testSeller, testConfig(), nil)
	result, err := s.Run()
	require.NoError(t, err)

	assert.False(t, result.DealMade)
	assert.Equal(t, trade.TerminationRejected, result.TerminationReason)
	require.Len(t, result.RiskEvents, 1)
	assert.Equal(t, trade.ViolationBudget, result.RiskEvents[0].ViolationType)
	require.NotNil(t, result.RiskEvents[0].AttemptedPrice)
	assert.Equal(t, 135.0, *result.RiskEvents[0].AttemptedPrice)
	// The recorded turn is the enforced REJECT, not the attempted offer.
	assert.Equal(t, trade.ActionReject, result.History[0].Action.Type)
}

func TestSessionUnknownActionTypeEndsNoDeal(t *testing.T) {
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(80)),
	}}
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionType("gibberish"), nil),
	}}
	s := NewSession(buyerPolicy, sellerPolicy, testItem, testBuyer, testSeller, testConfig(), nil)
	result, err := s.Run()
	require.NoError(t, err)

	assert.False(t, result.DealMade)
	assert.Equal(t, trade.TerminationRejected, result.TerminationReason)
	require.Len(t, result.RiskEvents, 1)
	assert.Equal(t, trade.ViolationLogic, result.RiskEvents[0].ViolationType)
	assert.Equal(t, trade.ActionReject, result.History[1].Action.Type)
	assert.Equal(t, StateNoDeal, s.State())
}

func TestSessionDealNeverViolatesBudgetOrCost(t *testing.T) {
	buyer := trade.BuyerState{ID: "b1", Value: 200, Budget: 100}
	seller := trade.SellerState{ID: "s1", Cost: 90}

	// Seller offers 120; buyer would accept but 120 > budget, so the
	// judge converts the accept into a reject.
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(95)),
		mkAction(trade.ActionAccept, nil),
	}}
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionCounter, trade.Float64Ptr(120)),
	}}

	s := NewSession(buyerPolicy, sellerPolicy, testItem, buyer, seller, testConfig(), nil)
	result, err := s.Run()
	require.NoError(t, err)

	assert.False(t, result.DealMade)
	require.Len(t, result.RiskEvents, 1)
	assert.Equal(t, trade.ViolationBudget, result.RiskEvents[0].ViolationType)
}

func TestSessionSellerFirstMover(t *testing.T) {
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(100)),
	}}
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionAccept, nil),
	}}

	cfg := testConfig()
	cfg.FirstMover = trade.RoleSeller
	s := NewSession(buyerPolicy, sellerPolicy, testItem, testBuyer, testSeller, cfg, nil)
	assert.Equal(t, StateAwaitingSeller, s.State())

	result, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, trade.RoleSeller, result.History[0].AgentRole)
	assert.True(t, result.DealMade)
	assert.Equal(t, 100.0, *result.DealPrice)
}

func TestSessionResultGuards(t *testing.T) {
	s := NewSession(&scriptPolicy{}, &scriptPolicy{}, testItem, testBuyer, testSeller, testConfig(), nil)

	_, err := s.Result()
	assert.ErrorIs(t, err, ErrNotComplete)

	_, err = s.Run()
	require.NoError(t, err)

	result, err := s.Result()
	require.NoError(t, err)
	assert.NotNil(t, result)

	_, err = s.Run()
	assert.ErrorIs(t, err, ErrComplete)
}

func TestSessionFailingPolicyFallsBack(t *testing.T) {
	// A policy error becomes a fallback opening offer, never a crash.
	buyer := trade.BuyerState{ID: "b1", Value: 150, Budget: 150} // fallback offer = 90
	s := NewSession(failingPolicy{}, &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionAccept, nil),
	}}, testItem, buyer, testSeller, testConfig(), nil)

	result, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, trade.ActionOffer, result.History[0].Action.Type)
	assert.True(t, result.DealMade)
}

func TestSessionOffersRecorded(t *testing.T) {
	buyerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionOffer, trade.Float64Ptr(80)),
		mkAction(trade.ActionAccept, nil),
	}}
	sellerPolicy := &scriptPolicy{actions: []trade.NegotiationAction{
		mkAction(trade.ActionCounter, trade.Float64Ptr(95)),
	}}
	s := NewSession(buyerPolicy, sellerPolicy, testItem, testBuyer, testSeller, testConfig(), nil)
	_, err := s.Run()
	require.NoError(t, err)

	offers := s.Offers()
	require.Len(t, offers, 2)
	assert.Equal(t, trade.Offer{Price: 80, RoundNumber: 0, Proposer: trade.RoleBuyer}, offers[0])
	assert.Equal(t, trade.Offer{Price: 95, RoundNumber: 1, Proposer: trade.RoleSeller}, offers[1])
}
