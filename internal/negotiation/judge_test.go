package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bazaar/internal/trade"
)

var (
	testBuyer  = trade.BuyerState{ID: "b1", Value: 120, Budget: 110, Patience: 5}
	testSeller = trade.SellerState{ID: "s1", Cost: 80, TargetMargin: 0.15, Patience: 5}
)

func mkAction(t trade.ActionType, price *float64) trade.NegotiationAction {
	return trade.NegotiationAction{Type: t, OfferPrice: price, MessagePublic: "m", RationalePrivate: "r"}
}

func TestCorrectFirstRoundCounterBecomesOffer(t *testing.T) {
	j := NewActionJudge(1, 500)
	got := j.CorrectFirstRound(mkAction(trade.ActionCounter, trade.Float64Ptr(90)), trade.RoleBuyer, testBuyer, testSeller)
	assert.Equal(t, trade.ActionOffer, got.Type)
	require.NotNil(t, got.OfferPrice)
	assert.Equal(t, 90.0, *got.OfferPrice)
}

func TestCorrectFirstRoundAcceptBecomesOfferWithFallback(t *testing.T) {
	j := NewActionJudge(1, 500)
	got := j.CorrectFirstRound(mkAction(trade.ActionAccept, nil), trade.RoleBuyer, testBuyer, testSeller)
	assert.Equal(t, trade.ActionOffer, got.Type)
	require.NotNil(t, got.OfferPrice)
	assert.Equal(t, 60.0, *got.OfferPrice) // value * 0.5
}

func TestCorrectFirstRoundRejectSellerFallback(t *testing.T) {
	j := NewActionJudge(1, 500)
	got := j.CorrectFirstRound(mkAction(trade.ActionReject, nil), trade.RoleSeller, testBuyer, testSeller)
	assert.Equal(t, trade.ActionOffer, got.Type)
	require.NotNil(t, got.OfferPrice)
	assert.Equal(t, 120.0, *got.OfferPrice) // cost * 1.5
}

func TestValidateBuyerOverBudget(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionOffer, trade.Float64Ptr(135)), testBuyer, testSeller, nil, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationBudget, res.ViolationType)
}

func TestValidateBuyerAboveValueButWithinBudgetIsLegal(t *testing.T) {
	// Value and budget are independent; only budget is a hard cap.
	buyer := trade.BuyerState{ID: "b1", Value: 90, Budget: 110}
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionOffer, trade.Float64Ptr(100)), buyer, testSeller, nil, nil)
	assert.True(t, res.Valid)
}

func TestValidateSellerBelowCost(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleSeller, mkAction(trade.ActionOffer, trade.Float64Ptr(70)), testBuyer, testSeller, nil, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationCost, res.ViolationType)
}

func TestValidatePriceOutsideBounds(t *testing.T) {
	j := NewActionJudge(50, 200)
	res := j.Validate(trade.RoleSeller, mkAction(trade.ActionOffer, trade.Float64Ptr(300)), testBuyer, testSeller, nil, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationBounds, res.ViolationType)
}

func TestValidateAcceptWithoutPriorOffer(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionAccept, nil), testBuyer, testSeller, nil, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationLogic, res.ViolationType)
}

func TestValidateAcceptOverBudget(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionAccept, nil), testBuyer, testSeller, trade.Float64Ptr(130), nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationBudget, res.ViolationType)
}

func TestValidateAcceptBelowCost(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleSeller, mkAction(trade.ActionAccept, nil), testBuyer, testSeller, trade.Float64Ptr(60), nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationCost, res.ViolationType)
}

func TestValidateRejectAlwaysLegal(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionReject, nil), testBuyer, testSeller, nil, nil)
	assert.True(t, res.Valid)
}

func TestValidateUnknownActionType(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionType("gibberish"), nil), testBuyer, testSeller, trade.Float64Ptr(90), nil)
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationLogic, res.ViolationType)
}

func TestValidateBuyerCounterRetreat(t *testing.T) {
	j := NewActionJudge(1, 500)
	// Buyer previously offered 90; countering at 70 walks the concession back.
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionCounter, trade.Float64Ptr(70)), testBuyer, testSeller, trade.Float64Ptr(110), trade.Float64Ptr(90))
	assert.False(t, res.Valid)
	assert.Equal(t, trade.ViolationLogic, res.ViolationType)
}

func TestValidateSellerCounterRetreat(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleSeller, mkAction(trade.ActionCounter, trade.Float64Ptr(150)), testBuyer, testSeller, trade.Float64Ptr(85), trade.Float64Ptr(140))
	assert.False(t, res.Valid)
}

func TestValidateCounterConcedingForwardIsLegal(t *testing.T) {
	j := NewActionJudge(1, 500)
	res := j.Validate(trade.RoleBuyer, mkAction(trade.ActionCounter, trade.Float64Ptr(95)), testBuyer, testSeller, trade.Float64Ptr(110), trade.Float64Ptr(90))
	assert.True(t, res.Valid, res.Reason)
}

func TestEnforceRewritesToRejectAndRecordsRisk(t *testing.T) {
	j := NewActionJudge(1, 500)
	action, risk := j.Enforce(
		trade.RoleBuyer, mkAction(trade.ActionOffer, trade.Float64Ptr(135)),
		testBuyer, testSeller, nil, nil, 2, 7,
	)
	assert.Equal(t, trade.ActionReject, action.Type)
	require.NotNil(t, risk)
	assert.Equal(t, trade.ViolationBudget, risk.ViolationType)
	assert.Equal(t, trade.ActionOffer, risk.AttemptedAction)
	require.NotNil(t, risk.AttemptedPrice)
	assert.Equal(t, 135.0, *risk.AttemptedPrice)
	assert.Equal(t, 2, risk.Round)
	assert.Equal(t, 7, risk.TimeStep)
}

func TestEnforceValidActionUnchanged(t *testing.T) {
	j := NewActionJudge(1, 500)
	in := mkAction(trade.ActionOffer, trade.Float64Ptr(95))
	action, risk := j.Enforce(trade.RoleBuyer, in, testBuyer, testSeller, nil, nil, 2, 0)
	assert.Nil(t, risk)
	assert.Equal(t, in, action)
}

func TestEnforceFirstRoundCorrectionThenValidation(t *testing.T) {
	j := NewActionJudge(1, 500)
	// Round 0 accept becomes an offer at value*0.5 = 60, which passes.
	action, risk := j.Enforce(trade.RoleBuyer, mkAction(trade.ActionAccept, nil), testBuyer, testSeller, nil, nil, 0, 0)
	assert.Nil(t, risk)
	assert.Equal(t, trade.ActionOffer, action.Type)
}
