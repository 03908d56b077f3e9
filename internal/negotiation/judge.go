// Package negotiation implements the alternating-offers protocol: action
// parsing, constraint enforcement, and the session state machine.
package negotiation

import (
	"fmt"
	"math"

	"github.com/talgya/bazaar/internal/trade"
)

// ValidationResult is the verdict of a constraint check.
type ValidationResult struct {
	Valid         bool
	Reason        string
	ViolationType trade.Violation
}

// ActionJudge owns the validate-and-enforce pipeline: first-round
// corrections (assume good faith, fix the category error), hard-constraint
// validation, and the enforcement policy that converts an invalid action
// into a safe REJECT. The three stages are deliberately separate so the
// enforcement policy can change without touching constraint logic.
type ActionJudge struct {
	MinPrice float64
	MaxPrice float64
}

// NewActionJudge creates a judge with the configured global price bounds.
func NewActionJudge(minPrice, maxPrice float64) *ActionJudge {
	return &ActionJudge{MinPrice: minPrice, MaxPrice: maxPrice}
}

// CorrectFirstRound rewrites illegal round-0 actions into opening offers.
// No prior offer exists on round 0, so COUNTER becomes OFFER (price kept)
// and ACCEPT/REJECT become OFFER with a deterministic fallback price.
func (j *ActionJudge) CorrectFirstRound(
	action trade.NegotiationAction,
	role trade.Role,
	buyer trade.BuyerState,
	seller trade.SellerState,
) trade.NegotiationAction {
	if action.Type == trade.ActionCounter {
		action.Type = trade.ActionOffer
	}
	if action.Type == trade.ActionAccept || action.Type == trade.ActionReject {
		price := action.OfferPrice
		if price == nil {
			fallback := round2(buyer.Value * 0.5)
			if role == trade.RoleSeller {
				fallback = round2(seller.Cost * 1.5)
			}
			price = &fallback
		}
		action = trade.NegotiationAction{
			Type:             trade.ActionOffer,
			OfferPrice:       price,
			MessagePublic:    "Opening offer.",
			RationalePrivate: "Corrected from accept/reject on round 0.",
		}
	}
	return action
}

// Validate checks an action against all hard constraints. lastOffer is the
// opponent-facing most recent price; ownLastOffer is the acting role's own
// previous proposed price, used for the concession-direction check.
func (j *ActionJudge) Validate(
	role trade.Role,
	action trade.NegotiationAction,
	buyer trade.BuyerState,
	seller trade.SellerState,
	lastOffer *float64,
	ownLastOffer *float64,
) ValidationResult {
	switch action.Type {
	case trade.ActionOffer, trade.ActionCounter:
		if action.OfferPrice == nil {
			return invalid("offer/counter must include a price", trade.ViolationLogic)
		}
		price := *action.OfferPrice

		if price < j.MinPrice || price > j.MaxPrice {
			return invalid(
				fmt.Sprintf("price $%.2f outside bounds [$%.2f, $%.2f]", price, j.MinPrice, j.MaxPrice),
				trade.ViolationBounds,
			)
		}

		if role == trade.RoleBuyer && price > buyer.Budget {
			return invalid(
				fmt.Sprintf("buyer offer $%.2f exceeds budget $%.2f", price, buyer.Budget),
				trade.ViolationBudget,
			)
		}
		if role == trade.RoleSeller && price < seller.Cost {
			return invalid(
				fmt.Sprintf("seller offer $%.2f below cost $%.2f", price, seller.Cost),
				trade.ViolationCost,
			)
		}

		// Concession coherence: a counter must not walk back the role's
		// own previous offer. Buyers concede upward, sellers downward.
		if action.Type == trade.ActionCounter && ownLastOffer != nil {
			if role == trade.RoleBuyer && price < *ownLastOffer {
				return invalid(
					fmt.Sprintf("buyer counter $%.2f retreats below own previous offer $%.2f", price, *ownLastOffer),
					trade.ViolationLogic,
				)
			}
			if role == trade.RoleSeller && price > *ownLastOffer {
				return invalid(
					fmt.Sprintf("seller counter $%.2f retreats above own previous offer $%.2f", price, *ownLastOffer),
					trade.ViolationLogic,
				)
			}
		}

	case trade.ActionAccept:
		if lastOffer == nil {
			return invalid("cannot accept without a prior offer", trade.ViolationLogic)
		}
		if role == trade.RoleBuyer && *lastOffer > buyer.Budget {
			return invalid(
				fmt.Sprintf("cannot accept $%.2f: exceeds budget $%.2f", *lastOffer, buyer.Budget),
				trade.ViolationBudget,
			)
		}
		if role == trade.RoleSeller && *lastOffer < seller.Cost {
			return invalid(
				fmt.Sprintf("cannot accept $%.2f: below cost $%.2f", *lastOffer, seller.Cost),
				trade.ViolationCost,
			)
		}

	case trade.ActionReject:
		// Always legal: walking away needs no price and no prior offer.

	default:
		// Policies are pluggable; never let an unrecognized action reach
		// the state machine.
		return invalid(
			fmt.Sprintf("unknown action type %q", action.Type),
			trade.ViolationLogic,
		)
	}

	return ValidationResult{Valid: true}
}

// Enforce runs the full pipeline for one turn: first-round correction,
// validation, and — when validation fails — replacement with REJECT plus a
// RiskEvent recording the attempted move. Enforcement is local to the turn;
// it never rewrites recorded history.
func (j *ActionJudge) Enforce(
	role trade.Role,
	action trade.NegotiationAction,
	buyer trade.BuyerState,
	seller trade.SellerState,
	lastOffer *float64,
	ownLastOffer *float64,
	roundNumber int,
	timeStep int,
) (trade.NegotiationAction, *trade.RiskEvent) {
	if roundNumber == 0 {
		action = j.CorrectFirstRound(action, role, buyer, seller)
	}

	result := j.Validate(role, action, buyer, seller, lastOffer, ownLastOffer)
	if result.Valid {
		return action, nil
	}

	event := &trade.RiskEvent{
		Round:           roundNumber,
		Role:            role,
		ViolationType:   result.ViolationType,
		Reason:          result.Reason,
		AttemptedAction: action.Type,
		AttemptedPrice:  action.OfferPrice,
		TimeStep:        timeStep,
	}

	enforced := trade.NegotiationAction{
		Type:             trade.ActionReject,
		MessagePublic:    "I cannot continue this negotiation.",
		RationalePrivate: "Auto-corrected: " + result.Reason,
	}
	return enforced, event
}

func invalid(reason string, kind trade.Violation) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason, ViolationType: kind}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
