// Package agents provides the negotiation decision policies: a rule-based
// concession strategy and three LLM-backed variants (reactive,
// deliberative, memory-augmented). The session never branches on which
// variant it is talking to — only on the returned action.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/bazaar/internal/trade"
)

// RuleBased is a deterministic linear-concession policy: start
// aggressively, concede toward the reservation price as rounds pass.
// It needs no LLM and is the reference policy for reproducible runs.
type RuleBased struct{}

// NewRuleBased creates the rule-based policy.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

func (p *RuleBased) Type() string { return "rule_based" }

// Decide implements the concession strategy for either role.
func (p *RuleBased) Decide(ctx trade.AgentContext) (trade.NegotiationAction, error) {
	if ctx.Role == trade.RoleBuyer {
		return p.decideBuyer(ctx), nil
	}
	return p.decideSeller(ctx), nil
}

func (p *RuleBased) decideBuyer(ctx trade.AgentContext) trade.NegotiationAction {
	cap := ctx.ReservationPrice
	if ctx.Budget != nil && *ctx.Budget < cap {
		cap = *ctx.Budget
	}

	// Linear concession from 50% of the ceiling toward the ceiling.
	initial := cap * 0.5
	progress := float64(ctx.RoundNumber) / math.Max(float64(ctx.MaxRounds-1), 1)
	target := initial + (cap-initial)*progress

	if ctx.LastOffer != nil && *ctx.LastOffer <= target {
		return accept("I accept your offer.",
			fmt.Sprintf("offer $%.2f <= target $%.2f", *ctx.LastOffer, target))
	}

	if ctx.RoundNumber >= ctx.MaxRounds-1 {
		if ctx.LastOffer != nil && *ctx.LastOffer <= cap {
			return accept("Fine, I'll take it.", "last round, within constraints")
		}
		return reject("We couldn't reach an agreement.", "last round, offer exceeds constraints")
	}

	price := round2(math.Min(target, cap))
	return propose(ctx.RoundNumber, price,
		fmt.Sprintf("I propose $%.2f.", price),
		fmt.Sprintf("target=%.2f cap=%.2f progress=%.2f", target, cap, progress))
}

func (p *RuleBased) decideSeller(ctx trade.AgentContext) trade.NegotiationAction {
	cost := ctx.ReservationPrice
	margin := 0.15
	if ctx.TargetMargin != nil {
		margin = *ctx.TargetMargin
	}

	// Start high, concede toward cost.
	initial := cost * (1 + 2*margin)
	progress := float64(ctx.RoundNumber) / math.Max(float64(ctx.MaxRounds-1), 1)
	target := initial - (initial-cost)*progress

	if ctx.LastOffer != nil && *ctx.LastOffer >= target {
		return accept("Deal!",
			fmt.Sprintf("offer $%.2f >= target $%.2f", *ctx.LastOffer, target))
	}

	if ctx.RoundNumber >= ctx.MaxRounds-1 {
		if ctx.LastOffer != nil && *ctx.LastOffer >= cost {
			return accept("Alright, let's close this deal.", "last round, above cost")
		}
		return reject("Sorry, we can't agree on a price.", "last round, offer below cost")
	}

	price := round2(math.Max(target, cost))
	return propose(ctx.RoundNumber, price,
		fmt.Sprintf("How about $%.2f?", price),
		fmt.Sprintf("target=%.2f cost=%.2f progress=%.2f", target, cost, progress))
}

func accept(message, rationale string) trade.NegotiationAction {
	return trade.NegotiationAction{
		Type:             trade.ActionAccept,
		MessagePublic:    message,
		RationalePrivate: rationale,
	}
}

func reject(message, rationale string) trade.NegotiationAction {
	return trade.NegotiationAction{
		Type:             trade.ActionReject,
		MessagePublic:    message,
		RationalePrivate: rationale,
	}
}

func propose(round int, price float64, message, rationale string) trade.NegotiationAction {
	kind := trade.ActionCounter
	if round == 0 {
		kind = trade.ActionOffer
	}
	return trade.NegotiationAction{
		Type:             kind,
		OfferPrice:       &price,
		MessagePublic:    message,
		RationalePrivate: rationale,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
