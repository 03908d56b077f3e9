// Prompt construction for LLM negotiation policies.
package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/bazaar/internal/trade"
)

const schemaDescription = `You MUST respond with ONLY a JSON object (no markdown, no extra text) matching this schema:
{
  "action": "offer" | "counter" | "accept" | "reject",
  "offer_price": <number or null>,
  "message_public": "<message to opponent>",
  "rationale_private": "<your private reasoning>"
}
Rules:
- action must be one of: "offer", "counter", "accept", "reject"
- If action is "offer" or "counter", offer_price must be a positive number
- If action is "accept" or "reject", offer_price must be null
- message_public is shown to your opponent
- rationale_private is private and NOT shown to anyone`

const formatErrorPrompt = `Your previous response was NOT valid JSON. You MUST respond with ONLY a valid JSON object.
Do NOT wrap it in markdown code blocks. Do NOT include any text before or after the JSON.

Required format:
{
  "action": "offer" | "counter" | "accept" | "reject",
  "offer_price": <number or null>,
  "message_public": "<string>",
  "rationale_private": "<string>"
}`

func formatHistory(history []trade.NegotiationTurn) string {
	if len(history) == 0 {
		return "  (none yet)"
	}
	var lines []string
	for _, turn := range history {
		if turn.Action.OfferPrice != nil {
			lines = append(lines, fmt.Sprintf("  Round %d: %s %s at $%.2f – %q",
				turn.RoundNumber, turn.AgentRole, turn.Action.Type,
				*turn.Action.OfferPrice, turn.Action.MessagePublic))
		} else {
			lines = append(lines, fmt.Sprintf("  Round %d: %s %s – %q",
				turn.RoundNumber, turn.AgentRole, turn.Action.Type,
				turn.Action.MessagePublic))
		}
	}
	return strings.Join(lines, "\n")
}

func buyerConstraints(ctx trade.AgentContext) string {
	cap := ctx.ReservationPrice
	budget := ctx.ReservationPrice
	if ctx.Budget != nil {
		budget = *ctx.Budget
		if budget < cap {
			cap = budget
		}
	}
	return fmt.Sprintf(
		"Your maximum willingness-to-pay (value): $%.2f\n"+
			"Your budget limit: $%.2f\n"+
			"Hard ceiling (min of value, budget): $%.2f\n"+
			"Goal: buy as CHEAPLY as possible. Never offer above $%.2f.",
		ctx.ReservationPrice, budget, cap, cap)
}

func sellerConstraints(ctx trade.AgentContext) string {
	margin := 0.0
	if ctx.TargetMargin != nil {
		margin = *ctx.TargetMargin
	}
	return fmt.Sprintf(
		"Your minimum acceptable price (cost): $%.2f\n"+
			"Your target profit margin: %.0f%%\n"+
			"Goal: sell as EXPENSIVELY as possible. Never offer or accept below $%.2f.",
		ctx.ReservationPrice, margin*100, ctx.ReservationPrice)
}

func formatLastOffer(ctx trade.AgentContext) string {
	if ctx.LastOffer == nil {
		return "None (you go first)"
	}
	return fmt.Sprintf("$%.2f", *ctx.LastOffer)
}

func constraintsFor(ctx trade.AgentContext) string {
	if ctx.Role == trade.RoleBuyer {
		return buyerConstraints(ctx)
	}
	return sellerConstraints(ctx)
}

// buildReactivePrompt asks for an immediate move given the current state.
func buildReactivePrompt(ctx trade.AgentContext) string {
	return fmt.Sprintf(`You are the %s in a price negotiation for %q.

%s

Negotiation so far (round %d of %d):
%s

Opponent's last offer: %s

Decide your next move now.

%s`,
		ctx.Role, ctx.Item.Name,
		constraintsFor(ctx),
		ctx.RoundNumber, ctx.MaxRounds,
		formatHistory(ctx.History),
		formatLastOffer(ctx),
		schemaDescription)
}

// buildDeliberativePrompt asks the model to reason about the opponent's
// concession pattern before choosing a move.
func buildDeliberativePrompt(ctx trade.AgentContext) string {
	return fmt.Sprintf(`You are the %s in a price negotiation for %q.

%s

Negotiation so far (round %d of %d):
%s

Opponent's last offer: %s

Before deciding, think through (privately, in rationale_private):
1. What does the opponent's concession pattern suggest about their reservation price?
2. How many rounds remain, and how much bargaining power does that give you?
3. What is the smallest concession that keeps the negotiation alive?

Then commit to a single move.

%s`,
		ctx.Role, ctx.Item.Name,
		constraintsFor(ctx),
		ctx.RoundNumber, ctx.MaxRounds,
		formatHistory(ctx.History),
		formatLastOffer(ctx),
		schemaDescription)
}

// buildMemoryContext renders past-negotiation summaries for memory agents.
func buildMemoryContext(memories []Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, "Your past negotiations for similar items:")
	for _, m := range memories {
		outcome := "no deal"
		if m.DealMade {
			outcome = fmt.Sprintf("deal at $%.2f", m.DealPrice)
		}
		lines = append(lines, fmt.Sprintf("  - %s: %s after %d rounds (opponent seemed %s)",
			m.ItemName, outcome, m.Rounds, m.OpponentStyle))
	}
	return strings.Join(lines, "\n")
}
