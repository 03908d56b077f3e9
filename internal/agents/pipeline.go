// The call-parse-retry pipeline shared by all LLM policy variants.
package agents

import (
	"log/slog"

	"github.com/talgya/bazaar/internal/negotiation"
	"github.com/talgya/bazaar/internal/trade"
)

// Backend is the text-generation capability the LLM policies consume.
// *llm.Client satisfies it.
type Backend interface {
	Generate(prompt string) (string, error)
}

// callAndParse runs the canonical pipeline: generate, parse, and — on a
// structural failure — retry exactly once with a format-error nudge.
// A second failure resolves to the deterministic fallback action; nothing
// here ever propagates an error into the session.
func callAndParse(backend Backend, prompt string, ctx trade.AgentContext) trade.NegotiationAction {
	raw, err := backend.Generate(prompt)
	if err != nil {
		slog.Error("llm backend error, using fallback", "role", ctx.Role, "round", ctx.RoundNumber, "error", err)
		return negotiation.FallbackAction(ctx)
	}

	action, parseErr := negotiation.ParseAction(raw)
	if parseErr == nil {
		return action
	}
	slog.Warn("malformed llm action, resubmitting", "role", ctx.Role, "round", ctx.RoundNumber, "error", parseErr)

	raw, err = backend.Generate(prompt + "\n\n" + formatErrorPrompt)
	if err != nil {
		slog.Error("llm backend error on retry, using fallback", "role", ctx.Role, "error", err)
		return negotiation.FallbackAction(ctx)
	}

	action, parseErr = negotiation.ParseAction(raw)
	if parseErr == nil {
		return action
	}

	slog.Error("llm produced no valid action after retry, using fallback",
		"role", ctx.Role, "round", ctx.RoundNumber, "error", parseErr)
	return negotiation.FallbackAction(ctx)
}
