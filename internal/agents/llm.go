// LLM-backed policy variants: reactive (single-shot) and deliberative
// (reason-then-move prompt).
package agents

import (
	"github.com/talgya/bazaar/internal/trade"
)

// Reactive is a single-shot LLM policy: one prompt, one JSON action.
type Reactive struct {
	backend Backend
}

// NewReactive creates the reactive policy over a generation backend.
func NewReactive(backend Backend) *Reactive {
	return &Reactive{backend: backend}
}

func (p *Reactive) Type() string { return "llm_reactive" }

func (p *Reactive) Decide(ctx trade.AgentContext) (trade.NegotiationAction, error) {
	return callAndParse(p.backend, buildReactivePrompt(ctx), ctx), nil
}

// Deliberative prompts the model to analyze the opponent's concession
// pattern before committing to a move.
type Deliberative struct {
	backend Backend
}

// NewDeliberative creates the deliberative policy over a generation backend.
func NewDeliberative(backend Backend) *Deliberative {
	return &Deliberative{backend: backend}
}

func (p *Deliberative) Type() string { return "llm_deliberative" }

func (p *Deliberative) Decide(ctx trade.AgentContext) (trade.NegotiationAction, error) {
	return callAndParse(p.backend, buildDeliberativePrompt(ctx), ctx), nil
}
