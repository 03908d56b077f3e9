// Memory-augmented LLM policy with a lightweight episodic store.
package agents

import (
	"sync"

	"github.com/talgya/bazaar/internal/trade"
)

// Memory is one remembered negotiation summary.
type Memory struct {
	ItemName      string
	DealMade      bool
	DealPrice     float64
	Rounds        int
	OpponentStyle string
}

// MemoryStore holds episodic memories shared by all agents of one role
// across a run. Safe for concurrent sessions.
type MemoryStore struct {
	mu       sync.Mutex
	memories []Memory
	k        int
}

// NewMemoryStore creates a store returning at most k memories per query.
func NewMemoryStore(k int) *MemoryStore {
	if k <= 0 {
		k = 5
	}
	return &MemoryStore{k: k}
}

// Add appends a memory.
func (s *MemoryStore) Add(m Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = append(s.memories, m)
}

// Retrieve returns up to k relevant memories: same item name preferred,
// most recent otherwise.
func (s *MemoryStore) Retrieve(itemName string) []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.memories) == 0 {
		return nil
	}

	if itemName != "" {
		var sameItem []Memory
		for _, m := range s.memories {
			if m.ItemName == itemName {
				sameItem = append(sameItem, m)
			}
		}
		if len(sameItem) > 0 {
			return lastK(sameItem, s.k)
		}
	}
	return lastK(s.memories, s.k)
}

func lastK(ms []Memory, k int) []Memory {
	if len(ms) > k {
		ms = ms[len(ms)-k:]
	}
	out := make([]Memory, len(ms))
	copy(out, ms)
	return out
}

// MemoryAgent wraps the deliberative prompt with an episodic memory
// context and records each finished negotiation for future reference.
type MemoryAgent struct {
	backend Backend
	store   *MemoryStore
}

// NewMemoryAgent creates the memory policy over a backend and a shared store.
func NewMemoryAgent(backend Backend, store *MemoryStore) *MemoryAgent {
	if store == nil {
		store = NewMemoryStore(5)
	}
	return &MemoryAgent{backend: backend, store: store}
}

func (p *MemoryAgent) Type() string { return "memory" }

func (p *MemoryAgent) Decide(ctx trade.AgentContext) (trade.NegotiationAction, error) {
	prompt := buildDeliberativePrompt(ctx)
	if memoryText := buildMemoryContext(p.store.Retrieve(ctx.Item.Name)); memoryText != "" {
		prompt = memoryText + "\n" + prompt
	}
	return callAndParse(p.backend, prompt, ctx), nil
}

// RecordOutcome stores a summary of a finished negotiation, tagging the
// opponent with a rough style label inferred from how it ended.
func (p *MemoryAgent) RecordOutcome(result *trade.NegotiationResult) {
	style := "aggressive"
	switch {
	case result.DealMade && result.RoundsTaken <= 3:
		style = "eager"
	case result.DealMade:
		style = "moderate"
	case result.TerminationReason == trade.TerminationTimeout:
		style = "stubborn"
	}

	m := Memory{
		ItemName:      result.Item.Name,
		DealMade:      result.DealMade,
		Rounds:        result.RoundsTaken,
		OpponentStyle: style,
	}
	if result.DealPrice != nil {
		m.DealPrice = *result.DealPrice
	}
	p.store.Add(m)
}
