// Policy construction by configured type name.
package agents

import (
	"fmt"

	"github.com/talgya/bazaar/internal/negotiation"
	"github.com/talgya/bazaar/internal/trade"
)

// Factory builds policies for sessions, holding the shared backend and
// the per-role memory stores that persist across a run.
type Factory struct {
	backend      Backend
	buyerMemory  *MemoryStore
	sellerMemory *MemoryStore
}

// NewFactory creates a policy factory. backend may be nil when only the
// rule-based policy is used.
func NewFactory(backend Backend, memoryK int) *Factory {
	return &Factory{
		backend:      backend,
		buyerMemory:  NewMemoryStore(memoryK),
		sellerMemory: NewMemoryStore(memoryK),
	}
}

// New returns a fresh policy of the named type for the given role.
func (f *Factory) New(policyType string, role trade.Role) (negotiation.Policy, error) {
	switch policyType {
	case "rule_based":
		return NewRuleBased(), nil
	case "llm_reactive":
		if f.backend == nil {
			return nil, fmt.Errorf("policy %q requires an llm backend", policyType)
		}
		return NewReactive(f.backend), nil
	case "llm_deliberative":
		if f.backend == nil {
			return nil, fmt.Errorf("policy %q requires an llm backend", policyType)
		}
		return NewDeliberative(f.backend), nil
	case "memory":
		if f.backend == nil {
			return nil, fmt.Errorf("policy %q requires an llm backend", policyType)
		}
		store := f.buyerMemory
		if role == trade.RoleSeller {
			store = f.sellerMemory
		}
		return NewMemoryAgent(f.backend, store), nil
	}
	return nil, fmt.Errorf("unknown policy type: %q", policyType)
}

// KnownPolicyTypes lists the valid policy type names for config validation.
var KnownPolicyTypes = []string{"rule_based", "llm_reactive", "llm_deliberative", "memory"}
