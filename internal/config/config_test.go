package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	doc := `
agent_type: llm_reactive
steps: 5
seed: 7
mode: market
shock:
  enabled: true
  shock_probability: 0.25
negotiation:
  max_rounds: 6
fixed:
  buyer_value: [100, 120]
  selection: random
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llm_reactive", cfg.AgentType)
	assert.Equal(t, 5, cfg.Steps)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "market", cfg.Mode)
	assert.True(t, cfg.Shock.Enabled)
	assert.Equal(t, 0.25, cfg.Shock.ShockProbability)
	assert.Equal(t, 6, cfg.Negotiation.MaxRounds)
	assert.Equal(t, []float64{100, 120}, cfg.Fixed.BuyerValue)
	assert.Equal(t, "random", cfg.Fixed.Selection)

	// Untouched defaults survive the merge.
	assert.Equal(t, 50, cfg.BuyersPerStep)
	assert.Equal(t, 500.0, cfg.Negotiation.MaxPrice)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/run.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero steps", func(c *Config) { c.Steps = 0 }},
		{"zero buyers", func(c *Config) { c.BuyersPerStep = 0 }},
		{"zero sellers", func(c *Config) { c.SellersPerStep = 0 }},
		{"empty catalog", func(c *Config) { c.Market.NumItemTypes = 0 }},
		{"zero rounds", func(c *Config) { c.Negotiation.MaxRounds = 0 }},
		{"inverted bounds", func(c *Config) { c.Negotiation.MinPrice = 600 }},
		{"unknown mode", func(c *Config) { c.Mode = "batch" }},
		{"unknown scenario", func(c *Config) { c.ScenarioMode = "mixed" }},
		{"unknown matching", func(c *Config) { c.Matching = "greedy" }},
		{"unknown first mover", func(c *Config) { c.FirstMover = "arbiter" }},
		{"unknown agent type", func(c *Config) { c.AgentType = "psychic" }},
		{"unknown buyer override", func(c *Config) { c.BuyerAgentType = "psychic" }},
		{"unknown selection", func(c *Config) { c.Fixed.Selection = "sorted" }},
		{"probability above one", func(c *Config) { c.Shock.ShockProbability = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPolicyOverrides(t *testing.T) {
	cfg := Default()
	cfg.AgentType = "rule_based"
	assert.Equal(t, "rule_based", cfg.BuyerPolicy())
	assert.Equal(t, "rule_based", cfg.SellerPolicy())

	cfg.BuyerAgentType = "llm_deliberative"
	assert.Equal(t, "llm_deliberative", cfg.BuyerPolicy())
	assert.Equal(t, "rule_based", cfg.SellerPolicy())
}
