// Package config loads and validates simulation run parameters.
// Invalid parameters are fatal at run start; nothing here is recovered
// from mid-run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full simulation configuration.
type Config struct {
	AgentType       string `yaml:"agent_type"`
	BuyerAgentType  string `yaml:"buyer_agent_type"`  // overrides AgentType when set
	SellerAgentType string `yaml:"seller_agent_type"` // overrides AgentType when set
	Steps           int    `yaml:"steps"`
	BuyersPerStep   int    `yaml:"buyers_per_step"`
	SellersPerStep  int    `yaml:"sellers_per_step"`
	Seed            int64  `yaml:"seed"`
	OutputDir       string `yaml:"output_dir"`
	ScenarioMode    string `yaml:"scenario_mode"` // "distribution" | "fixed"
	Mode            string `yaml:"mode"`          // "session" | "market"
	Matching        string `yaml:"matching"`      // "random"
	FirstMover      string `yaml:"first_mover"`   // "buyer" | "seller"
	MemoryK         int    `yaml:"memory_k"`
	Parallel        bool   `yaml:"parallel"` // run sessions within a tick concurrently
	DatabasePath    string `yaml:"database_path"`
	APIPort         int    `yaml:"api_port"` // 0 disables the HTTP API

	LLM         LLM           `yaml:"llm"`
	Market      Market        `yaml:"market"`
	Negotiation Negotiation   `yaml:"negotiation"`
	Shock       Shock         `yaml:"shock"`
	Fixed       FixedScenario `yaml:"fixed"`
}

// LLM configures the generation backend.
type LLM struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  float64 `yaml:"timeout_sec"`
	MaxRetries  int     `yaml:"max_retries"`
	BaseURL     string  `yaml:"base_url"`
}

// Timeout returns the backend call timeout as a duration.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSec * float64(time.Second))
}

// Market configures per-tick population and catalog sampling ranges.
type Market struct {
	BuyerValueMin     float64 `yaml:"buyer_value_min"`
	BuyerValueMax     float64 `yaml:"buyer_value_max"`
	SellerCostMin     float64 `yaml:"seller_cost_min"`
	SellerCostMax     float64 `yaml:"seller_cost_max"`
	BuyerBudgetMin    float64 `yaml:"buyer_budget_min"`
	BuyerBudgetMax    float64 `yaml:"buyer_budget_max"`
	SellerMarginMin   float64 `yaml:"seller_margin_min"`
	SellerMarginMax   float64 `yaml:"seller_margin_max"`
	BuyerPatienceMin  int     `yaml:"buyer_patience_min"`
	BuyerPatienceMax  int     `yaml:"buyer_patience_max"`
	SellerPatienceMin int     `yaml:"seller_patience_min"`
	SellerPatienceMax int     `yaml:"seller_patience_max"`
	ItemRefPriceMin   float64 `yaml:"item_ref_price_min"`
	ItemRefPriceMax   float64 `yaml:"item_ref_price_max"`
	NumItemTypes      int     `yaml:"num_item_types"`
}

// Negotiation configures the session protocol.
type Negotiation struct {
	MaxRounds int     `yaml:"max_rounds"`
	MinPrice  float64 `yaml:"min_price"`
	MaxPrice  float64 `yaml:"max_price"`
}

// Shock configures stochastic per-agent parameter shocks and the smooth
// market-sentiment drift.
type Shock struct {
	Enabled             bool    `yaml:"enabled"`
	DemandMultiplierMin float64 `yaml:"demand_multiplier_min"`
	DemandMultiplierMax float64 `yaml:"demand_multiplier_max"`
	SupplyMultiplierMin float64 `yaml:"supply_multiplier_min"`
	SupplyMultiplierMax float64 `yaml:"supply_multiplier_max"`
	ShockProbability    float64 `yaml:"shock_probability"`
	DriftEnabled        bool    `yaml:"drift_enabled"`
	DriftAmplitude      float64 `yaml:"drift_amplitude"`
	DriftScale          float64 `yaml:"drift_scale"`
}

// FixedScenario pins agent parameters to configured values instead of
// sampling from distributions. Each list is drawn from by the selection
// strategy ("cycle" or "random"); a single-element list is a constant.
type FixedScenario struct {
	BuyerValue         []float64 `yaml:"buyer_value"`
	BuyerBudget        []float64 `yaml:"buyer_budget"`
	BuyerPatience      []int     `yaml:"buyer_patience"`
	SellerCost         []float64 `yaml:"seller_cost"`
	SellerTargetMargin []float64 `yaml:"seller_target_margin"`
	SellerPatience     []int     `yaml:"seller_patience"`
	ItemReferencePrice []float64 `yaml:"item_reference_price"`
	Selection          string    `yaml:"selection"` // "cycle" | "random"
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		AgentType:      "rule_based",
		Steps:          30,
		BuyersPerStep:  50,
		SellersPerStep: 50,
		Seed:           42,
		OutputDir:      "outputs/runs",
		ScenarioMode:   "distribution",
		Mode:           "session",
		Matching:       "random",
		FirstMover:     "buyer",
		MemoryK:        5,
		LLM: LLM{
			Model:       "qwen2.5:3b",
			Temperature: 0.2,
			MaxTokens:   256,
			TimeoutSec:  30,
			MaxRetries:  3,
			BaseURL:     "http://localhost:11434",
		},
		Market: Market{
			BuyerValueMin:     50,
			BuyerValueMax:     150,
			SellerCostMin:     30,
			SellerCostMax:     120,
			BuyerBudgetMin:    80,
			BuyerBudgetMax:    200,
			SellerMarginMin:   0.05,
			SellerMarginMax:   0.30,
			BuyerPatienceMin:  3,
			BuyerPatienceMax:  10,
			SellerPatienceMin: 3,
			SellerPatienceMax: 10,
			ItemRefPriceMin:   40,
			ItemRefPriceMax:   130,
			NumItemTypes:      5,
		},
		Negotiation: Negotiation{
			MaxRounds: 10,
			MinPrice:  1,
			MaxPrice:  500,
		},
		Shock: Shock{
			Enabled:             false,
			DemandMultiplierMin: 0.8,
			DemandMultiplierMax: 1.2,
			SupplyMultiplierMin: 0.8,
			SupplyMultiplierMax: 1.2,
			ShockProbability:    0.1,
			DriftAmplitude:      0.1,
			DriftScale:          0.05,
		},
		Fixed: FixedScenario{Selection: "cycle"},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for fatal configuration errors. A failed validation
// aborts the run before any tick executes.
func (c Config) Validate() error {
	if c.Steps <= 0 {
		return fmt.Errorf("config: steps must be positive, got %d", c.Steps)
	}
	if c.BuyersPerStep <= 0 || c.SellersPerStep <= 0 {
		return fmt.Errorf("config: buyers_per_step and sellers_per_step must be positive, got %d and %d",
			c.BuyersPerStep, c.SellersPerStep)
	}
	if c.Market.NumItemTypes <= 0 {
		return fmt.Errorf("config: num_item_types must be positive, got %d", c.Market.NumItemTypes)
	}
	if c.Negotiation.MaxRounds <= 0 {
		return fmt.Errorf("config: max_rounds must be positive, got %d", c.Negotiation.MaxRounds)
	}
	if c.Negotiation.MinPrice >= c.Negotiation.MaxPrice {
		return fmt.Errorf("config: inverted price bounds [%.2f, %.2f]",
			c.Negotiation.MinPrice, c.Negotiation.MaxPrice)
	}
	if c.Mode != "session" && c.Mode != "market" {
		return fmt.Errorf("config: mode must be session or market, got %q", c.Mode)
	}
	if c.ScenarioMode != "distribution" && c.ScenarioMode != "fixed" {
		return fmt.Errorf("config: scenario_mode must be distribution or fixed, got %q", c.ScenarioMode)
	}
	if c.Matching != "random" {
		return fmt.Errorf("config: unknown matching strategy %q", c.Matching)
	}
	if c.FirstMover != "buyer" && c.FirstMover != "seller" {
		return fmt.Errorf("config: first_mover must be buyer or seller, got %q", c.FirstMover)
	}
	for _, policy := range []string{c.BuyerPolicy(), c.SellerPolicy()} {
		if !knownPolicy(policy) {
			return fmt.Errorf("config: unknown agent type %q", policy)
		}
	}
	if c.Fixed.Selection != "cycle" && c.Fixed.Selection != "random" {
		return fmt.Errorf("config: fixed selection must be cycle or random, got %q", c.Fixed.Selection)
	}
	if c.Shock.ShockProbability < 0 || c.Shock.ShockProbability > 1 {
		return fmt.Errorf("config: shock_probability must be in [0, 1], got %.3f", c.Shock.ShockProbability)
	}
	return nil
}

func knownPolicy(name string) bool {
	switch name {
	case "rule_based", "llm_reactive", "llm_deliberative", "memory":
		return true
	}
	return false
}

// BuyerPolicy returns the effective buyer policy type.
func (c Config) BuyerPolicy() string {
	if c.BuyerAgentType != "" {
		return c.BuyerAgentType
	}
	return c.AgentType
}

// SellerPolicy returns the effective seller policy type.
func (c Config) SellerPolicy() string {
	if c.SellerAgentType != "" {
		return c.SellerAgentType
	}
	return c.AgentType
}
