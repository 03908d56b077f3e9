// Command bazaar runs the bilateral negotiation market simulation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/bazaar/internal/agents"
	"github.com/talgya/bazaar/internal/api"
	"github.com/talgya/bazaar/internal/config"
	"github.com/talgya/bazaar/internal/entropy"
	"github.com/talgya/bazaar/internal/evaluation"
	"github.com/talgya/bazaar/internal/eventlog"
	"github.com/talgya/bazaar/internal/llm"
	"github.com/talgya/bazaar/internal/market"
	"github.com/talgya/bazaar/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		configPath  = flag.String("config", "", "path to YAML config (defaults used when empty)")
		seed        = flag.Int64("seed", 0, "override random seed")
		steps       = flag.Int("steps", 0, "override number of ticks")
		buyers      = flag.Int("buyers", 0, "override buyers per tick")
		sellers     = flag.Int("sellers", 0, "override sellers per tick")
		agentType   = flag.String("agent", "", "override agent type for both roles")
		buyerAgent  = flag.String("buyer-agent", "", "override buyer agent type")
		sellerAgent = flag.String("seller-agent", "", "override seller agent type")
		mode        = flag.String("mode", "", "override mode (session|market)")
		scenario    = flag.String("scenario", "", "override scenario mode (distribution|fixed)")
		outputDir   = flag.String("out", "", "override output directory")
		dbPath      = flag.String("db", "", "override SQLite path (empty disables persistence)")
		parallel    = flag.Bool("parallel", false, "run sessions within a tick concurrently")
		apiPort     = flag.Int("api", 0, "serve results over HTTP on this port after the run")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err, "path", *configPath)
			os.Exit(1)
		}
	}

	// Flags override the file only when explicitly set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed = *seed
		case "steps":
			cfg.Steps = *steps
		case "buyers":
			cfg.BuyersPerStep = *buyers
		case "sellers":
			cfg.SellersPerStep = *sellers
		case "agent":
			cfg.AgentType = *agentType
		case "buyer-agent":
			cfg.BuyerAgentType = *buyerAgent
		case "seller-agent":
			cfg.SellerAgentType = *sellerAgent
		case "mode":
			cfg.Mode = *mode
		case "scenario":
			cfg.ScenarioMode = *scenario
		case "out":
			cfg.OutputDir = *outputDir
		case "db":
			cfg.DatabasePath = *dbPath
		case "parallel":
			cfg.Parallel = *parallel
		case "api":
			cfg.APIPort = *apiPort
		}
	})

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	runDir := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_s%d", runID[:8], cfg.Seed))

	slog.Info("bazaar starting",
		"run_id", runID,
		"seed", cfg.Seed,
		"steps", cfg.Steps,
		"mode", cfg.Mode,
		"buyer_agent", cfg.BuyerPolicy(),
		"seller_agent", cfg.SellerPolicy(),
	)

	// ── Event log ─────────────────────────────────────────────────────
	sink, logFile, err := eventlog.OpenFile(runDir)
	if err != nil {
		slog.Error("failed to open event log", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// ── LLM backend (only when a policy needs it) ─────────────────────
	var backend agents.Backend
	if needsLLM(cfg.BuyerPolicy()) || needsLLM(cfg.SellerPolicy()) {
		client := llm.NewClient(llm.Options{
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout(),
			MaxRetries:  cfg.LLM.MaxRetries,
		})
		if client == nil {
			slog.Error("llm agent configured but no base_url set")
			os.Exit(1)
		}
		backend = client
		slog.Info("llm backend enabled", "model", cfg.LLM.Model, "base_url", cfg.LLM.BaseURL)
	}

	// ── Simulation ────────────────────────────────────────────────────
	factory := agents.NewFactory(backend, cfg.MemoryK)
	sim := market.NewSimulator(cfg, entropy.New(cfg.Seed), factory, sink, logger)

	results, err := sim.Run()
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	// ── Reports ───────────────────────────────────────────────────────
	metrics := evaluation.ComputeMetrics(results)
	extra := map[string]any{
		"run_id":        runID,
		"seed":          cfg.Seed,
		"mode":          cfg.Mode,
		"scenario_mode": cfg.ScenarioMode,
		"buyer_agent":   cfg.BuyerPolicy(),
		"seller_agent":  cfg.SellerPolicy(),
	}
	if cfg.Mode == "market" {
		extra["num_ticks"] = cfg.Steps
	}

	summaryPath, err := evaluation.WriteSummary(metrics, extra, runDir)
	if err != nil {
		slog.Error("failed to write summary", "error", err)
		os.Exit(1)
	}
	csvPath, err := evaluation.WriteDealsCSV(results, runDir)
	if err != nil {
		slog.Error("failed to write deals csv", "error", err)
		os.Exit(1)
	}

	// ── Persistence ───────────────────────────────────────────────────
	var store *persistence.Store
	if cfg.DatabasePath != "" {
		os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)
		store, err = persistence.Open(cfg.DatabasePath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		run := persistence.RunRecord{
			ID:           runID,
			Seed:         cfg.Seed,
			Steps:        cfg.Steps,
			Mode:         cfg.Mode,
			ScenarioMode: cfg.ScenarioMode,
			BuyerPolicy:  cfg.BuyerPolicy(),
			SellerPolicy: cfg.SellerPolicy(),
		}
		if err := store.SaveRunState(run, results, sim.TickStats()); err != nil {
			slog.Error("failed to persist run", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("\n%s negotiations across %d ticks: %s deals (%.1f%% success), avg price %.2f\n",
		humanize.Comma(int64(metrics.TotalNegotiations)),
		cfg.Steps,
		humanize.Comma(int64(metrics.DealsMade)),
		metrics.DealSuccessRate*100,
		metrics.AvgPrice,
	)
	fmt.Printf("Buyer surplus %.2f / seller surplus %.2f per deal, %d timeouts, %d risk events\n",
		metrics.BuyerSurplusMean,
		metrics.SellerSurplusMean,
		metrics.Timeouts,
		metrics.TotalRiskEvents,
	)
	fmt.Printf("Summary: %s\nDeals:   %s\n", summaryPath, csvPath)

	// ── HTTP API (optional) ───────────────────────────────────────────
	if cfg.APIPort > 0 {
		srv := &api.Server{
			Store:     store,
			Port:      cfg.APIPort,
			RunID:     runID,
			Metrics:   metrics,
			TickStats: sim.TickStats(),
		}
		srv.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status (Ctrl+C to stop)\n", cfg.APIPort)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
	}
}

func needsLLM(policyType string) bool {
	switch policyType {
	case "llm_reactive", "llm_deliberative", "memory":
		return true
	}
	return false
}
