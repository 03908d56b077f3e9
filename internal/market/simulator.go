package market

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/talgya/bazaar/internal/agents"
	"github.com/talgya/bazaar/internal/config"
	"github.com/talgya/bazaar/internal/entropy"
	"github.com/talgya/bazaar/internal/evaluation"
	"github.com/talgya/bazaar/internal/eventlog"
	"github.com/talgya/bazaar/internal/negotiation"
	"github.com/talgya/bazaar/internal/trade"
)

// outcomeRecorder is implemented by policies that learn across sessions.
type outcomeRecorder interface {
	RecordOutcome(result *trade.NegotiationResult)
}

// Simulator runs the full tick loop: generate populations, apply shocks,
// match pairs, negotiate, aggregate. Ticks execute sequentially; sessions
// within a tick may run in parallel.
type Simulator struct {
	cfg       config.Config
	root      *entropy.Stream
	catalog   *Catalog
	sentiment *Sentiment
	matcher   Matcher
	factory   *agents.Factory
	sink      eventlog.Sink
	logger    *slog.Logger

	results   []*trade.NegotiationResult
	tickStats []trade.MarketTickStats
}

// NewSimulator wires a simulator from a validated config. The catalog is
// generated immediately from a dedicated fork so the tick loop's draws do
// not depend on catalog size.
func NewSimulator(cfg config.Config, root *entropy.Stream, factory *agents.Factory, sink eventlog.Sink, logger *slog.Logger) *Simulator {
	if sink == nil {
		sink = eventlog.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	var fixedRef []float64
	if cfg.ScenarioMode == "fixed" {
		fixedRef = cfg.Fixed.ItemReferencePrice
	}
	return &Simulator{
		cfg:       cfg,
		root:      root,
		catalog:   NewCatalog(root.Fork("catalog"), cfg.Market, fixedRef),
		sentiment: NewSentiment(root.Seed(), cfg.Shock),
		matcher:   RandomMatcher{},
		factory:   factory,
		sink:      sink,
		logger:    logger,
	}
}

// SetMatcher swaps the pairing strategy. Must be called before Run.
func (s *Simulator) SetMatcher(m Matcher) {
	s.matcher = m
}

// Results returns the collected session results in execution order.
func (s *Simulator) Results() []*trade.NegotiationResult {
	return s.results
}

// TickStats returns per-tick aggregates (market mode only).
func (s *Simulator) TickStats() []trade.MarketTickStats {
	return s.tickStats
}

// Run executes all configured ticks and returns every session result.
func (s *Simulator) Run() ([]*trade.NegotiationResult, error) {
	var fixed *config.FixedScenario
	if s.cfg.ScenarioMode == "fixed" {
		fixed = &s.cfg.Fixed
	}
	marketMode := s.cfg.Mode == "market"

	for step := 0; step < s.cfg.Steps; step++ {
		tickRng := s.root.Fork(fmt.Sprintf("tick_%d", step))
		popRng := tickRng.Fork("population")
		shockRng := tickRng.Fork("shocks")
		matchRng := tickRng.Fork("matching")

		buyers := GenerateBuyers(popRng, s.cfg.BuyersPerStep, step, s.cfg.Market, fixed)
		sellers := GenerateSellers(popRng, s.cfg.SellersPerStep, step, s.cfg.Market, fixed)
		buyers, sellers = ApplyShocks(buyers, sellers, shockRng, s.cfg.Shock, s.sentiment, step)

		pairs := s.matcher.Match(buyers, sellers, s.catalog.Items(), matchRng)

		tickResults, err := s.runTick(step, pairs)
		if err != nil {
			return nil, err
		}
		s.results = append(s.results, tickResults...)

		deals := 0
		for _, r := range tickResults {
			if r.DealMade {
				deals++
			}
		}
		s.logger.Info("tick complete",
			"step", step,
			"pairs", len(pairs),
			"deals", deals,
		)

		if marketMode && len(tickResults) > 0 {
			stats := evaluation.ComputeTickStats(step, tickResults)
			s.tickStats = append(s.tickStats, stats)
			s.sink.LogTickEnd(stats)
		}
	}
	return s.results, nil
}

// runTick negotiates every matched pair. In parallel mode sessions run
// concurrently and results are re-sorted into the canonical
// (time_step, buyer_id, seller_id) order so aggregation never depends on
// scheduling; the event stream itself is only byte-stable sequentially.
func (s *Simulator) runTick(step int, pairs []Pair) ([]*trade.NegotiationResult, error) {
	if !s.cfg.Parallel {
		results := make([]*trade.NegotiationResult, 0, len(pairs))
		for _, p := range pairs {
			r, err := s.runSession(step, p)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
		return results, nil
	}

	results := make([]*trade.NegotiationResult, len(pairs))
	errs := make([]error, len(pairs))
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, p Pair) {
			defer wg.Done()
			results[i], errs[i] = s.runSession(step, p)
		}(i, p)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].TimeStep != results[j].TimeStep {
			return results[i].TimeStep < results[j].TimeStep
		}
		if results[i].BuyerID != results[j].BuyerID {
			return results[i].BuyerID < results[j].BuyerID
		}
		return results[i].SellerID < results[j].SellerID
	})
	return results, nil
}

func (s *Simulator) runSession(step int, p Pair) (*trade.NegotiationResult, error) {
	buyerPolicy, err := s.factory.New(s.cfg.BuyerPolicy(), trade.RoleBuyer)
	if err != nil {
		return nil, fmt.Errorf("create buyer policy: %w", err)
	}
	sellerPolicy, err := s.factory.New(s.cfg.SellerPolicy(), trade.RoleSeller)
	if err != nil {
		return nil, fmt.Errorf("create seller policy: %w", err)
	}

	session := negotiation.NewSession(
		buyerPolicy, sellerPolicy,
		p.Item, p.Buyer, p.Seller,
		negotiation.Config{
			MaxRounds:  s.cfg.Negotiation.MaxRounds,
			MinPrice:   s.cfg.Negotiation.MinPrice,
			MaxPrice:   s.cfg.Negotiation.MaxPrice,
			FirstMover: trade.Role(s.cfg.FirstMover),
			TimeStep:   step,
		},
		s.sink,
	)
	result, err := session.Run()
	if err != nil {
		return nil, fmt.Errorf("run session %s/%s: %w", p.Buyer.ID, p.Seller.ID, err)
	}

	if rec, ok := buyerPolicy.(outcomeRecorder); ok {
		rec.RecordOutcome(result)
	}
	if rec, ok := sellerPolicy.(outcomeRecorder); ok {
		rec.RecordOutcome(result)
	}
	return result, nil
}
