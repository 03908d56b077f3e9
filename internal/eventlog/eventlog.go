// Package eventlog emits the simulation's event stream as newline-delimited
// JSON. The four event kinds — turn, result, risk, tick_end — and their
// field names are a stable contract with the reporting layer.
//
// Records carry no wall-clock fields, so two runs with the same seed and a
// deterministic policy produce byte-identical streams.
package eventlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/talgya/bazaar/internal/trade"
)

// Sink receives simulation events. Implementations must be safe for use
// from a single session at a time; the Writer serializes internally so
// parallel sessions within a tick can share one sink.
type Sink interface {
	LogTurn(turn trade.NegotiationTurn, timeStep int, itemID, buyerID, sellerID string)
	LogResult(result *trade.NegotiationResult)
	LogRisk(event trade.RiskEvent)
	LogTickEnd(stats trade.MarketTickStats)
}

// Writer streams events to an io.Writer as JSON lines.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a sink over an arbitrary writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// OpenFile creates a sink appending to events.jsonl under runDir.
func OpenFile(runDir string) (*Writer, *os.File, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(runDir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	return NewWriter(f), f, nil
}

func (w *Writer) write(record map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	line, err := json.Marshal(record)
	if err != nil {
		// Records are built from plain values; this should never fire.
		return
	}
	w.out.Write(append(line, '\n'))
}

// LogTurn records one action in one round.
func (w *Writer) LogTurn(turn trade.NegotiationTurn, timeStep int, itemID, buyerID, sellerID string) {
	w.write(map[string]any{
		"event":          "turn",
		"time_step":      timeStep,
		"item_id":        itemID,
		"buyer_id":       buyerID,
		"seller_id":      sellerID,
		"round":          turn.RoundNumber,
		"role":           turn.AgentRole,
		"action":         turn.Action.Type,
		"offer_price":    turn.Action.OfferPrice,
		"message_public": turn.Action.MessagePublic,
	})
}

// LogResult records one completed session.
func (w *Writer) LogResult(result *trade.NegotiationResult) {
	w.write(map[string]any{
		"event":             "result",
		"time_step":         result.TimeStep,
		"item_id":           result.Item.ID,
		"buyer_id":          result.BuyerID,
		"seller_id":         result.SellerID,
		"deal_made":         result.DealMade,
		"deal_price":        result.DealPrice,
		"termination":       result.TerminationReason,
		"rounds_taken":      result.RoundsTaken,
		"buyer_value":       result.BuyerValue,
		"seller_cost":       result.SellerCost,
		"buyer_surplus":     result.BuyerSurplus,
		"seller_surplus":    result.SellerSurplus,
		"risk_events_count": len(result.RiskEvents),
	})
}

// LogRisk records one enforcement override.
func (w *Writer) LogRisk(event trade.RiskEvent) {
	w.write(map[string]any{
		"event":            "risk",
		"time_step":        event.TimeStep,
		"round":            event.Round,
		"role":             event.Role,
		"violation_type":   event.ViolationType,
		"reason":           event.Reason,
		"attempted_action": event.AttemptedAction,
		"attempted_price":  event.AttemptedPrice,
	})
}

// LogTickEnd records one tick's aggregate statistics (market mode only).
func (w *Writer) LogTickEnd(stats trade.MarketTickStats) {
	w.write(map[string]any{
		"event":               "tick_end",
		"tick":                stats.Tick,
		"num_sessions":        stats.NumSessions,
		"deals_made":          stats.DealsMade,
		"fail_rate":           stats.FailRate,
		"mean_price":          stats.MeanPrice,
		"price_std":           stats.PriceStd,
		"liquidity":           stats.Liquidity,
		"buyer_surplus_mean":  stats.BuyerSurplusMean,
		"seller_surplus_mean": stats.SellerSurplusMean,
	})
}

// Nop discards all events. Used by tests and session-only runs without a log.
type Nop struct{}

func (Nop) LogTurn(trade.NegotiationTurn, int, string, string, string) {}
func (Nop) LogResult(*trade.NegotiationResult)                         {}
func (Nop) LogRisk(trade.RiskEvent)                                    {}
func (Nop) LogTickEnd(trade.MarketTickStats)                           {}
