// Negotiation session state machine: one buyer, one seller, one item,
// alternating offers until deal, rejection, or timeout.
package negotiation

import (
	"errors"

	"github.com/talgya/bazaar/internal/eventlog"
	"github.com/talgya/bazaar/internal/trade"
)

// State is the session's position in its lifecycle.
type State string

const (
	StateAwaitingBuyer  State = "awaiting_buyer"
	StateAwaitingSeller State = "awaiting_seller"
	StateDeal           State = "deal"
	StateNoDeal         State = "no_deal"
	StateTimeout        State = "timeout"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateDeal || s == StateNoDeal || s == StateTimeout
}

// Policy decides the next action for one role. Implementations must not
// inspect the opponent's private state — the AgentContext is the complete
// visible world. A returned error is treated as an unusable decision and
// replaced with the deterministic fallback; it never aborts the session.
type Policy interface {
	Decide(ctx trade.AgentContext) (trade.NegotiationAction, error)
	Type() string
}

// Config holds per-session protocol parameters.
type Config struct {
	MaxRounds  int
	MinPrice   float64
	MaxPrice   float64
	FirstMover trade.Role // zero value defaults to buyer
	TimeStep   int
}

var (
	// ErrNotComplete is returned by Result before the session terminates.
	ErrNotComplete = errors.New("negotiation: session not complete")
	// ErrComplete is returned by Run on an already-terminated session.
	ErrComplete = errors.New("negotiation: session already complete")
)

// Session runs one negotiation to completion. It exclusively owns its
// transcript and risk events until it emits a NegotiationResult, which is
// then handed off to the caller.
type Session struct {
	buyerPolicy  Policy
	sellerPolicy Policy
	item         trade.Item
	buyer        trade.BuyerState
	seller       trade.SellerState
	cfg          Config
	judge        *ActionJudge
	sink         eventlog.Sink

	state      State
	transcript []trade.NegotiationTurn
	riskEvents []trade.RiskEvent
	lastOffer  *float64 // most recent proposed price, either role
	buyerLast  *float64 // buyer's own last proposed price
	sellerLast *float64 // seller's own last proposed price
	offers     []trade.Offer
	result     *trade.NegotiationResult
}

// NewSession creates a session in its initial awaiting state.
func NewSession(
	buyerPolicy, sellerPolicy Policy,
	item trade.Item,
	buyer trade.BuyerState,
	seller trade.SellerState,
	cfg Config,
	sink eventlog.Sink,
) *Session {
	if cfg.FirstMover == "" {
		cfg.FirstMover = trade.RoleBuyer
	}
	if sink == nil {
		sink = eventlog.Nop{}
	}
	state := StateAwaitingBuyer
	if cfg.FirstMover == trade.RoleSeller {
		state = StateAwaitingSeller
	}
	return &Session{
		buyerPolicy:  buyerPolicy,
		sellerPolicy: sellerPolicy,
		item:         item,
		buyer:        buyer,
		seller:       seller,
		cfg:          cfg,
		judge:        NewActionJudge(cfg.MinPrice, cfg.MaxPrice),
		sink:         sink,
		state:        state,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// IsComplete reports whether the session has reached a terminal state.
func (s *Session) IsComplete() bool {
	return s.state.Terminal()
}

// Result returns the terminal record, or ErrNotComplete while the session
// is still running. Asking early is a programming error, not a nil value.
func (s *Session) Result() (*trade.NegotiationResult, error) {
	if s.result == nil {
		return nil, ErrNotComplete
	}
	return s.result, nil
}

// Transcript returns a copy of the turns recorded so far.
func (s *Session) Transcript() []trade.NegotiationTurn {
	out := make([]trade.NegotiationTurn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Offers returns a copy of the priced proposals made so far, in order.
func (s *Session) Offers() []trade.Offer {
	out := make([]trade.Offer, len(s.offers))
	copy(out, s.offers)
	return out
}

// Run executes rounds until a terminal state and returns the result.
// Calling Run on a completed session returns ErrComplete.
func (s *Session) Run() (*trade.NegotiationResult, error) {
	if s.IsComplete() {
		return nil, ErrComplete
	}

	for round := 0; round < s.cfg.MaxRounds; round++ {
		role := s.activeRole(round)
		action := s.decide(role, round)

		ownLast := s.buyerLast
		if role == trade.RoleSeller {
			ownLast = s.sellerLast
		}
		action, risk := s.judge.Enforce(
			role, action, s.buyer, s.seller,
			s.lastOffer, ownLast, round, s.cfg.TimeStep,
		)
		if risk != nil {
			s.riskEvents = append(s.riskEvents, *risk)
			s.sink.LogRisk(*risk)
		}

		turn := trade.NegotiationTurn{
			RoundNumber: round,
			AgentRole:   role,
			Action:      action,
		}
		s.transcript = append(s.transcript, turn)
		s.sink.LogTurn(turn, s.cfg.TimeStep, s.item.ID, s.buyer.ID, s.seller.ID)

		switch action.Type {
		case trade.ActionAccept:
			// The accepted price is the opponent's last offer.
			s.finish(StateDeal, s.lastOffer, round+1, trade.TerminationAccepted)
			return s.result, nil

		case trade.ActionReject:
			s.finish(StateNoDeal, nil, round+1, trade.TerminationRejected)
			return s.result, nil

		default:
			price := *action.OfferPrice
			s.lastOffer = &price
			if role == trade.RoleBuyer {
				s.buyerLast = &price
			} else {
				s.sellerLast = &price
			}
			s.offers = append(s.offers, trade.Offer{
				Price:       price,
				RoundNumber: round,
				Proposer:    role,
			})
			if role == trade.RoleBuyer {
				s.state = StateAwaitingSeller
			} else {
				s.state = StateAwaitingBuyer
			}
		}
	}

	// Timeout is a valid market outcome, not an error.
	s.finish(StateTimeout, nil, s.cfg.MaxRounds, trade.TerminationTimeout)
	return s.result, nil
}

func (s *Session) activeRole(round int) trade.Role {
	if round%2 == 0 {
		return s.cfg.FirstMover
	}
	return s.cfg.FirstMover.Opponent()
}

func (s *Session) decide(role trade.Role, round int) trade.NegotiationAction {
	ctx := s.context(role, round)
	policy := s.buyerPolicy
	if role == trade.RoleSeller {
		policy = s.sellerPolicy
	}
	action, err := policy.Decide(ctx)
	if err != nil {
		return FallbackAction(ctx)
	}
	return action
}

func (s *Session) context(role trade.Role, round int) trade.AgentContext {
	ctx := trade.AgentContext{
		Item:        s.item,
		Role:        role,
		RoundNumber: round,
		MaxRounds:   s.cfg.MaxRounds,
		History:     s.Transcript(),
		LastOffer:   s.lastOffer,
	}
	if role == trade.RoleBuyer {
		ctx.ReservationPrice = s.buyer.Value
		budget := s.buyer.Budget
		ctx.Budget = &budget
	} else {
		ctx.ReservationPrice = s.seller.Cost
		margin := s.seller.TargetMargin
		ctx.TargetMargin = &margin
	}
	return ctx
}

// finish computes settlement and seals the immutable result exactly once.
func (s *Session) finish(state State, dealPrice *float64, rounds int, reason trade.TerminationReason) {
	s.state = state

	var buyerSurplus, sellerSurplus float64
	dealMade := state == StateDeal
	if dealMade && dealPrice != nil {
		buyerSurplus = s.buyer.Value - *dealPrice
		sellerSurplus = *dealPrice - s.seller.Cost
	}

	s.result = &trade.NegotiationResult{
		Item:              s.item,
		BuyerID:           s.buyer.ID,
		SellerID:          s.seller.ID,
		DealMade:          dealMade,
		DealPrice:         dealPrice,
		TerminationReason: reason,
		RoundsTaken:       rounds,
		History:           s.transcript,
		BuyerValue:        s.buyer.Value,
		SellerCost:        s.seller.Cost,
		BuyerSurplus:      buyerSurplus,
		SellerSurplus:     sellerSurplus,
		RiskEvents:        s.riskEvents,
		TimeStep:          s.cfg.TimeStep,
	}
	s.sink.LogResult(s.result)
}

// Settle computes the pure settlement outcome for a terminal result.
func Settle(result *trade.NegotiationResult) trade.Outcome {
	return trade.Outcome{
		Status:        result.Status(),
		AgreedPrice:   result.DealPrice,
		Rounds:        result.RoundsTaken,
		BuyerSurplus:  result.BuyerSurplus,
		SellerSurplus: result.SellerSurplus,
		Welfare:       result.Welfare(),
	}
}

// FallbackAction is the safe default when a policy cannot produce a usable
// decision: a conservative opening offer on round 0, otherwise a reject.
func FallbackAction(ctx trade.AgentContext) trade.NegotiationAction {
	if ctx.RoundNumber == 0 {
		var price float64
		if ctx.Role == trade.RoleBuyer {
			price = ctx.ReservationPrice * 0.6
			if ctx.Budget != nil && price > *ctx.Budget {
				price = *ctx.Budget
			}
		} else {
			price = ctx.ReservationPrice * 1.3
		}
		price = round2(price)
		return trade.NegotiationAction{
			Type:             trade.ActionOffer,
			OfferPrice:       &price,
			MessagePublic:    "Here's my opening offer.",
			RationalePrivate: "Fallback: decision unavailable.",
		}
	}
	return trade.NegotiationAction{
		Type:             trade.ActionReject,
		MessagePublic:    "I'll have to pass.",
		RationalePrivate: "Fallback: decision unavailable.",
	}
}
