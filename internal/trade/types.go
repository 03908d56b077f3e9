// Package trade defines the core domain types for bilateral price
// negotiations: agent states, actions, transcripts, and results.
package trade

// Role identifies which side of a negotiation an agent is on.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Opponent returns the other side of the table.
func (r Role) Opponent() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// ActionType enumerates the moves available in a negotiation round.
type ActionType string

const (
	ActionOffer   ActionType = "offer"
	ActionCounter ActionType = "counter"
	ActionAccept  ActionType = "accept"
	ActionReject  ActionType = "reject"
)

// Valid reports whether t is one of the four known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionOffer, ActionCounter, ActionAccept, ActionReject:
		return true
	}
	return false
}

// TerminationReason records how a negotiation session ended.
type TerminationReason string

const (
	TerminationAccepted TerminationReason = "accepted"
	TerminationRejected TerminationReason = "rejected"
	TerminationTimeout  TerminationReason = "timeout"
)

// OutcomeStatus is the settlement-level view of a terminal state.
type OutcomeStatus string

const (
	StatusDeal    OutcomeStatus = "deal"
	StatusNoDeal  OutcomeStatus = "no_deal"
	StatusTimeout OutcomeStatus = "timeout"
)

// Item is a tradeable good from the market catalog. Items are created once
// per run by the orchestrator and referenced, never owned, by sessions.
type Item struct {
	ID             string  `json:"item_id"`
	Name           string  `json:"name"`
	ReferencePrice float64 `json:"reference_price"`
}

// BuyerState holds a buyer's private parameters for one session.
// Value (max willingness-to-pay) and budget (hard cap) are independent
// fields; value >= budget is not enforced anywhere.
type BuyerState struct {
	ID       string  `json:"buyer_id"`
	Value    float64 `json:"value"`
	Budget   float64 `json:"budget"`
	Patience int     `json:"patience"` // informational only
}

// SellerState holds a seller's private parameters for one session.
type SellerState struct {
	ID           string  `json:"seller_id"`
	Cost         float64 `json:"cost"` // reservation floor
	TargetMargin float64 `json:"target_margin"`
	Patience     int     `json:"patience"`
}

// NegotiationAction is one role's move. OfferPrice must be non-nil for
// offer/counter and nil for accept/reject (accept implicitly takes the
// opponent's last offer). RationalePrivate is never shown to the opponent.
type NegotiationAction struct {
	Type             ActionType `json:"action"`
	OfferPrice       *float64   `json:"offer_price"`
	MessagePublic    string     `json:"message_public"`
	RationalePrivate string     `json:"rationale_private"`
}

// Price returns the offer price or 0 when absent.
func (a NegotiationAction) Price() float64 {
	if a.OfferPrice == nil {
		return 0
	}
	return *a.OfferPrice
}

// Offer is a priced proposal within a session.
type Offer struct {
	Price       float64 `json:"price"`
	RoundNumber int     `json:"round_number"`
	Proposer    Role    `json:"proposer_role"`
}

// NegotiationTurn is the append-only transcript unit: one role's action in
// one round.
type NegotiationTurn struct {
	RoundNumber int               `json:"round_number"`
	AgentRole   Role              `json:"agent_role"`
	Action      NegotiationAction `json:"action"`
}

// RiskEvent records a hard-constraint violation that the judge overrode.
type RiskEvent struct {
	Round           int        `json:"round"`
	Role            Role       `json:"role"`
	ViolationType   Violation  `json:"violation_type"`
	Reason          string     `json:"reason"`
	AttemptedAction ActionType `json:"attempted_action"`
	AttemptedPrice  *float64   `json:"attempted_price"`
	TimeStep        int        `json:"time_step"`
}

// Violation classifies a constraint breach.
type Violation string

const (
	ViolationBudget Violation = "budget" // buyer offered or accepted above budget
	ViolationCost   Violation = "cost"   // seller offered or accepted below cost
	ViolationBounds Violation = "bounds" // price outside [min_price, max_price]
	ViolationLogic  Violation = "logic"  // malformed or incoherent move
)

// NegotiationResult is the immutable terminal record of one session.
// Surplus fields are zero for non-deal outcomes.
type NegotiationResult struct {
	Item              Item              `json:"item"`
	BuyerID           string            `json:"buyer_id"`
	SellerID          string            `json:"seller_id"`
	DealMade          bool              `json:"deal_made"`
	DealPrice         *float64          `json:"deal_price"`
	TerminationReason TerminationReason `json:"termination_reason"`
	RoundsTaken       int               `json:"rounds_taken"`
	History           []NegotiationTurn `json:"history"`
	BuyerValue        float64           `json:"buyer_value"`
	SellerCost        float64           `json:"seller_cost"`
	BuyerSurplus      float64           `json:"buyer_surplus"`
	SellerSurplus     float64           `json:"seller_surplus"`
	RiskEvents        []RiskEvent       `json:"risk_events"`
	TimeStep          int               `json:"time_step"`
}

// Status maps the termination reason to the settlement-level outcome status.
func (r *NegotiationResult) Status() OutcomeStatus {
	switch {
	case r.DealMade:
		return StatusDeal
	case r.TerminationReason == TerminationTimeout:
		return StatusTimeout
	default:
		return StatusNoDeal
	}
}

// Welfare is the sum of both surpluses (zero when no deal).
func (r *NegotiationResult) Welfare() float64 {
	return r.BuyerSurplus + r.SellerSurplus
}

// Outcome is the pure settlement view of a terminal session.
type Outcome struct {
	Status        OutcomeStatus `json:"status"`
	AgreedPrice   *float64      `json:"agreed_price"`
	Rounds        int           `json:"rounds"`
	BuyerSurplus  float64       `json:"buyer_surplus"`
	SellerSurplus float64       `json:"seller_surplus"`
	Welfare       float64       `json:"welfare"`
}

// MarketTickStats aggregates one tick's sessions. Price mean/std are over
// deal prices only and defined as 0 when no deals occurred.
type MarketTickStats struct {
	Tick              int     `json:"tick"`
	NumSessions       int     `json:"num_sessions"`
	DealsMade         int     `json:"deals_made"`
	FailRate          float64 `json:"fail_rate"`
	MeanPrice         float64 `json:"mean_price"`
	PriceStd          float64 `json:"price_std"`
	Liquidity         float64 `json:"liquidity"` // deals / sessions
	BuyerSurplusMean  float64 `json:"buyer_surplus_mean"`
	SellerSurplusMean float64 `json:"seller_surplus_mean"`
}

// AgentContext is the information visible to a policy when deciding:
// the full transcript, own private state, and the opponent's last offer —
// never the opponent's private state.
type AgentContext struct {
	Item             Item
	Role             Role
	RoundNumber      int
	MaxRounds        int
	History          []NegotiationTurn
	LastOffer        *float64 // opponent-facing last proposed price
	ReservationPrice float64  // value for buyers, cost for sellers
	Budget           *float64 // buyers only
	TargetMargin     *float64 // sellers only
}

// Float64Ptr is a convenience for building actions and fixtures.
func Float64Ptr(v float64) *float64 { return &v }
