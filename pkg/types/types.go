// Package types defines the shared vocabulary used across every package in
// the engine — sides, market lifecycle states, order/trade value objects,
// and the wire shapes exchanged with the venue. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

import (
	"math/big"
	"time"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side identifies which outcome token an order or market snapshot refers to.
type Side string

const (
	Yes Side = "YES"
	No  Side = "NO"
)

// Action is the direction of an order: Buy or Sell.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// TokenSide is the extension point the eligibility predicate is parameterized
// over (spec §4.8/§9): which outcome token a given Evaluator snipes. It is
// an alias of Side, not a separate type; the second name only lets a
// strategy construction site read as "which side does this evaluator hunt"
// rather than "which side is this particular order."
type TokenSide = Side

// SignatureType identifies the signing scheme for the CTF exchange contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account (standard wallet)
	SigProxy      SignatureType = 1 // proxy / smart wallet
	SigGnosisSafe SignatureType = 2 // Gnosis Safe multisig
)

// TickSize represents the price granularity for a market. Each market has a
// fixed tick size that determines the minimum price increment and the USDC
// amount rounding precision used when converting price/size into on-chain
// integer amounts.
type TickSize string

const (
	Tick01    TickSize = "0.1"    // 1 decimal  — coarse markets
	Tick001   TickSize = "0.01"   // 2 decimals — standard markets (most common)
	Tick0001  TickSize = "0.001"  // 3 decimals — fine-grained markets
	Tick00001 TickSize = "0.0001" // 4 decimals — ultra-precise markets
)

// Decimals returns the number of decimal places for a tick size.
func (t TickSize) Decimals() int {
	switch t {
	case Tick01:
		return 1
	case Tick001:
		return 2
	case Tick0001:
		return 3
	case Tick00001:
		return 4
	default:
		return 2
	}
}

// AmountDecimals returns the rounding precision for USDC amounts.
func (t TickSize) AmountDecimals() int {
	switch t {
	case Tick01:
		return 3
	case Tick001:
		return 4
	case Tick0001:
		return 5
	case Tick00001:
		return 6
	default:
		return 4
	}
}

// MarketState is the per-market lifecycle state (spec §4.1).
type MarketState int

const (
	Discovered MarketState = iota
	Watching
	Eligible
	Executing
	Reconciling
	Done
	OnHold
)

func (s MarketState) String() string {
	switch s {
	case Discovered:
		return "Discovered"
	case Watching:
		return "Watching"
	case Eligible:
		return "Eligible"
	case Executing:
		return "Executing"
	case Reconciling:
		return "Reconciling"
	case Done:
		return "Done"
	case OnHold:
		return "OnHold"
	default:
		return "Unknown"
	}
}

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// MarketRef is what the upstream Market Source yields for a newly discovered
// market (spec §6 "Market Source (consumed)"). It is the only shape the core
// accepts from outside — everything else about a market is derived from tick
// updates and execution outcomes once it has been added to the state machine.
type MarketRef struct {
	TokenID         string
	ConditionID     string
	Question        string
	EndTime         time.Time // UTC instant; immutable once a market is added
	NegativeRisk    bool
	TickSize        TickSize
	MinOrderSize    float64
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// OrderRequest is the ephemeral value constructed at dispatch time (spec §3).
// Validation happens at construction; an invalid OrderRequest is a programmer
// error (see pkg/types.NewOrderRequest), never a runtime outcome surfaced to
// the scheduler.
type OrderRequest struct {
	TokenID       string
	Side          Side
	Action        Action
	SizeUSD       float64 // > 0, <= configured cap
	Price         float64 // (0, 1)
	Strategy      string
	CorrelationID string
}

// InputError enumerates OrderRequest construction failures (spec §7 "Input").
type InputError int

const (
	ErrInvalidSize InputError = iota
	ErrInvalidPrice
	ErrInvalidTokenID
	ErrInvalidSide
)

func (e InputError) Error() string {
	switch e {
	case ErrInvalidSize:
		return "invalid size"
	case ErrInvalidPrice:
		return "invalid price"
	case ErrInvalidTokenID:
		return "invalid token id"
	case ErrInvalidSide:
		return "invalid side"
	default:
		return "unknown input error"
	}
}

// NewOrderRequest validates and constructs an OrderRequest. Per spec §3,
// rejection here is a programmer error: callers are expected to pass
// already-sane values derived from an Eligible market snapshot, not raw
// user input.
func NewOrderRequest(tokenID string, side Side, action Action, sizeUSD, price, maxSizeUSD float64, strategy, correlationID string) (OrderRequest, error) {
	if tokenID == "" {
		return OrderRequest{}, ErrInvalidTokenID
	}
	if side != Yes && side != No {
		return OrderRequest{}, ErrInvalidSide
	}
	if sizeUSD <= 0 || sizeUSD > maxSizeUSD {
		return OrderRequest{}, ErrInvalidSize
	}
	if price <= 0 || price >= 1 {
		return OrderRequest{}, ErrInvalidPrice
	}
	return OrderRequest{
		TokenID:       tokenID,
		Side:          side,
		Action:        action,
		SizeUSD:       sizeUSD,
		Price:         price,
		Strategy:      strategy,
		CorrelationID: correlationID,
	}, nil
}

// SignedOrder is the on-chain order format the venue's CLOB API expects.
// MakerAmount and TakerAmount are in 6-decimal USDC units (1e6 = $1).
type SignedOrder struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   *big.Int      `json:"makerAmount"`
	TakerAmount   *big.Int      `json:"takerAmount"`
	Side          Action        `json:"side"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	SignatureType SignatureType `json:"signatureType"`
	Signature     string        `json:"signature"`
}

// OrderPayload is the REST API request body for a fill-or-kill order post.
type OrderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"` // always "FOK"
}

// PostOrderResult is the venue's synchronous response to post_order (spec §6).
type PostOrderResult struct {
	Accepted     bool
	VenueOrderID string
	RejectReason string
}

// ————————————————————————————————————————————————————————————————————————
// Market snapshots
// ————————————————————————————————————————————————————————————————————————

// MarketSnapshot is the value-type view of a Market the MarketStateMachine
// hands out to every other component (spec §3 "Ownership": communication is
// by value, never by reference into the FSM's private state). Every reader
// — the scheduler, the eligibility evaluator, the dashboard — takes one of
// these instead of a pointer into the FSM's table.
type MarketSnapshot struct {
	TokenID         string
	ConditionID     string
	Question        string
	EndTime         time.Time
	NegativeRisk    bool
	TickSize        TickSize
	State           MarketState
	BestBid         float64
	BestAsk         float64
	LastTickAt      time.Time
	FailureCount    int
	ReservedCapital float64
	RealizedPnL     float64
	DiscoveredSeq   uint64 // monotonic discovery order, used as a scheduler tie-breaker
}

// HasQuote reports whether an ask has been observed at least once. The bid
// is not checked.
func (m MarketSnapshot) HasQuote() bool {
	return m.BestAsk > 0
}

// ————————————————————————————————————————————————————————————————————————
// Price ticks
// ————————————————————————————————————————————————————————————————————————

// PriceTick is one element of the Venue Client's subscribe_price_ticks stream
// (spec §6).
type PriceTick struct {
	TokenID string
	Bid     float64
	Ask     float64
	At      time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Error taxonomy (spec §7, §12)
// ————————————————————————————————————————————————————————————————————————

// GateReason enumerates every admission denial the RiskGate can return
// (spec §7 "Gate"). A denial is expected control flow, never an error.
type GateReason int

const (
	GateNone GateReason = iota
	GateStaleFeedHalt
	GateRpcLagHalt
	GateMaxOrdersHalt
	GateDailyLossHalt
	GateManualHalt
	GateBreakerOpen
	GateExposureCapMarket
	GateExposureCapTotal
	GateInsufficientCapital
	GateAlreadyAllocated
)

func (r GateReason) String() string {
	switch r {
	case GateNone:
		return "none"
	case GateStaleFeedHalt:
		return "StaleFeedHalt"
	case GateRpcLagHalt:
		return "RpcLagHalt"
	case GateMaxOrdersHalt:
		return "MaxOrdersHalt"
	case GateDailyLossHalt:
		return "DailyLossHalt"
	case GateManualHalt:
		return "ManualHalt"
	case GateBreakerOpen:
		return "BreakerOpen"
	case GateExposureCapMarket:
		return "ExposureCapMarket"
	case GateExposureCapTotal:
		return "ExposureCapTotal"
	case GateInsufficientCapital:
		return "InsufficientCapital"
	case GateAlreadyAllocated:
		return "AlreadyAllocated"
	default:
		return "UnknownGateReason"
	}
}

// VenueErrorKind enumerates outcomes the venue client's synchronous calls
// can return (spec §7 "Venue").
type VenueErrorKind int

const (
	VenueNone VenueErrorKind = iota
	VenueNoLiquidity
	VenueInvalidSignature
	VenueInsufficientBalance
	VenueRateLimited
	VenueTimeout
	VenueUnknown
)

func (k VenueErrorKind) String() string {
	switch k {
	case VenueNone:
		return "none"
	case VenueNoLiquidity:
		return "NoLiquidity"
	case VenueInvalidSignature:
		return "InvalidSignature"
	case VenueInsufficientBalance:
		return "InsufficientBalance"
	case VenueRateLimited:
		return "RateLimited"
	case VenueTimeout:
		return "Timeout"
	case VenueUnknown:
		return "UnknownVenueError"
	default:
		return "UnknownVenueError"
	}
}

// ————————————————————————————————————————————————————————————————————————
// Trade outcomes & journal
// ————————————————————————————————————————————————————————————————————————

// Outcome is the terminal result of a dispatch attempt (spec §3 TradeRecord).
type Outcome string

const (
	OutcomeFilled           Outcome = "Filled"
	OutcomeRejectedByGate   Outcome = "RejectedByGate"
	OutcomeRejectedByVenue  Outcome = "RejectedByVenue"
	OutcomeTimeout          Outcome = "Timeout"
	OutcomeDuplicate        Outcome = "Duplicate"
	OutcomeRateLimited      Outcome = "RateLimited"
)

// TradeRecord is appended to the journal on every attempt, filled or not
// (spec §3, §4.6).
type TradeRecord struct {
	ID                uint64    `json:"id"`
	WallTime          time.Time `json:"wall_time"`
	CorrelationID     string    `json:"correlation_id"`
	TokenID           string    `json:"token_id"`
	Action            Action    `json:"action"`
	Side              Side      `json:"side"`
	SizeUSD           float64   `json:"size_usd"`
	Price             float64   `json:"price"`
	Outcome           Outcome   `json:"outcome"`
	RejectReason      string    `json:"reject_reason,omitempty"`
	TickToDecisionMs  float64   `json:"tick_to_decision_ms"`
	DecisionToAckMs   float64   `json:"decision_to_ack_ms"`
	ExpectedEdgeCents float64   `json:"expected_edge_cents"`
	RealizedPnL       *float64  `json:"realized_pnl,omitempty"`
}

// TradeOutcome is the Executor's in-process return value for execute()
// (spec §4.5). It carries the outcome, venue order id and latencies of one
// attempt; the order details (token, size, price) stay in the TradeRecord.
type TradeOutcome struct {
	Outcome           Outcome
	RejectReason      string
	VenueOrderID      string
	TickToDecisionMs  float64
	DecisionToAckMs   float64
	RealizedPnL       float64
}
