// Package eligibility implements the expiration-sniping predicate (spec
// §4.8, C9): a pure, deterministic function of a market snapshot that
// decides whether the scheduler should consider a market for execution.
//
// The evaluator is parameterized by the outcome token to buy (TokenSide)
// rather than hard-coding YES, so a mirrored NO-side strategy is a second
// Evaluator value, not a branch inside one (spec §4.8 "extension point").
package eligibility

import (
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Config holds the thresholds the predicate is evaluated against.
type Config struct {
	TimeToEligibilitySec int
	MaxBuyPrice          float64
	MinEdge              float64
	TokenSide            types.TokenSide
}

// Evaluator is a pure, stateless predicate. It takes a snapshot copy, never
// a live reference, so it can never observe a market mid-mutation.
type Evaluator struct {
	cfg Config
}

// New constructs an Evaluator for the given side and thresholds.
func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Side returns the outcome token this evaluator hunts.
func (e *Evaluator) Side() types.TokenSide { return e.cfg.TokenSide }

// Eligible reports whether snapshot qualifies for execution right now
// (spec §4.8):
//
//	state ∈ {Watching, Eligible}
//	∧ (end_time − now) < time_to_eligibility_sec
//	∧ best_ask < max_buy_price
//	∧ 1 − best_ask ≥ min_edge
//
// best_ask == max_buy_price is NOT eligible (the price boundary is strict,
// resolved per the reference scenario).
func (e *Evaluator) Eligible(snapshot types.MarketSnapshot, now time.Time) bool {
	if snapshot.State != types.Watching && snapshot.State != types.Eligible {
		return false
	}
	if !snapshot.HasQuote() {
		return false
	}

	remaining := snapshot.EndTime.Sub(now)
	if remaining >= time.Duration(e.cfg.TimeToEligibilitySec)*time.Second {
		return false
	}
	if snapshot.BestAsk >= e.cfg.MaxBuyPrice {
		return false
	}
	if 1-snapshot.BestAsk < e.cfg.MinEdge {
		return false
	}
	return true
}
