// Package fsm implements the per-market lifecycle state machine (spec §4.1,
// C6): Discovered → Watching → Eligible → Executing → Reconciling → Done,
// with an OnHold side-state for stale feeds or repeated failures.
//
// The machine exclusively owns every Market record (spec §3 "Ownership").
// Every accessor hands out a types.MarketSnapshot copy rather than a pointer
// into the table, the same way internal/market.Book guards its order-book
// state behind a single RWMutex and only ever returns derived values.
package fsm

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Config tunes the sweep thresholds (spec §6).
type Config struct {
	StaleFeedThresholdMs  int64
	MaxFailuresBeforeHold int
	FailureRecoveryWindow time.Duration
	TimeToEligibilitySec  int
	MaxBuyPrice           float64
	MinEdge               float64
}

// Transition records one state change, emitted by check_transitions and by
// every mark_* call (spec §4.1 "all transitions logged").
type Transition struct {
	TokenID string
	From    types.MarketState
	To      types.MarketState
	At      time.Time
}

// market is the FSM's private record. Never handed out directly; callers
// only ever see a types.MarketSnapshot copy.
type market struct {
	ref             types.MarketRef
	state           types.MarketState
	bestBid         float64
	bestAsk         float64
	lastTickAt      time.Time
	failureCount    int
	cleanTickCount  int
	lastFailureAt   time.Time
	reservedCapital float64
	realizedPnL     float64
	discoveredSeq   uint64
}

func (m *market) snapshot() types.MarketSnapshot {
	return types.MarketSnapshot{
		TokenID:         m.ref.TokenID,
		ConditionID:     m.ref.ConditionID,
		Question:        m.ref.Question,
		EndTime:         m.ref.EndTime,
		NegativeRisk:    m.ref.NegativeRisk,
		TickSize:        m.ref.TickSize,
		State:           m.state,
		BestBid:         m.bestBid,
		BestAsk:         m.bestAsk,
		LastTickAt:      m.lastTickAt,
		FailureCount:    m.failureCount,
		ReservedCapital: m.reservedCapital,
		RealizedPnL:     m.realizedPnL,
		DiscoveredSeq:   m.discoveredSeq,
	}
}

// ErrNotFound is returned by any operation on an unknown token_id — a typed
// not-found result, never an exception (spec §4.1 "Failure semantics").
var ErrNotFound = fmt.Errorf("market not found")

// ErrIllegalTransition is returned by mark_* calls that would violate the
// transition table (spec §4.1 "illegal transitions fail hard").
type ErrIllegalTransition struct {
	TokenID string
	From    types.MarketState
	Attempt string
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition for %s: cannot %s from state %s", e.TokenID, e.Attempt, e.From)
}

// StateMachine is the per-market lifecycle FSM (C6). Safe for concurrent use;
// every mutation is linearized by a single mutex, and transitions are
// computed as total functions of (current state, event) — spec §4.1
// "Failure semantics".
type StateMachine struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	markets map[string]*market
	nextSeq uint64
}

// New creates an empty state machine.
func New(cfg Config, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		cfg:     cfg,
		logger:  logger.With("component", "fsm"),
		markets: make(map[string]*market),
	}
}

// AddMarket registers a newly discovered market in state Discovered. A
// second AddMarket for an already-known token_id is a no-op (idempotent
// discovery is expected when the market source re-announces a market it
// already yielded).
func (s *StateMachine) AddMarket(ref types.MarketRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[ref.TokenID]; ok {
		return
	}

	s.nextSeq++
	s.markets[ref.TokenID] = &market{
		ref:           ref,
		state:         types.Discovered,
		discoveredSeq: s.nextSeq,
	}
	s.logTransition(ref.TokenID, types.MarketState(-1), types.Discovered)
}

// UpdatePrice applies a fresh tick. Discovered markets move to Watching on
// their first tick; OnHold markets recover to Watching once the failure
// count has decayed back to zero (spec §4.1 transition table).
func (s *StateMachine) UpdatePrice(tokenID string, bid, ask float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[tokenID]
	if !ok {
		return ErrNotFound
	}

	m.bestBid = bid
	m.bestAsk = ask
	m.lastTickAt = now
	m.cleanTickCount++
	if m.cleanTickCount >= 1 && now.Sub(m.lastFailureAt) > s.cfg.FailureRecoveryWindow {
		m.failureCount = 0
	}

	if m.state == types.Discovered {
		s.transition(m, types.Watching)
	} else if m.state == types.OnHold && m.failureCount == 0 {
		s.transition(m, types.Watching)
	}

	return nil
}

// CheckTransitions sweeps every market and applies the non-event-driven
// transitions: Watching/Eligible → OnHold on a stale feed, Watching → Eligible
// when the eligibility predicate holds, Eligible → Watching when it stops
// holding (never sticky — spec §4.1), and Executing → Reconciling once the
// market has ended. It is idempotent within a tick: calling it twice with the
// same `now` makes no further transitions the second time, because every
// transition it can apply already moves the market out of the state that
// triggered it.
func (s *StateMachine) CheckTransitions(now time.Time, eligible func(types.MarketSnapshot, time.Time) bool) []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Transition
	staleThreshold := time.Duration(s.cfg.StaleFeedThresholdMs) * time.Millisecond

	for _, m := range s.markets {
		from := m.state
		switch m.state {
		case types.Watching, types.Eligible:
			stale := !m.lastTickAt.IsZero() && now.Sub(m.lastTickAt) > staleThreshold
			tooManyFailures := m.failureCount > s.cfg.MaxFailuresBeforeHold
			if stale || tooManyFailures {
				s.transition(m, types.OnHold)
				break
			}
			snap := m.snapshot()
			if eligible(snap, now) {
				if m.state != types.Eligible {
					s.transition(m, types.Eligible)
				}
			} else if m.state == types.Eligible {
				s.transition(m, types.Watching)
			}
		case types.Executing:
			if !now.Before(m.ref.EndTime) {
				s.transition(m, types.Reconciling)
			}
		}

		if m.state != from {
			out = append(out, Transition{TokenID: m.ref.TokenID, From: from, To: m.state, At: now})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// MarkExecutionStarted transitions Eligible → Executing and records the
// capital the allocator granted this market.
func (s *StateMachine) MarkExecutionStarted(tokenID string, reservedCapital float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[tokenID]
	if !ok {
		return ErrNotFound
	}
	if m.state != types.Eligible {
		return ErrIllegalTransition{TokenID: tokenID, From: m.state, Attempt: "mark_execution_started"}
	}
	m.reservedCapital = reservedCapital
	s.transition(m, types.Executing)
	return nil
}

// MarkResolution transitions Reconciling → Done once capital has been
// released and realized P&L is known.
func (s *StateMachine) MarkResolution(tokenID string, pnl float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[tokenID]
	if !ok {
		return ErrNotFound
	}
	if m.state != types.Reconciling {
		return ErrIllegalTransition{TokenID: tokenID, From: m.state, Attempt: "mark_resolution"}
	}
	m.realizedPnL = pnl
	m.reservedCapital = 0
	s.transition(m, types.Done)
	return nil
}

// MarkFailure increments the market's failure counter. Crossing
// max_failures_before_hold transitions Watching/Eligible → OnHold on the
// next sweep (checked here immediately, matching the spec's "on threshold
// crossing" wording rather than waiting for the next CheckTransitions).
func (s *StateMachine) MarkFailure(tokenID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[tokenID]
	if !ok {
		return ErrNotFound
	}
	m.failureCount++
	m.cleanTickCount = 0
	m.lastFailureAt = now
	if m.failureCount > s.cfg.MaxFailuresBeforeHold && (m.state == types.Watching || m.state == types.Eligible) {
		s.transition(m, types.OnHold)
	}
	return nil
}

// Drop transitions any non-terminal market to Done (spec "market dropped by
// source"). A no-op for unknown or already-Done markets.
func (s *StateMachine) Drop(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[tokenID]
	if !ok || m.state == types.Done {
		return
	}
	m.reservedCapital = 0
	s.transition(m, types.Done)
}

// GetMarketsByState returns a snapshot of every market currently in the
// given state.
func (s *StateMachine) GetMarketsByState(state types.MarketState) []types.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.MarketSnapshot
	for _, m := range s.markets {
		if m.state == state {
			out = append(out, m.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscoveredSeq < out[j].DiscoveredSeq })
	return out
}

// Snapshot returns a copy of one market's current state, or ErrNotFound.
func (s *StateMachine) Snapshot(tokenID string) (types.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[tokenID]
	if !ok {
		return types.MarketSnapshot{}, ErrNotFound
	}
	return m.snapshot(), nil
}

// PurgeDoneOlderThan removes Done markets whose end_time is older than
// now.Add(-horizon), freeing memory for markets analytics no longer needs
// to query by token_id.
func (s *StateMachine) PurgeDoneOlderThan(now time.Time, horizon time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-horizon)
	purged := 0
	for id, m := range s.markets {
		if m.state == types.Done && m.ref.EndTime.Before(cutoff) {
			delete(s.markets, id)
			purged++
		}
	}
	return purged
}

// transition applies a state change and logs it. Caller must hold s.mu.
func (s *StateMachine) transition(m *market, to types.MarketState) {
	from := m.state
	m.state = to
	s.logTransition(m.ref.TokenID, from, to)
}

func (s *StateMachine) logTransition(tokenID string, from, to types.MarketState) {
	s.logger.Info("market transition", "token_id", tokenID, "from", from.String(), "to", to.String())
}
