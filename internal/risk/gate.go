// Package risk implements the RiskGate (spec §4.3, C4): the single
// pre-trade admissibility decision every order must pass, composed of
// three sub-policies evaluated in order — global kill switches, a
// per-market circuit breaker, then exposure limits. The first denial wins.
//
// The channel-based kill-switch propagation and debounce-clearing style is
// grounded on internal/risk.Manager's Run loop from the teacher; the
// composite admit/deny checks and decimal-based exposure math follow the
// RiskGate in the pool's web3guy0-polybot risk-gate.go reference file.
package risk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// KillSwitchType identifies one of the global halt conditions (spec §4.3).
type KillSwitchType int

const (
	KillStaleFeed KillSwitchType = iota
	KillRpcLag
	KillMaxOrders
	KillDailyLoss
	KillManual
)

func (k KillSwitchType) String() string {
	switch k {
	case KillStaleFeed:
		return "StaleFeed"
	case KillRpcLag:
		return "RpcLag"
	case KillMaxOrders:
		return "MaxOrders"
	case KillDailyLoss:
		return "DailyLoss"
	case KillManual:
		return "Manual"
	default:
		return "UnknownKillSwitch"
	}
}

func (k KillSwitchType) gateReason() types.GateReason {
	switch k {
	case KillStaleFeed:
		return types.GateStaleFeedHalt
	case KillRpcLag:
		return types.GateRpcLagHalt
	case KillMaxOrders:
		return types.GateMaxOrdersHalt
	case KillDailyLoss:
		return types.GateDailyLossHalt
	default:
		return types.GateManualHalt
	}
}

// breakerState is a per-market circuit breaker's three states (spec §4.3).
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

type breaker struct {
	state            breakerState
	consecutiveFails int
	openedAt         time.Time
	halfOpenAdmits   int
}

// Config tunes kill switches, the circuit breaker, and exposure limits
// (spec §6).
type Config struct {
	StaleFeedThresholdMs   int64
	RpcLagThresholdMs      int64
	MaxOutstandingOrders   int
	DailyLossLimitPercent  float64
	KillSwitchDebounce     time.Duration

	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxRequests int

	MaxExposurePerMarketPercent  float64
	MaxExposurePerMarketAbsolute float64
	MaxTotalExposurePercent      float64
}

// Gate is the RiskGate (C4). Every admission is linearized by one mutex,
// matching the spec's "no TOCTOU race exists on exposure" guarantee — the
// same admit-under-lock discipline the teacher's Manager uses for its
// position/exposure bookkeeping.
type Gate struct {
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex

	bankroll         decimal.Decimal
	openingBankroll  decimal.Decimal
	availableCapital decimal.Decimal
	marketExposure   map[string]decimal.Decimal
	totalExposure    decimal.Decimal
	dailyRealizedPnL decimal.Decimal
	lastDailyReset   time.Time
	outstandingCount int

	killActive   map[KillSwitchType]bool
	killClearAt  map[KillSwitchType]time.Time
	manualHalted bool

	breakers map[string]*breaker

	killCh chan KillSwitchType
}

// New creates a Gate with the given bankroll as both the available and
// opening balance.
func New(cfg Config, bankroll decimal.Decimal, now time.Time, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:              cfg,
		logger:           logger.With("component", "risk_gate"),
		bankroll:         bankroll,
		openingBankroll:  bankroll,
		availableCapital: bankroll,
		marketExposure:   make(map[string]decimal.Decimal),
		lastDailyReset:   now,
		killActive:       make(map[KillSwitchType]bool),
		killClearAt:      make(map[KillSwitchType]time.Time),
		breakers:         make(map[string]*breaker),
		killCh:           make(chan KillSwitchType, 16),
	}
}

// KillCh emits every activation of a kill switch for logging/alerting,
// matching spec §7 "Activation of any global kill switch emits a single
// high-visibility event".
func (g *Gate) KillCh() <-chan KillSwitchType { return g.killCh }

// PreExecutionCheck runs the full admission pipeline (spec §4.3
// pre_execution_check): kill switches, then the market's circuit breaker,
// then exposure limits. Returns (admit, reason); reason is GateNone iff
// admit is true.
func (g *Gate) PreExecutionCheck(tokenID string, amount decimal.Decimal, feedLastUpdate time.Time, now time.Time) (bool, types.GateReason) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.maybeResetDailyLocked(now)
	g.evaluateKillSwitchesLocked(feedLastUpdate, now)

	if reason, active := g.activeKillLocked(); active {
		return false, reason
	}

	b := g.breakerFor(tokenID)
	if !g.breakerAdmitsLocked(b, now) {
		return false, types.GateBreakerOpen
	}

	perMarketCap := decimal.Min(
		g.bankroll.Mul(decimal.NewFromFloat(g.cfg.MaxExposurePerMarketPercent)),
		decimal.NewFromFloat(g.cfg.MaxExposurePerMarketAbsolute),
	)
	newMarketExposure := g.marketExposure[tokenID].Add(amount)
	if newMarketExposure.GreaterThan(perMarketCap) {
		return false, types.GateExposureCapMarket
	}

	totalCap := g.bankroll.Mul(decimal.NewFromFloat(g.cfg.MaxTotalExposurePercent))
	if g.totalExposure.Add(amount).GreaterThan(totalCap) {
		return false, types.GateExposureCapTotal
	}

	if amount.GreaterThan(g.availableCapital) {
		return false, types.GateInsufficientCapital
	}

	if b.state == breakerHalfOpen {
		b.halfOpenAdmits++
	}
	return true, types.GateNone
}

// PostExecutionRecord updates circuit-breaker and exposure bookkeeping
// after an order attempt completes (spec §4.3/§4.5).
func (g *Gate) PostExecutionRecord(tokenID string, success bool, pnl decimal.Decimal, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := g.breakerFor(tokenID)
	if success {
		b.consecutiveFails = 0
		if b.state == breakerHalfOpen {
			b.state = breakerClosed
			b.halfOpenAdmits = 0
		}
	} else {
		b.consecutiveFails++
		if b.state == breakerHalfOpen || b.consecutiveFails >= g.cfg.FailureThreshold {
			b.state = breakerOpen
			b.openedAt = now
			b.halfOpenAdmits = 0
		}
	}

	g.dailyRealizedPnL = g.dailyRealizedPnL.Add(pnl)
	g.bankroll = g.bankroll.Add(pnl)
}

// ReserveExposure records amount as allocated capital against tokenID.
// Called by the engine once the allocator has granted the amount and the
// gate has admitted it.
func (g *Gate) ReserveExposure(tokenID string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.marketExposure[tokenID] = g.marketExposure[tokenID].Add(amount)
	g.totalExposure = g.totalExposure.Add(amount)
	g.availableCapital = g.availableCapital.Sub(amount)
	g.outstandingCount++
}

// ReleaseExposure reverses a prior ReserveExposure once the order settles
// or is abandoned.
func (g *Gate) ReleaseExposure(tokenID string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.marketExposure[tokenID] = g.marketExposure[tokenID].Sub(amount)
	g.totalExposure = g.totalExposure.Sub(amount)
	g.availableCapital = g.availableCapital.Add(amount)
	if g.outstandingCount > 0 {
		g.outstandingCount--
	}
}

// SetManualHalt activates or clears the operator-controlled kill switch.
func (g *Gate) SetManualHalt(halted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manualHalted = halted
	if halted {
		g.activateKillLocked(KillManual)
	} else {
		delete(g.killActive, KillManual)
	}
}

// breakerFor returns (creating if absent) the per-market breaker.
func (g *Gate) breakerFor(tokenID string) *breaker {
	b, ok := g.breakers[tokenID]
	if !ok {
		b = &breaker{state: breakerClosed}
		g.breakers[tokenID] = b
	}
	return b
}

// breakerAdmitsLocked applies the three-state transition table (spec §4.3):
// Closed always admits; Open transitions to HalfOpen after
// recovery_timeout_seconds and then admits up to half_open_max_requests;
// otherwise denies.
func (g *Gate) breakerAdmitsLocked(b *breaker, now time.Time) bool {
	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if now.Sub(b.openedAt) >= g.cfg.RecoveryTimeout {
			b.state = breakerHalfOpen
			b.halfOpenAdmits = 0
			return true
		}
		return false
	case breakerHalfOpen:
		return b.halfOpenAdmits < g.cfg.HalfOpenMaxRequests
	default:
		return false
	}
}

// evaluateKillSwitchesLocked recomputes every condition-driven kill switch
// (StaleFeed, MaxOrders, DailyLoss) and clears debounced switches whose
// underlying condition has been clear for the configured debounce window.
// Caller must hold g.mu.
func (g *Gate) evaluateKillSwitchesLocked(feedLastUpdate time.Time, now time.Time) {
	staleThreshold := time.Duration(g.cfg.StaleFeedThresholdMs) * time.Millisecond
	g.applyConditionLocked(KillStaleFeed, !feedLastUpdate.IsZero() && now.Sub(feedLastUpdate) > staleThreshold, now)
	g.applyConditionLocked(KillMaxOrders, g.outstandingCount >= g.cfg.MaxOutstandingOrders, now)

	dailyLossLimit := g.openingBankroll.Mul(decimal.NewFromFloat(g.cfg.DailyLossLimitPercent))
	g.applyConditionLocked(KillDailyLoss, g.dailyRealizedPnL.LessThanOrEqual(dailyLossLimit.Neg()), now)
}

// applyConditionLocked activates a kill switch the instant its condition is
// true, and clears it only after the condition has been false continuously
// for KillSwitchDebounce (spec §4.3 "clear when their underlying condition
// clears for a configurable debounce period"). DailyLoss never auto-clears
// here — it resets at UTC midnight via maybeResetDailyLocked.
func (g *Gate) applyConditionLocked(k KillSwitchType, conditionTrue bool, now time.Time) {
	if k == KillDailyLoss {
		if conditionTrue {
			g.activateKillLocked(k)
		}
		return
	}

	if conditionTrue {
		delete(g.killClearAt, k)
		g.activateKillLocked(k)
		return
	}

	if !g.killActive[k] {
		return
	}
	clearAt, scheduled := g.killClearAt[k]
	if !scheduled {
		g.killClearAt[k] = now.Add(g.cfg.KillSwitchDebounce)
		return
	}
	if !now.Before(clearAt) {
		delete(g.killActive, k)
		delete(g.killClearAt, k)
	}
}

func (g *Gate) activateKillLocked(k KillSwitchType) {
	if g.killActive[k] {
		return
	}
	g.killActive[k] = true
	g.logger.Error("kill switch activated", "event", "kill_switch_activated", "type", k.String())
	select {
	case g.killCh <- k:
	default:
	}
}

// activeKillLocked returns the first active kill switch, in a fixed
// priority order, and whether any is active.
func (g *Gate) activeKillLocked() (types.GateReason, bool) {
	for _, k := range []KillSwitchType{KillManual, KillDailyLoss, KillMaxOrders, KillRpcLag, KillStaleFeed} {
		if g.killActive[k] {
			return k.gateReason(), true
		}
	}
	return types.GateNone, false
}

// maybeResetDailyLocked resets the daily P&L counter and opening bankroll
// at UTC midnight (spec §4.3 "DailyLoss resets at UTC midnight").
func (g *Gate) maybeResetDailyLocked(now time.Time) {
	if now.UTC().Format("2006-01-02") == g.lastDailyReset.UTC().Format("2006-01-02") {
		return
	}
	g.dailyRealizedPnL = decimal.Zero
	g.openingBankroll = g.bankroll
	g.lastDailyReset = now
	delete(g.killActive, KillDailyLoss)
	delete(g.killClearAt, KillDailyLoss)
}

// RecordRpcLag feeds an observed p95 decision_to_ack_ms sample; if it
// exceeds rpc_lag_threshold_ms the RpcLag kill switch activates.
func (g *Gate) RecordRpcLag(p95Ms float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applyConditionLocked(KillRpcLag, p95Ms > float64(g.cfg.RpcLagThresholdMs), now)
}

// Snapshot is a read-only view of the gate's current risk state, used by
// the dashboard (spec §6).
type Snapshot struct {
	Bankroll         decimal.Decimal
	AvailableCapital decimal.Decimal
	TotalExposure    decimal.Decimal
	DailyRealizedPnL decimal.Decimal
	OutstandingCount int
	ActiveKillSwitches []string
}

// GetSnapshot returns a consistent snapshot of the gate's state.
func (g *Gate) GetSnapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	var active []string
	for k, on := range g.killActive {
		if on {
			active = append(active, k.String())
		}
	}
	return Snapshot{
		Bankroll:           g.bankroll,
		AvailableCapital:   g.availableCapital,
		TotalExposure:      g.totalExposure,
		DailyRealizedPnL:   g.dailyRealizedPnL,
		OutstandingCount:   g.outstandingCount,
		ActiveKillSwitches: active,
	}
}
