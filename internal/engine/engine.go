// Package engine is the central orchestrator of the expiration-sniping
// execution engine (spec §5 "Control & Data Flow").
//
// It wires together every subsystem:
//
//  1. Market Source discovers soon-to-expire markets and hands each one to
//     the state machine as Discovered.
//  2. The Venue Client's price-tick stream advances each market through
//     Discovered -> Watching and keeps its best bid/ask current.
//  3. A periodic transition sweep applies the non-event-driven transitions
//     (stale-feed holds, eligibility entry/exit, end-of-market reconciling)
//     and pushes/removes markets from the priority scheduler as they enter
//     or leave Eligible.
//  4. A single execution worker pops the soonest-to-expire Eligible market,
//     re-validates eligibility, clears the risk gate and capital allocator,
//     and dispatches through the executor.
//  5. The recycler delays releasing spent capital for a venue-side
//     settlement lag; a risk monitor feeds observed latency back into the
//     gate's RpcLag kill switch and relays kill-switch activations to the
//     dashboard.
//
// Lifecycle: New() -> Start() -> [runs until the process is signaled] -> Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/api"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/capital"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/clock"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/eligibility"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/executor"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/fsm"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/journal"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/marketsource"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/metrics"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/payout"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/risk"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/scheduler"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/store"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/venue"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

const (
	// executionPollInterval is how often the single execution worker
	// checks the scheduler for a newly-queued market. Short enough that a
	// market soon to expire is never left waiting behind an idle tick.
	executionPollInterval = 25 * time.Millisecond

	// rpcLagSampleInterval is how often the risk monitor feeds the
	// metrics collector's p95 decision-to-ack latency into the gate's
	// RpcLag kill switch.
	rpcLagSampleInterval = 5 * time.Second

	// checkpointSaveInterval is how often the engine persists a
	// crash-safety checkpoint of the allocator's bankroll/reservations
	// and every in-flight market.
	checkpointSaveInterval = 30 * time.Second

	// recyclerMaxPending bounds the recycler's FIFO; crossing it forces
	// the oldest entry to release immediately rather than ever dropping a
	// reservation silently.
	recyclerMaxPending = 4096

	// defaultShutdownGrace is used if shutdown_grace_ms is unset or zero.
	defaultShutdownGrace = 5 * time.Second

	// haltRetention is how long a kill switch may stay continuously active
	// before the engine gives up waiting for it to clear and signals main
	// to exit with code 3 rather than keep idling with trading halted.
	haltRetention = 15 * time.Minute
)

// Engine orchestrates every component of the execution engine. It owns the
// lifecycle of all background goroutines and is the only type that
// constructs C1-C9 and their external adapters.
type Engine struct {
	cfg    config.Config
	clock  clock.Clock
	venue  *venue.Adapter
	source *marketsource.Source

	fsm       *fsm.StateMachine
	risk      *risk.Gate
	capital   *capital.Allocator
	recycler  *capital.Recycler
	scheduler *scheduler.Scheduler
	eligible  *eligibility.Evaluator
	executor  *executor.Executor
	metrics   *metrics.Collector
	journal   *journal.Journal
	store     *store.Store
	payout    payout.FeeModel

	logger *slog.Logger

	// dashboardEvents is nil when the dashboard is disabled.
	dashboardEvents chan api.DashboardEvent

	// pendingSettlement carries a market's realized P&L and the trade
	// details needed to journal a settlement record from the execution
	// worker (which knows them) to the transition sweep's Reconciling ->
	// Done handling (which journals settlement and recycles capital, but
	// runs on a different goroutine, possibly much later, off the
	// market's actual resolution time rather than dispatch time).
	pendingMu         sync.Mutex
	pendingSettlement map[string]pendingSettlement

	// haltCh closes once a kill switch has stayed continuously active past
	// haltRetention; killActiveSince is only touched by runRiskMonitor.
	haltCh          chan struct{}
	haltOnce        sync.Once
	killActiveSince time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pendingSettlement is the information needed to journal a market's
// settlement record and schedule its capital recycling once it resolves,
// captured at dispatch time but applied at resolution time.
type pendingSettlement struct {
	pnl           decimal.Decimal
	anyFilled     bool
	correlationID string
	sizeUSD       float64
	price         float64
}

// New wires every component from cfg and restores the last crash-safety
// checkpoint, if one exists.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	clk := clock.New()
	now := clk.Now()

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cp, err := st.LoadCheckpoint()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	j, err := journal.Open(cfg.Journal.DataDir, now)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	va, err := venue.NewAdapter(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build venue adapter: %w", err)
	}

	bankroll := decimal.NewFromFloat(cfg.Capital.InitialBankroll)
	if cp != nil {
		bankroll = cp.Bankroll
	}

	alloc := capital.New(capital.Config{
		MaxExposurePerMarketPercent:  cfg.Risk.MaxExposurePerMarketPercent,
		MaxExposurePerMarketAbsolute: cfg.Risk.MaxExposurePerMarketAbsolute,
		MaxTotalExposurePercent:      cfg.Risk.MaxTotalExposurePercent,
		OrderSplitThreshold:          cfg.Capital.OrderSplitThreshold,
		OrderSplitCount:              cfg.Capital.OrderSplitCount,
	}, bankroll)

	sm := fsm.New(fsm.Config{
		StaleFeedThresholdMs:  cfg.Risk.StaleFeedThresholdMs,
		MaxFailuresBeforeHold: cfg.Risk.MaxFailuresBeforeHold,
		FailureRecoveryWindow: cfg.Risk.FailureRecoveryWindow,
		TimeToEligibilitySec:  cfg.Eligibility.TimeToEligibilitySec,
		MaxBuyPrice:           cfg.Eligibility.MaxBuyPrice,
		MinEdge:               cfg.Eligibility.MinEdge,
	}, logger)

	if cp != nil {
		for tokenID, amount := range cp.Reservations {
			alloc.Restore(tokenID, amount)
		}
		for _, snap := range cp.InFlight {
			sm.AddMarket(types.MarketRef{
				TokenID:      snap.TokenID,
				ConditionID:  snap.ConditionID,
				Question:     snap.Question,
				EndTime:      snap.EndTime,
				NegativeRisk: snap.NegativeRisk,
				TickSize:     snap.TickSize,
			})
			logger.Warn("restored in-flight market from checkpoint; capital stays reserved until recycled",
				"token_id", snap.TokenID)
		}
	}

	gate := risk.New(risk.Config{
		StaleFeedThresholdMs:         cfg.Risk.StaleFeedThresholdMs,
		RpcLagThresholdMs:            cfg.Risk.RpcLagThresholdMs,
		MaxOutstandingOrders:         cfg.Risk.MaxOutstandingOrders,
		DailyLossLimitPercent:        cfg.Risk.DailyLossLimitPercent,
		KillSwitchDebounce:           cfg.Risk.KillSwitchDebounce,
		FailureThreshold:             cfg.Risk.FailureThreshold,
		RecoveryTimeout:              time.Duration(cfg.Risk.RecoveryTimeoutSeconds) * time.Second,
		HalfOpenMaxRequests:          cfg.Risk.HalfOpenMaxRequests,
		MaxExposurePerMarketPercent:  cfg.Risk.MaxExposurePerMarketPercent,
		MaxExposurePerMarketAbsolute: cfg.Risk.MaxExposurePerMarketAbsolute,
		MaxTotalExposurePercent:      cfg.Risk.MaxTotalExposurePercent,
	}, bankroll, now, logger)

	rec := capital.NewRecycler(alloc, cfg.Capital.RecyclerDelay, recyclerMaxPending, logger)
	sched := scheduler.New()

	elig := eligibility.New(eligibility.Config{
		TimeToEligibilitySec: cfg.Eligibility.TimeToEligibilitySec,
		MaxBuyPrice:          cfg.Eligibility.MaxBuyPrice,
		MinEdge:              cfg.Eligibility.MinEdge,
		TokenSide:            types.TokenSide(cfg.Eligibility.TokenSide),
	})

	mc := metrics.New(cfg.Metrics.HistoryHours)

	exec := executor.New(executor.Config{
		MaxOrdersPerMinute:  cfg.Executor.MaxOrdersPerMinute,
		DedupeQuantizeCents: cfg.Executor.DedupeQuantizeCents,
		OrderTimeoutMs:      cfg.Executor.OrderTimeoutMs,
		MaxRetries:          cfg.Executor.MaxRetries,
		MaxBackoff:          cfg.Executor.MaxBackoff,
		WorkerPoolSize:      cfg.Executor.WorkerPoolSize,
	}, va, j, mc, logger)

	src := marketsource.New(cfg, logger)

	var dashCh chan api.DashboardEvent
	if cfg.Dashboard.Enabled {
		dashCh = make(chan api.DashboardEvent, 256)
	}

	return &Engine{
		cfg:               cfg,
		clock:             clk,
		venue:             va,
		source:            src,
		fsm:               sm,
		risk:              gate,
		capital:           alloc,
		recycler:          rec,
		scheduler:         sched,
		eligible:          elig,
		executor:          exec,
		metrics:           mc,
		journal:           j,
		store:             st,
		payout:            payout.FeeModel{FeeBps: cfg.Risk.FeeBps},
		logger:            logger.With("component", "engine"),
		dashboardEvents:   dashCh,
		pendingSettlement: make(map[string]pendingSettlement),
		haltCh:            make(chan struct{}),
		ctx:               ctx,
		cancel:            cancel,
	}, nil
}

// Halted closes once a kill switch has remained continuously active longer
// than haltRetention — a signal to the caller that this process should exit
// with code 3 rather than keep idling while trading stays halted.
func (e *Engine) Halted() <-chan struct{} { return e.haltCh }

// Start launches every background task. It returns immediately; the engine
// runs until Stop is called.
func (e *Engine) Start() error {
	e.spawn(func() {
		if err := e.venue.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("venue feed error", "error", err)
		}
	})
	e.spawn(func() { e.source.Run(e.ctx) })
	e.spawn(e.runMarketIngestion)
	e.spawn(e.runTransitionSweep)
	e.spawn(e.runExecutionWorker)
	e.spawn(func() { e.recycler.Run(e.ctx, e.cfg.Capital.RecyclerTickInterval, e.clock.Now) })
	e.spawn(e.runRiskMonitor)
	e.spawn(e.runCheckpointSaver)

	return nil
}

// spawn runs fn in a tracked goroutine that Stop waits for.
func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// Stop cancels every background task, waits up to shutdown_grace_ms for
// in-flight venue calls to finish, persists a final checkpoint, and closes
// the journal and store.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()

	grace := time.Duration(e.cfg.ShutdownGraceMs) * time.Millisecond
	if grace <= 0 {
		grace = defaultShutdownGrace
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn("shutdown grace period elapsed with goroutines still in flight")
	}

	e.saveCheckpoint()

	if err := e.journal.Close(); err != nil {
		e.logger.Error("journal close failed", "error", err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("store close failed", "error", err)
	}

	e.logger.Info("shutdown complete")
}

// runMarketIngestion consumes newly discovered markets from the market
// source, registers each with the state machine, and subscribes it on the
// venue's price-tick feed. The feed's shared tick channel is captured once,
// on the first subscription, and handed to a dedicated dispatch goroutine.
func (e *Engine) runMarketIngestion() {
	var tickDispatchStarted bool

	for {
		select {
		case <-e.ctx.Done():
			return
		case ref, ok := <-e.source.Markets():
			if !ok {
				return
			}
			e.fsm.AddMarket(ref)

			ticks, err := e.venue.SubscribePriceTicks(e.ctx, []string{ref.TokenID})
			if err != nil {
				e.logger.Error("subscribe price ticks failed", "token_id", ref.TokenID, "error", err)
				continue
			}
			if !tickDispatchStarted {
				tickDispatchStarted = true
				e.spawn(func() { e.dispatchTicks(ticks) })
			}
		}
	}
}

// dispatchTicks applies every price tick to the state machine until ticks
// closes or the engine is shutting down.
func (e *Engine) dispatchTicks(ticks <-chan types.PriceTick) {
	for {
		select {
		case <-e.ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			now := e.clock.Now()
			if err := e.fsm.UpdatePrice(tick.TokenID, tick.Bid, tick.Ask, now); err != nil && err != fsm.ErrNotFound {
				e.logger.Warn("update price failed", "token_id", tick.TokenID, "error", err)
			}
		}
	}
}

// runTransitionSweep periodically sweeps the state machine for
// non-event-driven transitions and keeps the priority scheduler in sync
// with which markets are currently Eligible.
func (e *Engine) runTransitionSweep() {
	interval := e.cfg.Scheduler.TransitionSweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweepTransitions()
		}
	}
}

func (e *Engine) sweepTransitions() {
	now := e.clock.Now()
	transitions := e.fsm.CheckTransitions(now, e.eligible.Eligible)

	for _, t := range transitions {
		e.emitDashboardEvent(api.DashboardEvent{
			Type:      "transition",
			Timestamp: now,
			TokenID:   t.TokenID,
			Data:      api.NewTransitionEvent(t.TokenID, t.From.String(), t.To.String(), t.At),
		})

		switch t.To {
		case types.Eligible:
			if snap, err := e.fsm.Snapshot(t.TokenID); err == nil {
				e.scheduler.Push(t.TokenID, snap.EndTime, snap.DiscoveredSeq)
			}
		case types.Reconciling:
			e.scheduler.Remove(t.TokenID)
			e.finalizeMarket(t.TokenID, now)
		default:
			if t.From == types.Eligible {
				e.scheduler.Remove(t.TokenID)
			}
		}
	}
}

// finalizeMarket marks a Reconciling market Done using whatever realized
// P&L the execution worker recorded for it, or zero for a market that
// reached end_time without ever executing. now is the market's actual
// resolution time (when the Reconciling transition was observed), not the
// earlier dispatch time — both the settlement journal entry and the
// recycler's release schedule key off it, so capital is never freed before
// the market has settled (spec §2, §4.4).
func (e *Engine) finalizeMarket(tokenID string, now time.Time) {
	e.pendingMu.Lock()
	settlement, ok := e.pendingSettlement[tokenID]
	delete(e.pendingSettlement, tokenID)
	e.pendingMu.Unlock()

	pnl := decimal.Zero
	if ok {
		pnl = settlement.pnl

		// Only a market that actually filled gets a settlement record — a
		// fully-failed dispatch still needs its reservation recycled below,
		// but it never produced a release worth journaling (invariant 5:
		// one settlement record per Filled).
		if settlement.anyFilled {
			pnlFloat, _ := pnl.Float64()
			rec := types.TradeRecord{
				ID:            e.journal.NextID(),
				WallTime:      now,
				CorrelationID: settlement.correlationID,
				TokenID:       tokenID,
				Action:        types.Buy,
				Side:          e.eligible.Side(),
				SizeUSD:       settlement.sizeUSD,
				Price:         settlement.price,
				Outcome:       types.OutcomeFilled,
				RealizedPnL:   &pnlFloat,
			}
			if err := e.journal.Append(rec); err != nil {
				e.logger.Error("settlement journal append failed", "token_id", tokenID, "error", err)
			}
		}

		e.recycler.Schedule(tokenID, pnl, now)
	}

	pnlFloat, _ := pnl.Float64()
	if err := e.fsm.MarkResolution(tokenID, pnlFloat); err != nil {
		e.logger.Error("mark resolution failed", "token_id", tokenID, "error", err)
	}
}

// runExecutionWorker is the single execution worker (spec §5): it pops the
// soonest-to-expire Eligible market from the scheduler and drives it
// through the admission-and-dispatch pipeline.
func (e *Engine) runExecutionWorker() {
	ticker := time.NewTicker(executionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			tokenID, ok := e.scheduler.Pop()
			if !ok {
				continue
			}
			e.executeMarket(tokenID)
		}
	}
}

func (e *Engine) executeMarket(tokenID string) {
	now := e.clock.Now()

	snap, err := e.fsm.Snapshot(tokenID)
	if err != nil {
		return
	}
	if !e.eligible.Eligible(snap, now) {
		// Demoted out of Eligible between push and pop; the sweep already
		// removed it from consideration.
		return
	}

	desired := decimal.Min(
		decimal.NewFromFloat(e.cfg.Risk.MaxExposurePerMarketAbsolute),
		e.capital.AvailableCapital(),
	)
	result, granted := e.capital.RequestAllocation(tokenID, desired)
	if result != capital.Success {
		e.logger.Debug("capital allocation denied", "token_id", tokenID, "result", result.String())
		return
	}

	admit, reason := e.risk.PreExecutionCheck(tokenID, granted, snap.LastTickAt, now)
	if !admit {
		if _, err := e.capital.ReleaseAllocation(tokenID, decimal.Zero); err != nil {
			e.logger.Error("release after gate denial failed", "token_id", tokenID, "error", err)
		}
		e.logger.Info("execution denied by risk gate", "token_id", tokenID, "reason", reason.String())
		return
	}

	grantedFloat, _ := granted.Float64()
	if err := e.fsm.MarkExecutionStarted(tokenID, grantedFloat); err != nil {
		e.logger.Error("mark execution started failed", "token_id", tokenID, "error", err)
		if _, err := e.capital.ReleaseAllocation(tokenID, decimal.Zero); err != nil {
			e.logger.Error("release after illegal transition failed", "token_id", tokenID, "error", err)
		}
		return
	}
	e.risk.ReserveExposure(tokenID, granted)

	totalPnL, anyFilled, filledNotional, lastCorrelationID := e.dispatchChildren(tokenID, snap, granted, now)

	e.risk.PostExecutionRecord(tokenID, anyFilled, totalPnL, now)
	e.risk.ReleaseExposure(tokenID, granted)

	// Capital stays reserved until the market actually resolves — the
	// recycler release and settlement journal entry fire from
	// finalizeMarket, off the Reconciling transition's resolution time,
	// not here (spec §2, §4.4: the settlement lag starts at end_time, not
	// at dispatch).
	filledNotionalFloat, _ := filledNotional.Float64()
	e.pendingMu.Lock()
	e.pendingSettlement[tokenID] = pendingSettlement{
		pnl:           totalPnL,
		anyFilled:     anyFilled,
		correlationID: lastCorrelationID,
		sizeUSD:       filledNotionalFloat,
		price:         snap.BestAsk,
	}
	e.pendingMu.Unlock()
}

// dispatchChildren splits granted per the allocator's order-split policy
// and dispatches each child through the executor, emitting a trade event
// per attempt and accumulating realized P&L for every fill. It returns the
// total realized P&L, whether any child filled, the total notional that
// filled, and the correlation id of the last fill (for the settlement
// journal entry finalizeMarket appends later).
func (e *Engine) dispatchChildren(tokenID string, snap types.MarketSnapshot, granted decimal.Decimal, now time.Time) (decimal.Decimal, bool, decimal.Decimal, string) {
	side := e.eligible.Side()
	tickToDecisionMs := float64(now.Sub(snap.LastTickAt).Microseconds()) / 1000.0
	edgeCents := (1 - snap.BestAsk) * 100

	totalPnL := decimal.Zero
	filledNotional := decimal.Zero
	anyFilled := false
	var lastCorrelationID string

	for i, childAmt := range e.capital.SplitOrder(granted) {
		childFloat, _ := childAmt.Float64()
		correlationID := fmt.Sprintf("%s-%d-%d", tokenID, now.UnixNano(), i)

		req, err := types.NewOrderRequest(tokenID, side, types.Buy, childFloat, snap.BestAsk, childFloat, "expiration_snipe", correlationID)
		if err != nil {
			e.logger.Error("invalid order request", "token_id", tokenID, "error", err)
			continue
		}

		outcome := e.executor.Execute(e.ctx, req, snap.NegativeRisk, snap.TickSize, now, tickToDecisionMs, edgeCents)
		if outcome.Outcome == types.OutcomeFilled {
			anyFilled = true
			lastCorrelationID = correlationID
			filledNotional = filledNotional.Add(childAmt)
			totalPnL = totalPnL.Add(e.payout.Settle(childFloat, snap.BestAsk))
		}

		e.emitDashboardEvent(api.DashboardEvent{
			Type:      "trade",
			Timestamp: now,
			TokenID:   tokenID,
			Data: api.NewTradeEvent(tokenID, req.CorrelationID, string(outcome.Outcome), outcome.RejectReason,
				outcome.VenueOrderID, outcome.TickToDecisionMs, outcome.DecisionToAckMs, outcome.RealizedPnL),
		})
	}

	return totalPnL, anyFilled, filledNotional, lastCorrelationID
}

// runRiskMonitor relays kill-switch activations to the dashboard and feeds
// observed decision-to-ack latency back into the gate's RpcLag check.
func (e *Engine) runRiskMonitor() {
	ticker := time.NewTicker(rpcLagSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case k, ok := <-e.risk.KillCh():
			if !ok {
				return
			}
			e.emitDashboardEvent(api.DashboardEvent{
				Type:      "kill",
				Timestamp: e.clock.Now(),
				Data:      api.NewKillEvent(k.String()),
			})
		case <-ticker.C:
			now := e.clock.Now()
			snap := e.metrics.Snapshot()
			if snap.Count > 0 {
				e.risk.RecordRpcLag(snap.DecisionToAckP95Ms, now)
			}
			e.checkHaltRetention(now)
		}
	}
}

// checkHaltRetention tracks how long any kill switch has been continuously
// active and fires haltCh the first time that exceeds haltRetention. Only
// ever called from runRiskMonitor, so killActiveSince needs no lock.
func (e *Engine) checkHaltRetention(now time.Time) {
	if len(e.risk.GetSnapshot().ActiveKillSwitches) == 0 {
		e.killActiveSince = time.Time{}
		return
	}
	if e.killActiveSince.IsZero() {
		e.killActiveSince = now
		return
	}
	if now.Sub(e.killActiveSince) > haltRetention {
		e.haltOnce.Do(func() {
			e.logger.Error("kill switch active past retention window, signaling halt", "retention", haltRetention.String())
			close(e.haltCh)
		})
	}
}

// runCheckpointSaver periodically persists a crash-safety checkpoint.
func (e *Engine) runCheckpointSaver() {
	ticker := time.NewTicker(checkpointSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.saveCheckpoint()
		}
	}
}

func (e *Engine) saveCheckpoint() {
	inFlight := append(e.fsm.GetMarketsByState(types.Executing), e.fsm.GetMarketsByState(types.Reconciling)...)

	reservations := make(map[string]decimal.Decimal, len(inFlight))
	for _, snap := range inFlight {
		reservations[snap.TokenID] = e.capital.ReservedFor(snap.TokenID)
	}

	cp := store.Checkpoint{
		SavedAt:      e.clock.Now(),
		Bankroll:     e.capital.Bankroll(),
		Reservations: reservations,
		InFlight:     inFlight,
	}
	if err := e.store.SaveCheckpoint(cp); err != nil {
		e.logger.Error("checkpoint save failed", "error", err)
	}
}

func (e *Engine) emitDashboardEvent(evt api.DashboardEvent) {
	if e.dashboardEvents == nil {
		return
	}
	select {
	case e.dashboardEvents <- evt:
	default:
		e.logger.Warn("dashboard event channel full, dropping event", "type", evt.Type)
	}
}

// MarketSnapshots implements api.MarketSnapshotProvider.
func (e *Engine) MarketSnapshots() []types.MarketSnapshot {
	states := []types.MarketState{
		types.Discovered, types.Watching, types.Eligible,
		types.Executing, types.Reconciling, types.Done, types.OnHold,
	}
	var out []types.MarketSnapshot
	for _, s := range states {
		out = append(out, e.fsm.GetMarketsByState(s)...)
	}
	return out
}

// RiskSnapshot implements api.MarketSnapshotProvider.
func (e *Engine) RiskSnapshot() risk.Snapshot { return e.risk.GetSnapshot() }

// MetricsSnapshot implements api.MarketSnapshotProvider.
func (e *Engine) MetricsSnapshot() metrics.Snapshot { return e.metrics.Snapshot() }

// QueuedEligibleCount implements api.MarketSnapshotProvider.
func (e *Engine) QueuedEligibleCount() int { return e.scheduler.Len() }

// DashboardEvents implements api.MarketSnapshotProvider. The channel is nil
// if the dashboard is disabled.
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent { return e.dashboardEvents }

var _ api.MarketSnapshotProvider = (*Engine)(nil)
