// Package executor implements the Executor (spec §4.5, C8): the single
// point where an eligible market actually gets an order in flight.
//
// Dispatch is synchronous/blocking against the venue, so every call is
// submitted through a bounded worker pool (worker_pool_size) guarded by a
// per-call timeout (order_timeout_ms) — the cooperative main loop never
// blocks on network I/O. An in-memory dedupe map, guarded by its own
// mutex, is checked before the token-bucket rate limiter, so a duplicate
// request within the same tick is rejected before it ever touches the rate
// limiter or the venue.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/journal"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/metrics"
	"github.com/ChudiNnorukam/predictive-edge-bot/internal/venue"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Config tunes dedupe, rate limiting, and dispatch retry policy (spec §6).
type Config struct {
	MaxOrdersPerMinute  int
	DedupeQuantizeCents float64
	OrderTimeoutMs      int
	MaxRetries          int
	MaxBackoff          time.Duration
	WorkerPoolSize      int
}

// Executor is the C8 component. It owns no state the rest of the engine
// reads — every call returns a self-contained types.TradeOutcome.
type Executor struct {
	cfg     Config
	venue   venue.VenueClient
	journal *journal.Journal
	metrics *metrics.Collector
	logger  *slog.Logger

	rl *venue.TokenBucket

	dedupeMu sync.Mutex
	seen     map[string]time.Time

	sem chan struct{}

	idMu sync.Mutex
	seq  uint64
}

// New creates an Executor. journal and metrics may be nil in tests that
// only care about dedupe/dispatch behavior.
func New(cfg Config, vc venue.VenueClient, j *journal.Journal, m *metrics.Collector, logger *slog.Logger) *Executor {
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Executor{
		cfg:     cfg,
		venue:   vc,
		journal: j,
		metrics: m,
		logger:  logger.With("component", "executor"),
		rl:      venue.NewTokenBucket(float64(cfg.MaxOrdersPerMinute), float64(cfg.MaxOrdersPerMinute)/60.0),
		seen:    make(map[string]time.Time),
		sem:     make(chan struct{}, poolSize),
	}
}

// dedupeKey quantizes size to DedupeQuantizeCents so two requests for the
// "same" trade within a tick collapse onto one key (spec §4.5 dedupe).
func dedupeKey(tokenID string, side types.Side, action types.Action, sizeUSD float64, quantizeCents float64) string {
	if quantizeCents <= 0 {
		quantizeCents = 1
	}
	quantum := quantizeCents / 100.0
	bucket := int64(sizeUSD / quantum)
	return fmt.Sprintf("%s|%s|%s|%d", tokenID, side, action, bucket)
}

// admitDedupe reports whether req is new within window, marking it seen if
// so. A duplicate request returns false without consuming a rate-limit
// token.
func (e *Executor) admitDedupe(req types.OrderRequest, now time.Time, window time.Duration) bool {
	key := dedupeKey(req.TokenID, req.Side, req.Action, req.SizeUSD, e.cfg.DedupeQuantizeCents)

	e.dedupeMu.Lock()
	defer e.dedupeMu.Unlock()

	for k, t := range e.seen {
		if now.Sub(t) > window {
			delete(e.seen, k)
		}
	}

	if last, ok := e.seen[key]; ok && now.Sub(last) <= window {
		return false
	}
	e.seen[key] = now
	return true
}

// nextID assigns a monotonic sequence number for this executor instance,
// used as the TradeRecord.ID of every attempt written to the journal.
func (e *Executor) nextID() uint64 {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	e.seq++
	return e.seq
}

// Execute runs the full dispatch pipeline for req: dedupe, rate limit,
// worker-pool-bounded venue round trip with timeout and retry, journal and
// metrics recording. It always returns a TradeOutcome, never an error —
// failure modes are represented as Outcome values (spec §4.5, §7).
func (e *Executor) Execute(ctx context.Context, req types.OrderRequest, negRisk bool, tickSize types.TickSize, decisionAt time.Time, tickToDecisionMs, expectedEdgeCents float64) types.TradeOutcome {
	now := decisionAt
	if !e.admitDedupe(req, now, time.Minute) {
		return e.record(req, types.OutcomeDuplicate, "", "", decisionAt, tickToDecisionMs, 0, expectedEdgeCents, nil)
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return e.record(req, types.OutcomeTimeout, "dispatch queue closed", "", decisionAt, tickToDecisionMs, 0, expectedEdgeCents, nil)
	}
	defer func() { <-e.sem }()

	if err := e.rl.Wait(ctx); err != nil {
		return e.record(req, types.OutcomeRateLimited, err.Error(), "", decisionAt, tickToDecisionMs, 0, expectedEdgeCents, nil)
	}

	return e.dispatchWithRetry(ctx, req, negRisk, tickSize, decisionAt, tickToDecisionMs, expectedEdgeCents)
}

func (e *Executor) dispatchWithRetry(ctx context.Context, req types.OrderRequest, negRisk bool, tickSize types.TickSize, decisionAt time.Time, tickToDecisionMs, expectedEdgeCents float64) types.TradeOutcome {
	maxRetries := e.cfg.MaxRetries
	backoff := 100 * time.Millisecond
	maxBackoff := e.cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Minute
	}

	var lastOutcome types.TradeOutcome
	for attempt := 0; attempt <= maxRetries; attempt++ {
		outcome := e.dispatchOnce(ctx, req, negRisk, tickSize, decisionAt, tickToDecisionMs, expectedEdgeCents)
		if outcome.Outcome == types.OutcomeFilled {
			return outcome
		}
		lastOutcome = outcome
		if attempt == maxRetries || !isRetryableVenueOutcome(outcome) {
			break
		}

		select {
		case <-ctx.Done():
			return lastOutcome
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return lastOutcome
}

// isRetryableVenueOutcome reports whether a failed dispatch should be
// re-attempted (spec §7): only NoLiquidity and RateLimited back off and
// retry; InvalidSignature, InsufficientBalance, and UnknownVenueError fail
// fast because retrying them wastes the backoff window on an error the
// venue will never resolve.
func isRetryableVenueOutcome(outcome types.TradeOutcome) bool {
	switch outcome.Outcome {
	case types.OutcomeRateLimited:
		return true
	case types.OutcomeRejectedByVenue:
		kind := classifyRejectReason(outcome.RejectReason)
		return kind == types.VenueNoLiquidity || kind == types.VenueRateLimited
	default:
		return false
	}
}

// classifyRejectReason maps a venue's free-text rejection message onto the
// typed VenueErrorKind taxonomy (spec §7). The venue API returns plain
// strings, not typed errors, so classification is by substring match against
// the known reason vocabulary; anything unrecognized is UnknownVenueError.
func classifyRejectReason(reason string) types.VenueErrorKind {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "no asks available"), strings.Contains(lower, "no bids available"), strings.Contains(lower, "liquidity"):
		return types.VenueNoLiquidity
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"), strings.Contains(lower, "429"):
		return types.VenueRateLimited
	case strings.Contains(lower, "signature"):
		return types.VenueInvalidSignature
	case strings.Contains(lower, "balance"), strings.Contains(lower, "insufficient"):
		return types.VenueInsufficientBalance
	default:
		return types.VenueUnknown
	}
}

func (e *Executor) dispatchOnce(ctx context.Context, req types.OrderRequest, negRisk bool, tickSize types.TickSize, decisionAt time.Time, tickToDecisionMs, expectedEdgeCents float64) types.TradeOutcome {
	timeout := time.Duration(e.cfg.OrderTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ackStart := time.Now()

	order, err := e.venue.CreateMarketOrder(dctx, req.TokenID, req.SizeUSD, req.Action, negRisk, tickSize)
	if err != nil {
		return e.record(req, mapVenueErr(err), err.Error(), "", decisionAt, tickToDecisionMs, msSince(ackStart), expectedEdgeCents, nil)
	}

	result, err := e.venue.PostOrder(dctx, order)
	decisionToAckMs := msSince(ackStart)
	if err != nil {
		return e.record(req, mapVenueErr(err), err.Error(), "", decisionAt, tickToDecisionMs, decisionToAckMs, expectedEdgeCents, nil)
	}
	if !result.Accepted {
		return e.record(req, types.OutcomeRejectedByVenue, result.RejectReason, result.VenueOrderID, decisionAt, tickToDecisionMs, decisionToAckMs, expectedEdgeCents, nil)
	}

	return e.record(req, types.OutcomeFilled, "", result.VenueOrderID, decisionAt, tickToDecisionMs, decisionToAckMs, expectedEdgeCents, nil)
}

func mapVenueErr(err error) types.Outcome {
	if err == context.DeadlineExceeded {
		return types.OutcomeTimeout
	}
	return types.OutcomeRejectedByVenue
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func (e *Executor) record(req types.OrderRequest, outcome types.Outcome, rejectReason, venueOrderID string, decisionAt time.Time, tickToDecisionMs, decisionToAckMs, expectedEdgeCents float64, realizedPnL *float64) types.TradeOutcome {
	if e.journal != nil {
		rec := types.TradeRecord{
			ID:                e.nextID(),
			WallTime:          decisionAt,
			CorrelationID:     req.CorrelationID,
			TokenID:           req.TokenID,
			Action:            req.Action,
			Side:              req.Side,
			SizeUSD:           req.SizeUSD,
			Price:             req.Price,
			Outcome:           outcome,
			RejectReason:      rejectReason,
			TickToDecisionMs:  tickToDecisionMs,
			DecisionToAckMs:   decisionToAckMs,
			ExpectedEdgeCents: expectedEdgeCents,
			RealizedPnL:       realizedPnL,
		}
		if err := e.journal.Append(rec); err != nil {
			e.logger.Error("journal append failed", "error", err, "token_id", req.TokenID)
		}
	}

	if e.metrics != nil {
		pnl := 0.0
		if realizedPnL != nil {
			pnl = *realizedPnL
		}
		e.metrics.Record(metrics.Sample{
			At:                decisionAt,
			Outcome:           outcome,
			TickToDecisionMs:  tickToDecisionMs,
			DecisionToAckMs:   decisionToAckMs,
			ExpectedEdgeCents: expectedEdgeCents,
			RealizedPnL:       pnl,
		})
	}

	var pnl float64
	if realizedPnL != nil {
		pnl = *realizedPnL
	}
	return types.TradeOutcome{
		Outcome:          outcome,
		RejectReason:     rejectReason,
		VenueOrderID:     venueOrderID,
		TickToDecisionMs: tickToDecisionMs,
		DecisionToAckMs:  decisionToAckMs,
		RealizedPnL:      pnl,
	}
}
