package fsm

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		StaleFeedThresholdMs:  5000,
		MaxFailuresBeforeHold: 3,
		FailureRecoveryWindow: time.Minute,
		TimeToEligibilitySec:  30,
		MaxBuyPrice:           0.95,
		MinEdge:               0.02,
	}
}

func testRef(tokenID string, endTime time.Time) types.MarketRef {
	return types.MarketRef{
		TokenID:     tokenID,
		ConditionID: "cond-" + tokenID,
		Question:    "will it happen",
		EndTime:     endTime,
		TickSize:    types.Tick001,
	}
}

func TestAddMarketStartsDiscovered(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))

	snap, err := s.Snapshot("tok1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != types.Discovered {
		t.Fatalf("expected Discovered, got %s", snap.State)
	}
}

func TestAddMarketIdempotent(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.UpdatePrice("tok1", 0.5, 0.55, now)
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))

	snap, _ := s.Snapshot("tok1")
	if snap.State != types.Watching {
		t.Fatalf("re-adding an existing market should not reset its state, got %s", snap.State)
	}
}

func TestUpdatePriceMovesDiscoveredToWatching(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))

	if err := s.UpdatePrice("tok1", 0.9, 0.92, now); err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}

	snap, _ := s.Snapshot("tok1")
	if snap.State != types.Watching {
		t.Fatalf("expected Watching, got %s", snap.State)
	}
	if snap.BestBid != 0.9 || snap.BestAsk != 0.92 {
		t.Fatalf("unexpected bid/ask: %+v", snap)
	}
}

func TestUpdatePriceUnknownMarket(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	if err := s.UpdatePrice("ghost", 0.5, 0.5, time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckTransitionsStaleFeedGoesOnHold(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.UpdatePrice("tok1", 0.9, 0.92, now)

	later := now.Add(10 * time.Second)
	trans := s.CheckTransitions(later, func(types.MarketSnapshot, time.Time) bool { return false })

	if len(trans) != 1 || trans[0].To != types.OnHold {
		t.Fatalf("expected transition to OnHold, got %+v", trans)
	}
}

func TestCheckTransitionsEligibleIsNeverSticky(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.UpdatePrice("tok1", 0.9, 0.92, now)

	eligible := true
	pred := func(types.MarketSnapshot, time.Time) bool { return eligible }

	s.CheckTransitions(now, pred)
	snap, _ := s.Snapshot("tok1")
	if snap.State != types.Eligible {
		t.Fatalf("expected Eligible, got %s", snap.State)
	}

	eligible = false
	s.CheckTransitions(now, pred)
	snap, _ = s.Snapshot("tok1")
	if snap.State != types.Watching {
		t.Fatalf("eligible state must not be sticky once predicate fails, got %s", snap.State)
	}
}

func TestCheckTransitionsIdempotentWithinTick(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.UpdatePrice("tok1", 0.9, 0.92, now)

	pred := func(types.MarketSnapshot, time.Time) bool { return true }
	first := s.CheckTransitions(now, pred)
	second := s.CheckTransitions(now, pred)

	if len(first) != 1 {
		t.Fatalf("expected one transition on first sweep, got %d", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("expected no transitions on repeated sweep at same instant, got %d", len(second))
	}
}

func TestMarkFailureCrossesThresholdIntoOnHold(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxFailuresBeforeHold = 2
	s := New(cfg, testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.UpdatePrice("tok1", 0.9, 0.92, now)

	s.MarkFailure("tok1", now)
	s.MarkFailure("tok1", now)
	snap, _ := s.Snapshot("tok1")
	if snap.State != types.Watching {
		t.Fatalf("should still be Watching at threshold, got %s", snap.State)
	}

	s.MarkFailure("tok1", now)
	snap, _ = s.Snapshot("tok1")
	if snap.State != types.OnHold {
		t.Fatalf("expected OnHold after crossing failure threshold, got %s", snap.State)
	}
}

func TestExecutionAndResolutionLifecycle(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.UpdatePrice("tok1", 0.9, 0.92, now)
	s.CheckTransitions(now, func(types.MarketSnapshot, time.Time) bool { return true })

	if err := s.MarkExecutionStarted("tok1", 25.0); err != nil {
		t.Fatalf("MarkExecutionStarted: %v", err)
	}
	snap, _ := s.Snapshot("tok1")
	if snap.State != types.Executing || snap.ReservedCapital != 25.0 {
		t.Fatalf("unexpected snapshot after execution start: %+v", snap)
	}

	afterEnd := now.Add(2 * time.Hour)
	trans := s.CheckTransitions(afterEnd, func(types.MarketSnapshot, time.Time) bool { return true })
	if len(trans) != 1 || trans[0].To != types.Reconciling {
		t.Fatalf("expected transition to Reconciling after end_time, got %+v", trans)
	}

	if err := s.MarkResolution("tok1", 1.5); err != nil {
		t.Fatalf("MarkResolution: %v", err)
	}
	snap, _ = s.Snapshot("tok1")
	if snap.State != types.Done || snap.RealizedPnL != 1.5 || snap.ReservedCapital != 0 {
		t.Fatalf("unexpected snapshot after resolution: %+v", snap)
	}
}

func TestMarkExecutionStartedRejectsIllegalTransition(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))

	err := s.MarkExecutionStarted("tok1", 10)
	if _, ok := err.(ErrIllegalTransition); !ok {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestGetMarketsByStateOrdersByDiscovery(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("tok1", now.Add(time.Hour)))
	s.AddMarket(testRef("tok2", now.Add(time.Hour)))
	s.AddMarket(testRef("tok3", now.Add(time.Hour)))

	discovered := s.GetMarketsByState(types.Discovered)
	if len(discovered) != 3 {
		t.Fatalf("expected 3 discovered markets, got %d", len(discovered))
	}
	for i, snap := range discovered {
		want := []string{"tok1", "tok2", "tok3"}[i]
		if snap.TokenID != want {
			t.Fatalf("expected discovery order %v, got %s at index %d", []string{"tok1", "tok2", "tok3"}, snap.TokenID, i)
		}
	}
}

func TestPurgeDoneOlderThan(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), testLogger())
	now := time.Now()
	s.AddMarket(testRef("old", now.Add(-48*time.Hour)))
	s.Drop("old")
	s.AddMarket(testRef("recent", now.Add(time.Hour)))
	s.Drop("recent")

	purged := s.PurgeDoneOlderThan(now, 24*time.Hour)
	if purged != 1 {
		t.Fatalf("expected to purge 1 market, purged %d", purged)
	}
	if _, err := s.Snapshot("old"); err != ErrNotFound {
		t.Fatalf("expected old market to be purged")
	}
	if _, err := s.Snapshot("recent"); err != nil {
		t.Fatalf("recent market should survive purge: %v", err)
	}
}
