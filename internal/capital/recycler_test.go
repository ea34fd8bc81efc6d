package capital

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecyclerTickReleasesDueEntries(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	a.RequestAllocation("tok1", decimal.NewFromInt(20))

	r := NewRecycler(a, time.Minute, 10, testLogger())
	now := time.Now()
	r.Schedule("tok1", decimal.NewFromInt(2), now)

	r.Tick(now.Add(30 * time.Second))
	if r.Len() != 1 {
		t.Fatalf("entry should not release before its delay elapses")
	}

	r.Tick(now.Add(time.Minute))
	if r.Len() != 0 {
		t.Fatalf("expected entry to release once ready_at has elapsed")
	}
	if !a.Bankroll().Equal(decimal.NewFromInt(1002)) {
		t.Fatalf("expected pnl applied on release, got bankroll %s", a.Bankroll())
	}
}

func TestForceRecycleBypassesDelay(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	a.RequestAllocation("tok1", decimal.NewFromInt(20))

	r := NewRecycler(a, time.Hour, 10, testLogger())
	r.Schedule("tok1", decimal.NewFromInt(5), time.Now())

	if !r.ForceRecycle("tok1") {
		t.Fatalf("expected ForceRecycle to find and release the queued entry")
	}
	if r.Len() != 0 {
		t.Fatalf("expected queue empty after force recycle")
	}
	if !a.Bankroll().Equal(decimal.NewFromInt(1005)) {
		t.Fatalf("expected pnl applied on force recycle, got %s", a.Bankroll())
	}
}

func TestForceRecycleUnknownTokenReturnsFalse(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	r := NewRecycler(a, time.Hour, 10, testLogger())
	if r.ForceRecycle("ghost") {
		t.Fatalf("expected ForceRecycle to report false for an unqueued token")
	}
}

func TestScheduleEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	for _, tok := range []string{"a", "b", "c"} {
		a.RequestAllocation(tok, decimal.NewFromInt(10))
	}

	r := NewRecycler(a, time.Hour, 2, testLogger())
	now := time.Now()
	r.Schedule("a", decimal.NewFromInt(1), now)
	r.Schedule("b", decimal.NewFromInt(1), now)
	// third push exceeds capacity 2, forcing release of "a" immediately
	r.Schedule("c", decimal.NewFromInt(1), now)

	if r.Len() != 2 {
		t.Fatalf("expected queue bounded at capacity 2, got %d", r.Len())
	}
	if _, err := a.ReleaseAllocation("a", decimal.Zero); err == nil {
		t.Fatalf("expected 'a' to already be released by the eviction")
	}
}
