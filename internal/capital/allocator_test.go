package capital

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testConfig() Config {
	return Config{
		MaxExposurePerMarketPercent:  0.10,
		MaxExposurePerMarketAbsolute: 50,
		MaxTotalExposurePercent:      0.50,
		OrderSplitThreshold:          100,
		OrderSplitCount:              3,
	}
}

func TestRequestAllocationGrantsFullAmountWithinCaps(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))

	result, granted := a.RequestAllocation("tok1", decimal.NewFromInt(20))
	if result != Success || !granted.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected Success/20, got %v/%s", result, granted)
	}
}

func TestRequestAllocationClampsToMarketCap(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))

	result, granted := a.RequestAllocation("tok1", decimal.NewFromInt(200))
	if result != Success || !granted.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected grant clamped to per-market cap of 50, got %v/%s", result, granted)
	}
}

func TestRequestAllocationRejectsAlreadyAllocated(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	a.RequestAllocation("tok1", decimal.NewFromInt(10))

	result, granted := a.RequestAllocation("tok1", decimal.NewFromInt(5))
	if result != AlreadyAllocated || !granted.IsZero() {
		t.Fatalf("expected AlreadyAllocated, got %v/%s", result, granted)
	}
}

func TestRequestAllocationRejectsInvalidAmount(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))

	result, _ := a.RequestAllocation("tok1", decimal.NewFromInt(0))
	if result != InvalidAmount {
		t.Fatalf("expected InvalidAmount for zero, got %v", result)
	}
	result, _ = a.RequestAllocation("tok2", decimal.NewFromInt(-5))
	if result != InvalidAmount {
		t.Fatalf("expected InvalidAmount for negative, got %v", result)
	}
}

func TestRequestAllocationRespectsTotalCap(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxExposurePerMarketAbsolute = 1000
	cfg.MaxExposurePerMarketPercent = 1
	a := New(cfg, decimal.NewFromInt(1000))

	a.RequestAllocation("tok1", decimal.NewFromInt(400))
	a.RequestAllocation("tok2", decimal.NewFromInt(90))

	result, granted := a.RequestAllocation("tok3", decimal.NewFromInt(50))
	if result != Success {
		t.Fatalf("expected Success with a clamped grant, got %v", result)
	}
	// total cap is 500 (50% of 1000); 490 already reserved, so headroom is 10
	if !granted.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected grant clamped to total headroom of 10, got %s", granted)
	}
}

func TestReleaseAllocationAppliesPnLAndFreesCapacity(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	a.RequestAllocation("tok1", decimal.NewFromInt(40))

	reserved, err := a.ReleaseAllocation("tok1", decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("ReleaseAllocation: %v", err)
	}
	if !reserved.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected released amount 40, got %s", reserved)
	}
	if !a.Bankroll().Equal(decimal.NewFromInt(1005)) {
		t.Fatalf("expected bankroll 1005 after pnl, got %s", a.Bankroll())
	}
	if !a.AvailableCapital().Equal(decimal.NewFromInt(1005)) {
		t.Fatalf("expected full bankroll available after release, got %s", a.AvailableCapital())
	}
}

func TestReleaseAllocationUnknownTokenErrors(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	if _, err := a.ReleaseAllocation("ghost", decimal.Zero); err == nil {
		t.Fatalf("expected error releasing an unallocated token")
	}
}

func TestUpdateBankrollForbiddenWithPendingReservation(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	a.RequestAllocation("tok1", decimal.NewFromInt(10))

	if err := a.UpdateBankroll(decimal.NewFromInt(100)); err == nil {
		t.Fatalf("expected UpdateBankroll to be rejected while a reservation is pending")
	}
}

func TestUpdateBankrollSucceedsWithNoReservations(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))
	if err := a.UpdateBankroll(decimal.NewFromInt(100)); err != nil {
		t.Fatalf("UpdateBankroll: %v", err)
	}
	if !a.Bankroll().Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("expected bankroll 1100, got %s", a.Bankroll())
	}
}

func TestSplitOrderEvenSplitWithRemainderOnLastChild(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))

	children := a.SplitOrder(decimal.NewFromInt(130))
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	sum := decimal.Zero
	for _, c := range children {
		sum = sum.Add(c)
	}
	if !sum.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("children must sum to the original amount, got %s", sum)
	}
}

func TestSplitOrderBelowThresholdIsUnsplit(t *testing.T) {
	t.Parallel()
	a := New(testConfig(), decimal.NewFromInt(1000))

	children := a.SplitOrder(decimal.NewFromInt(50))
	if len(children) != 1 || !children[0].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected a single unsplit child, got %+v", children)
	}
}
