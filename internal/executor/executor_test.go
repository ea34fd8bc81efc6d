package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		MaxOrdersPerMinute:  600,
		DedupeQuantizeCents: 1,
		OrderTimeoutMs:      1000,
		MaxRetries:          2,
		MaxBackoff:          time.Second,
		WorkerPoolSize:      4,
	}
}

// fakeVenue implements venue.VenueClient for executor tests.
type fakeVenue struct {
	mu            sync.Mutex
	createErr     error
	postResult    types.PostOrderResult
	postErr       error
	createCalls   int
	postCalls     int
}

func (f *fakeVenue) SubscribePriceTicks(ctx context.Context, tokenIDs []string) (<-chan types.PriceTick, error) {
	return nil, nil
}

func (f *fakeVenue) CreateMarketOrder(ctx context.Context, tokenID string, amountUSD float64, side types.Action, negRisk bool, tickSize types.TickSize) (types.SignedOrder, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	if f.createErr != nil {
		return types.SignedOrder{}, f.createErr
	}
	return types.SignedOrder{TokenID: tokenID, Side: side}, nil
}

func (f *fakeVenue) PostOrder(ctx context.Context, order types.SignedOrder) (types.PostOrderResult, error) {
	f.mu.Lock()
	f.postCalls++
	f.mu.Unlock()
	if f.postErr != nil {
		return types.PostOrderResult{}, f.postErr
	}
	return f.postResult, nil
}

func (f *fakeVenue) GetUSDCBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func testRequest() types.OrderRequest {
	req, err := types.NewOrderRequest("tok1", types.Yes, types.Buy, 10, 0.5, 100, "snipe", "corr1")
	if err != nil {
		panic(err)
	}
	return req
}

func TestExecuteFillSucceedsOnFirstAttempt(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: true, VenueOrderID: "ord1"}}
	e := New(testConfig(), fv, nil, nil, testLogger())

	outcome := e.Execute(context.Background(), testRequest(), false, types.Tick001, time.Now(), 1, 0.5)
	if outcome.Outcome != types.OutcomeFilled {
		t.Fatalf("expected Filled, got %v (%s)", outcome.Outcome, outcome.RejectReason)
	}
	if outcome.VenueOrderID != "ord1" {
		t.Fatalf("expected venue order id ord1, got %s", outcome.VenueOrderID)
	}
}

func TestExecuteDuplicateWithinWindowIsRejected(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: true, VenueOrderID: "ord1"}}
	e := New(testConfig(), fv, nil, nil, testLogger())

	req := testRequest()
	now := time.Now()
	first := e.Execute(context.Background(), req, false, types.Tick001, now, 1, 0.5)
	if first.Outcome != types.OutcomeFilled {
		t.Fatalf("expected first attempt Filled, got %v", first.Outcome)
	}

	second := e.Execute(context.Background(), req, false, types.Tick001, now.Add(time.Second), 1, 0.5)
	if second.Outcome != types.OutcomeDuplicate {
		t.Fatalf("expected Duplicate, got %v", second.Outcome)
	}
	if fv.postCalls != 1 {
		t.Fatalf("expected venue PostOrder called once, got %d", fv.postCalls)
	}
}

func TestExecuteRetriesOnVenueRejectionThenFails(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: false, RejectReason: "insufficient liquidity"}}
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.MaxBackoff = 10 * time.Millisecond
	e := New(cfg, fv, nil, nil, testLogger())

	outcome := e.Execute(context.Background(), testRequest(), false, types.Tick001, time.Now(), 1, 0.5)
	if outcome.Outcome != types.OutcomeRejectedByVenue {
		t.Fatalf("expected RejectedByVenue, got %v", outcome.Outcome)
	}
	if fv.postCalls != 3 {
		t.Fatalf("expected 1 initial + 2 retries = 3 PostOrder calls, got %d", fv.postCalls)
	}
}

func TestExecuteCreateOrderErrorIsRecordedAsVenueRejection(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{createErr: errors.New("no book liquidity")}
	cfg := testConfig()
	cfg.MaxRetries = 0
	e := New(cfg, fv, nil, nil, testLogger())

	outcome := e.Execute(context.Background(), testRequest(), false, types.Tick001, time.Now(), 1, 0.5)
	if outcome.Outcome != types.OutcomeRejectedByVenue {
		t.Fatalf("expected RejectedByVenue, got %v", outcome.Outcome)
	}
	if fv.postCalls != 0 {
		t.Fatalf("expected PostOrder never called after CreateMarketOrder failure, got %d calls", fv.postCalls)
	}
}

func TestExecuteFailsFastOnInvalidSignature(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: false, RejectReason: "invalid signature"}}
	cfg := testConfig()
	cfg.MaxRetries = 3
	cfg.MaxBackoff = 10 * time.Millisecond
	e := New(cfg, fv, nil, nil, testLogger())

	outcome := e.Execute(context.Background(), testRequest(), false, types.Tick001, time.Now(), 1, 0.5)
	if outcome.Outcome != types.OutcomeRejectedByVenue {
		t.Fatalf("expected RejectedByVenue, got %v", outcome.Outcome)
	}
	if fv.postCalls != 1 {
		t.Fatalf("InvalidSignature must fail fast with no retries, got %d PostOrder calls", fv.postCalls)
	}
}

func TestExecuteFailsFastOnInsufficientBalance(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: false, RejectReason: "insufficient balance"}}
	cfg := testConfig()
	cfg.MaxRetries = 3
	cfg.MaxBackoff = 10 * time.Millisecond
	e := New(cfg, fv, nil, nil, testLogger())

	outcome := e.Execute(context.Background(), testRequest(), false, types.Tick001, time.Now(), 1, 0.5)
	if outcome.Outcome != types.OutcomeRejectedByVenue {
		t.Fatalf("expected RejectedByVenue, got %v", outcome.Outcome)
	}
	if fv.postCalls != 1 {
		t.Fatalf("InsufficientBalance must fail fast with no retries, got %d PostOrder calls", fv.postCalls)
	}
}

func TestExecuteRetriesOnRateLimitRejection(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: false, RejectReason: "rate limit exceeded"}}
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.MaxBackoff = 10 * time.Millisecond
	e := New(cfg, fv, nil, nil, testLogger())

	outcome := e.Execute(context.Background(), testRequest(), false, types.Tick001, time.Now(), 1, 0.5)
	if outcome.Outcome != types.OutcomeRejectedByVenue {
		t.Fatalf("expected RejectedByVenue, got %v", outcome.Outcome)
	}
	if fv.postCalls != 3 {
		t.Fatalf("expected 1 initial + 2 retries = 3 PostOrder calls, got %d", fv.postCalls)
	}
}

func TestDedupeKeyQuantizesSize(t *testing.T) {
	t.Parallel()
	k1 := dedupeKey("tok1", types.Yes, types.Buy, 10.001, 1)
	k2 := dedupeKey("tok1", types.Yes, types.Buy, 10.004, 1)
	if k1 != k2 {
		t.Fatalf("expected sizes within one cent bucket to collapse, got %q vs %q", k1, k2)
	}
	k3 := dedupeKey("tok1", types.Yes, types.Buy, 10.02, 1)
	if k1 == k3 {
		t.Fatalf("expected sizes a full bucket apart to differ, got equal keys %q", k1)
	}
}

func TestExecuteRespectsWorkerPoolBound(t *testing.T) {
	t.Parallel()
	fv := &fakeVenue{postResult: types.PostOrderResult{Accepted: true, VenueOrderID: "ord1"}}
	cfg := testConfig()
	cfg.WorkerPoolSize = 2
	e := New(cfg, fv, nil, nil, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := types.NewOrderRequest("tok1", types.Yes, types.Buy, 1, 0.5, 100, "snipe", "corr")
			e.Execute(context.Background(), req, false, types.Tick001, time.Now().Add(time.Duration(i)*time.Hour), 1, 0.5)
		}(i)
	}
	wg.Wait()
	if fv.postCalls == 0 {
		t.Fatalf("expected at least one PostOrder call")
	}
}
