package types

import "testing"

func TestMarketStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state MarketState
		want  string
	}{
		{Discovered, "Discovered"},
		{Watching, "Watching"},
		{Eligible, "Eligible"},
		{Executing, "Executing"},
		{Reconciling, "Reconciling"},
		{Done, "Done"},
		{OnHold, "OnHold"},
		{MarketState(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("MarketState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewOrderRequestValid(t *testing.T) {
	t.Parallel()

	req, err := NewOrderRequest("tok1", Yes, Buy, 10, 0.97, 100, "expiration-sniping", "corr-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TokenID != "tok1" || req.SizeUSD != 10 || req.Price != 0.97 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestNewOrderRequestRejectsZeroSize(t *testing.T) {
	t.Parallel()

	_, err := NewOrderRequest("tok1", Yes, Buy, 0, 0.97, 100, "strat", "corr")
	if err != ErrInvalidSize {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

func TestNewOrderRequestAcceptsSizeAtCap(t *testing.T) {
	t.Parallel()

	// Boundary behavior (spec §8): size at the cap is accepted, not rejected.
	_, err := NewOrderRequest("tok1", Yes, Buy, 100, 0.97, 100, "strat", "corr")
	if err != nil {
		t.Errorf("unexpected error at cap boundary: %v", err)
	}
}

func TestNewOrderRequestRejectsOutOfRangePrice(t *testing.T) {
	t.Parallel()

	if _, err := NewOrderRequest("tok1", Yes, Buy, 10, 0, 100, "strat", "corr"); err != ErrInvalidPrice {
		t.Errorf("price=0: err = %v, want ErrInvalidPrice", err)
	}
	if _, err := NewOrderRequest("tok1", Yes, Buy, 10, 1, 100, "strat", "corr"); err != ErrInvalidPrice {
		t.Errorf("price=1: err = %v, want ErrInvalidPrice", err)
	}
}

func TestNewOrderRequestRejectsEmptyTokenID(t *testing.T) {
	t.Parallel()

	if _, err := NewOrderRequest("", Yes, Buy, 10, 0.5, 100, "strat", "corr"); err != ErrInvalidTokenID {
		t.Errorf("err = %v, want ErrInvalidTokenID", err)
	}
}

func TestTickSizeDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tick TickSize
		want int
	}{
		{Tick01, 1},
		{Tick001, 2},
		{Tick0001, 3},
		{Tick00001, 4},
		{TickSize("unknown"), 2}, // default
	}

	for _, tt := range tests {
		if got := tt.tick.Decimals(); got != tt.want {
			t.Errorf("TickSize(%q).Decimals() = %d, want %d", tt.tick, got, tt.want)
		}
	}
}

func TestTickSizeAmountDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tick TickSize
		want int
	}{
		{Tick01, 3},
		{Tick001, 4},
		{Tick0001, 5},
		{Tick00001, 6},
		{TickSize("unknown"), 4}, // default
	}

	for _, tt := range tests {
		if got := tt.tick.AmountDecimals(); got != tt.want {
			t.Errorf("TickSize(%q).AmountDecimals() = %d, want %d", tt.tick, got, tt.want)
		}
	}
}
