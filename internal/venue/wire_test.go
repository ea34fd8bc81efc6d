package venue

import "testing"

func TestBestPricePicksHighestForBids(t *testing.T) {
	t.Parallel()
	levels := []PriceLevel{{Price: "0.40", Size: "10"}, {Price: "0.55", Size: "5"}, {Price: "0.50", Size: "2"}}
	if got := bestPrice(levels, true); got != "0.55" {
		t.Fatalf("expected best bid 0.55, got %s", got)
	}
}

func TestBestPricePicksLowestForAsks(t *testing.T) {
	t.Parallel()
	levels := []PriceLevel{{Price: "0.60", Size: "10"}, {Price: "0.52", Size: "5"}, {Price: "0.58", Size: "2"}}
	if got := bestPrice(levels, false); got != "0.52" {
		t.Fatalf("expected best ask 0.52, got %s", got)
	}
}

func TestBestPriceEmptyReturnsEmptyString(t *testing.T) {
	t.Parallel()
	if got := bestPrice(nil, true); got != "" {
		t.Fatalf("expected empty string for empty levels, got %q", got)
	}
}

func TestWSBookEventBestBidAsk(t *testing.T) {
	t.Parallel()
	evt := WSBookEvent{
		Buys:  []PriceLevel{{Price: "0.48", Size: "10"}, {Price: "0.50", Size: "3"}},
		Sells: []PriceLevel{{Price: "0.57", Size: "4"}, {Price: "0.53", Size: "6"}},
	}
	if evt.bestBid() != "0.50" {
		t.Fatalf("expected best bid 0.50, got %s", evt.bestBid())
	}
	if evt.bestAsk() != "0.53" {
		t.Fatalf("expected best ask 0.53, got %s", evt.bestAsk())
	}
}
