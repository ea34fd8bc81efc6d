package venue

import (
	"testing"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

func TestPriceAndSizeFromBookBuyUsesBestAsk(t *testing.T) {
	t.Parallel()
	book := &BookResponse{
		Asks: []PriceLevel{{Price: "0.55", Size: "100"}, {Price: "0.52", Size: "50"}},
		Bids: []PriceLevel{{Price: "0.48", Size: "100"}},
	}
	price, size, err := priceAndSizeFromBook(book, types.Buy, 26)
	if err != nil {
		t.Fatalf("priceAndSizeFromBook: %v", err)
	}
	if price != 0.52 {
		t.Fatalf("expected fill at best ask 0.52, got %v", price)
	}
	if size != 50 {
		t.Fatalf("expected size 26/0.52=50, got %v", size)
	}
}

func TestPriceAndSizeFromBookSellUsesBestBid(t *testing.T) {
	t.Parallel()
	book := &BookResponse{
		Bids: []PriceLevel{{Price: "0.40", Size: "100"}, {Price: "0.45", Size: "50"}},
	}
	price, _, err := priceAndSizeFromBook(book, types.Sell, 10)
	if err != nil {
		t.Fatalf("priceAndSizeFromBook: %v", err)
	}
	if price != 0.45 {
		t.Fatalf("expected fill at best bid 0.45, got %v", price)
	}
}

func TestPriceAndSizeFromBookEmptySideErrors(t *testing.T) {
	t.Parallel()
	book := &BookResponse{}
	if _, _, err := priceAndSizeFromBook(book, types.Buy, 10); err == nil {
		t.Fatalf("expected error for empty asks")
	}
	if _, _, err := priceAndSizeFromBook(book, types.Sell, 10); err == nil {
		t.Fatalf("expected error for empty bids")
	}
}

func TestPriceToAmountsBuyVsSell(t *testing.T) {
	t.Parallel()
	makerBuy, takerBuy := PriceToAmounts(0.5, 20, types.Buy, types.Tick001)
	if makerBuy.Int64() != 10_000_000 {
		t.Fatalf("expected buy maker amount 10 USDC scaled, got %s", makerBuy)
	}
	if takerBuy.Int64() != 20_000_000 {
		t.Fatalf("expected buy taker amount 20 tokens scaled, got %s", takerBuy)
	}

	makerSell, takerSell := PriceToAmounts(0.5, 20, types.Sell, types.Tick001)
	if makerSell.Int64() != 20_000_000 {
		t.Fatalf("expected sell maker amount 20 tokens scaled, got %s", makerSell)
	}
	if takerSell.Int64() != 10_000_000 {
		t.Fatalf("expected sell taker amount 10 USDC scaled, got %s", takerSell)
	}
}
