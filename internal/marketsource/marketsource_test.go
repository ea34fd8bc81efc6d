package marketsource

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource() *Source {
	cfg := config.Config{
		MarketSource: config.MarketSourceConfig{
			MinLiquidity:   1000,
			MinVolume24h:   500,
			MaxEndDateDays: 7,
			ExcludeSlugs:   []string{"excluded-one"},
		},
	}
	return New(cfg, testLogger())
}

func sampleMarket(tokenIDsJSON string) gammaMarket {
	return gammaMarket{
		ID:                    "m1",
		Question:              "Will it happen?",
		ConditionID:           "cond1",
		Slug:                  "will-it-happen",
		Active:                true,
		Closed:                false,
		AcceptingOrders:       true,
		EnableOrderBook:       true,
		EndDate:               time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		Liquidity:             "5000",
		Volume24hr:            2000,
		ClobTokenIds:          tokenIDsJSON,
		OrderPriceMinTickSize: 0.01,
	}
}

func TestFilterAcceptsEligibleMarket(t *testing.T) {
	t.Parallel()
	s := newTestSource()
	refs := s.filter([]gammaMarket{sampleMarket(`["tok-yes","tok-no"]`)})
	if len(refs) != 1 {
		t.Fatalf("expected 1 eligible market, got %d", len(refs))
	}
	if refs[0].TokenID != "tok-yes" {
		t.Fatalf("expected yes token id, got %s", refs[0].TokenID)
	}
	if refs[0].TickSize != types.Tick001 {
		t.Fatalf("expected tick size 0.01, got %s", refs[0].TickSize)
	}
}

func TestFilterRejectsInsufficientLiquidity(t *testing.T) {
	t.Parallel()
	s := newTestSource()
	m := sampleMarket(`["tok-yes","tok-no"]`)
	m.Liquidity = "10"
	refs := s.filter([]gammaMarket{m})
	if len(refs) != 0 {
		t.Fatalf("expected market to be filtered out for low liquidity, got %d", len(refs))
	}
}

func TestFilterRejectsExcludedSlug(t *testing.T) {
	t.Parallel()
	s := newTestSource()
	m := sampleMarket(`["tok-yes","tok-no"]`)
	m.Slug = "excluded-one"
	refs := s.filter([]gammaMarket{m})
	if len(refs) != 0 {
		t.Fatalf("expected excluded slug to be filtered out, got %d", len(refs))
	}
}

func TestFilterRejectsEndDateOutsideWindow(t *testing.T) {
	t.Parallel()
	s := newTestSource()
	m := sampleMarket(`["tok-yes","tok-no"]`)
	m.EndDate = time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	refs := s.filter([]gammaMarket{m})
	if len(refs) != 0 {
		t.Fatalf("expected far-future end date to be filtered out, got %d", len(refs))
	}
}

func TestFilterRejectsMissingTokenIDs(t *testing.T) {
	t.Parallel()
	s := newTestSource()
	refs := s.filter([]gammaMarket{sampleMarket("")})
	if len(refs) != 0 {
		t.Fatalf("expected missing token ids to be filtered out, got %d", len(refs))
	}
}

func TestFilterRejectsInactiveOrClosed(t *testing.T) {
	t.Parallel()
	s := newTestSource()
	inactive := sampleMarket(`["tok-yes","tok-no"]`)
	inactive.Active = false
	closed := sampleMarket(`["tok-yes","tok-no"]`)
	closed.Closed = true
	refs := s.filter([]gammaMarket{inactive, closed})
	if len(refs) != 0 {
		t.Fatalf("expected inactive/closed markets to be filtered out, got %d", len(refs))
	}
}

func TestTickSizeFromFloat(t *testing.T) {
	t.Parallel()
	cases := map[float64]types.TickSize{
		0.1:    types.Tick01,
		0.01:   types.Tick001,
		0.001:  types.Tick0001,
		0.0001: types.Tick00001,
		0.5:    types.Tick001,
	}
	for in, want := range cases {
		if got := tickSizeFromFloat(in); got != want {
			t.Errorf("tickSizeFromFloat(%v) = %s, want %s", in, got, want)
		}
	}
}
