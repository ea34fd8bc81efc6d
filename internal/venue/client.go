package venue

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// VenueClient is the Venue Client contract the core engine depends on
// (spec §6 "Venue Client (consumed)"). The executor and engine only ever
// see this interface, never the REST/WS types beneath it.
type VenueClient interface {
	SubscribePriceTicks(ctx context.Context, tokenIDs []string) (<-chan types.PriceTick, error)
	CreateMarketOrder(ctx context.Context, tokenID string, amountUSD float64, side types.Action, negRisk bool, tickSize types.TickSize) (types.SignedOrder, error)
	PostOrder(ctx context.Context, order types.SignedOrder) (types.PostOrderResult, error)
	GetUSDCBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error)
}

// Adapter wires the REST client and price feed together behind VenueClient.
// It is the only concrete type the rest of the engine constructs.
type Adapter struct {
	rest *Client
	feed *PriceFeed
}

// NewAdapter builds a venue Adapter from config, deriving L2 credentials
// over L1 auth first if none are pre-configured.
func NewAdapter(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Adapter, error) {
	auth, err := NewAuth(cfg)
	if err != nil {
		return nil, err
	}

	rest := NewClient(cfg, auth, logger)
	if !auth.HasL2Credentials() && !cfg.DryRun {
		if _, err := rest.DeriveAPIKey(ctx); err != nil {
			return nil, err
		}
	}

	return &Adapter{
		rest: rest,
		feed: NewPriceFeed(cfg.Venue.WSMarketURL, logger),
	}, nil
}

// SubscribePriceTicks starts (or extends) the market WebSocket feed for
// tokenIDs and returns the shared tick channel.
func (a *Adapter) SubscribePriceTicks(ctx context.Context, tokenIDs []string) (<-chan types.PriceTick, error) {
	if err := a.feed.Subscribe(tokenIDs); err != nil {
		return nil, err
	}
	return a.feed.Ticks(), nil
}

// CreateMarketOrder delegates to the REST client.
func (a *Adapter) CreateMarketOrder(ctx context.Context, tokenID string, amountUSD float64, side types.Action, negRisk bool, tickSize types.TickSize) (types.SignedOrder, error) {
	return a.rest.CreateMarketOrder(ctx, tokenID, amountUSD, side, negRisk, tickSize)
}

// PostOrder delegates to the REST client.
func (a *Adapter) PostOrder(ctx context.Context, order types.SignedOrder) (types.PostOrderResult, error) {
	return a.rest.PostOrder(ctx, order)
}

// GetUSDCBalance delegates to the REST client.
func (a *Adapter) GetUSDCBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	return a.rest.GetUSDCBalance(ctx, walletAddress)
}

// Run drives the price feed's connection lifecycle until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	return a.feed.Run(ctx)
}

var _ VenueClient = (*Adapter)(nil)
