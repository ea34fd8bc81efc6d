// Package venue's REST client implements the Venue Client's synchronous
// operations: create_market_order, post_order (FOK), and get_usdc_balance
// (spec §6 "Venue Client (consumed)").
//
// Every request is retried on transport and 5xx errors. Book reads and
// order posts are rate-limited via per-category TokenBuckets; order posts
// carry L2 HMAC headers, API-key derivation uses L1 headers, and book and
// balance reads are sent without auth headers.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ChudiNnorukam/predictive-edge-bot/internal/config"
	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Client is the prediction-market CLOB REST client the executor dispatches
// through. It implements the spec's Venue Client contract.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.Venue.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger.With("component", "venue_rest"),
	}
}

// GetOrderBook fetches the order book for a single token, used by
// CreateMarketOrder to price the fill-or-kill order at the venue's current
// best quote.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// CreateMarketOrder builds the fill-or-kill order the executor will post
// for a given token/amount/side, pricing it off the venue's current best
// quote on that side (spec §6 create_market_order). No EIP-712 order
// signature is computed: the returned order's Salt and Signature are empty.
func (c *Client) CreateMarketOrder(ctx context.Context, tokenID string, amountUSD float64, side types.Action, negRisk bool, tickSize types.TickSize) (types.SignedOrder, error) {
	book, err := c.GetOrderBook(ctx, tokenID)
	if err != nil {
		return types.SignedOrder{}, fmt.Errorf("create market order: %w", err)
	}

	price, size, err := priceAndSizeFromBook(book, side, amountUSD)
	if err != nil {
		return types.SignedOrder{}, fmt.Errorf("create market order: %w", err)
	}

	makerAmt, takerAmt := PriceToAmounts(price, size, side, tickSize)
	expiration := time.Now().Add(2 * time.Minute).Unix()

	return types.SignedOrder{
		Maker:         c.auth.FunderAddress().Hex(),
		Signer:        c.auth.Address().Hex(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       tokenID,
		MakerAmount:   makerAmt,
		TakerAmount:   takerAmt,
		Side:          side,
		Expiration:    fmt.Sprintf("%d", expiration),
		Nonce:         "0",
		FeeRateBps:    "0",
		SignatureType: c.auth.sigType,
	}, nil
}

// priceAndSizeFromBook derives a fill price and token size for amountUSD of
// notional against the resting liquidity on the opposite side of the book.
func priceAndSizeFromBook(book *BookResponse, side types.Action, amountUSD float64) (price, size float64, err error) {
	var top PriceLevel
	if side == types.Buy {
		if len(book.Asks) == 0 {
			return 0, 0, fmt.Errorf("no asks available")
		}
		top = bestLevel(book.Asks, false)
	} else {
		if len(book.Bids) == 0 {
			return 0, 0, fmt.Errorf("no bids available")
		}
		top = bestLevel(book.Bids, true)
	}

	p := parseFloatOrZero(top.Price)
	if p <= 0 {
		return 0, 0, fmt.Errorf("invalid top-of-book price %q", top.Price)
	}
	return p, amountUSD / p, nil
}

func bestLevel(levels []PriceLevel, highest bool) PriceLevel {
	best := levels[0]
	bestVal := parseFloatOrZero(best.Price)
	for _, l := range levels[1:] {
		v := parseFloatOrZero(l.Price)
		if (highest && v > bestVal) || (!highest && v < bestVal) {
			best, bestVal = l, v
		}
	}
	return best
}

func parseFloatOrZero(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}

// PostOrder submits a signed fill-or-kill order (spec §6 post_order).
// In dry-run mode no HTTP call is made and a synthetic acceptance is
// returned.
func (c *Client) PostOrder(ctx context.Context, order types.SignedOrder) (types.PostOrderResult, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would post order", "token_id", order.TokenID, "side", order.Side)
		return types.PostOrderResult{Accepted: true, VenueOrderID: "dry-run-" + order.TokenID}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.PostOrderResult{}, err
	}

	payload := orderPayload{
		Order:     order,
		Owner:     c.auth.creds.ApiKey,
		OrderType: "FOK",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return types.PostOrderResult{}, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/order", string(body))
	if err != nil {
		return types.PostOrderResult{}, fmt.Errorf("l2 headers: %w", err)
	}

	var result postOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return types.PostOrderResult{}, fmt.Errorf("post order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.PostOrderResult{Accepted: false, RejectReason: resp.String()}, nil
	}
	if !result.Success {
		return types.PostOrderResult{Accepted: false, RejectReason: result.ErrorMsg}, nil
	}
	return types.PostOrderResult{Accepted: true, VenueOrderID: result.OrderID}, nil
}

// GetUSDCBalance fetches the available USDC balance for walletAddress
// (spec §6 get_usdc_balance).
func (c *Client) GetUSDCBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	var result balanceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", walletAddress).
		SetResult(&result).
		Get("/balance-allowance")
	if err != nil {
		return decimal.Zero, fmt.Errorf("get usdc balance: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("get usdc balance: status %d: %s", resp.StatusCode(), resp.String())
	}
	balance, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", result.Balance, err)
	}
	return balance, nil
}

// DeriveAPIKey derives L2 API credentials via L1 authentication.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}
