// Package venue adapts the core engine to the prediction-market CLOB used
// for price discovery and order execution (spec §6 "Venue Client
// (consumed)"). It owns every wire-format detail — REST payload shapes,
// WebSocket event envelopes, L1/L2 auth — behind the four-method
// VenueClient interface the rest of the engine depends on.
package venue

import (
	"strconv"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// PriceLevel is one (price, size) pair in an order book side.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookResponse is the REST response for GET /book.
type BookResponse struct {
	Market       string       `json:"market"`
	AssetID      string       `json:"asset_id"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	Hash         string       `json:"hash"`
	Timestamp    string       `json:"timestamp"`
	MinOrderSize string       `json:"min_order_size"`
	TickSize     string       `json:"tick_size"`
}

// WSBookEvent is a full order book snapshot pushed over the market channel.
type WSBookEvent struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Buys      []PriceLevel `json:"buys"`
	Sells     []PriceLevel `json:"sells"`
}

// bestBid returns the highest bid price, or "" if empty.
func (e WSBookEvent) bestBid() string {
	return bestPrice(e.Buys, true)
}

// bestAsk returns the lowest ask price, or "" if empty.
func (e WSBookEvent) bestAsk() string {
	return bestPrice(e.Sells, false)
}

// WSPriceChange is one incremental book update within a price_change event.
type WSPriceChange struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Size  string `json:"size"`
}

// WSPriceChangeEvent carries incremental book deltas for a market.
type WSPriceChangeEvent struct {
	EventType     string          `json:"event_type"`
	Market        string          `json:"market"`
	AssetID       string          `json:"asset_id"`
	Timestamp     string          `json:"timestamp"`
	PriceChanges  []WSPriceChange `json:"price_changes"`
}

// WSSubscribeMsg is the initial subscription message sent on connect.
type WSSubscribeMsg struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids,omitempty"`
	Auth     *WSAuth  `json:"auth,omitempty"`
}

// WSUpdateMsg adds or removes asset IDs from an existing subscription.
type WSUpdateMsg struct {
	Operation string   `json:"operation"`
	AssetIDs  []string `json:"assets_ids,omitempty"`
}

// WSAuth carries L2 credentials for the authenticated user channel. The
// market channel subscription leaves this nil.
type WSAuth struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// orderPayload is the REST request body for a fill-or-kill order post.
type orderPayload struct {
	Order     types.SignedOrder `json:"order"`
	Owner     string            `json:"owner"`
	OrderType string            `json:"orderType"`
}

// postOrderResponse is the venue's raw response to POST /order.
type postOrderResponse struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
}

// balanceResponse is the raw response to GET /balance-allowance.
type balanceResponse struct {
	Balance string `json:"balance"`
}

func bestPrice(levels []PriceLevel, highest bool) string {
	if len(levels) == 0 {
		return ""
	}
	best := levels[0]
	bestVal, _ := strconv.ParseFloat(best.Price, 64)
	for _, l := range levels[1:] {
		v, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		if (highest && v > bestVal) || (!highest && v < bestVal) {
			best, bestVal = l, v
		}
	}
	return best.Price
}
