// wsfeed.go implements the Venue Client's subscribe_price_ticks operation
// (spec §6) over the venue's public market WebSocket channel.
//
// The feed auto-reconnects with exponential backoff (1s -> 30s max) and
// re-subscribes to every tracked token on reconnection. A read deadline
// (90s) ensures silent server failures are detected within roughly two
// missed pings. Incoming book snapshots and incremental price changes are
// mirrored locally per token; any change to a token's best bid or ask is
// emitted as a types.PriceTick on the returned channel.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	tickBufferSize   = 256
)

// bookMirror is the last-known best bid/ask for one token.
type bookMirror struct {
	bid, ask float64
}

// PriceFeed manages the public market WebSocket connection and mirrors each
// subscribed token's order book locally to derive best-bid/ask ticks.
type PriceFeed struct {
	url  string
	conn *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	booksMu sync.Mutex
	books   map[string]bookMirror

	tickCh chan types.PriceTick

	logger *slog.Logger
}

// NewPriceFeed creates a price-tick feed for the given market WebSocket URL.
func NewPriceFeed(wsURL string, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		books:      make(map[string]bookMirror),
		tickCh:     make(chan types.PriceTick, tickBufferSize),
		logger:     logger.With("component", "venue_ws"),
	}
}

// Ticks returns the read-only channel of price ticks (spec §6
// subscribe_price_ticks).
func (f *PriceFeed) Ticks() <-chan types.PriceTick { return f.tickCh }

// Subscribe adds token IDs to the live subscription.
func (f *PriceFeed) Subscribe(tokenIDs []string) error {
	f.subscribedMu.Lock()
	for _, id := range tokenIDs {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(WSUpdateMsg{Operation: "subscribe", AssetIDs: tokenIDs})
}

// Unsubscribe removes token IDs from the live subscription.
func (f *PriceFeed) Unsubscribe(tokenIDs []string) error {
	f.subscribedMu.Lock()
	for _, id := range tokenIDs {
		delete(f.subscribed, id)
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(WSUpdateMsg{Operation: "unsubscribe", AssetIDs: tokenIDs})
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *PriceFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("price feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *PriceFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *PriceFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("price feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *PriceFeed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(WSSubscribeMsg{Type: "market", AssetIDs: ids})
}

func (f *PriceFeed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message")
		return
	}

	switch envelope.EventType {
	case "book":
		var evt WSBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		f.applyBook(evt)

	case "price_change":
		var evt WSPriceChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal price_change event", "error", err)
			return
		}
		f.applyPriceChange(evt)

	default:
		f.logger.Debug("ignoring event", "type", envelope.EventType)
	}
}

// applyBook replaces a token's mirrored book with a full snapshot and emits
// a tick if the derived best bid/ask moved.
func (f *PriceFeed) applyBook(evt WSBookEvent) {
	bid := parseFloatOrZero(evt.bestBid())
	ask := parseFloatOrZero(evt.bestAsk())
	f.updateMirror(evt.AssetID, bid, ask)
}

// applyPriceChange folds the best-priced change of each side into the
// token's mirrored book; price_change events carry deltas, not full books,
// so each change is treated as a candidate new top-of-book and compared
// against the tracked best.
func (f *PriceFeed) applyPriceChange(evt WSPriceChangeEvent) {
	f.booksMu.Lock()
	mirror := f.books[evt.AssetID]
	f.booksMu.Unlock()

	bid, ask := mirror.bid, mirror.ask
	for _, pc := range evt.PriceChanges {
		price := parseFloatOrZero(pc.Price)
		switch pc.Side {
		case "BUY":
			if price > bid || parseFloatOrZero(pc.Size) == 0 {
				bid = price
			}
		case "SELL":
			if price < ask || ask == 0 || parseFloatOrZero(pc.Size) == 0 {
				ask = price
			}
		}
	}
	f.updateMirror(evt.AssetID, bid, ask)
}

func (f *PriceFeed) updateMirror(tokenID string, bid, ask float64) {
	f.booksMu.Lock()
	prev := f.books[tokenID]
	changed := prev.bid != bid || prev.ask != ask
	f.books[tokenID] = bookMirror{bid: bid, ask: ask}
	f.booksMu.Unlock()

	if !changed || bid == 0 || ask == 0 {
		return
	}

	tick := types.PriceTick{TokenID: tokenID, Bid: bid, Ask: ask, At: time.Now()}
	select {
	case f.tickCh <- tick:
	default:
		f.logger.Warn("tick channel full, dropping tick", "token_id", tokenID)
	}
}

func (f *PriceFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *PriceFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *PriceFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
