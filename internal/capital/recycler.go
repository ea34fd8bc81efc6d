package capital

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// recycleEntry is one pending capital release (spec §4.4 Recycler).
type recycleEntry struct {
	tokenID string
	pnl     decimal.Decimal
	readyAt time.Time
}

// Recycler delays releasing a market's capital reservation for a venue-side
// settlement lag, so the allocator never double-counts capital that the
// venue hasn't actually confirmed settled yet. Entries are held in a
// bounded FIFO and released in arrival order as their ready_at elapses.
type Recycler struct {
	allocator *Allocator
	delay     time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending []recycleEntry
	maxLen  int
}

// NewRecycler creates a Recycler that releases entries through allocator
// after delay has elapsed, bounded to maxLen pending entries.
func NewRecycler(allocator *Allocator, delay time.Duration, maxLen int, logger *slog.Logger) *Recycler {
	return &Recycler{
		allocator: allocator,
		delay:     delay,
		logger:    logger.With("component", "recycler"),
		maxLen:    maxLen,
	}
}

// Schedule enqueues tokenID for release at now+delay. If the FIFO is at
// capacity, the oldest entry is force-released immediately to make room —
// the recycler must never silently drop a reservation.
func (r *Recycler) Schedule(tokenID string, pnl decimal.Decimal, now time.Time) {
	r.mu.Lock()
	if len(r.pending) >= r.maxLen {
		oldest := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		r.release(oldest)
		r.mu.Lock()
	}
	r.pending = append(r.pending, recycleEntry{tokenID: tokenID, pnl: pnl, readyAt: now.Add(r.delay)})
	r.mu.Unlock()
}

// Tick releases every entry whose ready_at <= now.
func (r *Recycler) Tick(now time.Time) {
	r.mu.Lock()
	var ready []recycleEntry
	remaining := r.pending[:0:0]
	for _, e := range r.pending {
		if !e.readyAt.After(now) {
			ready = append(ready, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	r.pending = remaining
	r.mu.Unlock()

	for _, e := range ready {
		r.release(e)
	}
}

// ForceRecycle bypasses the delay and releases tokenID immediately if
// queued (spec §4.4 "force_recycle(token_id) bypasses the delay").
func (r *Recycler) ForceRecycle(tokenID string) bool {
	r.mu.Lock()
	var found *recycleEntry
	remaining := r.pending[:0:0]
	for i := range r.pending {
		if r.pending[i].tokenID == tokenID && found == nil {
			e := r.pending[i]
			found = &e
			continue
		}
		remaining = append(remaining, r.pending[i])
	}
	r.pending = remaining
	r.mu.Unlock()

	if found == nil {
		return false
	}
	r.release(*found)
	return true
}

// Len returns the number of entries currently queued for recycling.
func (r *Recycler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Recycler) release(e recycleEntry) {
	if _, err := r.allocator.ReleaseAllocation(e.tokenID, e.pnl); err != nil {
		r.logger.Error("recycler release failed", "token_id", e.tokenID, "error", err)
	}
}

// Run drives Tick on a fixed interval until ctx is cancelled, the
// cooperative-task pattern the rest of the engine uses for background
// loops: a goroutine parked on select over a ticker and ctx.Done.
func (r *Recycler) Run(ctx context.Context, tickInterval time.Duration, now func() time.Time) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(now())
		}
	}
}
