// Package capital implements the CapitalAllocator and Recycler (spec §4.4,
// C5): the single source of truth for bankroll and per-market reservations.
// Every operation is linearized by one mutex, following the same
// single-lock bookkeeping discipline internal/strategy.Inventory uses for
// its weighted-average cost basis, applied here to bankroll instead of
// position size.
package capital

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Result is the typed outcome of a RequestAllocation call (spec §4.4).
type Result int

const (
	Success Result = iota
	InsufficientCapital
	MarketLimitExceeded
	TotalLimitExceeded
	AlreadyAllocated
	InvalidAmount
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case InsufficientCapital:
		return "InsufficientCapital"
	case MarketLimitExceeded:
		return "MarketLimitExceeded"
	case TotalLimitExceeded:
		return "TotalLimitExceeded"
	case AlreadyAllocated:
		return "AlreadyAllocated"
	case InvalidAmount:
		return "InvalidAmount"
	default:
		return "UnknownResult"
	}
}

// Config tunes allocation caps and order splitting (spec §6).
type Config struct {
	MaxExposurePerMarketPercent  float64
	MaxExposurePerMarketAbsolute float64
	MaxTotalExposurePercent      float64
	OrderSplitThreshold          float64
	OrderSplitCount              int
}

// Allocator is the CapitalAllocator (C5). It exclusively owns bankroll and
// the reservation map (spec §3 "Ownership").
type Allocator struct {
	cfg Config

	mu             sync.Mutex
	bankroll       decimal.Decimal
	reservations   map[string]decimal.Decimal // token_id -> reserved amount
	totalReserved  decimal.Decimal
}

// New creates an Allocator with the given initial bankroll.
func New(cfg Config, initialBankroll decimal.Decimal) *Allocator {
	return &Allocator{
		cfg:          cfg,
		bankroll:     initialBankroll,
		reservations: make(map[string]decimal.Decimal),
	}
}

// RequestAllocation reserves up to `amount` against tokenID. The granted
// amount is min(requested, per-market effective cap minus existing
// reservation, total headroom, available capital); callers must use the
// returned amount, not the requested one (spec §4.4).
func (a *Allocator) RequestAllocation(tokenID string, amount decimal.Decimal) (Result, decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount.Sign() <= 0 {
		return InvalidAmount, decimal.Zero
	}
	if _, ok := a.reservations[tokenID]; ok {
		return AlreadyAllocated, decimal.Zero
	}

	available := a.bankroll.Sub(a.totalReserved)

	perMarketCap := decimal.Min(
		a.bankroll.Mul(decimal.NewFromFloat(a.cfg.MaxExposurePerMarketPercent)),
		decimal.NewFromFloat(a.cfg.MaxExposurePerMarketAbsolute),
	)
	if perMarketCap.LessThanOrEqual(decimal.Zero) {
		return MarketLimitExceeded, decimal.Zero
	}

	totalCap := a.bankroll.Mul(decimal.NewFromFloat(a.cfg.MaxTotalExposurePercent))
	totalHeadroom := totalCap.Sub(a.totalReserved)
	if totalHeadroom.LessThanOrEqual(decimal.Zero) {
		return TotalLimitExceeded, decimal.Zero
	}

	granted := decimal.Min(amount, perMarketCap)
	granted = decimal.Min(granted, totalHeadroom)
	granted = decimal.Min(granted, available)

	if granted.LessThanOrEqual(decimal.Zero) {
		return InsufficientCapital, decimal.Zero
	}

	a.reservations[tokenID] = granted
	a.totalReserved = a.totalReserved.Add(granted)
	return Success, granted
}

// ReleaseAllocation releases tokenID's reservation and applies pnl to the
// bankroll atomically. Returns the amount that was reserved, or an error if
// nothing was reserved for tokenID.
func (a *Allocator) ReleaseAllocation(tokenID string, pnl decimal.Decimal) (decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reserved, ok := a.reservations[tokenID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no allocation reserved for %s", tokenID)
	}

	delete(a.reservations, tokenID)
	a.totalReserved = a.totalReserved.Sub(reserved)
	a.bankroll = a.bankroll.Add(pnl)
	return reserved, nil
}

// Restore directly injects a reservation recovered from a crash-safety
// checkpoint, bypassing the cap checks RequestAllocation enforces — the
// amount was already granted before the restart, so re-validating it
// against current caps would risk rejecting capital that is, in fact,
// already spoken for on the venue. Callers must only use this at startup,
// before any concurrent RequestAllocation calls begin.
func (a *Allocator) Restore(tokenID string, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount.Sign() <= 0 {
		return
	}
	a.reservations[tokenID] = amount
	a.totalReserved = a.totalReserved.Add(amount)
}

// SplitOrder divides an amount above order_split_threshold into
// order_split_count child sizes, evenly split with the remainder folded
// into the last child (spec §4.4). Amounts at or below the threshold are
// returned as a single-element slice.
func (a *Allocator) SplitOrder(amount decimal.Decimal) []decimal.Decimal {
	if amount.LessThanOrEqual(decimal.NewFromFloat(a.cfg.OrderSplitThreshold)) || a.cfg.OrderSplitCount <= 1 {
		return []decimal.Decimal{amount}
	}

	n := int64(a.cfg.OrderSplitCount)
	base := amount.Div(decimal.NewFromInt(n)).Truncate(2)
	children := make([]decimal.Decimal, n)
	sum := decimal.Zero
	for i := int64(0); i < n-1; i++ {
		children[i] = base
		sum = sum.Add(base)
	}
	children[n-1] = amount.Sub(sum)
	return children
}

// UpdateBankroll applies an external deposit/withdrawal delta. Forbidden
// while any reservation is pending, matching spec §4.4's "returns error"
// requirement — a delta that changed the denominator mid-reservation would
// invalidate every outstanding grant's cap math.
func (a *Allocator) UpdateBankroll(delta decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.reservations) > 0 {
		return fmt.Errorf("cannot update bankroll while %d reservation(s) are pending", len(a.reservations))
	}
	a.bankroll = a.bankroll.Add(delta)
	return nil
}

// Bankroll returns the current bankroll.
func (a *Allocator) Bankroll() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bankroll
}

// AvailableCapital returns bankroll minus currently outstanding reservations.
func (a *Allocator) AvailableCapital() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bankroll.Sub(a.totalReserved)
}

// ReservedFor returns the amount currently reserved against tokenID, zero
// if none.
func (a *Allocator) ReservedFor(tokenID string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reservations[tokenID]
}
