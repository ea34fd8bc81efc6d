// Package payout centralizes the settlement arithmetic the distilled spec
// left ambiguous (spec §9 "Payout arithmetic"): one function computes
// realized P&L for a filled buy of a binary outcome token, so every caller
// shares the same fee model instead of each re-deriving the edge-to-P&L
// conversion independently.
package payout

import "github.com/shopspring/decimal"

// FeeModel is the single configurable fee schedule applied before rounding.
// A zero value disables fees — no venue-specific structure is assumed beyond
// a flat basis-point haircut on the gross payout, which keeps the model
// centralized and swappable rather than guessed at silently.
type FeeModel struct {
	FeeBps int64 // basis points deducted from the gross payout, e.g. 200 = 2%
}

// Settle computes realized P&L for a Filled buy of sizeUSD at price that
// resolves to the purchased outcome (worth $1/unit at settlement).
//
//	units bought  = sizeUSD / price
//	gross payout  = units * 1.0
//	gross P&L     = gross payout - sizeUSD = sizeUSD * (1-price)/price
//	fee           = gross payout * feeBps/10000
//	realized P&L  = gross P&L - fee, truncated to 2 decimal places
//
// Truncation rather than round-half-up matches the reference scenario in
// spec §8 (bankroll 1,000.00 -> 1,000.30 on a 10.00 buy at 0.97): the
// "simplified payout model" the spec calls for there is conservative about
// realized P&L, never rounding a settlement up in the trader's favor.
//
// sizeUSD and price must already be validated (price in (0,1), sizeUSD > 0);
// Settle does not re-validate them, matching the spec's "rejection at
// construction is a programmer error" posture for OrderRequest.
func (f FeeModel) Settle(sizeUSD, price float64) decimal.Decimal {
	size := decimal.NewFromFloat(sizeUSD)
	p := decimal.NewFromFloat(price)

	units := size.Div(p)
	grossPnL := units.Sub(size)

	fee := decimal.Zero
	if f.FeeBps > 0 {
		grossPayout := units
		fee = grossPayout.Mul(decimal.NewFromInt(f.FeeBps)).Div(decimal.NewFromInt(10000))
	}

	return grossPnL.Sub(fee).Truncate(2)
}

// Default is the zero-fee model used when configuration does not specify one.
var Default = FeeModel{}
