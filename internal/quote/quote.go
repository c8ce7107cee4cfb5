// Package quote normalizes per-venue order book updates into a single
// NormalizedQuote model shared by the scanner, guards, and executor.
package quote

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedQuote is the unified, venue-agnostic view of both outcomes'
// top of book.
type NormalizedQuote struct {
	YesBid, YesAsk         decimal.Decimal
	NoBid, NoAsk           decimal.Decimal
	YesBidSize, YesAskSize int64
	NoBidSize, NoAskSize   int64
	TsExchange             time.Time
	TsLocal                time.Time
}

// IsStale reports whether the quote is older than maxAge as observed at
// the local clock.
func (q NormalizedQuote) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(q.TsLocal) > maxAge
}

// sanityTolerance is the non-blocking consistency check from §4.3: a
// consistent book has yesAsk+noAsk >= 1; large deviations usually mean
// stale data rather than a genuine arbitrage, but the scanner is allowed
// to act on it regardless, so this is observational only.
const sanityTolerance = 0.05

// SanityDeviation returns |yesAsk + noAsk - 1|, non-blocking per §4.3.
func (q NormalizedQuote) SanityDeviation() float64 {
	sum, _ := q.YesAsk.Add(q.NoAsk).Float64()
	dev := sum - 1.0
	if dev < 0 {
		dev = -dev
	}
	return dev
}

// WithinSanityTolerance reports whether SanityDeviation is within the
// non-blocking tolerance band.
func (q NormalizedQuote) WithinSanityTolerance() bool {
	return q.SanityDeviation() <= sanityTolerance
}

// ExplicitBookUpdate is the input shape for venues that publish both
// sides of the book directly (bids and asks for both outcomes).
type ExplicitBookUpdate struct {
	YesBid, YesAsk         decimal.Decimal
	NoBid, NoAsk           decimal.Decimal
	YesBidSize, YesAskSize int64
	NoBidSize, NoAskSize   int64
	TsExchange             time.Time
}

// NormalizeExplicit validates and converts an explicit-book update.
// Per §4.3: reject the update if any side has zero depth or a crossed
// book (bid > ask).
func NormalizeExplicit(u ExplicitBookUpdate, now time.Time) (NormalizedQuote, error) {
	if u.YesBidSize <= 0 || u.YesAskSize <= 0 || u.NoBidSize <= 0 || u.NoAskSize <= 0 {
		return NormalizedQuote{}, fmt.Errorf("zero depth on at least one side")
	}
	if u.YesBid.GreaterThan(u.YesAsk) {
		return NormalizedQuote{}, fmt.Errorf("crossed yes book: bid=%s ask=%s", u.YesBid, u.YesAsk)
	}
	if u.NoBid.GreaterThan(u.NoAsk) {
		return NormalizedQuote{}, fmt.Errorf("crossed no book: bid=%s ask=%s", u.NoBid, u.NoAsk)
	}
	return NormalizedQuote{
		YesBid: u.YesBid, YesAsk: u.YesAsk,
		NoBid: u.NoBid, NoAsk: u.NoAsk,
		YesBidSize: u.YesBidSize, YesAskSize: u.YesAskSize,
		NoBidSize: u.NoBidSize, NoAskSize: u.NoAskSize,
		TsExchange: u.TsExchange,
		TsLocal:    now,
	}, nil
}

var one = decimal.NewFromInt(1)

// NormalizeFromLadders derives a NormalizedQuote for a bid-only venue
// from its two maintained bid ladders, applying the implied-ask identity
// from §4.3: ask(side) = 1 - bestBid(opposite_side). A missing opposite
// side yields ask=1.0, size=0.
func NormalizeFromLadders(yes, no *Ladder, tsExchange, now time.Time) NormalizedQuote {
	yesBid, yesBidSize, yesOK := yes.Best()
	noBid, noBidSize, noOK := no.Best()

	q := NormalizedQuote{
		YesBid: yesBid, YesBidSize: yesBidSize,
		NoBid: noBid, NoBidSize: noBidSize,
		TsExchange: tsExchange,
		TsLocal:    now,
	}
	if noOK {
		q.YesAsk = one.Sub(noBid)
		q.YesAskSize = noBidSize
	} else {
		q.YesAsk = one
		q.YesAskSize = 0
	}
	if yesOK {
		q.NoAsk = one.Sub(yesBid)
		q.NoAskSize = yesBidSize
	} else {
		q.NoAsk = one
		q.NoAskSize = 0
	}
	return q
}
