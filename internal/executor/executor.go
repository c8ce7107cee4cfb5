// Package executor implements the two-phase commit state machine that
// turns a scanner.Opportunity into a pair of fills or a clean unwind. It
// is driven synchronously by the engine's event loop: every exported
// method runs to completion (possibly blocking on venue round trips
// bounded by context deadlines) rather than spawning goroutines of its
// own, matching the reference engine's single-`Run()`-loop discipline.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arbengine/boxarb/internal/feeedge"
	"github.com/arbengine/boxarb/internal/scanner"
	"github.com/arbengine/boxarb/internal/venue"
)

type State string

const (
	StateIdle          State = "idle"
	StatePlanning      State = "planning"
	StateLegASubmitted State = "leg_a_submitted"
	StateLegAFilled    State = "leg_a_filled"
	StateLegBSubmitted State = "leg_b_submitted"
	StateSuccess       State = "success"
	StateUnwinding     State = "unwinding"
	StateAborted       State = "aborted"
	StateFailed        State = "failed"
)

type Config struct {
	MaxLegDelay     time.Duration
	LegAFillTimeout time.Duration
	LegBFillTimeout time.Duration
	MaxUnhedgedTime time.Duration
	UnwindTimeout   time.Duration

	// FeeScheduleA and FeeScheduleB are the conservative taker fee
	// ceilings for venue A and venue B respectively, applied to actual
	// fill prices/quantities to compute realizedFees. They default to a
	// zero-fee schedule when left nil.
	FeeScheduleA feeedge.TakerFeeSchedule
	FeeScheduleB feeedge.TakerFeeSchedule
}

func zeroFeeSchedule(decimal.Decimal, int64) decimal.Decimal { return decimal.Zero }

func (c Config) withDefaults() Config {
	if c.MaxLegDelay <= 0 {
		c.MaxLegDelay = 500 * time.Millisecond
	}
	if c.LegAFillTimeout <= 0 {
		c.LegAFillTimeout = c.MaxLegDelay
	}
	if c.LegBFillTimeout <= 0 {
		c.LegBFillTimeout = c.MaxLegDelay
	}
	if c.MaxUnhedgedTime <= 0 {
		c.MaxUnhedgedTime = 1500 * time.Millisecond
	}
	if c.UnwindTimeout <= 0 {
		c.UnwindTimeout = 2000 * time.Millisecond
	}
	if c.FeeScheduleA == nil {
		c.FeeScheduleA = zeroFeeSchedule
	}
	if c.FeeScheduleB == nil {
		c.FeeScheduleB = zeroFeeSchedule
	}
	return c
}

// feeForVenue resolves v to this executor's fee schedule for it.
func (e *Executor) feeForVenue(v scanner.Venue) feeedge.TakerFeeSchedule {
	if v == scanner.VenueA {
		return e.cfg.FeeScheduleA
	}
	return e.cfg.FeeScheduleB
}

// Record is the outcome of one Execute call, persisted by the engine for
// the status surface and the event log.
type Record struct {
	Opportunity      scanner.Opportunity
	FinalState       State
	ClientOrderIDA   string
	ClientOrderIDB   string
	FillPriceA       decimal.Decimal
	FillPriceB       decimal.Decimal
	UnwindPrice      decimal.Decimal
	RealizedFees     decimal.Decimal
	RealizedPnL      decimal.Decimal
	ResidualExposure int64
	Reason           string
	StartedAt        time.Time
	EndedAt          time.Time
}

// VenueClients resolves an ArbLeg's venue tag to the concrete client that
// talks to it.
type VenueClients struct {
	A venue.Client
	B venue.Client
}

func (vc VenueClients) forVenue(v scanner.Venue) venue.Client {
	if v == scanner.VenueA {
		return vc.A
	}
	return vc.B
}

// Executor runs the two-phase commit for a single opportunity at a time;
// the caller (the engine) is responsible for holding the busy lock for
// the whole call.
type Executor struct {
	cfg Config
}

func New(cfg Config) *Executor {
	return &Executor{cfg: cfg.withDefaults()}
}

// LegScore ranks a leg by fill-probability per §4.7: depth relative to
// qty first, then a caller-supplied fill-success ratio and latency
// estimate, with a deterministic venue-name tie-break last.
type LegScore struct {
	Leg              scanner.ArbLeg
	DepthRatio       float64 // AvailableSize / qty
	FillSuccessRatio float64
	SubmitToFillMs   float64
}

func chooseLegA(scores [2]LegScore) int {
	best := 0
	for i := 1; i < 2; i++ {
		if better(scores[i], scores[best]) {
			best = i
		}
	}
	return best
}

func better(a, b LegScore) bool {
	if a.DepthRatio != b.DepthRatio {
		return a.DepthRatio > b.DepthRatio
	}
	if a.FillSuccessRatio != b.FillSuccessRatio {
		return a.FillSuccessRatio > b.FillSuccessRatio
	}
	if a.SubmitToFillMs != b.SubmitToFillMs {
		return a.SubmitToFillMs < b.SubmitToFillMs
	}
	return string(a.Leg.Venue) < string(b.Leg.Venue)
}

// Execute drives the opportunity through the full state machine. now is
// supplied by the caller so the elapsed-time checks stay deterministic
// under test. legBestBids holds the current best bid for each of
// opp.Legs, on that leg's own venue and side — whichever leg ends up
// chosen as Leg A, its entry is the reference price a marketable unwind
// sell is expected to clear at.
func (e *Executor) Execute(ctx context.Context, opp scanner.Opportunity, vc VenueClients, scores [2]LegScore, legBestBids [2]decimal.Decimal, now func() time.Time) Record {
	start := now()
	rec := Record{Opportunity: opp, FinalState: StatePlanning, StartedAt: start}

	aIdx := chooseLegA(scores)
	bIdx := 1 - aIdx
	legA := opp.Legs[aIdx]
	legB := opp.Legs[bIdx]
	legABestBid := legBestBids[aIdx]

	clientA := vc.forVenue(legA.Venue)
	coidA := uuid.New().String()
	rec.ClientOrderIDA = coidA

	fokCtx, cancel := context.WithTimeout(ctx, e.cfg.LegAFillTimeout)
	resA, err := clientA.PlaceOrder(fokCtx, venue.OrderRequest{
		ClientOrderID: coidA,
		MarketID:      string(legA.Venue),
		Side:          string(legA.Side),
		Type:          venue.OrderTypeFOK,
		LimitPrice:    legA.Price,
		Qty:           opp.Qty,
	})
	cancel()

	if err != nil || resA.Outcome != venue.OutcomeFilled {
		rec.FinalState = StateAborted
		rec.Reason = "leg a not filled"
		if err != nil {
			rec.Reason = fmt.Sprintf("leg a submission error: %v", err)
		} else {
			rec.Reason = fmt.Sprintf("leg a outcome=%s reason=%s", resA.Outcome, resA.Reason)
		}
		rec.EndedAt = now()
		return rec
	}

	rec.FinalState = StateLegAFilled
	rec.FillPriceA = resA.FillPrice
	legAFilledAt := now()

	// If the elapsed time already exceeds maxLegDelay, skip straight to
	// unwind rather than chasing a stale price; the fill-or-kill type on
	// Leg B itself is relied on to reject an adversely-moved book instead
	// of a separate pre-submission book check.
	if legAFilledAt.Sub(start) > e.cfg.MaxLegDelay {
		return e.unwind(ctx, rec, clientA, legA, resA, legABestBid, start, now, "leg b window exceeded before submission")
	}

	clientB := vc.forVenue(legB.Venue)
	coidB := uuid.New().String()
	rec.ClientOrderIDB = coidB

	bCtx, cancelB := context.WithTimeout(ctx, e.cfg.LegBFillTimeout)
	resB, errB := clientB.PlaceOrder(bCtx, venue.OrderRequest{
		ClientOrderID: coidB,
		MarketID:      string(legB.Venue),
		Side:          string(legB.Side),
		Type:          venue.OrderTypeFOK,
		LimitPrice:    legB.Price,
		Qty:           opp.Qty,
	})
	cancelB()

	unhedgedElapsed := now().Sub(legAFilledAt)
	if errB != nil || resB.Outcome != venue.OutcomeFilled || unhedgedElapsed > e.cfg.MaxUnhedgedTime {
		reason := "leg b not filled"
		if errB != nil {
			reason = fmt.Sprintf("leg b submission error: %v", errB)
		} else if resB.Outcome != venue.OutcomeFilled {
			reason = fmt.Sprintf("leg b outcome=%s reason=%s", resB.Outcome, resB.Reason)
		} else {
			reason = "max unhedged time exceeded"
		}
		return e.unwind(ctx, rec, clientA, legA, resA, legABestBid, start, now, reason)
	}

	rec.FinalState = StateSuccess
	rec.FillPriceB = resB.FillPrice
	rec.RealizedFees = e.feeForVenue(legA.Venue)(resA.FillPrice, opp.Qty).Add(e.feeForVenue(legB.Venue)(resB.FillPrice, opp.Qty))
	rec.RealizedPnL = decimal.NewFromInt(1).Sub(resA.FillPrice).Sub(resB.FillPrice).Sub(rec.RealizedFees)
	rec.Reason = "both legs filled"
	rec.EndedAt = now()
	return rec
}

// unwind sells back the Leg A position at its own venue, same side,
// marketable against legABestBid — the box was never completed, so this
// simply closes out the only position actually held.
func (e *Executor) unwind(ctx context.Context, rec Record, clientA venue.Client, legA scanner.ArbLeg, resA venue.OrderResult, legABestBid decimal.Decimal, start time.Time, now func() time.Time, reason string) Record {
	rec.FinalState = StateUnwinding
	rec.Reason = reason

	uCtx, cancel := context.WithTimeout(ctx, e.cfg.UnwindTimeout)
	resU, err := clientA.PlaceOrder(uCtx, venue.OrderRequest{
		ClientOrderID: uuid.New().String(),
		MarketID:      string(legA.Venue),
		Side:          string(legA.Side),
		Type:          venue.OrderTypeMarket,
		LimitPrice:    legABestBid,
		Qty:           resA.FilledQty,
	})
	cancel()
	rec.EndedAt = now()

	if err != nil || resU.Outcome != venue.OutcomeFilled || resU.FilledQty < resA.FilledQty {
		rec.FinalState = StateFailed
		filled := int64(0)
		if err == nil {
			filled = resU.FilledQty
		}
		rec.ResidualExposure = resA.FilledQty - filled
		rec.Reason = fmt.Sprintf("%s; unwind incomplete, residual=%d", reason, rec.ResidualExposure)
		return rec
	}

	rec.FinalState = StateAborted
	rec.UnwindPrice = resU.FillPrice
	rec.RealizedFees = e.feeForVenue(legA.Venue)(resA.FillPrice, resA.FilledQty).Add(e.feeForVenue(legA.Venue)(resU.FillPrice, resU.FilledQty))
	// Signed P&L, positive for profit: the box was abandoned, so this is
	// just the round-trip loss on the Leg A position, net of fees.
	rec.RealizedPnL = resU.FillPrice.Sub(resA.FillPrice).Sub(rec.RealizedFees)
	rec.Reason = fmt.Sprintf("%s; fully unwound", reason)
	return rec
}
