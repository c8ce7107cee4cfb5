// Package scanner implements the pure arbitrage scanner: given the latest
// quote from each venue and the verified mapping for the current
// interval, it either emits an Opportunity or rejects with a reason. It
// holds no state and makes no network calls.
package scanner

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbengine/boxarb/internal/feeedge"
	"github.com/arbengine/boxarb/internal/interval"
	"github.com/arbengine/boxarb/internal/quote"
)

type Venue string

const (
	VenueA Venue = "venue-a"
	VenueB Venue = "venue-b"
)

type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ArbLeg is one side of a candidate box.
type ArbLeg struct {
	Venue         Venue
	Side          Side
	Price         decimal.Decimal
	AvailableSize int64
}

// Opportunity is the scanner's sole output type.
type Opportunity struct {
	IntervalKey interval.Key
	Legs        [2]ArbLeg
	Cost        decimal.Decimal
	EdgeGross   decimal.Decimal
	EdgeNet     decimal.Decimal
	Qty         int64
	CreatedAt   time.Time
	Reason      string
}

// Params bundles the scanner's tunables, sourced from config.
type Params struct {
	StaleQuote        time.Duration
	PriceFloor        decimal.Decimal
	PriceCeil         decimal.Decimal
	MinEdgeNet         decimal.Decimal
	BookDepthFraction float64
	MaxQtyPerTrade    int64
	MinOrderSizeA     int64
	MinOrderSizeB     int64
	FeeScheduleA      feeedge.TakerFeeSchedule
	FeeScheduleB      feeedge.TakerFeeSchedule
	SlippageBuffer    decimal.Decimal
}

// Rejection explains why no Opportunity was emitted. Control flow never
// depends on the string form — callers branch on Kind.
type Rejection struct {
	Kind   string
	Reason string
}

func (r Rejection) Error() string { return fmt.Sprintf("%s: %s", r.Kind, r.Reason) }

func reject(kind, reason string) (*Opportunity, error) {
	return nil, Rejection{Kind: kind, Reason: reason}
}

// Scan implements §4.5. now is passed explicitly so the function stays
// pure and test-deterministic.
func Scan(key interval.Key, qA, qB quote.NormalizedQuote, p Params, now time.Time) (*Opportunity, error) {
	if qA.IsStale(now, p.StaleQuote) || qB.IsStale(now, p.StaleQuote) {
		return reject("stale", "one or both quotes exceed staleness threshold")
	}

	// Box 1: Yes on A, No on B.
	box1Cost := qA.YesAsk.Add(qB.NoAsk)
	// Box 2: Yes on B, No on A.
	box2Cost := qB.YesAsk.Add(qA.NoAsk)

	type candidate struct {
		legs     [2]ArbLeg
		cost     decimal.Decimal
		priceA   decimal.Decimal
		priceB   decimal.Decimal
	}

	c1 := candidate{
		legs: [2]ArbLeg{
			{Venue: VenueA, Side: SideYes, Price: qA.YesAsk, AvailableSize: qA.YesAskSize},
			{Venue: VenueB, Side: SideNo, Price: qB.NoAsk, AvailableSize: qB.NoAskSize},
		},
		cost:   box1Cost,
		priceA: qA.YesAsk,
		priceB: qB.NoAsk,
	}
	c2 := candidate{
		legs: [2]ArbLeg{
			{Venue: VenueB, Side: SideYes, Price: qB.YesAsk, AvailableSize: qB.YesAskSize},
			{Venue: VenueA, Side: SideNo, Price: qA.NoAsk, AvailableSize: qA.NoAskSize},
		},
		cost:   box2Cost,
		priceA: qA.NoAsk,
		priceB: qB.YesAsk,
	}

	chosen := c1
	if c2.cost.LessThan(c1.cost) {
		chosen = c2
	} else if c2.cost.Equal(c1.cost) {
		// Tie-break: deterministic lexical order of venue names, per §4.5.
		if string(c2.legs[0].Venue) < string(chosen.legs[0].Venue) {
			chosen = c2
		}
	}

	for _, leg := range chosen.legs {
		if leg.Price.LessThan(p.PriceFloor) || leg.Price.GreaterThan(p.PriceCeil) {
			return reject("price-bound", fmt.Sprintf("leg price %s outside venue bounds [%s,%s]", leg.Price, p.PriceFloor, p.PriceCeil))
		}
	}

	feeBuf := feeedge.FeeBuffer(chosen.priceA, p.FeeScheduleA, chosen.priceB, p.FeeScheduleB, 1)
	edge := feeedge.ComputeEdge(chosen.legs[0].Price, chosen.legs[1].Price, feeBuf, p.SlippageBuffer)
	if !edge.Profitable || edge.EdgeNet.LessThan(p.MinEdgeNet) {
		return reject("insufficient-edge", fmt.Sprintf("edgeNet=%s below minEdgeNet=%s", edge.EdgeNet, p.MinEdgeNet))
	}

	minLegSize := chosen.legs[0].AvailableSize
	if chosen.legs[1].AvailableSize < minLegSize {
		minLegSize = chosen.legs[1].AvailableSize
	}
	qty := int64(math.Floor(p.BookDepthFraction * float64(minLegSize)))
	if qty > p.MaxQtyPerTrade {
		qty = p.MaxQtyPerTrade
	}
	minOrderSize := p.MinOrderSizeA
	if p.MinOrderSizeB > minOrderSize {
		minOrderSize = p.MinOrderSizeB
	}
	if qty < minOrderSize {
		return reject("insufficient-liquidity", fmt.Sprintf("clamped qty=%d below venue minimum order size=%d", qty, minOrderSize))
	}

	return &Opportunity{
		IntervalKey: key,
		Legs:        chosen.legs,
		Cost:        chosen.cost,
		EdgeGross:   edge.EdgeGross,
		EdgeNet:     edge.EdgeNet,
		Qty:         qty,
		CreatedAt:   now,
		Reason:      fmt.Sprintf("box cost=%s edgeNet=%s qty=%d", chosen.cost, edge.EdgeNet, qty),
	}, nil
}
