// Package feeedge computes conservative per-leg cost buffers and net edge
// for a candidate box. Every function here is pure: no clock, no state,
// no I/O.
package feeedge

import "github.com/shopspring/decimal"

// TakerFeeSchedule computes a venue's conservative (always rounded up)
// taker fee for a given fill price and quantity. Implementations are
// venue-specific; the scanner is only ever given the ceiling, never an
// estimate that could understate cost.
type TakerFeeSchedule func(price decimal.Decimal, qty int64) decimal.Decimal

// BpsFeeSchedule returns a TakerFeeSchedule charging feeBps basis points
// of notional, rounded up to the nearest hundredth — the common case for
// both venues in this engine.
func BpsFeeSchedule(feeBps decimal.Decimal) TakerFeeSchedule {
	return func(price decimal.Decimal, qty int64) decimal.Decimal {
		notional := price.Mul(decimal.NewFromInt(qty))
		fee := notional.Mul(feeBps).Div(decimal.NewFromInt(10000))
		return fee.RoundCeil(2)
	}
}

// FeeBuffer is the sum of both venues' conservative taker fee ceilings,
// per §4.4.
func FeeBuffer(priceA decimal.Decimal, feeA TakerFeeSchedule, priceB decimal.Decimal, feeB TakerFeeSchedule, qty int64) decimal.Decimal {
	return feeA(priceA, qty).Add(feeB(priceB, qty))
}

// Edge is the result of ComputeEdge.
type Edge struct {
	Cost        decimal.Decimal
	EdgeGross   decimal.Decimal
	EdgeNet     decimal.Decimal
	Profitable  bool
}

var one = decimal.NewFromInt(1)

// ComputeEdge implements §4.4's pure edge computation.
func ComputeEdge(askA, askB, feeBuf, slipBuf decimal.Decimal) Edge {
	cost := askA.Add(askB)
	edgeGross := one.Sub(cost)
	edgeNet := edgeGross.Sub(feeBuf).Sub(slipBuf)
	return Edge{
		Cost:       cost,
		EdgeGross:  edgeGross,
		EdgeNet:    edgeNet,
		Profitable: edgeNet.IsPositive(),
	}
}
