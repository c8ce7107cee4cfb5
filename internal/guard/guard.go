// Package guard implements the fixed-order pure predicates of §4.6. Each
// guard takes an explicit snapshot of risk state and candidate parameters
// — no guard reads a receiver's mutable field directly — so the whole
// suite stays test-deterministic and composable independent of
// internal/risk's own locking discipline.
package guard

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Result is what every guard returns.
type Result struct {
	Pass   bool
	Reason string
}

func pass() Result          { return Result{Pass: true} }
func fail(reason string) Result { return Result{Pass: false, Reason: reason} }

// Snapshot is the read-only risk state a guard evaluates against. The
// engine assembles it from internal/risk.Manager.Snapshot, the scanned
// opportunity and the position tracker, and passes it in by value.
type Snapshot struct {
	DailyPnL            decimal.Decimal
	MaxDailyLoss        decimal.Decimal
	Now                 time.Time
	CooldownUntil       time.Time
	EdgeNet             decimal.Decimal
	MinEdgeNet          decimal.Decimal
	LegASize            int64
	LegBSize            int64
	RequiredQty         int64
	TotalNotional       decimal.Decimal
	EstCost             decimal.Decimal
	MaxNotional         decimal.Decimal
	OpenOrdersVenueA    int
	OpenOrdersVenueB    int
	MaxOpenOrdersVenue  int
	SumYes              int64
	SumNo               int64
	LegAPrice           decimal.Decimal
	LegBPrice           decimal.Decimal
	PriceFloor          decimal.Decimal
	PriceCeil           decimal.Decimal
	KillSwitchTriggered bool
}

// Guard is one predicate in the fixed-order suite.
type Guard func(s Snapshot) Result

// DailyLoss implements guard 1: dailyPnL > -maxDailyLoss (strict;
// equality trips the kill switch, which is a risk-state side effect
// outside this pure predicate's scope — internal/risk.Manager.RecordFill
// trips it when it records the breaching P&L).
func DailyLoss(s Snapshot) Result {
	if s.KillSwitchTriggered {
		return fail("kill switch already triggered")
	}
	threshold := s.MaxDailyLoss.Neg()
	if !s.DailyPnL.GreaterThan(threshold) {
		return fail(fmt.Sprintf("daily pnl %s breaches -maxDailyLoss %s", s.DailyPnL, threshold))
	}
	return pass()
}

// NotInCooldown implements guard 2.
func NotInCooldown(s Snapshot) Result {
	if s.Now.Before(s.CooldownUntil) {
		return fail(fmt.Sprintf("in cooldown until %s", s.CooldownUntil))
	}
	return pass()
}

// MinimumNetEdge implements guard 3.
func MinimumNetEdge(s Snapshot) Result {
	if s.EdgeNet.LessThan(s.MinEdgeNet) {
		return fail(fmt.Sprintf("edgeNet %s below minEdgeNet %s", s.EdgeNet, s.MinEdgeNet))
	}
	return pass()
}

// PerLegDepth implements guard 4.
func PerLegDepth(s Snapshot) Result {
	if s.LegASize < s.RequiredQty || s.LegBSize < s.RequiredQty {
		return fail(fmt.Sprintf("available depth (%d,%d) below required qty %d", s.LegASize, s.LegBSize, s.RequiredQty))
	}
	return pass()
}

// NotionalCap implements guard 5.
func NotionalCap(s Snapshot) Result {
	if s.TotalNotional.Add(s.EstCost).GreaterThan(s.MaxNotional) {
		return fail(fmt.Sprintf("notional %s + estCost %s exceeds cap %s", s.TotalNotional, s.EstCost, s.MaxNotional))
	}
	return pass()
}

// OpenOrderCap implements guard 6.
func OpenOrderCap(s Snapshot) Result {
	if s.OpenOrdersVenueA >= s.MaxOpenOrdersVenue || s.OpenOrdersVenueB >= s.MaxOpenOrdersVenue {
		return fail(fmt.Sprintf("open orders (%d,%d) at or above per-venue cap %d", s.OpenOrdersVenueA, s.OpenOrdersVenueB, s.MaxOpenOrdersVenue))
	}
	return pass()
}

// PositionBalance implements guard 7.
func PositionBalance(s Snapshot) Result {
	if s.SumYes != s.SumNo {
		return fail(fmt.Sprintf("position imbalance: yes=%d no=%d", s.SumYes, s.SumNo))
	}
	return pass()
}

// PriceBounds implements guard 8.
func PriceBounds(s Snapshot) Result {
	for _, p := range []decimal.Decimal{s.LegAPrice, s.LegBPrice} {
		if p.LessThan(s.PriceFloor) || p.GreaterThan(s.PriceCeil) {
			return fail(fmt.Sprintf("leg price %s outside [%s,%s]", p, s.PriceFloor, s.PriceCeil))
		}
	}
	return pass()
}

// Suite is the fixed evaluation order from §4.6.
var Suite = []Guard{
	DailyLoss,
	NotInCooldown,
	MinimumNetEdge,
	PerLegDepth,
	NotionalCap,
	OpenOrderCap,
	PositionBalance,
	PriceBounds,
}

// Evaluate runs the suite in order and returns the first failure, or a
// passing Result if every guard passes.
func Evaluate(s Snapshot) Result {
	for _, g := range Suite {
		if r := g(s); !r.Pass {
			return r
		}
	}
	return pass()
}
