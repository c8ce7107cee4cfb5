package guard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func okSnapshot(now time.Time) Snapshot {
	return Snapshot{
		DailyPnL:           d("-1"),
		MaxDailyLoss:       d("10"),
		Now:                now,
		CooldownUntil:      now.Add(-time.Second),
		EdgeNet:            d("0.05"),
		MinEdgeNet:         d("0.04"),
		LegASize:           10,
		LegBSize:           10,
		RequiredQty:        4,
		TotalNotional:      d("2"),
		EstCost:            d("0.92"),
		MaxNotional:        d("10"),
		OpenOrdersVenueA:   0,
		OpenOrdersVenueB:   0,
		MaxOpenOrdersVenue: 3,
		SumYes:             10,
		SumNo:              10,
		LegAPrice:          d("0.46"),
		LegBPrice:          d("0.46"),
		PriceFloor:         d("0.01"),
		PriceCeil:          d("0.99"),
	}
}

func TestEvaluateAllPass(t *testing.T) {
	r := Evaluate(okSnapshot(time.Now()))
	if !r.Pass {
		t.Fatalf("expected pass, got failure: %s", r.Reason)
	}
}

func TestDailyLossFailsAtThreshold(t *testing.T) {
	s := okSnapshot(time.Now())
	s.DailyPnL = d("-10") // equals -maxDailyLoss exactly: not strictly greater, so fails
	r := DailyLoss(s)
	if r.Pass {
		t.Fatal("expected daily loss guard to fail at exact threshold")
	}
}

func TestDailyLossFailsWhenKillSwitchAlreadyTriggered(t *testing.T) {
	s := okSnapshot(time.Now())
	s.KillSwitchTriggered = true
	r := DailyLoss(s)
	if r.Pass {
		t.Fatal("expected failure when kill switch already triggered")
	}
}

func TestNotInCooldownFailsDuringCooldown(t *testing.T) {
	s := okSnapshot(time.Now())
	s.CooldownUntil = s.Now.Add(time.Minute)
	r := NotInCooldown(s)
	if r.Pass {
		t.Fatal("expected cooldown guard to fail")
	}
}

func TestMinimumNetEdgeFails(t *testing.T) {
	s := okSnapshot(time.Now())
	s.EdgeNet = d("0.03")
	r := MinimumNetEdge(s)
	if r.Pass {
		t.Fatal("expected minimum net edge guard to fail")
	}
}

func TestPerLegDepthFails(t *testing.T) {
	s := okSnapshot(time.Now())
	s.LegBSize = 2
	r := PerLegDepth(s)
	if r.Pass {
		t.Fatal("expected per-leg depth guard to fail")
	}
}

func TestNotionalCapFails(t *testing.T) {
	s := okSnapshot(time.Now())
	s.TotalNotional = d("9.5")
	r := NotionalCap(s)
	if r.Pass {
		t.Fatal("expected notional cap guard to fail")
	}
}

func TestOpenOrderCapFails(t *testing.T) {
	s := okSnapshot(time.Now())
	s.OpenOrdersVenueA = 3
	r := OpenOrderCap(s)
	if r.Pass {
		t.Fatal("expected open order cap guard to fail")
	}
}

func TestPositionBalanceFails(t *testing.T) {
	s := okSnapshot(time.Now())
	s.SumYes = 11
	r := PositionBalance(s)
	if r.Pass {
		t.Fatal("expected position balance guard to fail")
	}
}

func TestPriceBoundsFails(t *testing.T) {
	s := okSnapshot(time.Now())
	s.LegAPrice = d("0.995")
	r := PriceBounds(s)
	if r.Pass {
		t.Fatal("expected price bounds guard to fail")
	}
}

func TestEvaluateStopsAtFirstFailure(t *testing.T) {
	s := okSnapshot(time.Now())
	// Break both guard 1 (daily loss) and guard 3 (min edge); only the
	// first failure in fixed order should be reported.
	s.DailyPnL = d("-10")
	s.EdgeNet = d("0.01")
	r := Evaluate(s)
	if r.Pass {
		t.Fatal("expected failure")
	}
	if want := DailyLoss(s).Reason; r.Reason != want {
		t.Fatalf("expected the daily-loss reason %q, got %q", want, r.Reason)
	}
}
