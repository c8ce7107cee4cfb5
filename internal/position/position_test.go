package position

import (
	"testing"

	"github.com/arbengine/boxarb/internal/venue"
)

func TestRecordFillAccumulatesPerVenueSide(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("venue-a", "yes", 4)
	tr.RecordFill("venue-a", "yes", 2)
	tr.RecordFill("venue-b", "no", 4)

	if tr.Quantity("venue-a", "yes") != 6 {
		t.Fatalf("expected 6, got %d", tr.Quantity("venue-a", "yes"))
	}
	if tr.Quantity("venue-b", "no") != 4 {
		t.Fatalf("expected 4, got %d", tr.Quantity("venue-b", "no"))
	}
}

func TestOpenOrderLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.RegisterOpenOrder("coid-1", "venue-a")
	tr.RegisterOpenOrder("coid-2", "venue-a")
	if tr.OpenOrderCount("venue-a") != 2 {
		t.Fatalf("expected 2 open orders, got %d", tr.OpenOrderCount("venue-a"))
	}
	tr.ClearOpenOrder("coid-1")
	if tr.OpenOrderCount("venue-a") != 1 {
		t.Fatalf("expected 1 open order after clear, got %d", tr.OpenOrderCount("venue-a"))
	}
}

func TestReconcileWithinToleranceIsIgnored(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("venue-a", "yes", 4)
	discrepancies := tr.Reconcile(map[venue.ID][]venue.Position{
		"venue-a": {{MarketID: "m", Side: "yes", Qty: 5}}, // off by exactly 1, within tolerance
	})
	if len(discrepancies) != 0 {
		t.Fatalf("expected no discrepancies within tolerance, got %+v", discrepancies)
	}
}

func TestReconcileBeyondToleranceIsDirectional(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("venue-a", "yes", 4)
	discrepancies := tr.Reconcile(map[venue.ID][]venue.Position{
		"venue-a": {{MarketID: "m", Side: "yes", Qty: 7}}, // off by 3
	})
	if len(discrepancies) != 1 {
		t.Fatalf("expected one discrepancy, got %+v", discrepancies)
	}
	if !discrepancies[0].Directional() {
		t.Fatal("expected discrepancy to be directional")
	}
}

func TestReconcileMissingAuthoritativeEntryFlagsLocalOnly(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("venue-a", "yes", 4)
	discrepancies := tr.Reconcile(map[venue.ID][]venue.Position{})
	if len(discrepancies) != 1 {
		t.Fatalf("expected local-only position to be flagged, got %+v", discrepancies)
	}
}

func TestReconcileIntervalDefaultsWhenUnconfigured(t *testing.T) {
	got := ReconcileInterval(0, 0)
	if got.Seconds() != 10 {
		t.Fatalf("expected 10s default, got %s", got)
	}
}
