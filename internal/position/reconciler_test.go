package position

import (
	"context"
	"testing"
	"time"

	"github.com/arbengine/boxarb/internal/venue"
)

type fakeVenueClient struct {
	positions []venue.Position
}

func (f *fakeVenueClient) ID() venue.ID { return "venue-a" }
func (f *fakeVenueClient) SubscribeBook(ctx context.Context, marketIDs []string) (<-chan venue.BookUpdate, error) {
	return nil, nil
}
func (f *fakeVenueClient) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	return venue.OrderResult{}, nil
}
func (f *fakeVenueClient) CancelAll(ctx context.Context, marketID string) error { return nil }
func (f *fakeVenueClient) GetPositions(ctx context.Context) ([]venue.Position, error) {
	return f.positions, nil
}
func (f *fakeVenueClient) Close() error { return nil }

type fakeKillSwitch struct {
	tripped bool
	reason  string
}

func (f *fakeKillSwitch) TripKillSwitch(reason string) {
	f.tripped = true
	f.reason = reason
}

func TestSyncTripsKillSwitchOnDirectionalDrift(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("venue-a", "yes", 4)

	client := &fakeVenueClient{positions: []venue.Position{{MarketID: "m", Side: "yes", Qty: 10}}}
	kill := &fakeKillSwitch{}
	r := NewReconciler(tr, map[venue.ID]venue.Client{"venue-a": client}, time.Second, kill)

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !kill.tripped {
		t.Fatal("expected kill switch tripped on directional drift")
	}
	if len(r.LastDiscrepancies()) != 1 {
		t.Fatalf("expected one discrepancy, got %d", len(r.LastDiscrepancies()))
	}
}

func TestSyncWithinToleranceDoesNotTrip(t *testing.T) {
	tr := NewTracker()
	tr.RecordFill("venue-a", "yes", 4)

	client := &fakeVenueClient{positions: []venue.Position{{MarketID: "m", Side: "yes", Qty: 4}}}
	kill := &fakeKillSwitch{}
	r := NewReconciler(tr, map[venue.ID]venue.Client{"venue-a": client}, time.Second, kill)

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kill.tripped {
		t.Fatal("expected no trip when positions match")
	}
}
