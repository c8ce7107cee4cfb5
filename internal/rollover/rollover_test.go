package rollover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbengine/boxarb/internal/interval"
	"github.com/arbengine/boxarb/internal/mapping"
	"github.com/arbengine/boxarb/internal/quote"
	"github.com/arbengine/boxarb/internal/venue"
)

type fakeAborter struct {
	called bool
	reason string
}

func (f *fakeAborter) AbortCurrent(reason string) {
	f.called = true
	f.reason = reason
}

type fakeVenueClient struct {
	cancelErr error
	canceled  bool
}

func (f *fakeVenueClient) ID() venue.ID { return "fake" }
func (f *fakeVenueClient) SubscribeBook(ctx context.Context, marketIDs []string) (<-chan venue.BookUpdate, error) {
	return nil, nil
}
func (f *fakeVenueClient) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	return venue.OrderResult{}, nil
}
func (f *fakeVenueClient) CancelAll(ctx context.Context, marketID string) error {
	f.canceled = true
	return f.cancelErr
}
func (f *fakeVenueClient) GetPositions(ctx context.Context) ([]venue.Position, error) { return nil, nil }
func (f *fakeVenueClient) Close() error                                               { return nil }

func TestRolloverAbortsBusyExecution(t *testing.T) {
	clientA := &fakeVenueClient{}
	clientB := &fakeVenueClient{}
	store := mapping.NewStore()
	o := New(clientA, clientB, store, nil)
	aborter := &fakeAborter{}

	prior := interval.Key{StartTs: 0, EndTs: 900}
	next := interval.Key{StartTs: 900, EndTs: 1800}
	prefetched := &mapping.Mapping{}

	rep := o.Rollover(context.Background(), aborter, true, prior, next, prefetched)

	if !aborter.called || aborter.reason != "rollover" {
		t.Fatal("expected busy execution to be aborted with reason 'rollover'")
	}
	if !rep.AbortedExecution {
		t.Fatal("expected report to record aborted execution")
	}
	if !clientA.canceled || !clientB.canceled {
		t.Fatal("expected both venues' resting orders to be canceled")
	}
}

func TestRolloverFailsClosedWithoutPrefetchedMapping(t *testing.T) {
	clientA := &fakeVenueClient{}
	clientB := &fakeVenueClient{}
	store := mapping.NewStore()
	o := New(clientA, clientB, store, nil)
	aborter := &fakeAborter{}

	prior := interval.Key{StartTs: 0, EndTs: 900}
	next := interval.Key{StartTs: 900, EndTs: 1800}

	rep := o.Rollover(context.Background(), aborter, false, prior, next, nil)

	if !rep.FailClosed {
		t.Fatal("expected fail-closed when no prefetched mapping is available")
	}
	if rep.MappingInstalled {
		t.Fatal("expected no mapping installed")
	}
	if _, ok := store.GetMapping(next); ok {
		t.Fatal("expected no mapping to be stored for the new interval")
	}
}

func TestRolloverInstallsPrefetchedMapping(t *testing.T) {
	clientA := &fakeVenueClient{}
	clientB := &fakeVenueClient{}
	store := mapping.NewStore()
	o := New(clientA, clientB, store, nil)
	aborter := &fakeAborter{}

	prior := interval.Key{StartTs: 0, EndTs: 900}
	next := interval.Key{StartTs: 900, EndTs: 1800}
	prefetched := &mapping.Mapping{DiscoveredAt: time.Now()}

	rep := o.Rollover(context.Background(), aborter, false, prior, next, prefetched)

	if !rep.MappingInstalled || rep.FailClosed {
		t.Fatal("expected mapping installed and not fail-closed")
	}
	got, ok := store.GetMapping(next)
	if !ok {
		t.Fatal("expected new mapping stored")
	}
	if got.DiscoveredAt != prefetched.DiscoveredAt {
		t.Fatal("expected stored mapping to match prefetched value")
	}
}

func TestRolloverClearsLaddersAndPriorMapping(t *testing.T) {
	clientA := &fakeVenueClient{}
	clientB := &fakeVenueClient{}
	store := mapping.NewStore()
	prior := interval.Key{StartTs: 0, EndTs: 900}
	store.SetMapping(prior, mapping.Mapping{})

	yesA := quote.NewLadder()
	yesA.Set(decimal.NewFromFloat(0.5), 10)

	o := New(clientA, clientB, store, func() (*quote.Ladder, *quote.Ladder, *quote.Ladder, *quote.Ladder) {
		return yesA, quote.NewLadder(), quote.NewLadder(), quote.NewLadder()
	})
	aborter := &fakeAborter{}
	next := interval.Key{StartTs: 900, EndTs: 1800}
	o.Rollover(context.Background(), aborter, false, prior, next, &mapping.Mapping{})

	if yesA.Len() != 0 {
		t.Fatal("expected ladder cleared on rollover")
	}
	if _, ok := store.GetMapping(prior); ok {
		t.Fatal("expected prior interval's mapping cleared")
	}
}

func TestRolloverRecordsCancelErrors(t *testing.T) {
	clientA := &fakeVenueClient{cancelErr: errors.New("network error")}
	clientB := &fakeVenueClient{}
	store := mapping.NewStore()
	o := New(clientA, clientB, store, nil)
	aborter := &fakeAborter{}

	rep := o.Rollover(context.Background(), aborter, false, interval.Key{}, interval.Key{EndTs: 900}, &mapping.Mapping{})
	if len(rep.CancelErrors) != 1 {
		t.Fatalf("expected one cancel error recorded, got %d", len(rep.CancelErrors))
	}
}
