package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbengine/boxarb/internal/config"
	"github.com/arbengine/boxarb/internal/eventlog"
	"github.com/arbengine/boxarb/internal/interval"
	"github.com/arbengine/boxarb/internal/mapping"
	"github.com/arbengine/boxarb/internal/notify"
	"github.com/arbengine/boxarb/internal/venue"
)

type fakeClient struct {
	id        venue.ID
	fillPrice decimal.Decimal
}

func (f *fakeClient) ID() venue.ID { return f.id }
func (f *fakeClient) SubscribeBook(ctx context.Context, marketIDs []string) (<-chan venue.BookUpdate, error) {
	return nil, nil
}
func (f *fakeClient) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	return venue.OrderResult{Outcome: venue.OutcomeFilled, FilledQty: req.Qty, FillPrice: f.fillPrice}, nil
}
func (f *fakeClient) CancelAll(ctx context.Context, marketID string) error { return nil }
func (f *fakeClient) GetPositions(ctx context.Context) ([]venue.Position, error) { return nil, nil }
func (f *fakeClient) Close() error                                              { return nil }

type fakeDiscoverer struct {
	mapping mapping.Mapping
	metaA   mapping.Metadata
	metaB   mapping.Metadata
	err     error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, key interval.Key) (mapping.Mapping, mapping.Metadata, mapping.Metadata, error) {
	return f.mapping, f.metaA, f.metaB, f.err
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	clientA := &fakeClient{id: "venue-a", fillPrice: decimal.NewFromFloat(0.46)}
	clientB := &fakeClient{id: "venue-b", fillPrice: decimal.NewFromFloat(0.46)}
	elog, err := eventlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("eventlog.New: %v", err)
	}
	return New(cfg, clientA, clientB, &fakeDiscoverer{}, notify.NoOp{}, elog)
}

func TestHandleBookUpdateExecutesProfitableOpportunity(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	key := e.scheduler.CurrentKey(now)
	e.store.SetMapping(key, mapping.Mapping{})

	ctx := context.Background()
	// Venue A's "no" bid at 0.54 implies yesAsk=0.46 on A.
	e.handleBookUpdate(ctx, venueUpdate{
		Venue:  e.clientA.ID(),
		Update: venue.BookUpdate{Side: "no", Price: decimal.NewFromFloat(0.54), Size: 20, Timestamp: now},
	})
	// Venue B's "yes" bid at 0.54 implies noAsk=0.46 on B.
	e.handleBookUpdate(ctx, venueUpdate{
		Venue:  e.clientB.ID(),
		Update: venue.BookUpdate{Side: "yes", Price: decimal.NewFromFloat(0.54), Size: 20, Timestamp: now},
	})

	if e.fills != 1 {
		t.Fatalf("expected one successful fill, got %d", e.fills)
	}
	// realized pnl = 1 - 0.46 - 0.46 = 0.08
	pnl, fills, _ := e.DailySummary()
	if fills != 1 {
		t.Fatalf("expected 1 fill in daily summary, got %d", fills)
	}
	if !pnl.Equal(decimal.NewFromFloat(0.08)) {
		t.Fatalf("expected daily pnl 0.08, got %s", pnl)
	}
}

func TestHandleBookUpdateSkipsWithoutInstalledMapping(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	ctx := context.Background()

	e.handleBookUpdate(ctx, venueUpdate{
		Venue:  e.clientA.ID(),
		Update: venue.BookUpdate{Side: "no", Price: decimal.NewFromFloat(0.54), Size: 20, Timestamp: now},
	})
	e.handleBookUpdate(ctx, venueUpdate{
		Venue:  e.clientB.ID(),
		Update: venue.BookUpdate{Side: "yes", Price: decimal.NewFromFloat(0.54), Size: 20, Timestamp: now},
	})

	if e.fills != 0 {
		t.Fatalf("expected no fills without an installed mapping, got %d", e.fills)
	}
}

func TestHandlePrepareInstallsVerifiedMapping(t *testing.T) {
	e := newTestEngine(t)
	e.discoverer = &fakeDiscoverer{
		mapping: mapping.Mapping{VenueA: mapping.VenueAIdentity{CloseTs: 900}, VenueB: mapping.VenueBIdentity{CloseTs: 900}},
		metaA:   mapping.Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: true},
		metaB:   mapping.Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: true},
	}

	e.handlePrepare(context.Background())

	if !e.havePrefetched {
		t.Fatal("expected prefetched mapping installed after a verified discovery")
	}
}

func TestHandlePrepareFailsClosedOnDiscoveryError(t *testing.T) {
	e := newTestEngine(t)
	e.discoverer = &fakeDiscoverer{err: context.DeadlineExceeded}

	e.handlePrepare(context.Background())

	if e.havePrefetched {
		t.Fatal("expected no prefetched mapping when discovery fails")
	}
}

func TestHandlePrepareFailsClosedOnVerificationFailure(t *testing.T) {
	e := newTestEngine(t)
	e.discoverer = &fakeDiscoverer{
		mapping: mapping.Mapping{VenueA: mapping.VenueAIdentity{CloseTs: 900}, VenueB: mapping.VenueBIdentity{CloseTs: 901}},
		metaA:   mapping.Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true},
		metaB:   mapping.Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true},
	}

	e.handlePrepare(context.Background())

	if e.havePrefetched {
		t.Fatal("expected no prefetched mapping on verification failure")
	}
}

func TestHandleRolloverFailsClosedWithoutPrefetch(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	priorKey := e.scheduler.CurrentKey(now)

	e.handleRollover(context.Background(), interval.Event{Kind: interval.Rollover, Key: priorKey, At: now})

	if !e.riskMgr.Snapshot().KillSwitch {
		t.Fatal("expected kill switch tripped when rolling over without a prefetched mapping")
	}
}

func TestHandleRolloverInstallsPrefetchedMapping(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	priorKey := e.scheduler.CurrentKey(now)
	newKey := e.scheduler.NextKey(now)

	e.prefetched = &mapping.Mapping{DiscoveredAt: now}
	e.prefetchedKey = newKey
	e.havePrefetched = true

	e.handleRollover(context.Background(), interval.Event{Kind: interval.Rollover, Key: priorKey, At: now})

	if _, ok := e.store.GetMapping(newKey); !ok {
		t.Fatal("expected prefetched mapping installed for the new interval")
	}
	if e.riskMgr.Snapshot().KillSwitch {
		t.Fatal("expected kill switch not tripped when a mapping was installed")
	}
}

func TestCheckSettlementsConsumesDueDeadZoneCheck(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	up := 50000.0
	down := 40000.0

	e.pendingSettlements = append(e.pendingSettlements, pendingSettlement{
		intervalKey: interval.Key{StartTs: 0, EndTs: 900},
		mapping: mapping.Mapping{
			VenueA:      mapping.VenueAIdentity{ReferencePrice: &up, AboveIsUp: true},
			VenueB:      mapping.VenueBIdentity{ReferencePrice: &down, AboveIsUp: true},
			StrikePrice: 45000,
		},
		at: now.Add(-time.Second),
	})

	e.checkSettlements(now)

	if len(e.pendingSettlements) != 0 {
		t.Fatalf("expected the due settlement check to be consumed, %d remain", len(e.pendingSettlements))
	}
}
