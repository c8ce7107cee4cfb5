// Package engine wires every collaborator — venue clients, the quote
// ladders, the scanner, the guard suite, the risk manager, the executor,
// the position tracker/reconciler, the rollover orchestrator and the
// settlement observer — into the single event loop described in §5.
// Like the reference engine's App.Run, state mutation happens from this
// one goroutine; the two venue feeds run as their own goroutines only to
// produce events, and the position reconciler runs as its own goroutine
// whose only write is tripping the risk manager's kill switch, all
// supervised by an
// errgroup so a feed failure tears down the whole engine instead of
// leaving it half-running.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/arbengine/boxarb/internal/config"
	"github.com/arbengine/boxarb/internal/eventlog"
	"github.com/arbengine/boxarb/internal/executor"
	"github.com/arbengine/boxarb/internal/feeedge"
	"github.com/arbengine/boxarb/internal/guard"
	"github.com/arbengine/boxarb/internal/interval"
	"github.com/arbengine/boxarb/internal/mapping"
	"github.com/arbengine/boxarb/internal/metrics"
	"github.com/arbengine/boxarb/internal/notify"
	"github.com/arbengine/boxarb/internal/position"
	"github.com/arbengine/boxarb/internal/quote"
	"github.com/arbengine/boxarb/internal/risk"
	"github.com/arbengine/boxarb/internal/rollover"
	"github.com/arbengine/boxarb/internal/scanner"
	"github.com/arbengine/boxarb/internal/settlement"
	"github.com/arbengine/boxarb/internal/venue"
)

// Discoverer resolves the venue-native market identifiers and
// equivalence metadata for an upcoming interval. Discovery is an
// external collaborator per internal/mapping's package doc — this
// engine only consumes it during the PREPARE event.
type Discoverer interface {
	Discover(ctx context.Context, key interval.Key) (mapping.Mapping, mapping.Metadata, mapping.Metadata, error)
}

type pendingSettlement struct {
	intervalKey interval.Key
	mapping     mapping.Mapping
	at          time.Time
}

// legStats tracks a rolling fill-success ratio and average submit-to-fill
// latency per venue, the historical inputs the executor's fill-probability
// scoring needs per §4.7 beyond the instantaneous depth ratio.
type legStats struct {
	mu         sync.Mutex
	attempts   map[venue.ID]int
	successes  map[venue.ID]int
	latencySum map[venue.ID]float64
}

func newLegStats() *legStats {
	return &legStats{
		attempts:   make(map[venue.ID]int),
		successes:  make(map[venue.ID]int),
		latencySum: make(map[venue.ID]float64),
	}
}

func (s *legStats) record(v venue.ID, filled bool, latencyMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[v]++
	if filled {
		s.successes[v]++
	}
	s.latencySum[v] += latencyMs
}

func (s *legStats) score(leg scanner.ArbLeg, qty int64) executor.LegScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := venue.ID(leg.Venue)
	attempts := s.attempts[v]
	ratio := 1.0
	avgLatency := 0.0
	if attempts > 0 {
		ratio = float64(s.successes[v]) / float64(attempts)
		avgLatency = s.latencySum[v] / float64(attempts)
	}
	depthRatio := 0.0
	if qty > 0 {
		depthRatio = float64(leg.AvailableSize) / float64(qty)
	}
	return executor.LegScore{
		Leg:              leg,
		DepthRatio:       depthRatio,
		FillSuccessRatio: ratio,
		SubmitToFillMs:   avgLatency,
	}
}

// venueUpdate tags a raw book update with the venue it came from, since
// updates from both venues are multiplexed onto a single channel for the
// loop goroutine to consume.
type venueUpdate struct {
	Venue  venue.ID
	Update venue.BookUpdate
}

// Engine owns the full component graph and runs the event loop.
type Engine struct {
	cfg config.Config

	clientA venue.Client
	clientB venue.Client

	scheduler    *interval.Scheduler
	store        *mapping.Store
	riskMgr      *risk.Manager
	exec         *executor.Executor
	tracker      *position.Tracker
	reconciler   *position.Reconciler
	rolloverOrch *rollover.Orchestrator
	discoverer   Discoverer
	notifier     notify.Notifier
	elog         *eventlog.Logger
	stats        *legStats

	yesA, noA, yesB, noB *quote.Ladder
	qA, qB               quote.NormalizedQuote
	haveQA, haveQB       bool

	prefetched     *mapping.Mapping
	prefetchedKey  interval.Key
	havePrefetched bool

	pendingSettlements []pendingSettlement

	fills  int
	volume decimal.Decimal

	// recentExecutions is a bounded ring buffer of the most recent
	// executor.Records, read by the status server's /api/executions.
	recentExecutions []executor.Record
}

// maxRecentExecutions bounds the in-memory execution history the status
// server can report; older records are dropped as new ones arrive.
const maxRecentExecutions = 500

// New builds an Engine from config and its external collaborators. The
// venue clients, discoverer and notifier are supplied by the caller
// (cmd/boxarb's wiring) since they depend on credentials and transport
// this package has no opinion about.
func New(cfg config.Config, clientA, clientB venue.Client, discoverer Discoverer, notifier notify.Notifier, elog *eventlog.Logger) *Engine {
	e := &Engine{
		cfg:        cfg,
		clientA:    clientA,
		clientB:    clientB,
		scheduler:  interval.New(time.Duration(cfg.Interval.DurationSeconds)*time.Second, cfg.Interval.PrepareLead),
		store:      mapping.NewStore(),
		discoverer: discoverer,
		notifier:   notifier,
		elog:       elog,
		stats:      newLegStats(),
		yesA:       quote.NewLadder(),
		noA:        quote.NewLadder(),
		yesB:       quote.NewLadder(),
		noB:        quote.NewLadder(),
		volume:     decimal.Zero,
	}

	e.riskMgr = risk.New(risk.Config{
		MaxDailyLoss:          decimal.NewFromFloat(cfg.Risk.MaxDailyLoss),
		MaxNotional:           decimal.NewFromFloat(cfg.Risk.MaxNotional),
		MaxOpenOrdersPerVenue: cfg.Risk.MaxOpenOrdersPerVenue,
		CooldownAfterFailure:  cfg.Risk.CooldownAfterFailure,
	})
	if cfg.Risk.EmergencyStop {
		e.riskMgr.TripKillSwitch("emergency stop set in config")
		metrics.KillSwitchTrips.Inc()
	}

	e.exec = executor.New(executor.Config{
		MaxLegDelay:     cfg.Executor.MaxLegDelay,
		LegAFillTimeout: cfg.Executor.LegAFillTimeout,
		LegBFillTimeout: cfg.Executor.LegBFillTimeout,
		MaxUnhedgedTime: cfg.Executor.MaxUnhedgedTime,
		UnwindTimeout:   cfg.Executor.UnwindTimeout,
		FeeScheduleA:    feeedge.BpsFeeSchedule(decimal.NewFromFloat(cfg.VenueA.TakerFeeBps)),
		FeeScheduleB:    feeedge.BpsFeeSchedule(decimal.NewFromFloat(cfg.VenueB.TakerFeeBps)),
	})

	e.tracker = position.NewTracker()
	e.reconciler = position.NewReconciler(
		e.tracker,
		map[venue.ID]venue.Client{clientA.ID(): clientA, clientB.ID(): clientB},
		position.ReconcileInterval(10*time.Second, cfg.Reconciler.Interval),
		e.riskMgr,
	)

	e.rolloverOrch = rollover.New(clientA, clientB, e.store, func() (*quote.Ladder, *quote.Ladder, *quote.Ladder, *quote.Ladder) {
		return e.yesA, e.noA, e.yesB, e.noB
	})

	return e
}

// AbortCurrent satisfies rollover.Aborter. Execute runs synchronously
// inside the loop goroutine, so a rollover can never actually observe an
// in-flight execution; this only fires if Busy was left set by a prior
// panic recovery path, and simply releases the lock so trading can
// resume on the new interval.
func (e *Engine) AbortCurrent(reason string) {
	log.Printf("engine: aborting current execution: %s", reason)
	e.riskMgr.Release()
}

// Run starts the two venue feeds, the position reconciler and the event
// loop, and blocks until ctx is cancelled or any of them fails.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	updates := make(chan venueUpdate, 256)

	g.Go(func() error { return e.feedVenue(gctx, e.clientA, updates) })
	g.Go(func() error { return e.feedVenue(gctx, e.clientB, updates) })
	g.Go(func() error { return e.reconciler.Run(gctx) })
	g.Go(func() error { return e.loop(gctx, updates) })

	return g.Wait()
}

func (e *Engine) feedVenue(ctx context.Context, client venue.Client, updates chan<- venueUpdate) error {
	now := time.Now()
	key := e.scheduler.CurrentKey(now)
	marketIDs := []string{fmt.Sprintf("%d-%d", key.StartTs, key.EndTs)}

	ch, err := client.SubscribeBook(ctx, marketIDs)
	if err != nil {
		return fmt.Errorf("engine: subscribe %s: %w", client.ID(), err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-ch:
			if !ok {
				return fmt.Errorf("engine: book feed for %s closed", client.ID())
			}
			select {
			case updates <- venueUpdate{Venue: client.ID(), Update: u}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// loop is the engine's single event loop. It never blocks on a venue
// round trip except inside Execute, which it calls synchronously —
// matching the reference engine's discipline of doing all trading
// decisions from one goroutine.
func (e *Engine) loop(ctx context.Context, updates <-chan venueUpdate) error {
	nextEvt := e.scheduler.NextEvent(time.Now())
	timer := time.NewTimer(time.Until(nextEvt.At))
	defer timer.Stop()

	settleTicker := time.NewTicker(time.Second)
	defer settleTicker.Stop()

	for {
		now := time.Now()
		if e.riskMgr.RolloverIfNewDay(now.Format("2006-01-02")) {
			_ = e.elog.Write(now, "daily_reset", nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case vu := <-updates:
			e.handleBookUpdate(ctx, vu)

		case <-timer.C:
			evt := nextEvt
			switch evt.Kind {
			case interval.Prepare:
				e.handlePrepare(ctx)
			case interval.Rollover:
				e.handleRollover(ctx, evt)
			}
			nextEvt = e.scheduler.NextEvent(time.Now())
			timer.Reset(time.Until(nextEvt.At))

		case <-settleTicker.C:
			e.checkSettlements(now)
		}
	}
}

func (e *Engine) handleBookUpdate(ctx context.Context, vu venueUpdate) {
	now := time.Now()

	var yes, no *quote.Ladder
	switch vu.Venue {
	case e.clientA.ID():
		yes, no = e.yesA, e.noA
	case e.clientB.ID():
		yes, no = e.yesB, e.noB
	default:
		return
	}

	ladder := yes
	if vu.Update.Side == "no" {
		ladder = no
	}
	ladder.Set(vu.Update.Price, vu.Update.Size)

	q := quote.NormalizeFromLadders(yes, no, vu.Update.Timestamp, now)
	if vu.Venue == e.clientA.ID() {
		e.qA, e.haveQA = q, true
	} else {
		e.qB, e.haveQB = q, true
	}

	if !e.haveQA || !e.haveQB {
		return
	}
	e.tryScanAndExecute(ctx, now)
}

func (e *Engine) scanParams(key interval.Key) scanner.Params {
	return scanner.Params{
		StaleQuote:        e.cfg.Edge.StaleQuote,
		PriceFloor:        decimal.NewFromFloat(e.cfg.VenueA.PriceFloor),
		PriceCeil:         decimal.NewFromFloat(e.cfg.VenueA.PriceCeil),
		MinEdgeNet:        decimal.NewFromFloat(e.cfg.Edge.MinEdgeNet),
		BookDepthFraction: e.cfg.Edge.BookDepthFraction,
		MaxQtyPerTrade:    int64(e.cfg.Edge.MaxQtyPerTrade),
		MinOrderSizeA:     int64(e.cfg.VenueA.MinOrderSize),
		MinOrderSizeB:     int64(e.cfg.VenueB.MinOrderSize),
		FeeScheduleA:      feeedge.BpsFeeSchedule(decimal.NewFromFloat(e.cfg.VenueA.TakerFeeBps)),
		FeeScheduleB:      feeedge.BpsFeeSchedule(decimal.NewFromFloat(e.cfg.VenueB.TakerFeeBps)),
		SlippageBuffer:    decimal.NewFromFloat(e.cfg.Edge.SlippageBufferPerLeg * 2),
	}
}

func (e *Engine) tryScanAndExecute(ctx context.Context, now time.Time) {
	key := e.scheduler.CurrentKey(now)
	if _, ok := e.store.GetMapping(key); !ok {
		return
	}

	params := e.scanParams(key)
	opp, err := scanner.Scan(key, e.qA, e.qB, params, now)
	if err != nil {
		if rej, ok := err.(scanner.Rejection); ok {
			metrics.ScanRejections.WithLabelValues(rej.Kind).Inc()
			_ = e.elog.Write(now, "scan_reject", rej)
		}
		return
	}
	metrics.OpportunitiesScanned.Inc()

	riskSnap := e.riskMgr.Snapshot()
	legA, legB := opp.Legs[0], opp.Legs[1]

	snap := guard.Snapshot{
		DailyPnL:            riskSnap.DailyPnL,
		MaxDailyLoss:        riskSnap.MaxDailyLoss,
		Now:                 now,
		CooldownUntil:       riskSnap.CooldownUntil,
		EdgeNet:             opp.EdgeNet,
		MinEdgeNet:          params.MinEdgeNet,
		LegASize:            legA.AvailableSize,
		LegBSize:            legB.AvailableSize,
		RequiredQty:         opp.Qty,
		TotalNotional:       riskSnap.TotalNotional,
		EstCost:             opp.Cost.Mul(decimal.NewFromInt(opp.Qty)),
		MaxNotional:         riskSnap.MaxNotional,
		OpenOrdersVenueA:    riskSnap.OpenOrdersVenueA,
		OpenOrdersVenueB:    riskSnap.OpenOrdersVenueB,
		MaxOpenOrdersVenue:  e.cfg.Risk.MaxOpenOrdersPerVenue,
		SumYes:              e.tracker.Quantity(e.clientA.ID(), "yes") + e.tracker.Quantity(e.clientB.ID(), "yes"),
		SumNo:                e.tracker.Quantity(e.clientA.ID(), "no") + e.tracker.Quantity(e.clientB.ID(), "no"),
		LegAPrice:           legA.Price,
		LegBPrice:           legB.Price,
		PriceFloor:          params.PriceFloor,
		PriceCeil:           params.PriceCeil,
		KillSwitchTriggered: riskSnap.KillSwitch,
	}

	res := guard.Evaluate(snap)
	if !res.Pass {
		_ = e.elog.Write(now, "guard_reject", map[string]string{"reason": res.Reason})
		return
	}

	if !e.riskMgr.TryAcquire() {
		return
	}
	defer e.riskMgr.Release()

	e.riskMgr.SetOpenOrders(
		e.tracker.OpenOrderCount(e.clientA.ID())+1,
		e.tracker.OpenOrderCount(e.clientB.ID())+1,
	)

	scores := [2]executor.LegScore{
		e.stats.score(legA, opp.Qty),
		e.stats.score(legB, opp.Qty),
	}
	bestBids := [2]decimal.Decimal{e.bestBidFor(legA), e.bestBidFor(legB)}

	rec := e.exec.Execute(ctx, *opp, executor.VenueClients{A: e.clientA, B: e.clientB}, scores, bestBids, time.Now)
	e.applyExecutionResult(ctx, key, legA, legB, rec)
}

// bestBidFor returns the current best bid for leg's own side on leg's own
// venue, the reference price a marketable unwind sell of that position is
// expected to clear at.
func (e *Engine) bestBidFor(leg scanner.ArbLeg) decimal.Decimal {
	q := e.qA
	if leg.Venue == scanner.VenueB {
		q = e.qB
	}
	if leg.Side == scanner.SideYes {
		return q.YesBid
	}
	return q.NoBid
}

func (e *Engine) applyExecutionResult(ctx context.Context, key interval.Key, legA, legB scanner.ArbLeg, rec executor.Record) {
	now := rec.EndedAt
	latencyMs := float64(rec.EndedAt.Sub(rec.StartedAt).Milliseconds())

	metrics.ExecutionsByState.WithLabelValues(string(rec.FinalState)).Inc()
	e.recentExecutions = append(e.recentExecutions, rec)
	if len(e.recentExecutions) > maxRecentExecutions {
		e.recentExecutions = e.recentExecutions[len(e.recentExecutions)-maxRecentExecutions:]
	}

	wasKilled := e.riskMgr.Snapshot().KillSwitch

	filledA := !rec.FillPriceA.IsZero()
	filledB := rec.FinalState == executor.StateSuccess
	e.stats.record(venue.ID(legA.Venue), filledA, latencyMs)
	e.stats.record(venue.ID(legB.Venue), filledB, latencyMs)

	if filledA {
		e.tracker.RecordFill(venue.ID(legA.Venue), string(legA.Side), rec.Opportunity.Qty)
		e.riskMgr.AddNotional(rec.FillPriceA.Mul(decimal.NewFromInt(rec.Opportunity.Qty)))
	}
	if filledB {
		e.tracker.RecordFill(venue.ID(legB.Venue), string(legB.Side), rec.Opportunity.Qty)
		e.riskMgr.AddNotional(rec.FillPriceB.Mul(decimal.NewFromInt(rec.Opportunity.Qty)))
	}
	if rec.FinalState == executor.StateAborted && !rec.UnwindPrice.IsZero() {
		// Fully unwound: leg A's position is reversed, its notional released.
		e.tracker.RecordFill(venue.ID(legA.Venue), string(legA.Side), -rec.Opportunity.Qty)
		e.riskMgr.AddNotional(rec.FillPriceA.Mul(decimal.NewFromInt(rec.Opportunity.Qty)).Neg())
	}

	if !rec.RealizedPnL.IsZero() || rec.FinalState == executor.StateSuccess {
		e.riskMgr.RecordFill(rec.RealizedPnL)
	}

	switch rec.FinalState {
	case executor.StateSuccess:
		e.fills++
		e.volume = e.volume.Add(rec.Opportunity.Cost.Mul(decimal.NewFromInt(rec.Opportunity.Qty)))
	case executor.StateAborted:
		e.riskMgr.RecordFailure(now)
	case executor.StateFailed:
		e.riskMgr.RecordFailure(now)
		if rec.ResidualExposure > 0 {
			e.riskMgr.TripKillSwitch(fmt.Sprintf("unwind left residual exposure of %d contracts", rec.ResidualExposure))
		}
		if err := e.notifier.NotifyUnwindFailure(ctx, fmt.Sprintf("%d-%d", key.StartTs, key.EndTs), rec.ResidualExposure); err != nil {
			log.Printf("engine: notify unwind failure: %v", err)
		}
	}

	_ = e.elog.Write(now, "execution", rec)

	if snap := e.riskMgr.Snapshot(); snap.KillSwitch {
		if !wasKilled {
			metrics.KillSwitchTrips.Inc()
		}
		if err := e.notifier.NotifyKillSwitch(ctx, e.riskMgr.KillSwitchReason(), snap.DailyPnL); err != nil {
			log.Printf("engine: notify kill switch: %v", err)
		}
	}
}

func (e *Engine) handlePrepare(ctx context.Context) {
	now := time.Now()
	nextKey := e.scheduler.NextKey(now)

	m, metaA, metaB, err := e.discoverer.Discover(ctx, nextKey)
	if err != nil {
		e.havePrefetched = false
		_ = e.elog.Write(now, "prepare_failed", map[string]string{"error": err.Error()})
		return
	}

	ok, verr := mapping.VerifyEquivalence(m, metaA, metaB)
	if !ok {
		e.havePrefetched = false
		reason := ""
		if verr != nil {
			reason = verr.Error()
		}
		_ = e.elog.Write(now, "prepare_verify_failed", map[string]string{"reason": reason})
		return
	}

	e.prefetched = &m
	e.prefetchedKey = nextKey
	e.havePrefetched = true
	_ = e.elog.Write(now, "prepare", map[string]interface{}{"start_ts": nextKey.StartTs, "end_ts": nextKey.EndTs})
}

func (e *Engine) handleRollover(ctx context.Context, evt interval.Event) {
	now := time.Now()
	priorKey := evt.Key
	// Derived from priorKey's own boundary rather than the live clock, so
	// this is exact even if the handler runs slightly after the instant
	// the boundary timer fired.
	newKey := e.scheduler.CurrentKey(time.Unix(priorKey.EndTs, 0))

	priorMapping, hadPriorMapping := e.store.GetMapping(priorKey)

	var prefetched *mapping.Mapping
	if e.havePrefetched && e.prefetchedKey == newKey {
		prefetched = e.prefetched
	}

	riskSnap := e.riskMgr.Snapshot()
	rep := e.rolloverOrch.Rollover(ctx, e, riskSnap.Busy, priorKey, newKey, prefetched)

	e.haveQA, e.haveQB = false, false
	e.havePrefetched = false

	_ = e.elog.Write(now, "rollover", rep)

	if rep.FailClosed {
		wasKilled := riskSnap.KillSwitch
		e.riskMgr.TripKillSwitch("rollover fail-closed: no verified mapping for new interval")
		if !wasKilled {
			metrics.KillSwitchTrips.Inc()
		}
	} else {
		// A verified mapping was installed for the new interval: a prior
		// trip caused only by the previous interval's fail-closed rollover
		// should not carry forward and block the freshly-mapped interval.
		if e.riskMgr.KillSwitchReason() == "rollover fail-closed: no verified mapping for new interval" {
			e.riskMgr.ClearKillSwitch()
		}
	}

	if hadPriorMapping {
		e.pendingSettlements = append(e.pendingSettlements, pendingSettlement{
			intervalKey: priorKey,
			mapping:     priorMapping,
			at:          settlement.SettleAt(priorKey.EndTs, e.cfg.Interval.SettleDelay),
		})
	}
}

func (e *Engine) checkSettlements(now time.Time) {
	if len(e.pendingSettlements) == 0 {
		return
	}
	remaining := e.pendingSettlements[:0]
	for _, ps := range e.pendingSettlements {
		if now.Before(ps.at) {
			remaining = append(remaining, ps)
			continue
		}
		obs := settlement.Observation{
			IntervalEndTs:   ps.intervalKey.EndTs,
			VenueAReference: ps.mapping.VenueA.ReferencePrice,
			VenueBReference: ps.mapping.VenueB.ReferencePrice,
			VenueAAboveIsUp: ps.mapping.VenueA.AboveIsUp,
			VenueBAboveIsUp: ps.mapping.VenueB.AboveIsUp,
			StrikePrice:     ps.mapping.StrikePrice,
		}
		res := settlement.Evaluate(obs, now)
		_ = e.elog.Write(now, "settlement", res)
		if res.DeadZone {
			log.Printf("engine: settlement dead-zone: %s", res.Reason)
		}
	}
	e.pendingSettlements = remaining
}

// DailySummary returns the counters the daily-summary notification
// reports: realized PnL for the day, fill count and gross volume.
func (e *Engine) DailySummary() (decimal.Decimal, int, decimal.Decimal) {
	return e.riskMgr.Snapshot().DailyPnL, e.fills, e.volume
}

// RiskSnapshot exposes the execution state for the status surface.
func (e *Engine) RiskSnapshot() risk.Snapshot { return e.riskMgr.Snapshot() }

// PositionSnapshot exposes the position ledger for the status surface.
func (e *Engine) PositionSnapshot() position.Snapshot { return e.tracker.Snapshot() }

// LastDiscrepancies exposes the most recent reconciliation pass.
func (e *Engine) LastDiscrepancies() []position.Discrepancy { return e.reconciler.LastDiscrepancies() }

// RecentExecutions returns up to limit of the most recent execution
// records, most recent last, for the status server's /api/executions.
func (e *Engine) RecentExecutions(limit int) []executor.Record {
	if limit <= 0 || limit > len(e.recentExecutions) {
		limit = len(e.recentExecutions)
	}
	start := len(e.recentExecutions) - limit
	out := make([]executor.Record, limit)
	copy(out, e.recentExecutions[start:])
	return out
}
