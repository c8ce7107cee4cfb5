package position

import (
	"context"
	"log"
	"time"

	"github.com/arbengine/boxarb/internal/metrics"
	"github.com/arbengine/boxarb/internal/venue"
)

// KillSwitchTripper is the narrow callback the reconciler uses to report
// a directional drift, satisfied by internal/risk.Manager.
type KillSwitchTripper interface {
	TripKillSwitch(reason string)
}

// Reconciler periodically pulls authoritative positions from each venue
// and diffs them against the local ledger, per §4.10. Adapted from the
// reference engine's portfolio tracker: the same "Sync on an interval,
// cache under a mutex, Run blocks on a ticker until ctx is cancelled"
// shape, replacing its Data-API/go-ethereum address lookup with the
// venue.Client.GetPositions contract this engine depends on instead.
type Reconciler struct {
	tracker  *Tracker
	clients  map[venue.ID]venue.Client
	interval time.Duration
	kill     KillSwitchTripper

	lastDiscrepancies []Discrepancy
	lastSync          time.Time
}

func NewReconciler(tracker *Tracker, clients map[venue.ID]venue.Client, interval time.Duration, kill KillSwitchTripper) *Reconciler {
	return &Reconciler{tracker: tracker, clients: clients, interval: interval, kill: kill}
}

// Sync pulls authoritative positions from every venue and reconciles
// them against the local ledger once.
func (r *Reconciler) Sync(ctx context.Context) error {
	authoritative := make(map[venue.ID][]venue.Position, len(r.clients))
	for id, c := range r.clients {
		positions, err := c.GetPositions(ctx)
		if err != nil {
			log.Printf("position reconciler: %s: %v", id, err)
			continue
		}
		authoritative[id] = positions
	}

	discrepancies := r.tracker.Reconcile(authoritative)
	r.lastDiscrepancies = discrepancies
	r.lastSync = time.Now()

	for _, d := range discrepancies {
		metrics.ReconciliationDrift.WithLabelValues(string(d.Venue), d.Side).Set(float64(d.Local - d.Authoritative))
		log.Printf("position drift: venue=%s side=%s local=%d authoritative=%d", d.Venue, d.Side, d.Local, d.Authoritative)
		if d.Directional() && r.kill != nil {
			r.kill.TripKillSwitch("position reconciliation drift exceeded tolerance")
			metrics.KillSwitchTrips.Inc()
		}
	}
	return nil
}

// LastDiscrepancies returns the discrepancies found on the most recent
// sync, for the status surface.
func (r *Reconciler) LastDiscrepancies() []Discrepancy { return r.lastDiscrepancies }

// Run blocks, syncing on r.interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.Sync(ctx); err != nil {
		log.Printf("position reconciler: initial sync: %v", err)
	}

	ticker := time.NewTicker(ReconcileInterval(10*time.Second, r.interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				log.Printf("position reconciler: sync: %v", err)
			}
		}
	}
}
