// Package position tracks per-venue outcome quantities and open orders
// from fills, and periodically reconciles them against each venue's
// authoritative position list. Adapted from the reference engine's
// execution tracker, narrowed from USDC-notional long/short accounting
// to integer contract counts per (venue, side), since a box position is
// always an integer number of Yes/No contracts.
package position

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arbengine/boxarb/internal/venue"
)

type key struct {
	Venue venue.ID
	Side  string
}

// Tracker accumulates fills into a per-(venue,side) quantity ledger and
// records open orders by client order id.
type Tracker struct {
	mu         sync.RWMutex
	qty        map[key]int64
	openOrders map[string]string // clientOrderID -> venue id, still resting
}

func NewTracker() *Tracker {
	return &Tracker{
		qty:        make(map[key]int64),
		openOrders: make(map[string]string),
	}
}

func (t *Tracker) RegisterOpenOrder(clientOrderID string, v venue.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openOrders[clientOrderID] = string(v)
}

func (t *Tracker) ClearOpenOrder(clientOrderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.openOrders, clientOrderID)
}

// RecordFill adds qty contracts of (venue, side) to the ledger. Use a
// negative qty to record an unwind or a sell-down.
func (t *Tracker) RecordFill(v venue.ID, side string, qty int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.qty[key{Venue: v, Side: side}] += qty
}

func (t *Tracker) Quantity(v venue.ID, side string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.qty[key{Venue: v, Side: side}]
}

func (t *Tracker) OpenOrderCount(v venue.ID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, vv := range t.openOrders {
		if vv == string(v) {
			n++
		}
	}
	return n
}

// Snapshot is a point-in-time copy of the ledger, keyed by a string form
// of (venue, side) for easy JSON/status-surface serialization.
type Snapshot map[string]int64

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(Snapshot, len(t.qty))
	for k, v := range t.qty {
		out[fmt.Sprintf("%s:%s", k.Venue, k.Side)] = v
	}
	return out
}

// MismatchTolerance is the one-contract slack allowed before a
// reconciliation discrepancy is treated as real, per §4.10.
const MismatchTolerance = 1

// Discrepancy describes one (venue, side) ledger entry that disagrees
// with the venue's authoritative report beyond tolerance.
type Discrepancy struct {
	Venue      venue.ID
	Side       string
	Local      int64
	Authoritative int64
}

// Directional reports whether this discrepancy implies a directional
// (net long or short) exposure rather than a benign accounting lag —
// i.e. the two disagree by more than tolerance in a way that isn't
// simply a timing artifact of a fill not yet reflected on one side.
func (d Discrepancy) Directional() bool {
	diff := d.Local - d.Authoritative
	if diff < 0 {
		diff = -diff
	}
	return diff > MismatchTolerance
}

// Reconcile compares the local ledger against authoritative per-venue
// positions and returns every entry that disagrees beyond tolerance, in
// a stable order (by venue then side) so callers and tests see
// deterministic output.
func (t *Tracker) Reconcile(authoritative map[venue.ID][]venue.Position) []Discrepancy {
	t.mu.RLock()
	local := make(map[key]int64, len(t.qty))
	for k, v := range t.qty {
		local[k] = v
	}
	t.mu.RUnlock()

	seen := make(map[key]bool)
	var out []Discrepancy

	for v, positions := range authoritative {
		for _, p := range positions {
			k := key{Venue: v, Side: p.Side}
			seen[k] = true
			lq := local[k]
			if lq != p.Qty {
				d := Discrepancy{Venue: v, Side: p.Side, Local: lq, Authoritative: p.Qty}
				if d.Directional() {
					out = append(out, d)
				}
			}
		}
	}
	for k, lq := range local {
		if seen[k] || lq == 0 {
			continue
		}
		d := Discrepancy{Venue: k.Venue, Side: k.Side, Local: lq, Authoritative: 0}
		if d.Directional() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Side < out[j].Side
	})
	return out
}

// ReconcileInterval picks the reconciliation period of §4.10: the
// configured value if positive, else defaultInterval if positive, else
// 10 seconds.
func ReconcileInterval(defaultInterval time.Duration, configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	if defaultInterval > 0 {
		return defaultInterval
	}
	return 10 * time.Second
}
