// Package metrics exposes the engine's Prometheus counters and gauges:
// opportunities scanned, executions by terminal state, kill-switch trips
// and reconciliation drift, served by the status server's /metrics
// endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OpportunitiesScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boxarb_opportunities_scanned_total",
		Help: "Total arb opportunities the scanner found crossing the edge threshold.",
	})

	ScanRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boxarb_scan_rejections_total",
		Help: "Total scan attempts rejected, labeled by rejection reason.",
	}, []string{"reason"})

	ExecutionsByState = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boxarb_executions_total",
		Help: "Executions counted by final two-phase-commit state.",
	}, []string{"state"})

	KillSwitchTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boxarb_kill_switch_trips_total",
		Help: "Total number of times the kill switch has tripped.",
	})

	ReconciliationDrift = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "boxarb_reconciliation_drift",
		Help: "Local-minus-authoritative position drift observed on the last reconciliation pass, by venue and side.",
	}, []string{"venue", "side"})
)

func init() {
	prometheus.MustRegister(OpportunitiesScanned, ScanRejections, ExecutionsByState, KillSwitchTrips, ReconciliationDrift)
}
