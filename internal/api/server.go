// Package api is the operator-facing status surface of §4.12: a small
// net/http server exposing liveness, readiness, the current risk
// snapshot, recent executions, positions and a Prometheus /metrics
// endpoint. Modeled on the reference engine's internal/api/server.go
// handler-per-endpoint style, trimmed to the fields this engine
// actually has — no Polymarket-specific reward/grant/coach reporting.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbengine/boxarb/internal/executor"
	"github.com/arbengine/boxarb/internal/position"
	"github.com/arbengine/boxarb/internal/risk"
)

// EngineState exposes the subset of internal/engine.Engine the status
// surface reads. A narrow interface so this package never imports
// internal/engine directly and tests can supply a fake.
type EngineState interface {
	RiskSnapshot() risk.Snapshot
	PositionSnapshot() position.Snapshot
	LastDiscrepancies() []position.Discrepancy
	RecentExecutions(limit int) []executor.Record
}

// Server is a lightweight HTTP status server for the trading engine.
type Server struct {
	httpServer *http.Server
	engine     EngineState
	dryRun     bool
	startedAt  time.Time
}

// NewServer creates a new API server bound to addr, reporting on engine's
// state. dryRun is surfaced on /api/ready for operator visibility.
func NewServer(addr string, engine EngineState, dryRun bool) *Server {
	s := &Server{
		engine:    engine,
		dryRun:    dryRun,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/ready", s.handleReady)
	mux.HandleFunc("/api/risk", s.handleRisk)
	mux.HandleFunc("/api/executions", s.handleExecutions)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("api server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/health — liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/ready — readiness probe. The server itself is always up once
// listening; readiness instead reports whether it is safe to rely on the
// engine for live trading, i.e. the kill switch is clear.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.RiskSnapshot()
	ready := !snap.KillSwitch
	resp := map[string]interface{}{
		"ready":    ready,
		"dry_run":  s.dryRun,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	}
	if !ready {
		resp["reason"] = "kill_switch_tripped"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	s.writeJSON(w, resp)
}

// GET /api/risk — current RiskState snapshot: busy, cooldown remaining,
// daily P&L, kill switch.
func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.RiskSnapshot()
	cooldownRemaining := time.Until(snap.CooldownUntil)
	if cooldownRemaining < 0 {
		cooldownRemaining = 0
	}
	s.writeJSON(w, map[string]interface{}{
		"kill_switch":          snap.KillSwitch,
		"busy":                 snap.Busy,
		"daily_pnl":            snap.DailyPnL.String(),
		"max_daily_loss":       snap.MaxDailyLoss.String(),
		"total_notional":       snap.TotalNotional.String(),
		"max_notional":         snap.MaxNotional.String(),
		"cooldown_remaining_s": cooldownRemaining.Seconds(),
		"open_orders_venue_a":  snap.OpenOrdersVenueA,
		"open_orders_venue_b":  snap.OpenOrdersVenueB,
		"calendar_date":        snap.CalendarDate,
	})
}

// GET /api/executions?limit=N — recent ExecutionRecords, most recent last.
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records := s.engine.RecentExecutions(limit)

	type executionEntry struct {
		FinalState       string    `json:"final_state"`
		ClientOrderIDA   string    `json:"client_order_id_a"`
		ClientOrderIDB   string    `json:"client_order_id_b"`
		FillPriceA       string    `json:"fill_price_a"`
		FillPriceB       string    `json:"fill_price_b"`
		UnwindPrice      string    `json:"unwind_price"`
		RealizedFees     string    `json:"realized_fees"`
		RealizedPnL      string    `json:"realized_pnl"`
		ResidualExposure int64     `json:"residual_exposure"`
		Reason           string    `json:"reason"`
		StartedAt        time.Time `json:"started_at"`
		EndedAt          time.Time `json:"ended_at"`
	}
	entries := make([]executionEntry, len(records))
	for i, rec := range records {
		entries[i] = executionEntry{
			FinalState:       string(rec.FinalState),
			ClientOrderIDA:   rec.ClientOrderIDA,
			ClientOrderIDB:   rec.ClientOrderIDB,
			FillPriceA:       rec.FillPriceA.String(),
			FillPriceB:       rec.FillPriceB.String(),
			UnwindPrice:      rec.UnwindPrice.String(),
			RealizedFees:     rec.RealizedFees.String(),
			RealizedPnL:      rec.RealizedPnL.String(),
			ResidualExposure: rec.ResidualExposure,
			Reason:           rec.Reason,
			StartedAt:        rec.StartedAt,
			EndedAt:          rec.EndedAt,
		}
	}
	s.writeJSON(w, map[string]interface{}{"executions": entries, "count": len(entries)})
}

// GET /api/positions — current PositionSnapshot plus the most recent
// reconciliation discrepancies, if any.
func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.PositionSnapshot()
	discrepancies := s.engine.LastDiscrepancies()

	type discrepancyEntry struct {
		Venue         string `json:"venue"`
		Side          string `json:"side"`
		Local         int64  `json:"local"`
		Authoritative int64  `json:"authoritative"`
		Directional   bool   `json:"directional"`
	}
	entries := make([]discrepancyEntry, len(discrepancies))
	for i, d := range discrepancies {
		entries[i] = discrepancyEntry{
			Venue:         string(d.Venue),
			Side:          d.Side,
			Local:         d.Local,
			Authoritative: d.Authoritative,
			Directional:   d.Directional(),
		}
	}
	s.writeJSON(w, map[string]interface{}{
		"positions":     snap,
		"discrepancies": entries,
	})
}
