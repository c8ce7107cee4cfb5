// Package risk implements the engine's execution state: the busy lock,
// cooldown timer, daily P&L ledger keyed by calendar date, notional
// accumulator and sticky kill switch described in the execution-state
// component. Manager is the only place these fields mutate; every other
// package reads a Snapshot or a guard.Snapshot derived from one.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	MaxDailyLoss          decimal.Decimal
	MaxNotional           decimal.Decimal
	MaxOpenOrdersPerVenue int
	CooldownAfterFailure  time.Duration
}

// Snapshot is a point-in-time read of the execution state, safe to pass
// by value across goroutine boundaries.
type Snapshot struct {
	KillSwitch       bool
	DailyPnL         decimal.Decimal
	MaxDailyLoss     decimal.Decimal
	CooldownUntil    time.Time
	TotalNotional    decimal.Decimal
	MaxNotional      decimal.Decimal
	OpenOrdersVenueA int
	OpenOrdersVenueB int
	Busy             bool
	CalendarDate     string
}

// Manager owns the engine's mutable risk state. Mutation happens from
// inside the single event loop, except that the position reconciler's
// goroutine may trip the kill switch; the mutex makes that write and
// concurrent reads (the status server, the notifier) safe.
type Manager struct {
	mu sync.RWMutex
	cfg Config

	busy bool

	dailyPnL     decimal.Decimal
	calendarDate string // YYYY-MM-DD in local time, the key for daily reset

	notional decimal.Decimal

	openOrdersA int
	openOrdersB int

	cooldownUntil time.Time
	killSwitch    bool
	killReason    string
}

func New(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		dailyPnL: decimal.Zero,
		notional: decimal.Zero,
	}
}

// TryAcquire is the non-blocking busy lock: at most one trade can be in
// flight through the executor at a time. Returns false if already busy.
func (m *Manager) TryAcquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return false
	}
	m.busy = true
	return true
}

// Release clears the busy lock. Safe to call even if not held.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
}

// RolloverIfNewDay resets dailyPnL and the notional accumulator when the
// calendar date (computed by the caller from local time) has advanced
// past the stored date. Returns true if a reset occurred.
func (m *Manager) RolloverIfNewDay(calendarDate string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calendarDate == calendarDate {
		return false
	}
	m.calendarDate = calendarDate
	m.dailyPnL = decimal.Zero
	m.notional = decimal.Zero
	return true
}

// RecordFill adds a realized P&L delta to the day's ledger. A sufficient
// loss trips the sticky kill switch: once set, KillSwitch stays true
// until an operator clears it explicitly via ClearKillSwitch.
func (m *Manager) RecordFill(realizedDelta decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = m.dailyPnL.Add(realizedDelta)
	if m.cfg.MaxDailyLoss.IsPositive() && !m.dailyPnL.GreaterThan(m.cfg.MaxDailyLoss.Neg()) {
		m.killSwitch = true
		m.killReason = "daily loss limit reached"
	}
}

// RecordFailure starts the post-failure cooldown window.
func (m *Manager) RecordFailure(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cooldown := m.cfg.CooldownAfterFailure
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	m.cooldownUntil = now.Add(cooldown)
}

// AddNotional increases the accumulated open notional by delta (which may
// be negative, when a box is closed out or unwound).
func (m *Manager) AddNotional(delta decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notional = m.notional.Add(delta)
}

// SetOpenOrders records the current open-order count per venue, as set
// by the engine from the position tracker's open-order count just before
// each execution.
func (m *Manager) SetOpenOrders(venueA, venueB int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openOrdersA = venueA
	m.openOrdersB = venueB
}

// TripKillSwitch sets the sticky kill switch directly, e.g. on an
// equivalence-verification failure or an unresolved unwind.
func (m *Manager) TripKillSwitch(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = true
	m.killReason = reason
}

// ClearKillSwitch resets the kill switch and its reason. The engine calls
// it only to lift a trip whose reason is a fail-closed rollover, once a
// later rollover installs a verified mapping; every other trip stays set
// until an operator clears it.
func (m *Manager) ClearKillSwitch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = false
	m.killReason = ""
}

func (m *Manager) KillSwitchReason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.killReason
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		KillSwitch:       m.killSwitch,
		DailyPnL:         m.dailyPnL,
		MaxDailyLoss:     m.cfg.MaxDailyLoss,
		CooldownUntil:    m.cooldownUntil,
		TotalNotional:    m.notional,
		MaxNotional:      m.cfg.MaxNotional,
		OpenOrdersVenueA: m.openOrdersA,
		OpenOrdersVenueB: m.openOrdersB,
		Busy:             m.busy,
		CalendarDate:     m.calendarDate,
	}
}

func (m *Manager) String() string {
	s := m.Snapshot()
	return fmt.Sprintf("risk[pnl=%s notional=%s kill=%t busy=%t]", s.DailyPnL, s.TotalNotional, s.KillSwitch, s.Busy)
}
