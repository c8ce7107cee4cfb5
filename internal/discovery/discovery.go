// Package discovery implements the external collaborator SPEC_FULL.md §1
// explicitly places out of scope: locating each venue's native market
// identifiers for an upcoming interval and attesting they settle the
// same underlying. Real discovery means querying each venue's
// market-listing API and applying venue-specific symbol-matching
// heuristics; neither belongs in this engine. What this package
// provides instead is a Static discoverer that reads a pre-resolved
// interval→identifier schedule from a YAML file — the same
// "yaml.Unmarshal into a typed struct" shape internal/config uses — so
// the engine has a concrete, testable Discoverer to wire against
// without this module ever talking to a venue's listing endpoint.
package discovery

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/arbengine/boxarb/internal/interval"
	"github.com/arbengine/boxarb/internal/mapping"
)

// ScheduleEntry is one interval's pre-resolved identifiers and
// settlement metadata, as an operator (or an out-of-scope discovery
// service) would publish them.
type ScheduleEntry struct {
	StartTs          int64                  `yaml:"start_ts"`
	EndTs            int64                  `yaml:"end_ts"`
	VenueA           mapping.VenueAIdentity `yaml:"venue_a"`
	VenueB           mapping.VenueBIdentity `yaml:"venue_b"`
	StrikePrice      float64                `yaml:"strike_price"`
	UnderlyingSymbol string                 `yaml:"underlying_symbol"`
}

// Static is a Discoverer backed by an in-memory schedule, keyed by
// interval.Key and refreshable at runtime via Set.
type Static struct {
	mu      sync.RWMutex
	entries map[interval.Key]ScheduleEntry
}

func NewStatic() *Static {
	return &Static{entries: make(map[interval.Key]ScheduleEntry)}
}

// LoadStaticFile reads a YAML list of ScheduleEntry into a new Static.
func LoadStaticFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: read schedule: %w", err)
	}
	var raw []ScheduleEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("discovery: parse schedule: %w", err)
	}
	s := NewStatic()
	for _, e := range raw {
		s.Set(e)
	}
	return s, nil
}

// Set installs or replaces the schedule entry for its interval.
func (s *Static) Set(e ScheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[interval.Key{StartTs: e.StartTs, EndTs: e.EndTs}] = e
}

// Discover satisfies engine.Discoverer. It fails closed — returning an
// error rather than a zero-value Mapping — when no schedule entry
// covers key, matching the engine's fail-closed handling of a
// discovery error at PREPARE.
func (s *Static) Discover(_ context.Context, key interval.Key) (mapping.Mapping, mapping.Metadata, mapping.Metadata, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return mapping.Mapping{}, mapping.Metadata{}, mapping.Metadata{}, fmt.Errorf("discovery: no schedule entry for interval [%d, %d)", key.StartTs, key.EndTs)
	}

	m := mapping.Mapping{
		VenueA:      e.VenueA,
		VenueB:      e.VenueB,
		StrikePrice: e.StrikePrice,
	}
	meta := mapping.Metadata{
		UnderlyingSymbol:    e.UnderlyingSymbol,
		SettlementRuleKnown: true,
		ReferencePriceAbove: e.VenueA.AboveIsUp,
	}
	return m, meta, meta, nil
}
