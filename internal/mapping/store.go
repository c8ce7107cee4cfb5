// Package mapping holds, per interval key, the pair of venue-native
// market identifiers together with their deterministic equivalence
// attestation. Discovery itself is an external collaborator (see
// SPEC_FULL.md §1); this package only stores and verifies what discovery
// produces.
package mapping

import (
	"fmt"
	"sync"
	"time"

	"github.com/arbengine/boxarb/internal/interval"
)

// Side declares which venue-B side corresponds to venue-A "Up".
type Side string

const (
	SideUp   Side = "up"
	SideDown Side = "down"
)

// VenueAIdentity is the token pair for a binary-outcome venue that trades
// Yes/No as distinct tokens.
type VenueAIdentity struct {
	UpID            string
	DownID          string
	CloseTs         int64
	ReferencePrice  *float64
	AboveIsUp       bool
}

// VenueBIdentity is the market ticker plus side mapping for a venue that
// trades a single market with an implicit Up/Down resolution rule.
type VenueBIdentity struct {
	MarketID        string
	SideMapping     Side
	CloseTs         int64
	ReferencePrice  *float64
	AboveIsUp       bool
}

// Metadata is what the discovery collaborator supplies for equivalence
// verification: the underlying symbol and settlement rule, independent of
// the venue-native identifiers themselves.
type Metadata struct {
	UnderlyingSymbol string
	// SettlementRuleKnown is false when the venue metadata does not make
	// the settlement rule legible; verification fails closed in that case.
	SettlementRuleKnown bool
	ReferencePriceAbove bool
}

// Mapping is the full per-interval record.
type Mapping struct {
	VenueA       VenueAIdentity
	VenueB       VenueBIdentity
	StrikePrice  float64
	DiscoveredAt time.Time
}

// Store holds at most a handful of mappings (current + prefetched next).
// Reads and writes only ever happen from the single event loop, so no
// mutex is required for concurrency — the RWMutex below exists only so
// that a second caller would be serialized rather than racing.
type Store struct {
	mu       sync.RWMutex
	mappings map[interval.Key]Mapping
}

func NewStore() *Store {
	return &Store{mappings: make(map[interval.Key]Mapping)}
}

func (s *Store) SetMapping(key interval.Key, m Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[key] = m
}

func (s *Store) GetMapping(key interval.Key) (Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[key]
	return m, ok
}

// Clear drops the mapping for the given key, called by the rollover
// orchestrator once an interval's markets have closed.
func (s *Store) Clear(key interval.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings, key)
}

// VerifyEquivalence is purely deterministic: it never makes a network
// call and never guesses. Any unknown check fails verification.
func VerifyEquivalence(m Mapping, metaA, metaB Metadata) (bool, error) {
	if m.VenueA.CloseTs != m.VenueB.CloseTs {
		return false, fmt.Errorf("close timestamp mismatch: venueA=%d venueB=%d", m.VenueA.CloseTs, m.VenueB.CloseTs)
	}
	if !metaA.SettlementRuleKnown || !metaB.SettlementRuleKnown {
		return false, fmt.Errorf("settlement rule unknown for at least one venue")
	}
	if metaA.UnderlyingSymbol == "" || metaB.UnderlyingSymbol == "" {
		return false, fmt.Errorf("underlying symbol missing")
	}
	if metaA.UnderlyingSymbol != metaB.UnderlyingSymbol {
		return false, fmt.Errorf("underlying symbol mismatch: %q vs %q", metaA.UnderlyingSymbol, metaB.UnderlyingSymbol)
	}
	if metaA.ReferencePriceAbove != metaB.ReferencePriceAbove {
		return false, fmt.Errorf("settlement rule mismatch: venueA above=%v venueB above=%v", metaA.ReferencePriceAbove, metaB.ReferencePriceAbove)
	}
	return true, nil
}
