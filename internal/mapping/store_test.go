package mapping

import (
	"testing"
	"time"

	"github.com/arbengine/boxarb/internal/interval"
)

func TestSetGetClear(t *testing.T) {
	s := NewStore()
	key := interval.Key{StartTs: 0, EndTs: 900}
	m := Mapping{
		VenueA:       VenueAIdentity{UpID: "up-1", DownID: "down-1", CloseTs: 900},
		VenueB:       VenueBIdentity{MarketID: "mkt-1", SideMapping: SideUp, CloseTs: 900},
		DiscoveredAt: time.Unix(800, 0),
	}
	s.SetMapping(key, m)

	got, ok := s.GetMapping(key)
	if !ok {
		t.Fatal("expected mapping present")
	}
	if got.VenueA.UpID != "up-1" {
		t.Fatalf("expected up-1, got %s", got.VenueA.UpID)
	}

	s.Clear(key)
	if _, ok := s.GetMapping(key); ok {
		t.Fatal("expected mapping cleared")
	}
}

func TestVerifyEquivalenceSuccess(t *testing.T) {
	m := Mapping{
		VenueA: VenueAIdentity{CloseTs: 900},
		VenueB: VenueBIdentity{CloseTs: 900},
	}
	metaA := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: true}
	metaB := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: true}

	ok, err := VerifyEquivalence(m, metaA, metaB)
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyEquivalenceCloseTsMismatch(t *testing.T) {
	m := Mapping{
		VenueA: VenueAIdentity{CloseTs: 900},
		VenueB: VenueBIdentity{CloseTs: 901},
	}
	ok, err := VerifyEquivalence(m, Metadata{SettlementRuleKnown: true}, Metadata{SettlementRuleKnown: true})
	if ok || err == nil {
		t.Fatal("expected failure on close timestamp mismatch")
	}
}

func TestVerifyEquivalenceUnknownRuleFailsClosed(t *testing.T) {
	m := Mapping{
		VenueA: VenueAIdentity{CloseTs: 900},
		VenueB: VenueBIdentity{CloseTs: 900},
	}
	metaA := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: false}
	metaB := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true}
	ok, err := VerifyEquivalence(m, metaA, metaB)
	if ok || err == nil {
		t.Fatal("expected failure when settlement rule is unknown")
	}
}

func TestVerifyEquivalenceSymbolMismatch(t *testing.T) {
	m := Mapping{
		VenueA: VenueAIdentity{CloseTs: 900},
		VenueB: VenueBIdentity{CloseTs: 900},
	}
	metaA := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: true}
	metaB := Metadata{UnderlyingSymbol: "ETH", SettlementRuleKnown: true, ReferencePriceAbove: true}
	ok, err := VerifyEquivalence(m, metaA, metaB)
	if ok || err == nil {
		t.Fatal("expected failure on underlying symbol mismatch")
	}
}

func TestVerifyEquivalenceSettlementRuleMismatch(t *testing.T) {
	m := Mapping{
		VenueA: VenueAIdentity{CloseTs: 900},
		VenueB: VenueBIdentity{CloseTs: 900},
	}
	metaA := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: true}
	metaB := Metadata{UnderlyingSymbol: "BTC", SettlementRuleKnown: true, ReferencePriceAbove: false}
	ok, err := VerifyEquivalence(m, metaA, metaB)
	if ok || err == nil {
		t.Fatal("expected failure on settlement rule mismatch")
	}
}
