package interval

import (
	"testing"
	"time"
)

func TestCurrentKeyAligned(t *testing.T) {
	s := New(15*time.Minute, 60*time.Second)
	now := time.Unix(900*5, 0) // exactly on a boundary
	k := s.CurrentKey(now)
	if k.StartTs != 4500 || k.EndTs != 5400 {
		t.Fatalf("expected [4500,5400], got [%d,%d]", k.StartTs, k.EndTs)
	}
}

func TestCurrentKeyMidInterval(t *testing.T) {
	s := New(15*time.Minute, 60*time.Second)
	now := time.Unix(4500+400, 0)
	k := s.CurrentKey(now)
	if k.StartTs != 4500 || k.EndTs != 5400 {
		t.Fatalf("expected [4500,5400], got [%d,%d]", k.StartTs, k.EndTs)
	}
}

func TestNextKey(t *testing.T) {
	s := New(15*time.Minute, 60*time.Second)
	now := time.Unix(4500+1, 0)
	nk := s.NextKey(now)
	if nk.StartTs != 5400 || nk.EndTs != 6300 {
		t.Fatalf("expected [5400,6300], got [%d,%d]", nk.StartTs, nk.EndTs)
	}
}

func TestNextEventPrepareThenRollover(t *testing.T) {
	s := New(15*time.Minute, 60*time.Second)

	beforePrepare := time.Unix(4500+800, 0) // 100s before boundary (5400)
	ev := s.NextEvent(beforePrepare)
	if ev.Kind != Prepare {
		t.Fatalf("expected PREPARE, got %v", ev.Kind)
	}

	afterPrepare := time.Unix(4500+850, 0) // 50s before boundary
	ev = s.NextEvent(afterPrepare)
	if ev.Kind != Rollover {
		t.Fatalf("expected ROLLOVER, got %v", ev.Kind)
	}
}

func TestNextEventForwardClockJumpFiresImmediateRollover(t *testing.T) {
	s := New(15*time.Minute, 60*time.Second)
	// PREPARE for [4500, 5400) is handed out at 5300.
	s.NextEvent(time.Unix(4500+800, 0))
	// Simulate an NTP step landing well past the boundary.
	now := time.Unix(4500+1000, 0)
	ev := s.NextEvent(now)
	if ev.Kind != Rollover {
		t.Fatalf("expected ROLLOVER after forward jump, got %v", ev.Kind)
	}
	if !ev.At.Equal(now) {
		t.Fatalf("expected missed rollover to fire at now, got %v", ev.At)
	}
}

func TestMsUntilRolloverNeverNegative(t *testing.T) {
	s := New(15*time.Minute, 60*time.Second)
	// 5500 lies in [5400, 6300), so 800s remain to the boundary.
	now := time.Unix(4500+1000, 0)
	if ms := s.MsUntilRollover(now); ms != 800000 {
		t.Fatalf("expected 800000 ms, got %d", ms)
	}
}
