package quote

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Level is a single price/size pair in a bid ladder.
type Level struct {
	Price decimal.Decimal
	Size  int64
}

// Ladder is a price-sorted bid ladder for one outcome side of a bid-only
// venue. Levels are kept in descending price order so Best() is O(1);
// lookup and insertion for an arbitrary price use binary search over the
// sorted slice to keep per-update work logarithmic in ladder depth, per
// SPEC_FULL.md §4.3/§9. A third-party ordered-map was considered for this
// role (see DESIGN.md) and rejected in favor of this slice, since the
// ladder is the only ordered-collection need in the module.
type Ladder struct {
	levels []Level // descending by Price
}

func NewLadder() *Ladder {
	return &Ladder{}
}

// find returns the index of the level at price, and whether it was found.
// Because levels are descending, the predicate "level price is not above
// price" is false then true across the slice, as sort.Search requires.
func (l *Ladder) find(price decimal.Decimal) (int, bool) {
	n := len(l.levels)
	idx := sort.Search(n, func(i int) bool {
		return !l.levels[i].Price.GreaterThan(price)
	})
	if idx < n && l.levels[idx].Price.Equal(price) {
		return idx, true
	}
	return idx, false
}

// Apply applies a single delta to the ladder. delta > 0 inserts or
// increments the level at price; delta <= 0 decrements it and removes the
// level once its resulting quantity is <= 0, per §4.3.
func (l *Ladder) Apply(price decimal.Decimal, delta int64) {
	idx, found := l.find(price)
	if delta > 0 {
		if found {
			l.levels[idx].Size += delta
			return
		}
		l.levels = append(l.levels, Level{})
		copy(l.levels[idx+1:], l.levels[idx:])
		l.levels[idx] = Level{Price: price, Size: delta}
		return
	}
	if !found {
		return
	}
	l.levels[idx].Size += delta // delta <= 0
	if l.levels[idx].Size <= 0 {
		l.levels = append(l.levels[:idx], l.levels[idx+1:]...)
	}
}

// Set replaces (or removes, if size<=0) the level at price outright, used
// for full-snapshot application rather than incremental deltas.
func (l *Ladder) Set(price decimal.Decimal, size int64) {
	idx, found := l.find(price)
	if size <= 0 {
		if found {
			l.levels = append(l.levels[:idx], l.levels[idx+1:]...)
		}
		return
	}
	if found {
		l.levels[idx].Size = size
		return
	}
	l.levels = append(l.levels, Level{})
	copy(l.levels[idx+1:], l.levels[idx:])
	l.levels[idx] = Level{Price: price, Size: size}
}

// Best returns the highest-priced level, if any.
func (l *Ladder) Best() (price decimal.Decimal, size int64, ok bool) {
	if len(l.levels) == 0 {
		return decimal.Zero, 0, false
	}
	return l.levels[0].Price, l.levels[0].Size, true
}

// Depth sums size across the top n levels.
func (l *Ladder) Depth(n int) int64 {
	var total int64
	for i := 0; i < n && i < len(l.levels); i++ {
		total += l.levels[i].Size
	}
	return total
}

// Clear removes all levels, called by the rollover orchestrator.
func (l *Ladder) Clear() {
	l.levels = l.levels[:0]
}

// Len reports the number of distinct price levels currently held.
func (l *Ladder) Len() int {
	return len(l.levels)
}
