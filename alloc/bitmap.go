package alloc

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/joshuapare/kalloc/internal/align"
	"github.com/joshuapare/kalloc/internal/logger"
)

// Bitmap hands out individual numbered units from [base, base+size) using one
// bit per unit. A set bit means allocated.
//
// Anonymous requests always return the lowest free unit. posGuess caches where
// the search should start: every index below it is known to be allocated, so
// scanning from it never skips a lower free unit.
//
// NOT thread-safe.
type Bitmap struct {
	base     Word
	size     Word
	posGuess Word // index (not unit); all indices below are allocated
	used     Word
	bits     *bitset.BitSet
	stats    Stats
}

// NewBitmap creates a bitmap allocator over units [base, base+size), all free.
// It panics on an empty or overflowing range.
func NewBitmap(base, size Word) *Bitmap {
	if size == 0 {
		Fail("NewBitmap", "empty unit range at %d", base)
	}
	if _, ok := align.End(base, size); !ok {
		Fail("NewBitmap", "unit range %d+%d overflows", base, size)
	}
	return &Bitmap{
		base: base,
		size: size,
		bits: bitset.New(uint(size)),
	}
}

// Alloc allocates a single unit. See AllocSpan.
func (b *Bitmap) Alloc(req BitmapItem) (BitmapItem, error) {
	return b.AllocSpan(req, 1)
}

// AllocSpan allocates count contiguous units.
//
// An anonymous request takes the lowest-numbered run of count free units and
// fails with ErrExhausted if there is none. An exact request fails with
// ErrOutOfRange if the run leaves the bound and ErrInUse if any unit in it is
// already allocated. On failure no unit or search hint changes; only the
// call and failure counters in Stats move.
func (b *Bitmap) AllocSpan(req BitmapItem, count Word) (BitmapItem, error) {
	b.stats.AllocCalls++

	if count == 0 {
		b.stats.AllocFailed++
		return BitmapItem{}, ErrInvalidArgument
	}

	var idx Word
	if req.IsAnonymous() {
		i, ok := b.findRun(count)
		if !ok {
			b.stats.AllocFailed++
			if logger.Debugging() {
				logger.L.Debug("bitmap exhausted",
					"base", b.base, "size", b.size, "want", count, "free", b.Available())
			}
			return BitmapItem{}, ErrExhausted
		}
		idx = i
	} else {
		if !b.inBounds(req.Unit, count) {
			b.stats.AllocFailed++
			return BitmapItem{}, ErrOutOfRange
		}
		idx = req.Unit - b.base
		if !b.runFree(idx, count) {
			b.stats.AllocFailed++
			return BitmapItem{}, ErrInUse
		}
	}

	for i := idx; i < idx+count; i++ {
		b.bits.Set(uint(i))
	}
	b.used += count
	if idx == b.posGuess {
		b.posGuess = idx + count
	}

	return BitmapItem{Unit: b.base + idx}, nil
}

// findRun returns the lowest index starting count free units. The hint only
// moves when a run is found.
func (b *Bitmap) findRun(count Word) (Word, bool) {
	first, ok := b.bits.NextClear(uint(b.posGuess))
	if !ok {
		return 0, false
	}
	lowest := Word(first)

	for {
		if count > b.size-Word(first) {
			return 0, false
		}
		if count == 1 {
			break
		}
		next, ok := b.bits.NextSet(first)
		if !ok || Word(next)-Word(first) >= count {
			break
		}
		first, ok = b.bits.NextClear(next)
		if !ok {
			return 0, false
		}
	}

	// Everything between the old hint and lowest is allocated.
	if lowest == b.posGuess {
		b.stats.HintHits++
	}
	b.posGuess = lowest
	return Word(first), true
}

// runFree reports whether indices [idx, idx+count) are all free.
func (b *Bitmap) runFree(idx, count Word) bool {
	next, ok := b.bits.NextSet(uint(idx))
	return !ok || Word(next) >= idx+count
}

// inBounds reports whether units [unit, unit+count) lie inside the bitmap.
func (b *Bitmap) inBounds(unit, count Word) bool {
	if unit < b.base || unit-b.base >= b.size {
		return false
	}
	return count <= b.size-(unit-b.base)
}

// Free releases a single unit. It panics if the unit is outside the bitmap or
// not allocated.
func (b *Bitmap) Free(unit Word) {
	b.FreeSpan(unit, 1)
}

// FreeSpan releases count contiguous units starting at first. Every unit in
// the span must be allocated; otherwise it panics without changing anything.
func (b *Bitmap) FreeSpan(first, count Word) {
	b.stats.FreeCalls++

	if count == 0 || !b.inBounds(first, count) {
		Fail("Bitmap.Free", "units %d+%d outside [%d, %d)", first, count, b.base, b.base+b.size)
	}
	idx := first - b.base
	for i := idx; i < idx+count; i++ {
		if !b.bits.Test(uint(i)) {
			Fail("Bitmap.Free", "unit %d is not allocated", b.base+i)
		}
	}

	for i := idx; i < idx+count; i++ {
		b.bits.Clear(uint(i))
	}
	b.used -= count
	if idx < b.posGuess {
		b.posGuess = idx
	}
}

// IsAllocated reports whether unit is allocated. Units outside the bitmap are
// not managed here and report false.
func (b *Bitmap) IsAllocated(unit Word) bool {
	if !b.inBounds(unit, 1) {
		return false
	}
	return b.bits.Test(uint(unit - b.base))
}

// ForEachAllocated calls fn for every allocated unit in ascending order until
// fn returns false.
func (b *Bitmap) ForEachAllocated(fn func(unit Word) bool) {
	for i, ok := b.bits.NextSet(0); ok; i, ok = b.bits.NextSet(i + 1) {
		if !fn(b.base + Word(i)) {
			return
		}
	}
}

// Base returns the first unit managed by the bitmap.
func (b *Bitmap) Base() Word { return b.base }

// Size returns the number of units managed by the bitmap.
func (b *Bitmap) Size() Word { return b.size }

// Allocated returns the number of allocated units.
func (b *Bitmap) Allocated() Word { return b.used }

// Available returns the number of free units.
func (b *Bitmap) Available() Word { return b.size - b.used }

// Stats returns a copy of the allocator counters.
func (b *Bitmap) Stats() Stats { return b.stats }
