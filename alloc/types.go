package alloc

import "fmt"

// Word is the unit of every address, size and unit number handled here.
type Word = uint64

// Anonymous marks a request whose placement is left to the allocator. No
// allocator bound can contain it, because bounds may not reach 2^64.
const Anonymous Word = ^Word(0)

// RangeItem is both the request and the result of a range allocation.
// Before the call Base is either Anonymous or the exact base wanted; after a
// successful call it is the base that was handed out.
type RangeItem struct {
	Base Word
	Size Word
}

// AnyRange requests size bytes anywhere in the allocator's space.
func AnyRange(size Word) RangeItem {
	return RangeItem{Base: Anonymous, Size: size}
}

// ExactRange requests exactly [base, base+size).
func ExactRange(base, size Word) RangeItem {
	return RangeItem{Base: base, Size: size}
}

// IsAnonymous reports whether the item asks the allocator to pick the base.
func (r RangeItem) IsAnonymous() bool { return r.Base == Anonymous }

// End returns the exclusive end of the interval. Meaningless for anonymous items.
func (r RangeItem) End() Word { return r.Base + r.Size }

// Contains reports whether o lies entirely inside r.
func (r RangeItem) Contains(o RangeItem) bool {
	return o.Base >= r.Base && o.End() <= r.End() && o.Base <= o.End()
}

// Overlaps reports whether r and o share at least one byte.
func (r RangeItem) Overlaps(o RangeItem) bool {
	return r.Size != 0 && o.Size != 0 && r.Base < o.End() && o.Base < r.End()
}

func (r RangeItem) String() string {
	if r.IsAnonymous() {
		return fmt.Sprintf("[any, +%#x)", r.Size)
	}
	return fmt.Sprintf("[%#x, %#x)", r.Base, r.End())
}

// BitmapItem is both the request and the result of a unit allocation.
type BitmapItem struct {
	Unit Word
}

// AnyUnit requests the lowest free unit.
func AnyUnit() BitmapItem { return BitmapItem{Unit: Anonymous} }

// ExactUnit requests unit u.
func ExactUnit(u Word) BitmapItem { return BitmapItem{Unit: u} }

// IsAnonymous reports whether the item asks the allocator to pick the unit.
func (b BitmapItem) IsAnonymous() bool { return b.Unit == Anonymous }

func (b BitmapItem) String() string {
	if b.IsAnonymous() {
		return "unit(any)"
	}
	return fmt.Sprintf("unit(%d)", b.Unit)
}

// Stats holds allocator counters, mostly for tests and the CLI.
type Stats struct {
	AllocCalls       int // Total Alloc/AllocSpan calls
	AllocFailed      int // Calls that returned an error
	FreeCalls        int // Total Free/FreeSpan calls
	Splits           int // Free intervals split in two by an exact allocation
	CoalesceForward  int // Frees merged with the following free interval
	CoalesceBackward int // Frees merged with the preceding free interval
	HintHits         int // Anonymous bitmap allocations served at the hint
}

// Compile-time interface checks.
var (
	_ RangeSource = (*RangeAllocator)(nil)
	_ UnitSource  = (*Bitmap)(nil)
)

// RangeSource is the contract the pool layer relies on for range-backed pools.
type RangeSource interface {
	Alloc(req RangeItem) (RangeItem, error)
	Free(r RangeItem)
	IsAllocated(r RangeItem) bool
	FreeRanges() []RangeItem
	Largest() Word
	Fragments() int
	Bounds() RangeItem
	Allocated() Word
	Available() Word
	Stats() Stats
}

// UnitSource is the contract the pool layer relies on for bitmap-backed pools.
type UnitSource interface {
	Alloc(req BitmapItem) (BitmapItem, error)
	AllocSpan(req BitmapItem, count Word) (BitmapItem, error)
	Free(unit Word)
	FreeSpan(first, count Word)
	IsAllocated(unit Word) bool
	Base() Word
	Size() Word
	Allocated() Word
	Available() Word
	Stats() Stats
}
