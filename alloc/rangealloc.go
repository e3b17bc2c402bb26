package alloc

import (
	"github.com/joshuapare/kalloc/internal/align"
	"github.com/joshuapare/kalloc/internal/logger"
)

// freeRange is one free interval on the allocator's free list.
type freeRange struct {
	base Word
	size Word
	next *freeRange
}

func (f *freeRange) end() Word { return f.base + f.size }

// RangeAllocator hands out variable-sized intervals from [base, base+size).
//
// It keeps a singly-linked list of free intervals sorted by base and rooted
// at a sentinel head. Allocated intervals are implicit: anything inside the
// bound that is not on the free list. Adjacent free intervals never sit next
// to each other on the list because Free merges them.
//
// Every operation is O(number of free intervals).
//
// NOT thread-safe.
type RangeAllocator struct {
	base      Word
	size      Word
	head      freeRange // sentinel; head.next is the lowest free interval
	fragments int       // entries on the free list
	allocated Word
	stats     Stats
}

// NewRange creates a range allocator whose whole space [base, base+size) is
// free. It panics on an empty or overflowing range.
func NewRange(base, size Word) *RangeAllocator {
	if size == 0 {
		Fail("NewRange", "empty range at %#x", base)
	}
	if _, ok := align.End(base, size); !ok {
		Fail("NewRange", "range %#x+%#x overflows", base, size)
	}
	ra := &RangeAllocator{base: base, size: size}
	ra.head.next = &freeRange{base: base, size: size}
	ra.fragments = 1
	return ra
}

// Alloc allocates an interval.
//
// Anonymous requests are first fit: the lowest free interval with room gives
// up its leading req.Size bytes. They fail with ErrExhausted.
//
// Exact requests must lie inside the bound (ErrOutOfRange) and entirely inside
// one free interval (ErrInUse). The interval is split around the request.
//
// A zero size is ErrInvalidArgument. On failure nothing changes.
func (ra *RangeAllocator) Alloc(req RangeItem) (RangeItem, error) {
	ra.stats.AllocCalls++

	if req.Size == 0 {
		ra.stats.AllocFailed++
		return RangeItem{}, ErrInvalidArgument
	}

	var (
		got RangeItem
		err error
	)
	if req.IsAnonymous() {
		got, err = ra.allocAny(req.Size)
	} else {
		got, err = ra.allocExact(req.Base, req.Size)
	}
	if err != nil {
		ra.stats.AllocFailed++
		if logger.Debugging() {
			logger.L.Debug("range alloc failed",
				"req", req.String(), "err", err,
				"available", ra.Available(), "largest", ra.Largest(), "fragments", ra.fragments)
		}
		return RangeItem{}, err
	}
	ra.allocated += got.Size
	return got, nil
}

func (ra *RangeAllocator) allocAny(n Word) (RangeItem, error) {
	for prev, cur := &ra.head, ra.head.next; cur != nil; prev, cur = cur, cur.next {
		if cur.size < n {
			continue
		}
		got := RangeItem{Base: cur.base, Size: n}
		if cur.size == n {
			prev.next = cur.next
			ra.fragments--
		} else {
			cur.base += n
			cur.size -= n
		}
		return got, nil
	}
	return RangeItem{}, ErrExhausted
}

func (ra *RangeAllocator) allocExact(base, n Word) (RangeItem, error) {
	end, ok := align.End(base, n)
	if !ok || base < ra.base || end > ra.base+ra.size {
		return RangeItem{}, ErrOutOfRange
	}

	for prev, cur := &ra.head, ra.head.next; cur != nil && cur.base <= base; prev, cur = cur, cur.next {
		curEnd := cur.end()
		if base >= curEnd {
			continue
		}
		if end > curEnd {
			// Starts free but runs into an allocated interval.
			break
		}

		lead := base - cur.base
		trail := curEnd - end
		switch {
		case lead == 0 && trail == 0:
			prev.next = cur.next
			ra.fragments--
		case lead == 0:
			cur.base = end
			cur.size = trail
		case trail == 0:
			cur.size = lead
		default:
			cur.size = lead
			cur.next = &freeRange{base: end, size: trail, next: cur.next}
			ra.fragments++
			ra.stats.Splits++
		}
		return RangeItem{Base: base, Size: n}, nil
	}
	return RangeItem{}, ErrInUse
}

// Free returns r to the free list, merging it with the free intervals
// immediately before and after it when they touch.
//
// r must be an allocated interval inside the bound. Freeing anything that
// overlaps free space (a double free) panics without changing anything.
func (ra *RangeAllocator) Free(r RangeItem) {
	ra.stats.FreeCalls++

	if r.IsAnonymous() || r.Size == 0 {
		Fail("RangeAllocator.Free", "cannot free %s", r)
	}
	end, ok := align.End(r.Base, r.Size)
	if !ok || r.Base < ra.base || end > ra.base+ra.size {
		Fail("RangeAllocator.Free", "%s outside %s", r, ra.Bounds())
	}

	prev := &ra.head
	for prev.next != nil && prev.next.base < r.Base {
		prev = prev.next
	}
	next := prev.next

	hasPrev := prev != &ra.head
	if hasPrev && prev.end() > r.Base {
		Fail("RangeAllocator.Free", "%s overlaps free %s", r, RangeItem{Base: prev.base, Size: prev.size})
	}
	if next != nil && next.base < end {
		Fail("RangeAllocator.Free", "%s overlaps free %s", r, RangeItem{Base: next.base, Size: next.size})
	}

	mergePrev := hasPrev && prev.end() == r.Base
	mergeNext := next != nil && next.base == end

	switch {
	case mergePrev && mergeNext:
		prev.size += r.Size + next.size
		prev.next = next.next
		ra.fragments--
		ra.stats.CoalesceBackward++
		ra.stats.CoalesceForward++
	case mergePrev:
		prev.size += r.Size
		ra.stats.CoalesceBackward++
	case mergeNext:
		next.base = r.Base
		next.size += r.Size
		ra.stats.CoalesceForward++
	default:
		prev.next = &freeRange{base: r.Base, size: r.Size, next: next}
		ra.fragments++
	}
	ra.allocated -= r.Size
}

// IsFree reports whether r lies entirely inside one free interval.
func (ra *RangeAllocator) IsFree(r RangeItem) bool {
	if r.IsAnonymous() || r.Size == 0 {
		return false
	}
	for cur := ra.head.next; cur != nil && cur.base <= r.Base; cur = cur.next {
		if (RangeItem{Base: cur.base, Size: cur.size}).Contains(r) {
			return true
		}
	}
	return false
}

// IsAllocated reports whether every byte of r is inside the bound and allocated.
func (ra *RangeAllocator) IsAllocated(r RangeItem) bool {
	if r.IsAnonymous() || r.Size == 0 || !ra.Bounds().Contains(r) {
		return false
	}
	for cur := ra.head.next; cur != nil && cur.base < r.End(); cur = cur.next {
		if (RangeItem{Base: cur.base, Size: cur.size}).Overlaps(r) {
			return false
		}
	}
	return true
}

// FreeRanges returns a snapshot of the free list in ascending order.
func (ra *RangeAllocator) FreeRanges() []RangeItem {
	out := make([]RangeItem, 0, ra.fragments)
	for cur := ra.head.next; cur != nil; cur = cur.next {
		out = append(out, RangeItem{Base: cur.base, Size: cur.size})
	}
	return out
}

// Largest returns the size of the largest free interval.
func (ra *RangeAllocator) Largest() Word {
	var largest Word
	for cur := ra.head.next; cur != nil; cur = cur.next {
		largest = max(largest, cur.size)
	}
	return largest
}

// Fragments returns the number of free intervals.
func (ra *RangeAllocator) Fragments() int { return ra.fragments }

// Bounds returns the whole interval managed by the allocator.
func (ra *RangeAllocator) Bounds() RangeItem { return RangeItem{Base: ra.base, Size: ra.size} }

// Allocated returns the number of allocated bytes.
func (ra *RangeAllocator) Allocated() Word { return ra.allocated }

// Available returns the number of free bytes.
func (ra *RangeAllocator) Available() Word { return ra.size - ra.allocated }

// Stats returns a copy of the allocator counters.
func (ra *RangeAllocator) Stats() Stats { return ra.stats }
