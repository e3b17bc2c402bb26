// Package alloc provides the two allocator primitives the kernel's resource
// pools are built from.
//
// # Overview
//
// Every resource the kernel hands out is either an interval of a linear space
// (virtual addresses, physical memory) or a numbered unit (page frames,
// capability slots, space and clist identifiers). This package has one
// allocator for each:
//
//   - RangeAllocator: variable-sized intervals from an ordered free list
//   - Bitmap: fixed-size numbered units, one bit per unit
//
// Both take their request as a value that also carries the result back:
//
//	r, err := ra.Alloc(alloc.AnyRange(0x2000))            // anywhere
//	r, err = ra.Alloc(alloc.ExactRange(0x8000_0000, 0x1000)) // exactly here
//
//	u, err := bm.Alloc(alloc.AnyUnit())    // lowest free unit
//	u, err = bm.Alloc(alloc.ExactUnit(7))  // unit 7
//
// # Errors
//
// Resource conditions come back as sentinel errors and leave the allocator
// untouched:
//
//   - ErrExhausted: nothing free is large enough
//   - ErrInUse: the exact range or unit collides with an allocation
//   - ErrOutOfRange: the exact range or unit is outside the allocator
//   - ErrInvalidArgument: a malformed request, e.g. a zero size
//
// Programming errors panic with a *PreconditionError. Double frees and frees
// outside the allocator are programming errors.
//
// # Coalescing
//
// RangeAllocator.Free merges the returned interval with the free intervals
// directly before and after it, so freeing everything always restores a single
// free interval spanning the allocator.
//
// # Concurrency
//
// Nothing here locks. Callers sharing an allocator between goroutines
// serialise access themselves.
//
// # Debugging
//
// Set KALLOC_LOG_ALLOC=1 to log failed allocations with free-space figures to
// stderr.
package alloc
