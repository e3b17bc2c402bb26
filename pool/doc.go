// Package pool builds resource pools on top of the alloc primitives and lets
// any pool carve a child out of its own space.
//
// # Overview
//
// A pool owns one allocator and, unless it is a root, a reference to the pool
// it was derived from. Deriving a child reserves the child's whole space in the
// parent's allocator; destroying the child hands it back. Four kinds exist:
//
//   - VMPool: virtual address ranges (range allocator)
//   - SegmentPool: physical ranges of any granularity (range allocator)
//   - PagePool: physical memory in whole pages (bitmap of page frames)
//   - CapList: capability and object identifiers (bitmap, root only)
//
// Pools are configured through an Attr:
//
//	vm, err := pool.NewVMPool(pool.NewAttr().SetRange(0x1000_0000, 0x3000_0000))
//	child, err := vm.Derive(pool.NewAttr().SetSize(0x10_0000).SetName("stack"))
//
// # Derivation rules
//
// A VM pool derives from a VM pool and a segment pool from a segment pool.
// Page pools derive from page pools or from segment pools. Any other pairing
// fails with ErrParentKind. Capability lists are always roots.
//
// An Attr without a parent and with only a size cannot describe a root, so the
// constructors panic on it.
//
// # Lifetime
//
// Destroy panics while the pool still has allocations, and a live child is an
// allocation in its parent, so a tree can only be torn down leaf first. Every
// method of a destroyed pool panics.
//
// # Concurrency
//
// Pools do not lock. Share them between goroutines only behind your own mutex.
package pool
