package pool

import (
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
)

// rangePool is a pool backed by a range allocator. VMPool and SegmentPool
// embed it.
type rangePool struct {
	node
	ra alloc.RangeSource
}

func (p *rangePool) init(k Kind, name string, r alloc.RangeItem) {
	p.kind = k
	p.name = name
	p.ra = alloc.NewRange(r.Base, r.Size)
}

// Alloc allocates a range from the pool. See alloc.RangeAllocator.Alloc.
func (p *rangePool) Alloc(req alloc.RangeItem) (alloc.RangeItem, error) {
	p.check("Alloc")
	r, err := p.ra.Alloc(req)
	if err != nil {
		return alloc.RangeItem{}, fmt.Errorf("%s pool %q: alloc %s: %w", p.kind, p.name, req, err)
	}
	return r, nil
}

// Free returns r to the pool. It panics on a double free and on ranges that
// belong to a live child.
func (p *rangePool) Free(r alloc.RangeItem) {
	p.check("Free")
	p.checkNotChild("Free", r)
	p.ra.Free(r)
}

// IsAllocated reports whether every byte of r is allocated, to a caller or to
// a child.
func (p *rangePool) IsAllocated(r alloc.RangeItem) bool {
	p.check("IsAllocated")
	return p.ra.IsAllocated(r)
}

// FreeRanges returns the pool's free intervals in ascending order.
func (p *rangePool) FreeRanges() []alloc.RangeItem {
	p.check("FreeRanges")
	return p.ra.FreeRanges()
}

// Largest returns the largest free interval's size.
func (p *rangePool) Largest() alloc.Word {
	p.check("Largest")
	return p.ra.Largest()
}

func (p *rangePool) Bounds() alloc.RangeItem {
	p.check("Bounds")
	return p.ra.Bounds()
}

func (p *rangePool) Allocated() alloc.Word {
	p.check("Allocated")
	return p.ra.Allocated()
}

func (p *rangePool) Available() alloc.Word {
	p.check("Available")
	return p.ra.Available()
}

func (p *rangePool) Stats() alloc.Stats {
	p.check("Stats")
	return p.ra.Stats()
}

func (p *rangePool) Destroy() {
	p.destroy(p.ra.Allocated())
}

// reserve takes the space for a child out of the pool.
func (p *rangePool) reserve(k Kind, a *Attr) (alloc.RangeItem, error) {
	r, err := p.ra.Alloc(a.Extent())
	if err != nil {
		return alloc.RangeItem{}, deriveErr(&p.node, k, a, err)
	}
	return r, nil
}

// reserveAligned is reserve for children that need an aligned base. Anonymous
// requests take the lowest free interval that has room after rounding its base
// up to boundary.
func (p *rangePool) reserveAligned(k Kind, a *Attr, ext alloc.RangeItem, boundary alloc.Word) (alloc.RangeItem, error) {
	if !ext.IsAnonymous() {
		r, err := p.ra.Alloc(ext)
		if err != nil {
			return alloc.RangeItem{}, deriveErr(&p.node, k, a, err)
		}
		return r, nil
	}
	for _, fr := range p.ra.FreeRanges() {
		base, ok := align.UpChecked(fr.Base, boundary)
		if !ok || base >= fr.End() || fr.End()-base < ext.Size {
			continue
		}
		r, err := p.ra.Alloc(alloc.ExactRange(base, ext.Size))
		if err != nil {
			return alloc.RangeItem{}, deriveErr(&p.node, k, a, err)
		}
		return r, nil
	}
	return alloc.RangeItem{}, deriveErr(&p.node, k, a, alloc.ErrExhausted)
}

// VMPool hands out virtual address ranges.
type VMPool struct {
	rangePool
}

// NewVMPool creates a root VM pool from a.SetRange, or derives one from
// a.SetParent when set.
func NewVMPool(a *Attr) (*VMPool, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("new vm pool: %w", err)
	}
	if !a.isRoot("NewVMPool") {
		parent, ok := a.parent.(*VMPool)
		if !ok {
			return nil, fmt.Errorf("new vm pool from %s pool: %w", a.parent.Kind(), ErrParentKind)
		}
		return parent.Derive(a)
	}
	return newVMPool(rootName(a, KindVM), a.Extent()), nil
}

func newVMPool(name string, r alloc.RangeItem) *VMPool {
	p := &VMPool{}
	p.init(KindVM, name, r)
	p.self = p
	return p
}

// Derive carves a child VM pool out of p.
func (p *VMPool) Derive(a *Attr) (*VMPool, error) {
	p.check("VMPool.Derive")
	if err := p.checkAttr(a); err != nil {
		return nil, fmt.Errorf("derive vm pool from %q: %w", p.name, err)
	}
	r, err := p.reserve(KindVM, a)
	if err != nil {
		return nil, err
	}
	child := newVMPool(a.name, r)
	p.adopt(&child.node, r, func() { p.ra.Free(r) })
	return child, nil
}

// SegmentPool hands out physical ranges of any granularity. Its page size is
// carried for the mapping code and never constrains allocation.
type SegmentPool struct {
	rangePool
	pageSize alloc.Word
}

// NewSegmentPool creates a root segment pool from a.SetRange, or derives one
// from a.SetParent when set.
func NewSegmentPool(a *Attr) (*SegmentPool, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("new segment pool: %w", err)
	}
	if !a.isRoot("NewSegmentPool") {
		parent, ok := a.parent.(*SegmentPool)
		if !ok {
			return nil, fmt.Errorf("new segment pool from %s pool: %w", a.parent.Kind(), ErrParentKind)
		}
		return parent.Derive(a)
	}
	ps := a.pageSize
	if ps == 0 {
		ps = align.DefaultPageSize
	}
	return newSegmentPool(rootName(a, KindSegment), a.Extent(), ps), nil
}

func newSegmentPool(name string, r alloc.RangeItem, ps alloc.Word) *SegmentPool {
	p := &SegmentPool{pageSize: ps}
	p.init(KindSegment, name, r)
	p.self = p
	return p
}

// PageSize returns the mapping page size recorded for the segment.
func (p *SegmentPool) PageSize() alloc.Word { return p.pageSize }

// Derive carves a child segment pool out of p. The child inherits p's page
// size unless a sets one.
func (p *SegmentPool) Derive(a *Attr) (*SegmentPool, error) {
	p.check("SegmentPool.Derive")
	if err := p.checkAttr(a); err != nil {
		return nil, fmt.Errorf("derive segment pool from %q: %w", p.name, err)
	}
	r, err := p.reserve(KindSegment, a)
	if err != nil {
		return nil, err
	}
	ps := a.pageSize
	if ps == 0 {
		ps = p.pageSize
	}
	child := newSegmentPool(a.name, r, ps)
	p.adopt(&child.node, r, func() { p.ra.Free(r) })
	return child, nil
}

// DerivePages carves a page pool out of p. The size is rounded up to whole
// pages and the base is page aligned; an explicit base that is not aligned
// panics.
func (p *SegmentPool) DerivePages(a *Attr) (*PagePool, error) {
	p.check("SegmentPool.DerivePages")
	if err := p.checkAttr(a); err != nil {
		return nil, fmt.Errorf("derive page pool from %q: %w", p.name, err)
	}
	ps := a.pageSize
	if ps == 0 {
		ps = p.pageSize
	}
	ext := a.Extent()
	if !ext.IsAnonymous() && !align.IsAligned(ext.Base, ps) {
		alloc.Fail("SegmentPool.DerivePages", "base %#x is not aligned to page size %#x", ext.Base, ps)
	}
	size, ok := align.UpChecked(ext.Size, ps)
	if !ok {
		return nil, deriveErr(&p.node, KindPage, a, ErrRangeOverflow)
	}
	ext.Size = size

	r, err := p.reserveAligned(KindPage, a, ext, ps)
	if err != nil {
		return nil, err
	}
	child := newPagePool(a.name, r, ps)
	p.adopt(&child.node, r, func() { p.ra.Free(r) })
	return child, nil
}
