package pool

import (
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
)

// PagePool hands out physical memory in whole pages. Internally it is a bitmap
// of page frame numbers (address / page size).
//
// Explicit requests must be page aligned; a misaligned base is a programming
// error and panics. Sizes are rounded up to whole pages, and an anonymous
// Alloc always returns exactly one page whatever size it asks for.
type PagePool struct {
	node
	pageSize alloc.Word
	frames   alloc.UnitSource
}

// NewPagePool creates a root page pool from a.SetRange, or derives one from
// a.SetParent, which may be a page pool or a segment pool.
//
// A root range must start on a page boundary (panics otherwise) and cover a
// whole number of pages (ErrPageMultiple otherwise).
func NewPagePool(a *Attr) (*PagePool, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("new page pool: %w", err)
	}
	if !a.isRoot("NewPagePool") {
		switch parent := a.parent.(type) {
		case *PagePool:
			return parent.Derive(a)
		case *SegmentPool:
			return parent.DerivePages(a)
		default:
			return nil, fmt.Errorf("new page pool from %s pool: %w", a.parent.Kind(), ErrParentKind)
		}
	}

	ps := a.pageSize
	if ps == 0 {
		ps = align.DefaultPageSize
	}
	ext := a.Extent()
	if !align.IsAligned(ext.Base, ps) {
		alloc.Fail("NewPagePool", "base %#x is not aligned to page size %#x", ext.Base, ps)
	}
	if !align.IsAligned(ext.Size, ps) {
		return nil, fmt.Errorf("new page pool %s: %w", ext, ErrPageMultiple)
	}
	return newPagePool(rootName(a, KindPage), ext, ps), nil
}

func newPagePool(name string, r alloc.RangeItem, ps alloc.Word) *PagePool {
	p := &PagePool{
		pageSize: ps,
		frames:   alloc.NewBitmap(r.Base/ps, r.Size/ps),
	}
	p.kind = KindPage
	p.name = name
	p.self = p
	return p
}

// PageSize returns the pool's page size.
func (p *PagePool) PageSize() alloc.Word { return p.pageSize }

// Alloc allocates pages. An anonymous request returns any one page; an exact
// request returns the pages covering [req.Base, req.Base+max(req.Size, 1)).
func (p *PagePool) Alloc(req alloc.RangeItem) (alloc.RangeItem, error) {
	p.check("PagePool.Alloc")
	if req.IsAnonymous() {
		req.Size = p.pageSize
	}
	r, err := p.take("PagePool.Alloc", req)
	if err != nil {
		return alloc.RangeItem{}, fmt.Errorf("page pool %q: alloc %s: %w", p.name, req, err)
	}
	return r, nil
}

// Free returns the pages covering r. r.Base must be page aligned and every
// page allocated.
func (p *PagePool) Free(r alloc.RangeItem) {
	p.check("PagePool.Free")
	if r.IsAnonymous() {
		alloc.Fail("PagePool.Free", "cannot free %s", r)
	}
	p.mustAlign("PagePool.Free", r.Base)
	n := align.Pages(max(r.Size, 1), p.pageSize)
	p.checkNotChild("PagePool.Free", alloc.ExactRange(r.Base, n*p.pageSize))
	p.frames.FreeSpan(r.Base/p.pageSize, n)
}

// Derive carves a child page pool out of p. Both pools must use the same page
// size.
func (p *PagePool) Derive(a *Attr) (*PagePool, error) {
	p.check("PagePool.Derive")
	if err := p.checkAttr(a); err != nil {
		return nil, fmt.Errorf("derive page pool from %q: %w", p.name, err)
	}
	if a.pageSize != 0 && a.pageSize != p.pageSize {
		return nil, deriveErr(&p.node, KindPage, a, ErrPageSize)
	}
	r, err := p.take("PagePool.Derive", a.Extent())
	if err != nil {
		return nil, deriveErr(&p.node, KindPage, a, err)
	}
	child := newPagePool(a.name, r, p.pageSize)
	p.adopt(&child.node, r, func() { p.frames.FreeSpan(r.Base/p.pageSize, r.Size/p.pageSize) })
	return child, nil
}

// take allocates the frames covering req and returns them as a byte range.
func (p *PagePool) take(op string, req alloc.RangeItem) (alloc.RangeItem, error) {
	n := align.Pages(max(req.Size, 1), p.pageSize)
	first := alloc.AnyUnit()
	if !req.IsAnonymous() {
		p.mustAlign(op, req.Base)
		first = alloc.ExactUnit(req.Base / p.pageSize)
	}
	u, err := p.frames.AllocSpan(first, n)
	if err != nil {
		return alloc.RangeItem{}, err
	}
	return alloc.ExactRange(u.Unit*p.pageSize, n*p.pageSize), nil
}

func (p *PagePool) mustAlign(op string, base alloc.Word) {
	if !align.IsAligned(base, p.pageSize) {
		alloc.Fail(op, "base %#x is not aligned to page size %#x", base, p.pageSize)
	}
}

// IsAllocated reports whether the page holding addr is allocated.
func (p *PagePool) IsAllocated(addr alloc.Word) bool {
	p.check("PagePool.IsAllocated")
	return p.frames.IsAllocated(addr / p.pageSize)
}

// FreePages returns the number of free pages.
func (p *PagePool) FreePages() alloc.Word {
	p.check("PagePool.FreePages")
	return p.frames.Available()
}

func (p *PagePool) Bounds() alloc.RangeItem {
	p.check("PagePool.Bounds")
	return alloc.ExactRange(p.frames.Base()*p.pageSize, p.frames.Size()*p.pageSize)
}

func (p *PagePool) Allocated() alloc.Word {
	p.check("PagePool.Allocated")
	return p.frames.Allocated() * p.pageSize
}

func (p *PagePool) Available() alloc.Word {
	p.check("PagePool.Available")
	return p.frames.Available() * p.pageSize
}

func (p *PagePool) Stats() alloc.Stats {
	p.check("PagePool.Stats")
	return p.frames.Stats()
}

func (p *PagePool) Destroy() {
	p.destroy(p.frames.Allocated())
}
