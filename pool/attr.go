package pool

import (
	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
)

// Attr describes a pool to create or derive. The zero value is not useful;
// start from NewAttr and chain setters:
//
//	attr := pool.NewAttr().SetParent(phys).SetSize(0x4000).SetPageSize(0x1000)
type Attr struct {
	base      alloc.Word
	size      alloc.Word
	hasExtent bool
	parent    Pool
	pageSize  alloc.Word
	id        alloc.Word
	hasID     bool
	name      string
}

// NewAttr returns an empty Attr.
func NewAttr() *Attr {
	return &Attr{base: alloc.Anonymous}
}

// SetRange asks for exactly [base, base+size). It replaces an earlier SetSize.
func (a *Attr) SetRange(base, size alloc.Word) *Attr {
	a.base, a.size, a.hasExtent = base, size, true
	return a
}

// SetSize asks for size bytes (or units) placed anywhere in the parent. It
// replaces an earlier SetRange.
func (a *Attr) SetSize(size alloc.Word) *Attr {
	a.base, a.size, a.hasExtent = alloc.Anonymous, size, true
	return a
}

// SetParent names the pool to derive from.
func (a *Attr) SetParent(p Pool) *Attr {
	a.parent = p
	return a
}

// SetPageSize sets the page granularity of page pools and the mapping page
// size recorded on segment pools. Zero means inherit or use the default.
func (a *Attr) SetPageSize(ps alloc.Word) *Attr {
	a.pageSize = ps
	return a
}

// SetID fixes the identifier of a capability list.
func (a *Attr) SetID(id alloc.Word) *Attr {
	a.id, a.hasID = id, true
	return a
}

// SetName labels the pool for diagnostics and Bootstrap.Lookup.
func (a *Attr) SetName(name string) *Attr {
	a.name = name
	return a
}

// Extent returns the requested range. Base is alloc.Anonymous after SetSize.
func (a *Attr) Extent() alloc.RangeItem {
	return alloc.RangeItem{Base: a.base, Size: a.size}
}

// Parent returns the pool set by SetParent, or nil.
func (a *Attr) Parent() Pool { return a.parent }

// Validate checks the attribute on its own, without looking at the parent.
func (a *Attr) Validate() error {
	if a == nil || !a.hasExtent {
		return ErrNoExtent
	}
	if a.size == 0 {
		return ErrZeroSize
	}
	if a.base != alloc.Anonymous {
		if _, ok := align.End(a.base, a.size); !ok {
			return ErrRangeOverflow
		}
	}
	if a.pageSize != 0 && !align.IsPow2(a.pageSize) {
		return ErrPageSize
	}
	return nil
}

// isRoot reports whether the attr describes a root pool. It panics on an
// anonymous extent without a parent, which cannot be placed anywhere.
func (a *Attr) isRoot(op string) bool {
	if a.parent != nil {
		return false
	}
	if a.base == alloc.Anonymous {
		alloc.Fail(op, "pool of size %#x has no parent and no base", a.size)
	}
	return true
}
