package pool

import (
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
)

// CapList hands out capability or object identifiers from a fixed numeric
// range, lowest first. It is always a root pool.
type CapList struct {
	node
	id    alloc.Word
	units alloc.UnitSource
}

// CapItem is an identifier allocated from a CapList. Only the list that
// produced an item can free it.
type CapItem struct {
	list *CapList
	unit alloc.Word
}

// List returns the list the item was allocated from.
func (it CapItem) List() *CapList { return it.list }

// Unit returns the identifier.
func (it CapItem) Unit() alloc.Word { return it.unit }

func (it CapItem) String() string {
	if it.list == nil {
		return "cap(nil)"
	}
	return fmt.Sprintf("cap(%d:%d)", it.list.id, it.unit)
}

// NewCapList creates a capability list over the identifiers in a.SetRange.
// a.SetID names the list. A parent is rejected with ErrRootOnly.
func NewCapList(a *Attr) (*CapList, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("new clist: %w", err)
	}
	if a.parent != nil {
		return nil, fmt.Errorf("new clist: %w", ErrRootOnly)
	}
	a.isRoot("NewCapList")

	ext := a.Extent()
	c := &CapList{
		id:    a.id,
		units: alloc.NewBitmap(ext.Base, ext.Size),
	}
	c.kind = KindCapList
	c.name = rootName(a, KindCapList)
	c.self = c
	return c, nil
}

// ID returns the identifier set with Attr.SetID, zero if none was.
func (c *CapList) ID() alloc.Word { return c.id }

// AllocAny allocates the lowest free identifier.
func (c *CapList) AllocAny() (CapItem, error) {
	return c.alloc(alloc.AnyUnit())
}

// AllocUnit allocates identifier u. alloc.Anonymous is never a valid
// identifier and fails with ErrOutOfRange.
func (c *CapList) AllocUnit(u alloc.Word) (CapItem, error) {
	if u == alloc.Anonymous {
		c.check("CapList.Alloc")
		return CapItem{}, fmt.Errorf("clist %q: alloc unit(%#x): %w", c.name, u, alloc.ErrOutOfRange)
	}
	return c.alloc(alloc.ExactUnit(u))
}

func (c *CapList) alloc(req alloc.BitmapItem) (CapItem, error) {
	c.check("CapList.Alloc")
	got, err := c.units.Alloc(req)
	if err != nil {
		return CapItem{}, fmt.Errorf("clist %q: alloc %s: %w", c.name, req, err)
	}
	return CapItem{list: c, unit: got.Unit}, nil
}

// Free releases it. It panics if it came from another list or is not
// allocated.
func (c *CapList) Free(it CapItem) {
	c.check("CapList.Free")
	if it.list != c {
		alloc.Fail("CapList.Free", "%s does not belong to clist %q", it, c.name)
	}
	c.units.Free(it.unit)
}

// IsAllocated reports whether identifier u is allocated.
func (c *CapList) IsAllocated(u alloc.Word) bool {
	c.check("CapList.IsAllocated")
	return c.units.IsAllocated(u)
}

// Bounds returns the identifier range as a RangeItem of units.
func (c *CapList) Bounds() alloc.RangeItem {
	c.check("CapList.Bounds")
	return alloc.ExactRange(c.units.Base(), c.units.Size())
}

func (c *CapList) Allocated() alloc.Word {
	c.check("CapList.Allocated")
	return c.units.Allocated()
}

func (c *CapList) Available() alloc.Word {
	c.check("CapList.Available")
	return c.units.Available()
}

func (c *CapList) Stats() alloc.Stats {
	c.check("CapList.Stats")
	return c.units.Stats()
}

func (c *CapList) Destroy() {
	c.destroy(c.units.Allocated())
}
