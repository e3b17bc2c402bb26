package pool

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/align"
	"github.com/joshuapare/kalloc/internal/logger"
)

// Names of the built-in pools in a Bootstrap.
const (
	NameVM       = "vm"
	NamePhysical = "physical"
	NamePages    = "pages"
	NameCapIDs   = "cap_ids"
	NameSpaceIDs = "space_ids"
	NameCListIDs = "clist_ids"
)

// Region is a raw [Base, Base+Size) extent handed over at boot.
type Region struct {
	Base alloc.Word
	Size alloc.Word
}

// RootConfig describes an extra named root pool.
type RootConfig struct {
	Name     string
	Kind     Kind
	Base     alloc.Word
	Size     alloc.Word
	PageSize alloc.Word // page and segment pools; zero means BootConfig.PageSize
	ID       alloc.Word // capability lists
}

// BootConfig holds the raw resource bounds the root pools are built from.
type BootConfig struct {
	// PageSize is the default page size for segment and page pools.
	// Default: 0x1000
	PageSize alloc.Word

	// VM is the virtual address window.
	VM Region

	// Physical is the RAM extent.
	Physical Region

	// PageFrames is how many bytes of Physical become the page pool, taken
	// from the lowest page-aligned free space. Zero means no page pool.
	PageFrames alloc.Word

	// CapIDs, SpaceIDs and CListIDs are the identifier quotas.
	CapIDs   Region
	SpaceIDs Region
	CListIDs Region

	// Roots lists extra named root pools.
	Roots []RootConfig
}

// DefaultBootConfig returns the layout of a small board: 64 MiB of RAM at
// 0x8000_0000 with 16 MiB of it in the page pool, a 768 MiB user VM window,
// and 8-bit identifier quotas.
func DefaultBootConfig() BootConfig {
	return BootConfig{
		PageSize:   align.DefaultPageSize,
		VM:         Region{Base: 0x1000_0000, Size: 0x3000_0000},
		Physical:   Region{Base: 0x8000_0000, Size: 0x0400_0000},
		PageFrames: 0x0100_0000,
		CapIDs:     Region{Base: 2, Size: 254},
		SpaceIDs:   Region{Base: 1, Size: 255},
		CListIDs:   Region{Base: 1, Size: 255},
	}
}

// Validate checks the configuration without building anything.
func (c BootConfig) Validate() error {
	var errs []error
	if !align.IsPow2(c.PageSize) {
		errs = append(errs, fmt.Errorf("page size %#x: %w", c.PageSize, ErrPageSize))
	}
	for _, r := range []struct {
		name string
		r    Region
	}{
		{NameVM, c.VM},
		{NamePhysical, c.Physical},
		{NameCapIDs, c.CapIDs},
		{NameSpaceIDs, c.SpaceIDs},
		{NameCListIDs, c.CListIDs},
	} {
		if err := checkRegion(r.r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	if c.PageFrames > c.Physical.Size {
		errs = append(errs, fmt.Errorf("page frames %#x exceed physical size %#x: %w",
			c.PageFrames, c.Physical.Size, alloc.ErrInvalidArgument))
	}

	seen := map[string]bool{
		NameVM: true, NamePhysical: true, NamePages: true,
		NameCapIDs: true, NameSpaceIDs: true, NameCListIDs: true,
	}
	for _, rc := range c.Roots {
		if rc.Name == "" {
			errs = append(errs, fmt.Errorf("root pool without a name: %w", alloc.ErrInvalidArgument))
			continue
		}
		if seen[rc.Name] {
			errs = append(errs, fmt.Errorf("root pool %q defined twice: %w", rc.Name, alloc.ErrInvalidArgument))
		}
		seen[rc.Name] = true
		if err := checkRegion(Region{Base: rc.Base, Size: rc.Size}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rc.Name, err))
		}
		if rc.Kind < KindVM || rc.Kind > KindCapList {
			errs = append(errs, fmt.Errorf("%s: %w: unknown kind %s", rc.Name, alloc.ErrInvalidArgument, rc.Kind))
		}
	}
	return errors.Join(errs...)
}

func checkRegion(r Region) error {
	if r.Size == 0 {
		return ErrZeroSize
	}
	if _, ok := align.End(r.Base, r.Size); !ok {
		return ErrRangeOverflow
	}
	return nil
}

// Bootstrap holds the root pools every subsystem allocates from. Build it
// once with NewBootstrap and pass it to whatever needs a pool.
type Bootstrap struct {
	VM       *VMPool
	Physical *SegmentPool
	Pages    *PagePool // nil when BootConfig.PageFrames is zero
	CapIDs   *CapList
	SpaceIDs *CapList
	CListIDs *CapList

	byName map[string]Pool
	names  []string
}

// NewBootstrap builds the root pools described by cfg.
func NewBootstrap(cfg BootConfig) (*Bootstrap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	b := &Bootstrap{byName: make(map[string]Pool)}
	var err error

	if b.VM, err = NewVMPool(NewAttr().SetRange(cfg.VM.Base, cfg.VM.Size).SetName(NameVM)); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	b.register(NameVM, b.VM)

	phys := NewAttr().SetRange(cfg.Physical.Base, cfg.Physical.Size).
		SetPageSize(cfg.PageSize).SetName(NamePhysical)
	if b.Physical, err = NewSegmentPool(phys); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	b.register(NamePhysical, b.Physical)

	if cfg.PageFrames != 0 {
		pages := NewAttr().SetSize(cfg.PageFrames).SetName(NamePages)
		if b.Pages, err = b.Physical.DerivePages(pages); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		b.register(NamePages, b.Pages)
	}

	for i, q := range []struct {
		name string
		r    Region
		dst  **CapList
	}{
		{NameCapIDs, cfg.CapIDs, &b.CapIDs},
		{NameSpaceIDs, cfg.SpaceIDs, &b.SpaceIDs},
		{NameCListIDs, cfg.CListIDs, &b.CListIDs},
	} {
		attr := NewAttr().SetRange(q.r.Base, q.r.Size).SetID(alloc.Word(i)).SetName(q.name)
		if *q.dst, err = NewCapList(attr); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		b.register(q.name, *q.dst)
	}

	for _, rc := range cfg.Roots {
		p, err := newRoot(rc, cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: root %q: %w", rc.Name, err)
		}
		b.register(rc.Name, p)
	}

	logger.L.Debug("bootstrap ready", "pools", len(b.names))
	return b, nil
}

func newRoot(rc RootConfig, defaultPageSize alloc.Word) (Pool, error) {
	ps := rc.PageSize
	if ps == 0 {
		ps = defaultPageSize
	}
	attr := NewAttr().SetRange(rc.Base, rc.Size).SetName(rc.Name)

	var (
		p   Pool
		err error
	)
	switch rc.Kind {
	case KindVM:
		var vm *VMPool
		vm, err = NewVMPool(attr)
		p = vm
	case KindSegment:
		var seg *SegmentPool
		seg, err = NewSegmentPool(attr.SetPageSize(ps))
		p = seg
	case KindPage:
		if !align.IsAligned(rc.Base, ps) {
			return nil, fmt.Errorf("base %#x not aligned to %#x: %w", rc.Base, ps, alloc.ErrInvalidArgument)
		}
		var pages *PagePool
		pages, err = NewPagePool(attr.SetPageSize(ps))
		p = pages
	case KindCapList:
		var cl *CapList
		cl, err = NewCapList(attr.SetID(rc.ID))
		p = cl
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", alloc.ErrInvalidArgument, rc.Kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Bootstrap) register(name string, p Pool) {
	b.byName[name] = p
	b.names = append(b.names, name)
}

// Lookup returns the pool registered under name, built-in or extra.
func (b *Bootstrap) Lookup(name string) (Pool, bool) {
	p, ok := b.byName[name]
	return p, ok
}

// Names returns every registered name in creation order.
func (b *Bootstrap) Names() []string {
	return slices.Clone(b.names)
}

// Roots returns the pools that have no parent, in creation order.
func (b *Bootstrap) Roots() []Pool {
	var out []Pool
	for _, n := range b.names {
		if p := b.byName[n]; p.Parent() == nil {
			out = append(out, p)
		}
	}
	return out
}
