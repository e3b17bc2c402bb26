package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/alloc"
)

// memPool is the allocation surface VM, segment and page pools share.
type memPool interface {
	Pool
	Alloc(req alloc.RangeItem) (alloc.RangeItem, error)
	Free(r alloc.RangeItem)
}

var memKinds = []struct {
	name string
	make func(a *Attr) (memPool, error)
}{
	{"vm", func(a *Attr) (memPool, error) {
		p, err := NewVMPool(a)
		if err != nil {
			return nil, err
		}
		return p, nil
	}},
	{"segment", func(a *Attr) (memPool, error) {
		p, err := NewSegmentPool(a)
		if err != nil {
			return nil, err
		}
		return p, nil
	}},
	{"page", func(a *Attr) (memPool, error) {
		p, err := NewPagePool(a)
		if err != nil {
			return nil, err
		}
		return p, nil
	}},
}

// TestDerive_Containment derives [P, P+S-2p) from a parent over [P, P+S) and
// checks the parent can no longer hand out anything inside the child.
func TestDerive_Containment(t *testing.T) {
	const size = 16 * testPage

	for _, k := range memKinds {
		t.Run(k.name, func(t *testing.T) {
			parent, err := k.make(NewAttr().SetRange(testBase, size).SetPageSize(testPage))
			require.NoError(t, err)

			child, err := k.make(NewAttr().SetParent(parent).SetRange(testBase, size-2*testPage))
			require.NoError(t, err)
			assert.Equal(t, alloc.ExactRange(testBase, size-2*testPage), child.Bounds())
			assert.Same(t, parent.tree(), child.Parent().tree())

			two, err := child.Alloc(alloc.ExactRange(testBase, 2*testPage))
			require.NoError(t, err)

			_, err = parent.Alloc(alloc.ExactRange(testBase, 2*testPage))
			require.ErrorIs(t, err, alloc.ErrInUse)

			last, err := parent.Alloc(alloc.ExactRange(testBase+size-testPage, testPage))
			require.NoError(t, err)
			assertTreeInvariants(t, parent)

			child.Free(two)
			child.Destroy()
			parent.Free(last)
			assert.Equal(t, alloc.Word(0), parent.Allocated())
			assert.Empty(t, parent.Children())
			assertTreeInvariants(t, parent)
		})
	}
}

// TestDerive_RecursiveHalves nests n pools, each taking half of what its parent
// has left after a one-page sibling allocation, then tears them down leaf
// first, checking each level holds only its sibling once its child is gone.
func TestDerive_RecursiveHalves(t *testing.T) {
	const n = 10

	for _, k := range memKinds {
		t.Run(k.name, func(t *testing.T) {
			root, err := k.make(NewAttr().SetRange(testBase, 4096*testPage).SetPageSize(testPage))
			require.NoError(t, err)

			chain := []memPool{root}
			siblings := make([]alloc.RangeItem, 0, n)
			for range n {
				cur := chain[len(chain)-1]
				s, err := cur.Alloc(alloc.ExactRange(cur.Bounds().End()-testPage, testPage))
				require.NoError(t, err)
				siblings = append(siblings, s)

				child, err := k.make(NewAttr().SetParent(cur).SetSize(cur.Available() / 2))
				require.NoError(t, err)
				chain = append(chain, child)
			}
			assertTreeInvariants(t, root)

			for i := n; i > 0; i-- {
				parent := chain[i-1]
				chain[i].Destroy()
				assert.True(t, chain[i].Destroyed())
				assert.Equal(t, testPage, parent.Allocated(), "level %d keeps only its sibling", i-1)
				parent.Free(siblings[i-1])
				assert.Equal(t, alloc.Word(0), parent.Allocated())
				assertTreeInvariants(t, root)
			}

			assert.Equal(t, alloc.Word(0), root.Allocated())
			root.Destroy()
		})
	}
}

func TestDestroy_WhileBusyPanics(t *testing.T) {
	parent := mustVM(t, 0x1000_0000, 64*testPage)
	child, err := parent.Derive(NewAttr().SetSize(8 * testPage).SetName("child"))
	require.NoError(t, err)
	r, err := child.Alloc(alloc.AnyRange(testPage))
	require.NoError(t, err)

	perr := requirePrecondition(t, func() { parent.Destroy() })
	assert.Contains(t, perr.Msg, "1 children")
	requirePrecondition(t, func() { child.Destroy() })

	// Nothing moved.
	assert.False(t, child.Destroyed())
	assert.Len(t, parent.Children(), 1)
	assertTreeInvariants(t, parent)

	child.Free(r)
	child.Destroy()
	parent.Destroy()
	assert.True(t, parent.Destroyed())
}

func TestDestroy_UseAfterDestroyPanics(t *testing.T) {
	p := mustSegment(t, testBase, 16*testPage)
	p.Destroy()

	requirePrecondition(t, func() { _, _ = p.Alloc(alloc.AnyRange(testPage)) })
	requirePrecondition(t, func() { p.Free(alloc.ExactRange(testBase, testPage)) })
	requirePrecondition(t, func() { _, _ = p.Derive(NewAttr().SetSize(testPage)) })
	requirePrecondition(t, func() { p.Destroy() })
	requirePrecondition(t, func() { _ = p.Allocated() })
	assert.Contains(t, Describe(p), "destroyed")
}

func TestNewPool_NoParentAnonymousPanics(t *testing.T) {
	attr := func() *Attr { return NewAttr().SetSize(4 * testPage) }

	perr := requirePrecondition(t, func() { _, _ = NewVMPool(attr()) })
	assert.Equal(t, "NewVMPool", perr.Op)
	requirePrecondition(t, func() { _, _ = NewSegmentPool(attr()) })
	requirePrecondition(t, func() { _, _ = NewPagePool(attr()) })
	requirePrecondition(t, func() { _, _ = NewCapList(attr()) })
}

func TestNewPool_ParentKind(t *testing.T) {
	vm := mustVM(t, 0x1000_0000, 64*testPage)
	seg := mustSegment(t, testBase, 64*testPage)
	pages := mustPages(t, 0x9000_0000, 64*testPage)

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"vm from segment", func() error { _, err := NewVMPool(NewAttr().SetParent(seg).SetSize(testPage)); return err }, ErrParentKind},
		{"vm from page", func() error { _, err := NewVMPool(NewAttr().SetParent(pages).SetSize(testPage)); return err }, ErrParentKind},
		{"segment from vm", func() error { _, err := NewSegmentPool(NewAttr().SetParent(vm).SetSize(testPage)); return err }, ErrParentKind},
		{"segment from page", func() error { _, err := NewSegmentPool(NewAttr().SetParent(pages).SetSize(testPage)); return err }, ErrParentKind},
		{"page from vm", func() error { _, err := NewPagePool(NewAttr().SetParent(vm).SetSize(testPage)); return err }, ErrParentKind},
		{"clist with parent", func() error { _, err := NewCapList(NewAttr().SetParent(vm).SetRange(0, 8)); return err }, ErrRootOnly},
		{"derive naming another parent", func() error { _, err := vm.Derive(NewAttr().SetParent(seg).SetSize(testPage)); return err }, ErrParentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, alloc.ErrInvalidArgument)
		})
	}

	for _, p := range []Pool{vm, seg, pages} {
		assert.Empty(t, p.Children())
		assert.Equal(t, alloc.Word(0), p.Allocated())
	}
}

func TestDerive_FailureLeavesParentUnchanged(t *testing.T) {
	parent := mustSegment(t, testBase, 16*testPage)
	held, err := parent.Alloc(alloc.ExactRange(testBase+4*testPage, testPage))
	require.NoError(t, err)
	before := parent.FreeRanges()

	tests := []struct {
		name string
		attr *Attr
		want error
	}{
		{"too large", NewAttr().SetSize(16 * testPage), alloc.ErrExhausted},
		{"overlaps allocation", NewAttr().SetRange(testBase+3*testPage, 2*testPage), alloc.ErrInUse},
		{"outside parent", NewAttr().SetRange(testBase+16*testPage, testPage), alloc.ErrOutOfRange},
		{"zero size", NewAttr().SetSize(0), ErrZeroSize},
		{"no extent", NewAttr(), ErrNoExtent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child, err := parent.Derive(tt.attr)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, child)
			assert.Equal(t, before, parent.FreeRanges())
			assert.Empty(t, parent.Children())
		})
	}
	parent.Free(held)
}

func TestFree_ChildReservationPanics(t *testing.T) {
	parent := mustVM(t, 0x1000_0000, 16*testPage)
	child, err := parent.Derive(NewAttr().SetRange(0x1000_0000+4*testPage, 4*testPage))
	require.NoError(t, err)

	perr := requirePrecondition(t, func() { parent.Free(child.Bounds()) })
	assert.Contains(t, perr.Msg, "child pool")
	assert.True(t, parent.IsAllocated(child.Bounds()))
}

func TestSegmentPool_PageSizeInherited(t *testing.T) {
	root, err := NewSegmentPool(NewAttr().SetRange(testBase, 64*testPage).SetPageSize(0x10000))
	require.NoError(t, err)
	assert.Equal(t, alloc.Word(0x10000), root.PageSize())

	child, err := root.Derive(NewAttr().SetSize(0x1234))
	require.NoError(t, err)
	assert.Equal(t, alloc.Word(0x10000), child.PageSize())
	// Segment pools are byte granular whatever their page size.
	assert.Equal(t, alloc.ExactRange(testBase, 0x1234), child.Bounds())

	grand, err := child.Derive(NewAttr().SetSize(0x100).SetPageSize(testPage))
	require.NoError(t, err)
	assert.Equal(t, testPage, grand.PageSize())

	defaulted, err := NewSegmentPool(NewAttr().SetRange(0, testPage))
	require.NoError(t, err)
	assert.Equal(t, alloc.Word(0x1000), defaulted.PageSize())
}

func TestPool_DefaultNames(t *testing.T) {
	root := mustVM(t, 0x1000_0000, 16*testPage)
	assert.Equal(t, "vm", root.Name())

	a, err := root.Derive(NewAttr().SetSize(testPage))
	require.NoError(t, err)
	b, err := root.Derive(NewAttr().SetSize(testPage).SetName("heap"))
	require.NoError(t, err)
	c, err := a.Derive(NewAttr().SetSize(testPage))
	require.NoError(t, err)

	assert.Equal(t, "vm/vm1", a.Name())
	assert.Equal(t, "heap", b.Name())
	assert.Equal(t, "vm/vm1/vm1", c.Name())
	assert.Equal(t, KindVM, c.Kind())
}

func TestPool_Stats(t *testing.T) {
	p := mustVM(t, 0x1000_0000, 4*testPage)
	for range 4 {
		_, err := p.Alloc(alloc.AnyRange(testPage))
		require.NoError(t, err)
	}
	_, err := p.Alloc(alloc.AnyRange(testPage))
	require.ErrorIs(t, err, alloc.ErrExhausted)
	assert.Contains(t, err.Error(), `vm pool "vm"`)

	st := p.Stats()
	assert.Equal(t, 5, st.AllocCalls)
	assert.Equal(t, 1, st.AllocFailed)
}

func TestKind(t *testing.T) {
	for _, k := range []Kind{KindVM, KindSegment, KindPage, KindCapList} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("bogus")
	require.ErrorIs(t, err, alloc.ErrInvalidArgument)
	assert.Equal(t, "kind(9)", Kind(9).String())
}
