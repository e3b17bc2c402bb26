package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/alloc"
)

const (
	testBase = alloc.Word(0x8000_0000)
	testPage = alloc.Word(0x1000)
)

// requirePrecondition runs fn and requires it to panic with a
// *alloc.PreconditionError.
func requirePrecondition(t testing.TB, fn func()) *alloc.PreconditionError {
	t.Helper()

	var got *alloc.PreconditionError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a precondition panic")
			err, ok := r.(error)
			require.True(t, ok, "panic value %v is not an error", r)
			require.True(t, errors.As(err, &got), "panic value %T is not a *PreconditionError", r)
		}()
		fn()
	}()
	return got
}

// assertTreeInvariants walks root and checks every live child: its bounds are
// exactly its reservation, the reservation is allocated in the parent, and
// siblings never overlap.
func assertTreeInvariants(t testing.TB, root Pool) {
	t.Helper()

	err := Walk(root, func(p Pool, depth int) error {
		require.False(t, p.Destroyed(), "destroyed pool %q still linked", p.Name())
		require.Equal(t, p.Bounds().Size, p.Allocated()+p.Available(), "pool %q accounting", p.Name())

		kids := p.Children()
		for i, c := range kids {
			require.Same(t, p.tree(), c.tree().parent, "child %q has the wrong parent", c.Name())
			reserved := c.tree().reserved
			require.Equal(t, reserved, c.Bounds(), "child %q bounds differ from its reservation", c.Name())
			require.True(t, p.Bounds().Contains(reserved), "child %q outside parent %q", c.Name(), p.Name())
			requireAllocatedIn(t, p, reserved)
			for _, o := range kids[i+1:] {
				require.False(t, reserved.Overlaps(o.tree().reserved),
					"siblings %q and %q overlap", c.Name(), o.Name())
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func requireAllocatedIn(t testing.TB, p Pool, r alloc.RangeItem) {
	t.Helper()
	switch pp := p.(type) {
	case *VMPool:
		require.True(t, pp.IsAllocated(r), "%s not allocated in %q", r, p.Name())
	case *SegmentPool:
		require.True(t, pp.IsAllocated(r), "%s not allocated in %q", r, p.Name())
	case *PagePool:
		for a := r.Base; a < r.End(); a += pp.PageSize() {
			require.True(t, pp.IsAllocated(a), "page %#x not allocated in %q", a, p.Name())
		}
	}
}

func mustVM(t testing.TB, base, size alloc.Word) *VMPool {
	t.Helper()
	p, err := NewVMPool(NewAttr().SetRange(base, size))
	require.NoError(t, err)
	return p
}

func mustSegment(t testing.TB, base, size alloc.Word) *SegmentPool {
	t.Helper()
	p, err := NewSegmentPool(NewAttr().SetRange(base, size).SetPageSize(testPage))
	require.NoError(t, err)
	return p
}

func mustPages(t testing.TB, base, size alloc.Word) *PagePool {
	t.Helper()
	p, err := NewPagePool(NewAttr().SetRange(base, size).SetPageSize(testPage))
	require.NoError(t, err)
	return p
}
