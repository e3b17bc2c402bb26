package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/alloc"
)

// TestCapList_Scenario allocates every identifier in [2,16), runs out, frees
// one and gets that one back.
func TestCapList_Scenario(t *testing.T) {
	c, err := NewCapList(NewAttr().SetRange(2, 14).SetID(7))
	require.NoError(t, err)
	assert.Equal(t, alloc.Word(7), c.ID())

	items := make([]CapItem, 0, 14)
	for want := alloc.Word(2); want < 16; want++ {
		it, err := c.AllocAny()
		require.NoError(t, err)
		assert.Equal(t, want, it.Unit())
		assert.Same(t, c, it.List())
		items = append(items, it)
	}

	_, err = c.AllocAny()
	require.ErrorIs(t, err, alloc.ErrExhausted)

	c.Free(items[9])
	it, err := c.AllocAny()
	require.NoError(t, err)
	assert.Equal(t, items[9].Unit(), it.Unit())
	assert.Equal(t, alloc.Word(14), c.Allocated())
}

func TestCapList_AllocUnit(t *testing.T) {
	c, err := NewCapList(NewAttr().SetRange(1, 8))
	require.NoError(t, err)

	it, err := c.AllocUnit(4)
	require.NoError(t, err)
	assert.Equal(t, "cap(0:4)", it.String())
	assert.True(t, c.IsAllocated(4))

	_, err = c.AllocUnit(4)
	require.ErrorIs(t, err, alloc.ErrInUse)
	_, err = c.AllocUnit(0)
	require.ErrorIs(t, err, alloc.ErrOutOfRange)
	_, err = c.AllocUnit(9)
	require.ErrorIs(t, err, alloc.ErrOutOfRange)
	_, err = c.AllocUnit(alloc.Anonymous)
	require.ErrorIs(t, err, alloc.ErrOutOfRange)
	assert.False(t, c.IsAllocated(1), "the lowest free identifier stays free")

	assert.Equal(t, alloc.ExactRange(1, 8), c.Bounds())
	assert.Equal(t, alloc.Word(7), c.Available())
}

func TestCapList_Preconditions(t *testing.T) {
	a, err := NewCapList(NewAttr().SetRange(0, 4).SetName("a"))
	require.NoError(t, err)
	b, err := NewCapList(NewAttr().SetRange(0, 4).SetName("b"))
	require.NoError(t, err)

	it, err := a.AllocAny()
	require.NoError(t, err)

	perr := requirePrecondition(t, func() { b.Free(it) })
	assert.Contains(t, perr.Msg, "does not belong")
	requirePrecondition(t, func() { b.Free(CapItem{}) })

	requirePrecondition(t, func() { a.Destroy() })
	a.Free(it)
	requirePrecondition(t, func() { a.Free(it) })

	a.Destroy()
	requirePrecondition(t, func() { _, _ = a.AllocAny() })
	assert.Equal(t, "cap(nil)", CapItem{}.String())
}
