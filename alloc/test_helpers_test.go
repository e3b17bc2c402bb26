package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

// requirePrecondition runs fn and requires it to panic with a *PreconditionError.
func requirePrecondition(t testing.TB, fn func()) *PreconditionError {
	t.Helper()

	var got *PreconditionError
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

// assertRangeInvariants checks the free list is sorted, non-adjacent,
// non-empty, inside the bound, and that the byte accounting adds up.
func assertRangeInvariants(t testing.TB, ra *RangeAllocator) {
	t.Helper()

	var (
		total   Word
		count   int
		prevEnd Word
		first   = true
	)
	for cur := ra.head.next; cur != nil; cur = cur.next {
		require.NotZero(t, cur.size, "empty free interval at %#x", cur.base)
		require.GreaterOrEqual(t, cur.base, ra.base, "free interval below bound")
		require.LessOrEqual(t, cur.end(), ra.base+ra.size, "free interval above bound")
		if !first {
			require.Greater(t, cur.base, prevEnd,
				"free intervals must be sorted and never touch (uncoalesced at %#x)", cur.base)
		}
		first = false
		prevEnd = cur.end()
		total += cur.size
		count++
	}
	require.Equal(t, ra.fragments, count, "fragment count out of sync")
	require.Equal(t, ra.Available(), total, "free bytes out of sync with allocated counter")
}

// assertBitmapInvariants checks the used counter and the hint lower bound.
func assertBitmapInvariants(t testing.TB, b *Bitmap) {
	t.Helper()

	require.Equal(t, uint(b.used), b.bits.Count(), "used counter out of sync")
	require.LessOrEqual(t, b.posGuess, b.size)
	for i := Word(0); i < b.posGuess; i++ {
		require.True(t, b.bits.Test(uint(i)), "index %d below hint %d is free", i, b.posGuess)
	}
}
