package smalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailoverStepVisitsEverySlabBeforeRepeating(t *testing.T) {
	seen := make(map[uint8]bool, numSlabs)
	slab := uint8(0)
	for i := 0; i < numSlabs; i++ {
		require.False(t, seen[slab], "slab %d revisited after %d steps", slab, i)
		seen[slab] = true
		slab = failoverSlab(slab)
	}
	require.Equal(t, uint8(0), slab, "step size must be coprime with numSlabs")
	require.Len(t, seen, numSlabs)
}

// The step behind Scenario 4 from spec.md §8: failover moves by exactly the
// fixed step (21, mod 64). This checks the step arithmetic directly; it does
// not fill a slab.
func TestFailoverStepIsTwentyOne(t *testing.T) {
	require.Equal(t, uint8(21), slabFailoverStep)
	require.Equal(t, uint8(21), failoverSlab(0))
	require.Equal(t, uint8(42), failoverSlab(21))
	require.Equal(t, uint8(63), failoverSlab(42))
	require.Equal(t, uint8(20), failoverSlab(63)) // wraps mod 64
}

func TestSlabCursorAssignsOnFirstUseAndPersists(t *testing.T) {
	c := newSlabCursor()
	sc := uint8(5)

	first := c.currentSlab(sc)
	second := c.currentSlab(sc)
	require.Equal(t, first, second, "repeated reads before any write must be stable")
}

func TestSlabCursorIsIndependentPerSizeClass(t *testing.T) {
	c := newSlabCursor()
	c.setSlab(3, 7)
	c.setSlab(4, 40)

	require.Equal(t, uint8(7), c.currentSlab(3))
	require.Equal(t, uint8(40), c.currentSlab(4))
}

func TestWithSlabCursorReturnsCursorToPool(t *testing.T) {
	var seen *slabCursor
	withSlabCursor(func(c *slabCursor) {
		seen = c
		c.setSlab(1, 9)
	})

	withSlabCursor(func(c *slabCursor) {
		if c == seen {
			require.Equal(t, uint8(9), c.currentSlab(1))
		}
	})
}
