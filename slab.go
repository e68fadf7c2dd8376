package smalloc

import (
	"sync"
	"sync/atomic"
)

// globalGoroutineNum hands out a unique, process-wide starting index to
// each slabCursor the first time it's used for a given size class, the Go
// analogue of
// original_source/smalloc/src/lib.rs's GLOBAL_THREAD_NUM. Masked down to
// slabBits, it spreads callers' starting slabs across the size class.
var globalGoroutineNum atomic.Uint32

// slabCursorSentinel marks a freshly-pooled cursor that has not yet been
// assigned a starting slab for a given size class.
const slabCursorSentinel uint8 = 0xFF

// slabCursor holds one goroutine's current slab choice per size class. Go
// has no portable thread-local storage, so instead of the Rust crate's
// thread_local!, a slabCursor is handed out of a sync.Pool: Pool items are
// usually served back to whatever goroutine (really, P) last used them, so
// a goroutine that allocates repeatedly keeps reusing the same cursor and
// therefore the same starting slab across calls, which is the practical
// effect spec.md §4.5 actually needs. See SPEC_FULL.md §4.5.
type slabCursor struct {
	current [numSizeClasses]uint8
}

func newSlabCursor() *slabCursor {
	c := &slabCursor{}
	for i := range c.current {
		c.current[i] = slabCursorSentinel
	}
	return c
}

var slabCursorPool = sync.Pool{
	New: func() any { return newSlabCursor() },
}

// slabFailoverStep is the deterministic step used on contention or
// exhaustion (spec.md §4.5). 2^slabBits/3 is coprime with 2^slabBits, so
// iterating it visits every slab exactly once before returning to the
// start.
const slabFailoverStep uint8 = (1 << slabBits) / 3

func failoverSlab(slab uint8) uint8 {
	return (slab + slabFailoverStep) & slabNumBitsAloneMask
}

// currentSlab returns the calling goroutine's starting slab for size class
// sc, assigning one from the global round-robin counter on first use.
func (c *slabCursor) currentSlab(sc uint8) uint8 {
	if c.current[sc] == slabCursorSentinel {
		n := globalGoroutineNum.Add(1)
		c.current[sc] = uint8(n) & slabNumBitsAloneMask
	}
	return c.current[sc]
}

func (c *slabCursor) setSlab(sc uint8, slab uint8) {
	c.current[sc] = slab
}

// withSlabCursor runs fn with a cursor borrowed from the pool and returns
// it afterward, whether or not fn changed it.
func withSlabCursor(fn func(c *slabCursor)) {
	c := slabCursorPool.Get().(*slabCursor)
	defer slabCursorPool.Put(c)
	fn(c)
}
