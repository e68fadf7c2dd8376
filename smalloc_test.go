package smalloc

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// newTestAllocator returns one arena shared by every test in this package.
// New's reserve() asks the OS for a ~64-70 TiB virtual mapping per call
// (spec.md §6); go test runs an entire package's tests in a single process,
// so giving every test its own arena (as original_source's own
// tests/integration.rs explicitly warns against outside process-per-test
// isolation — see its aaa_require_nextest sentinel) would stack dozens of
// such reservations in one address space and risk ENOMEM well before the
// suite finishes. A single shared arena avoids that; tests that rely on a
// fresh, never-touched (size class, slab) pick one no other test in the
// package touches (see testSC in freelist_test.go) rather than relying on
// isolation the Go toolchain doesn't give us.
var (
	sharedTestAllocator     *Allocator
	sharedTestAllocatorOnce sync.Once
	sharedTestAllocatorErr  error
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	sharedTestAllocatorOnce.Do(func() {
		sharedTestAllocator, sharedTestAllocatorErr = New()
	})
	require.NoError(t, sharedTestAllocatorErr)
	return sharedTestAllocator
}

// Scenario 1 (spec.md §8): alloc/dealloc/alloc of the same tiny request
// returns the same slot.
func TestAllocDeallocAllocReturnsSameSlot(t *testing.T) {
	a := newTestAllocator(t)

	p1 := a.Alloc(1, 1)
	require.NotNil(t, p1)
	require.True(t, a.IsOurs(p1))

	a.Dealloc(p1, 1, 1)

	p2 := a.Alloc(1, 1)
	require.Equal(t, p1, p2)
}

// Scenario 2 (spec.md §8): 8 same-size allocations land in one slab at
// consecutive slot indices, 16 bytes apart.
func TestEightAllocationsAreContiguousWithinOneSlab(t *testing.T) {
	a := newTestAllocator(t)

	const n = 8
	var ptrs [n]unsafe.Pointer
	for i := range ptrs {
		ptrs[i] = a.Alloc(16, 1)
		require.NotNil(t, ptrs[i])
	}

	base := uintptr(ptrs[0])
	for i := 1; i < n; i++ {
		require.Equal(t, base+uintptr(i)*16, uintptr(ptrs[i]))
	}
}

// Scenario 3 (spec.md §8): freeing the middle of three allocations and
// reallocating returns the freed slot.
func TestFreeingMiddleSlotIsReusedNext(t *testing.T) {
	a := newTestAllocator(t)

	p1 := a.Alloc(1, 1)
	p2 := a.Alloc(1, 1)
	p3 := a.Alloc(1, 1)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.NotNil(t, p3)

	a.Dealloc(p2, 1, 1)

	p4 := a.Alloc(1, 1)
	require.Equal(t, p2, p4)
}

// Scenario 6 (spec.md §8): growing a realloc preserves the original
// contents and moves to a strictly larger size class.
func TestReallocGrowthPreservesContentAndPromotesSizeClass(t *testing.T) {
	a := newTestAllocator(t)

	const oldSize = 1_000_000
	const newSize = 2_000_000

	p := a.Alloc(oldSize, 8)
	require.NotNil(t, p)

	buf := unsafe.Slice((*byte)(p), oldSize)
	for i := range buf {
		buf[i] = byte(i)
	}

	oldOff := uint64(uintptr(p) - a.loadBase())
	oldSC := sizeClassOf(oldOff)

	q := a.Realloc(p, oldSize, 8, newSize)
	require.NotNil(t, q)

	newOff := uint64(uintptr(q) - a.loadBase())
	newSC := sizeClassOf(newOff)
	require.Greater(t, newSC, oldSC)

	qbuf := unsafe.Slice((*byte)(q), oldSize)
	for i := range qbuf {
		require.Equal(t, byte(i), qbuf[i], "byte %d", i)
	}
}

func TestReallocShrinkReturnsSamePointer(t *testing.T) {
	a := newTestAllocator(t)

	p := a.Alloc(1024, 8)
	require.NotNil(t, p)

	q := a.Realloc(p, 1024, 8, 16)
	require.Equal(t, p, q)
}

func TestReallocToZeroIsSafeToDeallocAgain(t *testing.T) {
	a := newTestAllocator(t)

	p := a.Alloc(64, 8)
	require.NotNil(t, p)

	q := a.Realloc(p, 64, 8, 0)
	require.NotNil(t, q)

	// Must not panic or corrupt any free list.
	a.Dealloc(q, 0, 8)
}

func TestAllocZeroedIsActuallyZero(t *testing.T) {
	a := newTestAllocator(t)

	p := a.Alloc(64, 1)
	require.NotNil(t, p)
	buf := unsafe.Slice((*byte)(p), 64)
	for i := range buf {
		buf[i] = 0xFF
	}
	a.Dealloc(p, 64, 1)

	q := a.AllocZeroed(64, 1)
	require.NotNil(t, q)
	qbuf := unsafe.Slice((*byte)(q), 64)
	for _, b := range qbuf {
		require.Zero(t, b)
	}
}

func TestOversizeRequestReturnsNil(t *testing.T) {
	a := newTestAllocator(t)

	p := a.Alloc(1<<33, 1)
	require.Nil(t, p)
}

// Scenario 5 (spec.md §8), scaled down: concurrent alloc/dealloc from many
// goroutines on one size class must never hand out the same address twice
// at the same time.
func TestConcurrentAllocDeallocNoDoubleIssue(t *testing.T) {
	a := newTestAllocator(t)

	const goroutines = 32
	const rounds = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	live := map[unsafe.Pointer]bool{}

	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				p := a.Alloc(32, 1)
				require.NotNil(t, p)

				mu.Lock()
				require.False(t, live[p], "address handed out twice concurrently")
				live[p] = true
				mu.Unlock()

				mu.Lock()
				delete(live, p)
				mu.Unlock()
				a.Dealloc(p, 32, 1)
			}
		}()
	}
	wg.Wait()
}

func TestDefaultIsLazilyInitializedAndUsable(t *testing.T) {
	p := Default().Alloc(8, 1)
	require.NotNil(t, p)
	Default().Dealloc(p, 8, 1)
}
