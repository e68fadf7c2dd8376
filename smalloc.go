// Package smalloc is a lock-free slab allocator whose address layout
// itself carries the size-class, slab, and slot metadata — there is no
// separate metadata table alongside the arena. See SPEC_FULL.md for the
// full design.
package smalloc

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Allocator is one independent smalloc arena. The zero value is not usable;
// construct one with New, or use the package-level Default singleton.
//
// All exported methods are safe for concurrent use by multiple goroutines.
type Allocator struct {
	// base is the arena's reserved virtual address, set exactly once by
	// init. Stored behind atomic.Uintptr rather than a plain field so
	// that a goroutine which didn't perform the initializing CAS still
	// observes a fully-published, non-zero value (spec.md §5: "arena base"
	// is immutable after initialization, but "after initialization" must be
	// established with real memory ordering in Go, unlike a Rust static
	// protected by CAS-before-read-with-address-dependency convention).
	base atomic.Uintptr

	// initState drives one-time reservation of the arena: 0 = untouched, 1
	// = in progress, 2 = done. Modeled on
	// original_source/smalloc/src/lib.rs's idempotent_init spin loop
	// (SPEC_FULL.md §5), since Go's sync.Once cannot report reservation
	// errors back to a lazy caller the way a hand-rolled CAS loop can.
	initState atomic.Uint32
	initErr   error
}

const (
	initUntouched uint32 = iota
	initInProgress
	initDone
)

// New reserves a fresh arena and returns an Allocator ready for use. The
// reservation is a single large virtual-memory reservation (spec.md §6,
// ≈70.4TB); no physical memory is committed until individual slots are
// first touched (spec.md §4.2).
func New() (*Allocator, error) {
	a := &Allocator{}
	if err := a.init(); err != nil {
		return nil, err
	}
	return a, nil
}

// Default is a lazily-initialized, process-wide Allocator, the Go
// equivalent of the global allocator role spec.md's source language fills
// with `#[global_allocator]`. Go has no hook to replace the runtime's own
// allocator (SPEC_FULL.md §1), so Default exists purely as a shared
// instance callers may opt into; it initializes itself on first use and
// panics if the initial arena reservation fails, since Default() has no
// error result to report it through.
var defaultAllocator Allocator

// Default returns the process-wide Allocator, initializing its arena
// reservation on first call.
func Default() *Allocator {
	if err := defaultAllocator.init(); err != nil {
		panic(fmt.Sprintf("smalloc: default allocator init failed: %v", err))
	}
	return &defaultAllocator
}

// init performs the one-time arena reservation, spinning if another
// goroutine is already doing it. Reservation failure is sticky: once it
// fails, every caller (including concurrent ones already spinning) gets the
// same error, matching spec.md §7's "init failure is fatal to the process
// in practice" — we let the caller decide how fatal, but never silently
// retry a failed reservation.
func (a *Allocator) init() error {
	for {
		switch a.initState.Load() {
		case initDone:
			return a.initErr
		case initInProgress:
			// Busy-spin. Reservation is a single syscall; contention here
			// is brief and only ever happens once per Allocator.
			continue
		default:
			if a.initState.CompareAndSwap(initUntouched, initInProgress) {
				sysAddr, err := reserve(uintptr(totalVirtualMemory))
				if err != nil {
					a.initErr = fmt.Errorf("smalloc: arena reservation failed: %w", err)
				} else {
					// The raw reservation is only guaranteed OS-page
					// alignment; totalVirtualMemory includes basePtrAlign-1
					// extra bytes of slack precisely so the base can be
					// rounded up to a basePtrAlign boundary here without
					// running past the reserved range (mirrors
					// original_source/smalloc/src/lib.rs's idempotent_init:
					// `smbp = sysbp.next_multiple_of(BASEPTR_ALIGN)`).
					addr := nextMultipleOf(sysAddr, uintptr(basePtrAlign))
					if err := commitFLHArea(addr); err != nil {
						a.initErr = fmt.Errorf("smalloc: free-list-head area commit failed: %w", err)
					} else {
						a.base.Store(addr)
					}
				}
				a.initState.Store(initDone)
				return a.initErr
			}
		}
	}
}

// loadBase returns the arena's base address, which is non-zero after a
// successful init.
func (a *Allocator) loadBase() uintptr {
	return a.base.Load()
}

// Alloc returns a pointer to a block of at least size bytes aligned to
// align (a power of two), or nil if size/align cannot be satisfied by any
// size class or the arena is exhausted. See spec.md §4.4.
func (a *Allocator) Alloc(size, align uintptr) unsafe.Pointer {
	return a.allocInternal(size, align, false)
}

// AllocZeroed is like Alloc but guarantees the returned block's first size
// bytes are zero.
func (a *Allocator) AllocZeroed(size, align uintptr) unsafe.Pointer {
	return a.allocInternal(size, align, true)
}

func (a *Allocator) allocInternal(size, align uintptr, zero bool) unsafe.Pointer {
	sc := reqAlignToSizeClass(size, align)
	if sc >= numSizeClasses {
		return nil
	}
	base := a.loadBase()

	var result unsafe.Pointer
	withSlabCursor(func(cur *slabCursor) {
		result = a.allocAtSizeClass(base, cur, sc, zero)
	})
	stats.allocs.Add(1)
	return result
}

// allocAtSizeClass runs spec.md §4.4's allocation algorithm starting at
// size class sc, promoting to wider size classes on full-cycle exhaustion.
func (a *Allocator) allocAtSizeClass(base uintptr, cur *slabCursor, sc uint8, zero bool) unsafe.Pointer {
	for {
		if sc >= numSizeClasses {
			diagExhausted(numSizeClasses - 1)
			return nil
		}

		slot, ok := a.popFromSizeClass(base, cur, sc, zero)
		if ok {
			return unsafe.Pointer(base + uintptr(slot))
		}

		// Every slab in sc was empty on a full cycle: promote.
		stats.sizeClassPromotions.Add(1)
		sc++
	}
}

// popFromSizeClass drives the per-slab failover loop (spec.md §4.4 steps
// 3-6) for one size class, returning ok=false only once every slab has been
// tried and found empty in the same cycle.
func (a *Allocator) popFromSizeClass(base uintptr, cur *slabCursor, sc uint8, zero bool) (off uint64, ok bool) {
	start := cur.currentSlab(sc)
	slab := start

	for {
		off, result := pop(base, sc, slab, zero)
		switch result {
		case popOK:
			if slab != cur.currentSlab(sc) {
				cur.setSlab(sc, slab)
			}
			return off, true
		case popCollision:
			// A collision means another goroutine just mutated this FLH;
			// it does not count toward "this slab is empty" and does not
			// participate in full-cycle exhaustion detection (spec.md
			// §4.4 step 4: "do not increment any full-slab counter").
			// Retrying the same slab is correct, but stepping spreads
			// concurrent writers across independent FLH words (spec.md
			// §5's worst-case mitigation).
			slab = failoverSlab(slab)
		case popEmpty:
			stats.slabFailovers.Add(1)
			slab = failoverSlab(slab)
			cur.setSlab(sc, slab)
			if slab == start {
				return 0, false
			}
		}
	}
}

// Dealloc returns the slot at p, previously obtained from Alloc/AllocZeroed,
// to its owning free list. p must be an allocator-owned pointer; see
// spec.md §4.6 and §7.
func (a *Allocator) Dealloc(p unsafe.Pointer, size, align uintptr) {
	base := a.loadBase()
	off := uint64(uintptr(p) - base)
	sc := sizeClassOf(off)

	if off == slotOffsetOf(unusedSC, 0, sentinelSlot(unusedSC)) {
		// The Realloc shrink-to-zero sentinel (see shrinkToZeroSentinel):
		// never a real slot, so freeing it is a deliberate no-op rather
		// than a validity failure. Narrowly this one address only — a
		// garbage pointer that happens to decode to some other size
		// class's sentinel slot must still fail checkValidFree below.
		return
	}

	a.checkValidFree(p)
	slab := slabIndexOf(off)

	push(base, sc, slab, off)
	stats.deallocs.Add(1)
}

// shrinkToZeroSentinel returns the fixed, never-allocated address used as
// Realloc's shrink-to-zero result (size class unusedSC, slab 0, the
// sentinel slot index that pop never hands out).
func (a *Allocator) shrinkToZeroSentinel() unsafe.Pointer {
	base := a.loadBase()
	off := slotOffsetOf(unusedSC, 0, sentinelSlot(unusedSC))
	return unsafe.Pointer(base + uintptr(off))
}

// Realloc grows or shrinks the allocation at p to newSize bytes, preserving
// up to min(oldSize, newSize) bytes of content, and returns the (possibly
// new) pointer, or nil if growth failed (in which case p is left intact).
// See spec.md §4.4.
func (a *Allocator) Realloc(p unsafe.Pointer, oldSize, oldAlign, newSize uintptr) unsafe.Pointer {
	if newSize == 0 {
		// Shrink-to-zero: spec.md and original_source leave this case
		// undocumented (SPEC_FULL.md §4.4, DESIGN.md Open Question 1).
		// Resolved here as: deallocate the old slot and hand back a
		// sentinel pointer that's safe to pass to Dealloc (a no-op there,
		// since it decodes to the reserved sentinel slot of size class
		// unusedSC, slab 0 — never a slot this or any Alloc call can hand
		// out), rather than returning nil (which Realloc otherwise reserves
		// for allocation failure) or a dangling pointer.
		a.Dealloc(p, oldSize, oldAlign)
		return a.shrinkToZeroSentinel()
	}

	base := a.loadBase()
	oldOff := uint64(uintptr(p) - base)
	oldSC := sizeClassOf(oldOff)

	newSC := reqAlignToSizeClass(newSize, oldAlign)
	if newSC <= oldSC {
		return p
	}

	if newSC >= numSizeClasses {
		return nil
	}

	// Growers policy: once the new size class reaches a full page, jump
	// straight to growersSC so repeated growth reuses the same class
	// instead of walking through many small promotions, matching
	// original_source/smalloc/src/lib.rs's
	// `(plat::p::SC_FOR_PAGE..GROWERS_SC).contains(&reqsc)` half-open range
	// check (spec.md §4.4 step 4) — this compares size classes, not raw
	// byte counts, so a request whose size class crosses scForPage only
	// because of a large oldAlign is promoted too.
	if newSC >= scForPage && newSC < growersSC {
		newSC = growersSC
	}

	newP := a.allocInternal(uintptr(1)<<newSC, oldAlign, false)
	if newP == nil {
		return nil
	}
	stats.reallocs.Add(1)

	n := oldSize
	if n > newSize {
		n = newSize
	}
	copy(unsafe.Slice((*byte)(newP), n), unsafe.Slice((*byte)(p), n))

	a.Dealloc(p, oldSize, oldAlign)
	return newP
}
