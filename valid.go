package smalloc

import "unsafe"

// IsOurs reports whether p could plausibly be a live or free smalloc slot
// address: within the arena's slot region, a usable size class, correctly
// aligned for that size class, not the sentinel slot, and not flagged as a
// next-touched-bit address (spec.md §4.6). It does not distinguish a live
// slot from a currently-free one — that distinction isn't recoverable from
// the address alone, by design (spec.md §3: "addresses *are* the
// metadata").
//
// Foreign-API interposition shells (out of scope here, per spec.md §1) use
// this to route frees between smalloc and the underlying system allocator.
func (a *Allocator) IsOurs(p unsafe.Pointer) bool {
	addr := uintptr(p)
	base := a.loadBase()
	if base == 0 || addr < base {
		return false
	}
	off := uint64(addr - base)
	if off < lowestSlotAddr || off > highestSlotAddr {
		return false
	}

	sc := sizeClassOf(off)
	if sc < unusedSC {
		return false
	}

	if addr&((1<<sc)-1) != 0 {
		return false
	}

	slot := slotIndexOf(off, sc)
	if slot == sentinelSlot(sc) {
		return false
	}

	if off&(uint64(entryNextTouchedBit)<<unusedSC) != 0 {
		return false
	}

	return true
}
