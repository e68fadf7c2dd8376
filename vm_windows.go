//go:build windows

package smalloc

import (
	"golang.org/x/sys/windows"
)

// Windows memory pages are 4 KiB outside of large-page mode, matching
// original_source/smalloc/src/plat/mod.rs's Windows SC_FOR_PAGE constant.
func init() {
	scForPage = reqAlignToSizeClass(4096, 4096)
}

// reserve reserves size bytes of address space via VirtualAlloc(MEM_RESERVE),
// mirroring original_source/smalloc/src/plat/mod.rs's Windows sys_alloc:
// reservation alone does not back the range with physical memory, and
// PAGE_NOACCESS means an errant touch before commit faults immediately.
func reserve(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, &reserveErr{op: "VirtualAlloc(MEM_RESERVE)", err: err}
	}
	return addr, nil
}

// commit makes a previously reserved sub-range accessible, required on
// Windows because (unlike Linux/Darwin mmap) reservation does not imply
// commit. This is the one genuinely blocking syscall on the allocation hot
// path (spec.md §5), invoked at most once per slot per process lifetime.
func commit(addr uintptr, size uintptr) error {
	_, err := windows.VirtualAlloc(addr, size, windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return &reserveErr{op: "VirtualAlloc(MEM_COMMIT)", err: err}
	}
	return nil
}

// flhAreaSize is the byte size of the whole free-list-head region: one
// 8-byte word per (size class, slab) pair, covering every size class
// including the unused ones whose address space stores the words.
const flhAreaSize = (1 << flhWordSizeBits) * numSlabs * numSizeClasses

// commitFLHArea eagerly commits the FLH region right after reservation.
// Unlike slot pages, FLH words are read and CAS'd on every single
// allocation and deallocation from the very first call, long before any
// individual slot's lazy per-page commit would cover them, so Windows needs
// this committed unconditionally at init. Mirrors
// original_source/smalloc/src/lib.rs's idempotent_init, which does the
// equivalent sys_commit under `#[cfg(target_os = "windows")]`.
func commitFLHArea(base uintptr) error {
	return commit(base, flhAreaSize)
}
