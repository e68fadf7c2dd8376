//go:build linux || darwin || freebsd || openbsd || netbsd

package smalloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// init pins scForPage to the platform's real page size, matching
// original_source/smalloc/src/plat/mod.rs's per-OS SC_FOR_PAGE constant:
// 4 KiB on Linux, 16 KiB on Apple Silicon. We derive it at runtime via
// reqAlignToSizeClass instead of hard-coding a per-GOOS constant table,
// since unix.Getpagesize is authoritative and cheap to call once.
func init() {
	pageSize := uintptr(unix.Getpagesize())
	scForPage = reqAlignToSizeClass(pageSize, pageSize)
}

// reserve asks the OS for size contiguous bytes of address space, mapped
// readable/writable from the start. MAP_NORESERVE tells the kernel not to
// reserve swap/commit charge for the whole mapping up front; physical pages
// are faulted in lazily, zeroed, the first time each is actually touched.
// This mirrors original_source/smalloc/src/plat/mod.rs's Linux sys_alloc
// (mmap_anonymous with PROT READ|WRITE and MapFlags::NORESERVE) rather than
// a PROT_NONE reserve-then-mprotect-to-commit scheme: Unix's overcommit
// already gives smalloc the "reservation distinct from commit" property it
// needs without a second syscall per page.
func reserve(size uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE|mmapExtraFlags())
	if err != nil {
		return 0, &reserveErr{op: "mmap", err: err}
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

// commit is a genuine no-op on Unix: reserve already mapped the page
// readable/writable, and the kernel backs it with physical memory on first
// touch. See spec.md §4.2: "a no-op on platforms with lazy/overcommit
// semantics."
func commit(addr uintptr, size uintptr) error {
	return nil
}

// commitFLHArea is a no-op on Unix for the same reason commit is: the FLH
// region needs no separate commit step here, unlike Windows (vm_windows.go)
// where it must be committed once, eagerly, at init.
func commitFLHArea(base uintptr) error {
	return nil
}
