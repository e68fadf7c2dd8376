//go:build smallocdebug

package smalloc

import (
	"fmt"
	"unsafe"
)

// checkValidFree panics if p is not a pointer this Allocator could have
// handed out. Compiled in only under the smallocdebug build tag; release
// builds (valid_nodebug.go) skip the check entirely, matching spec.md §7:
// "In debug builds this aborts via assertion; in release the behavior is
// undefined and the caller is contractually forbidden from doing so" and
// §9's "Release-mode code avoids branches on validity."
func (a *Allocator) checkValidFree(p unsafe.Pointer) {
	if !a.IsOurs(p) {
		panic(fmt.Sprintf("smalloc: Dealloc called with a pointer (%p) that is not a valid smalloc slot", p))
	}
}
