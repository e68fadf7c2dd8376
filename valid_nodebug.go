//go:build !smallocdebug

package smalloc

import "unsafe"

// checkValidFree is a no-op in release builds; see valid_debug.go.
func (a *Allocator) checkValidFree(unsafe.Pointer) {}
