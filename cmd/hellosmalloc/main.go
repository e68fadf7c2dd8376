// Command hellosmalloc is a minimal smoke test for smalloc.Default: it
// allocates a couple of differently-sized, differently-aligned buffers,
// writes through the returned pointers, and prints what it read back.
// Grounded on original_source/hellosmalloc/src/bin/hellosmalloc.rs.
package main

import (
	"fmt"
	"unsafe"

	"github.com/smalloc-go/smalloc"
)

func main() {
	fmt.Println("Hello, world! I'm smalloc. :-)")

	const numElems = 9999
	const i = 7777

	a := smalloc.Default()

	u8s := unsafe.Slice((*byte)(a.Alloc(numElems, 1)), numElems)
	for j := range u8s {
		u8s[j] = 7
	}

	const u128Size = 16
	u128sBase := a.Alloc(numElems*u128Size, u128Size)
	u128s := unsafe.Slice((*[u128Size]byte)(u128sBase), numElems)
	for j := range u128s {
		u128s[j][0] = 11
	}

	fmt.Printf("u8s[%d] = %d\n", i, u8s[i])
	fmt.Printf("u128s[%d][0] = %d\n", i, u128s[i][0])

	fmt.Printf("stats: %+v\n", a.Stats())
}
