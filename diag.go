package smalloc

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/xyproto/env/v2"
)

// verbose selects the detailed form of the exhaustion diagnostic (naming the
// size class) in the style of the teacher's own syscall.go/mem_ops.go
// VerboseMode flag (`if VerboseMode { fmt.Fprintf(os.Stderr, ...) }`); the
// one-line diagnostic itself is printed either way. It's read once, at
// package initialization, from SMALLOC_VERBOSE via the teacher's own env/v2
// dependency rather than a mutable global flip, since smalloc has no CLI to
// flip it at runtime.
var verbose = env.Bool("SMALLOC_VERBOSE")

// exhaustedOnce tracks, per size class, whether the one-line "smalloc
// exhausted" diagnostic (spec.md §7) has already been printed. Modeled on
// safe_buffer.go's committed-flag pattern: the first caller to flip it from
// false to true is the one that gets to act (print), everyone after is a
// no-op, without needing a mutex around the print itself.
var exhaustedOnce [numSizeClasses]atomic.Bool

func diagExhausted(sc uint8) {
	if !exhaustedOnce[sc].CompareAndSwap(false, true) {
		return
	}
	stats.exhaustions.Add(1)
	if verbose {
		fmt.Fprintf(os.Stderr, "smalloc: size class %d exhausted\n", sc)
	} else {
		fmt.Fprintln(os.Stderr, "smalloc exhausted")
	}
}
