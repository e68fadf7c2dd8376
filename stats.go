package smalloc

import "sync/atomic"

// Stats is a point-in-time snapshot of allocator activity counters. Purely
// additive observability (SPEC_FULL.md §8 supplemental): it influences no
// allocation decision and adds no branch to any invariant in spec.md §3/§4.
// Grounded on the teacher's runtime_tracker.go (a small feature-usage
// tracker) and on original_source's own bench-time counters
// (bench/src/lib.rs, simplebench/src/lib.rs), which the distilled spec.md
// drops as "benchmark harness, out of scope" but whose counters are cheap
// enough to keep live in the core.
type Stats struct {
	Allocs              uint64
	Deallocs            uint64
	Reallocs            uint64
	SizeClassPromotions uint64
	SlabFailovers       uint64
	Exhaustions         uint64
}

type statCounters struct {
	allocs              atomic.Uint64
	deallocs            atomic.Uint64
	reallocs            atomic.Uint64
	sizeClassPromotions atomic.Uint64
	slabFailovers       atomic.Uint64
	exhaustions         atomic.Uint64
}

// stats is a process-wide set of counters shared by every Allocator. A
// per-Allocator field would be equally correct; a single process-wide set
// matches the way spec.md's Default singleton is the only arena most
// programs ever construct, and keeps Stats() cheap for cmd/hellosmalloc and
// tests alike without threading a pointer through every hot-path call.
var stats statCounters

func (s *statCounters) snapshot() Stats {
	return Stats{
		Allocs:              s.allocs.Load(),
		Deallocs:            s.deallocs.Load(),
		Reallocs:            s.reallocs.Load(),
		SizeClassPromotions: s.sizeClassPromotions.Load(),
		SlabFailovers:       s.slabFailovers.Load(),
		Exhaustions:         s.exhaustions.Load(),
	}
}

// Stats returns a snapshot of the process-wide allocation counters.
func (a *Allocator) Stats() Stats {
	return stats.snapshot()
}
