// Package lttvstats implements the stats aggregator (C8): per-process x
// per-CPU x per-execution-mode event counts, stored in an attribute subtree
// and summed per event name at end-of-traceset. It records no CPU-time sums.
//
// Grounded on the teacher's search_stats.go running-tally-plus-rollup
// shape, generalized from trc's single active/bucket/failed counters to
// the tree-shaped key spec.md §4.8 specifies.
package lttvstats
