// Package lttviter implements the merged traceset iterator (C5): an N-way
// merge priority queue over every stream of every trace in a Traceset,
// yielding events in strictly non-decreasing timestamp order with a total
// tie-break order, plus begin/middle/end lifecycle hooks and position
// save/restore for seeking.
//
// Grounded on the teacher's multi_collector.go/dist_trace_collector.go
// heap-of-streams merge, generalized from trc's single timestamp key to
// spec.md §4.5's (timestamp, trace_index, stream_index) composite key.
package lttviter
