// Package lttvdriver implements the process-trace driver (C9): the fixed
// begin/middle/end loop that pulls events from the merged iterator,
// honoring end-time, end-position, and max-count, with cooperative
// cancellation between batches.
//
// Grounded on the teacher's stopwatch.go-style external loop driving a
// Collector in batches, generalized to lttviter.Iterator's begin/middle/end
// contract instead of trc's single Collect call.
package lttvdriver
