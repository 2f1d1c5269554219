// Package lttvdebug holds process-wide counters used to report on engine
// internals without plumbing them through every call site.
package lttvdebug

import "sync/atomic"

// PoolCounters track operations on a sync.Pool for a specific type.
type PoolCounters struct {
	Get   atomic.Uint64
	Alloc atomic.Uint64
	Put   atomic.Uint64
	Lost  atomic.Uint64
}

// ReusePercent returns the percent (0..100) reuse of the pool type.
func (pc *PoolCounters) ReusePercent() float64 {
	var (
		get   = pc.Get.Load()
		alloc = pc.Alloc.Load()
		reuse = get - alloc
	)
	if get <= 0 {
		return 0.0
	}
	return 100 * float64(reuse) / float64(get)
}

// Values returns the current values of the counters.
func (pc *PoolCounters) Values() (get, alloc, put, lost uint64, reuse float64) {
	var (
		g = pc.Get.Load()
		a = pc.Alloc.Load()
		p = pc.Put.Load()
		l = pc.Lost.Load()
		r = pc.ReusePercent()
	)
	return g, a, p, l, r
}

var (
	// CheckpointCounters counts process-table checkpoint deep copies; the
	// state tracker adds one to Alloc per checkpoint and leaves Get, Put and
	// Lost at zero (no sync.Pool backs the copies).
	CheckpointCounters PoolCounters

	// EventCounters is not updated anywhere in the module; decoded events
	// are allocated directly, without a pool.
	EventCounters PoolCounters
)

// DecodeCounters track cumulative outcomes of the sub-buffer decoder across
// every open stream, for diagnostics. The decoder updates EventsDecoded,
// HeartbeatsSeen and StreamsTruncated; BytesLost is not updated.
type DecodeCounters struct {
	EventsDecoded    atomic.Uint64
	HeartbeatsSeen   atomic.Uint64
	BytesLost        atomic.Uint64
	StreamsTruncated atomic.Uint64
}

// Decoder is the single process-wide instance of DecodeCounters.
var Decoder DecodeCounters
