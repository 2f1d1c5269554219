package lttviter

import (
	"container/heap"
	"sync/atomic"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvdecode"
	"github.com/giraldeau/lttv/lttvhook"
)

// Hooks bundles the chains an Iterator fires at its lifecycle boundaries
// (spec.md §4.5, §6.2).
type Hooks struct {
	BeforeTraceset, AfterTraceset     *lttvhook.Chain
	BeforeTrace, AfterTrace           *lttvhook.Chain
	BeforeTracefile, AfterTracefile   *lttvhook.Chain
	Event                             *lttvhook.Chain
	ByID                              *lttvhook.Table
}

// Position is an opaque, comparable snapshot of every stream's reader
// position plus which stream held the current event, per spec.md §4.5.
type Position struct {
	Streams       [][]lttvdecode.Position
	CurrentTrace  int
	CurrentStream int
	valid         bool
}

// Less gives positions a total order, lexicographic over every stream's
// (sub_buffer_index, cursor) in traceset order, matching the comparison
// rule spec.md §4.5 specifies for position tokens.
func (p Position) Less(o Position) bool {
	for t := range p.Streams {
		for s := range p.Streams[t] {
			if t >= len(o.Streams) || s >= len(o.Streams[t]) {
				return true
			}
			if p.Streams[t][s] != o.Streams[t][s] {
				return p.Streams[t][s].Less(o.Streams[t][s])
			}
		}
	}
	return false
}

// Iterator is the merged traceset iterator (C5): a min-heap over the head
// event of every stream in every trace, keyed by (timestamp, trace_index,
// stream_index) so the emission order is total even across ties.
type Iterator struct {
	traceset *lttv.Traceset
	streams  [][]*lttvdecode.Stream // [traceIndex][streamIndex]

	heap slotHeap

	hooks Hooks

	cancelFlag atomic.Bool
}

// New builds an Iterator over traceset, with one *lttvdecode.Stream per
// tracefile, grouped by trace in the same order as traceset.Traces.
func New(traceset *lttv.Traceset, streams [][]*lttvdecode.Stream) *Iterator {
	return &Iterator{traceset: traceset, streams: streams}
}

// Cancel requests that Middle stop at the next event boundary. Safe to call
// from any goroutine (spec.md §5).
func (it *Iterator) Cancel() { it.cancelFlag.Store(true) }

func (it *Iterator) canceled() bool { return it.cancelFlag.Load() }

// Begin fires before-traceset / before-trace / before-tracefile hooks in
// that order and seeds the heap with each stream's first event.
func (it *Iterator) Begin(hooks Hooks) error {
	it.hooks = hooks
	it.heap = it.heap[:0]

	if it.hooks.BeforeTraceset != nil {
		it.hooks.BeforeTraceset.Call(it.traceset)
	}
	for ti, trace := range it.traceset.Traces {
		if it.hooks.BeforeTrace != nil {
			it.hooks.BeforeTrace.Call(trace)
		}
		for si, s := range it.streams[ti] {
			if it.hooks.BeforeTracefile != nil {
				it.hooks.BeforeTracefile.Call(s)
			}
			ev, err := s.Advance()
			if err != nil {
				return err
			}
			if ev == nil {
				continue
			}
			heap.Push(&it.heap, &slot{traceIndex: ti, streamIndex: si, stream: s, event: ev})
		}
	}
	heap.Init(&it.heap)
	return nil
}

// Middle pops the minimum event, invokes its per-event hooks, advances that
// stream, and re-inserts it, repeating until any of: heap empty,
// current_time >= endTime, events_processed == maxEvents, current position
// >= endPosition, or Cancel was called. Returns the number of events
// actually processed (spec.md §4.5, §4.9).
func (it *Iterator) Middle(endTime lttv.Timestamp, maxEvents int, endPosition *Position) (int, error) {
	processed := 0
	for processed < maxEvents {
		if it.canceled() {
			return processed, nil
		}
		if it.heap.Len() == 0 {
			return processed, nil
		}
		top := it.heap[0]
		if top.event.Timestamp >= endTime {
			return processed, nil
		}
		if endPosition != nil && endPosition.valid {
			cur := it.Position()
			if !cur.Less(*endPosition) {
				return processed, nil
			}
		}

		s := heap.Pop(&it.heap).(*slot)

		if it.hooks.ByID != nil {
			if chain, ok := it.hooks.ByID.Lookup(s.event.EventID); ok {
				chain.Call(s.event)
			}
		}
		if it.hooks.Event != nil {
			it.hooks.Event.Call(s.event)
		}

		processed++

		next, err := s.stream.Advance()
		if err != nil {
			return processed, err
		}
		if next != nil {
			s.event = next
			heap.Push(&it.heap, s)
		}
	}
	return processed, nil
}

// End fires after-tracefile / after-trace / after-traceset, mirroring
// Begin's order in reverse.
func (it *Iterator) End() error {
	for ti := len(it.traceset.Traces) - 1; ti >= 0; ti-- {
		trace := it.traceset.Traces[ti]
		for si := len(it.streams[ti]) - 1; si >= 0; si-- {
			if it.hooks.AfterTracefile != nil {
				it.hooks.AfterTracefile.Call(it.streams[ti][si])
			}
		}
		if it.hooks.AfterTrace != nil {
			it.hooks.AfterTrace.Call(trace)
		}
	}
	if it.hooks.AfterTraceset != nil {
		it.hooks.AfterTraceset.Call(it.traceset)
	}
	return nil
}

// Position snapshots every stream's reader position plus which stream owns
// the current (about-to-be-popped) event.
func (it *Iterator) Position() Position {
	p := Position{Streams: make([][]lttvdecode.Position, len(it.streams)), valid: true}
	for ti, streams := range it.streams {
		p.Streams[ti] = make([]lttvdecode.Position, len(streams))
		for si, s := range streams {
			p.Streams[ti][si] = s.Position()
		}
	}
	if it.heap.Len() > 0 {
		p.CurrentTrace = it.heap[0].traceIndex
		p.CurrentStream = it.heap[0].streamIndex
	}
	return p
}

// SeekPosition restores every stream to the reader position recorded in p
// and rebuilds the heap, per spec.md §4.5: "restores it exactly".
func (it *Iterator) SeekPosition(p Position) error {
	it.heap = it.heap[:0]
	for ti, streams := range it.streams {
		for si, s := range streams {
			s.Restore(p.Streams[ti][si])
			ev, err := s.Advance()
			if err != nil {
				return err
			}
			if ev != nil {
				heap.Push(&it.heap, &slot{traceIndex: ti, streamIndex: si, stream: s, event: ev})
			}
		}
	}
	heap.Init(&it.heap)
	return nil
}

// SeekTime repositions each stream via binary search so that
// current_event.tsc >= t, then rebuilds the heap. Restoring and replaying
// process state from the nearest checkpoint is the state tracker's
// responsibility (lttvstate.Tracker.Restore); SeekTime only repositions the
// stream cursors (spec.md §4.5).
func (it *Iterator) SeekTime(t lttv.Timestamp) error {
	it.heap = it.heap[:0]
	for ti, streams := range it.streams {
		for si, s := range streams {
			if err := s.SeekTime(t); err != nil {
				return err
			}
			ev, err := s.Advance()
			if err != nil {
				return err
			}
			if ev != nil {
				heap.Push(&it.heap, &slot{traceIndex: ti, streamIndex: si, stream: s, event: ev})
			}
		}
	}
	heap.Init(&it.heap)
	return nil
}
