package lttviter

import (
	"container/heap"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvdecode"
)

// slot is one stream's current head event, tagged with its place in the
// traceset so comparisons can fall back to (trace_index, stream_index) for
// a total order on equal timestamps (spec.md §4.5, §5).
type slot struct {
	traceIndex  int
	streamIndex int
	stream      *lttvdecode.Stream
	event       *lttv.Event
}

type slotHeap []*slot

func (h slotHeap) Len() int { return len(h) }

func (h slotHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.event.Timestamp != b.event.Timestamp {
		return a.event.Timestamp < b.event.Timestamp
	}
	if a.traceIndex != b.traceIndex {
		return a.traceIndex < b.traceIndex
	}
	return a.streamIndex < b.streamIndex
}

func (h slotHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *slotHeap) Push(x any) { *h = append(*h, x.(*slot)) }

func (h *slotHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*slotHeap)(nil)
