package lttvstats

import (
	"fmt"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvattr"
	"github.com/giraldeau/lttv/lttvhook"
	"github.com/giraldeau/lttv/lttvstate"
)

// Aggregator maintains, under a Trace's attribute tree, counts keyed by
// spec.md §4.8's path:
//
//	processes / <pid-starttime> / cpu / <cpu> / mode_types / <mode> /
//	  submodes / <submode> / event_types / <event-name> : count
//
// Event-type leaves are incremented by the event hook; Rollup sums every
// event-type leaf into a single totals/event_types/<event-name> tree. No
// per-mode, per-process or per-trace subtotals are written.
type Aggregator struct {
	root    *lttvattr.Branch
	tracker *lttvstate.Tracker
}

// NewAggregator returns an Aggregator writing into root (typically the
// Trace-context's attribute tree), reading process/execution-mode state
// from tracker.
func NewAggregator(root *lttvattr.Branch, tracker *lttvstate.Tracker) *Aggregator {
	return &Aggregator{root: root, tracker: tracker}
}

// Root returns the attribute-tree branch the aggregator writes into, for
// callers that need to export it (e.g. lttvweb's /stats endpoint).
func (a *Aggregator) Root() *lttvattr.Branch { return a.root }

// Install registers the aggregator's event-counting hook on the context's
// event chain (spec.md §4.8: "incremented in the event hook").
func (a *Aggregator) Install(eventHook *lttvhook.Chain) {
	eventHook.Insert(onEvent, a, 100) // low priority: run after the state tracker's own hooks
}

func onEvent(data any, callData any) bool {
	a := data.(*Aggregator)
	ev := callData.(*lttv.Event)
	if ev.Marker == nil {
		return false
	}

	p, ok := a.tracker.Running(ev.CPU)
	if !ok {
		return false
	}
	frame := p.Top()

	path := fmt.Sprintf(
		"processes/%d-%d/cpu/%d/mode_types/%s/submodes/%s/event_types/%s",
		p.PID, uint64(p.CreationTime), ev.CPU, frame.Mode, submodeKey(frame.Submode), ev.Marker.Name,
	)
	a.increment(path)
	return false
}

func submodeKey(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func (a *Aggregator) increment(path string) {
	node, err := a.root.FindOrCreate(path, lttvattr.KindULong)
	if err != nil {
		return
	}
	cur, _ := node.(lttvattr.ULongLeaf)
	a.root.SetLeaf(path, lttvattr.ULongLeaf(cur+1))
}

// Rollup performs the end-of-traceset summation pass (spec.md §4.8): the
// counts under every processes/... event_types leaf are added, per event
// name, into totals/event_types. Intermediate levels (submode, mode,
// process, trace) get no totals of their own, and no CPU-time sums are
// computed; the cum_cpu_time on the tracker's execution frames is not read.
func (a *Aggregator) Rollup() {
	totalPath := "totals/event_types"
	procs := a.root.Number()
	for i := 0; i < procs; i++ {
		name, node, ok := a.root.Get(i)
		if !ok || name != "processes" {
			continue
		}
		branch, ok := node.(*lttvattr.Branch)
		if !ok {
			continue
		}
		a.rollupProcesses(branch, totalPath)
	}
}

func (a *Aggregator) rollupProcesses(processes *lttvattr.Branch, totalPath string) {
	for i := 0; i < processes.Number(); i++ {
		_, procNode, ok := processes.Get(i)
		if !ok {
			continue
		}
		procBranch, ok := procNode.(*lttvattr.Branch)
		if !ok {
			continue
		}
		a.sumEventTypesInto(procBranch, totalPath)
	}
}

// sumEventTypesInto walks every event_types leaf nested anywhere under
// branch and adds its value into the aggregator's totalPath tree, keyed by
// event name. This is the "submodes -> modes -> mode_types, per-process ->
// per-trace" rollup collapsed into a single recursive pass, since the
// attribute tree's shape makes the intermediate levels pure re-groupings
// of the same leaves.
func (a *Aggregator) sumEventTypesInto(branch *lttvattr.Branch, totalPath string) {
	for i := 0; i < branch.Number(); i++ {
		name, node, ok := branch.Get(i)
		if !ok {
			continue
		}
		switch v := node.(type) {
		case *lttvattr.Branch:
			a.sumEventTypesInto(v, totalPath)
		case lttvattr.ULongLeaf:
			if name == "" {
				continue
			}
			path := totalPath + "/" + name
			total, err := a.root.FindOrCreate(path, lttvattr.KindULong)
			if err != nil {
				continue
			}
			cur, _ := total.(lttvattr.ULongLeaf)
			a.root.SetLeaf(path, cur+v)
		}
	}
}
