package lttvstate

import (
	"fmt"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/internal/lttvdebug"
	"github.com/giraldeau/lttv/lttvattr"
	"github.com/giraldeau/lttv/lttvhook"
)

// DefaultSaveInterval is the number of events between process-table
// checkpoints, per spec.md §4.6.
const DefaultSaveInterval = 50_000

// Tracker is the process/execution-mode state tracker (C6): a process
// table with a nested execution-mode stack per process, fed by hooks keyed
// by marker name, with periodic checkpointing for O(1) seek-to-time.
type Tracker struct {
	trace *lttv.Trace

	processes    map[lttv.ProcessKey]*lttv.Process
	runningByCPU map[int]*lttv.Process

	checkpoints  *lttvattr.Branch // root of "state checkpoints" subtree, keyed by timestamp
	eventCount   uint64
	saveInterval uint64

	warnings []*lttv.ConsistencyWarning
}

// NewTracker returns a Tracker over trace, with one per-CPU idle process
// pre-created for cpu 0..numCPUs-1 (spec.md §3: "one idle process per
// CPU").
func NewTracker(trace *lttv.Trace, numCPUs int) *Tracker {
	tr := &Tracker{
		trace:        trace,
		processes:    map[lttv.ProcessKey]*lttv.Process{},
		runningByCPU: map[int]*lttv.Process{},
		checkpoints:  lttvattr.NewBranch(),
		saveInterval: DefaultSaveInterval,
	}
	for cpu := 0; cpu < numCPUs; cpu++ {
		idle := tr.getOrCreate(lttv.KeyOf(0, cpu), 0)
		idle.Type = lttv.ProcessKernelThread
		idle.CPU = cpu
		tr.runningByCPU[cpu] = idle
	}
	return tr
}

// SetSaveInterval overrides DefaultSaveInterval, mostly for tests that want
// to exercise checkpointing without replaying 50000 events.
func (tr *Tracker) SetSaveInterval(n uint64) { tr.saveInterval = n }

// Process returns the tracked Process for key, if any.
func (tr *Tracker) Process(key lttv.ProcessKey) (*lttv.Process, bool) {
	p, ok := tr.processes[key]
	return p, ok
}

// Running returns the process currently bound to cpu.
func (tr *Tracker) Running(cpu int) (*lttv.Process, bool) {
	p, ok := tr.runningByCPU[cpu]
	return p, ok
}

// Warnings returns every ConsistencyWarning accumulated so far (stack
// underflow, etc.), in the order they occurred.
func (tr *Tracker) Warnings() []*lttv.ConsistencyWarning { return tr.warnings }

func (tr *Tracker) getOrCreate(key lttv.ProcessKey, now lttv.Timestamp) *lttv.Process {
	if p, ok := tr.processes[key]; ok {
		return p
	}
	p := &lttv.Process{
		PID:           key.PID,
		CPU:           -1,
		CreationTime:  now,
		InsertionTime: now,
		Type:          lttv.ProcessUser,
		ExecutionStack: []lttv.ExecutionFrame{{
			Mode:       lttv.ModeUser,
			Submode:    "",
			EntryTime:  now,
			ChangeTime: now,
			Status:     lttv.StatusUnnamed,
		}},
	}
	tr.processes[key] = p
	return p
}

func (tr *Tracker) warn(p *lttv.Process, now lttv.Timestamp, err error) {
	w := &lttv.ConsistencyWarning{Process: p.PID, Time: now, Err: err}
	tr.warnings = append(tr.warnings, w)
}

// push adds a new execution frame on top of p's stack, accumulating
// cum_cpu_time on the frame being left if it was running (spec.md §4.6).
func (tr *Tracker) push(p *lttv.Process, mode lttv.Mode, submode string, now lttv.Timestamp) {
	top := p.Top()
	if top.Status == lttv.StatusRunning {
		top.CumCPUTime += uint64(now - top.ChangeTime)
	}
	top.ChangeTime = now
	p.ExecutionStack = append(p.ExecutionStack, lttv.ExecutionFrame{
		Mode:       mode,
		Submode:    submode,
		EntryTime:  now,
		ChangeTime: now,
		Status:     lttv.StatusRunning,
	})
}

// pop removes the top frame. If that would empty the stack, it logs a
// ConsistencyWarning and leaves the stack at its bottom frame instead of
// underflowing (spec.md §4.6: "if stack would underflow, log a warning and
// leave at bottom").
func (tr *Tracker) pop(p *lttv.Process, now lttv.Timestamp) {
	if len(p.ExecutionStack) <= 1 {
		tr.warn(p, now, lttv.ErrStackUnderflow)
		return
	}
	top := p.Top()
	top.CumCPUTime += uint64(now - top.ChangeTime)
	p.ExecutionStack = p.ExecutionStack[:len(p.ExecutionStack)-1]
	newTop := p.Top()
	newTop.ChangeTime = now
}

// Install registers the tracker's fixed hook set at byID, resolving each
// marker name through trace.Markers (spec.md §4.6). Markers not yet
// declared at install time are silently skipped; re-calling Install after
// more markers are discovered picks up the rest.
func (tr *Tracker) Install(byID *lttvhook.Table) {
	bind := func(name string, fn lttvhook.Func) {
		m, ok := tr.trace.Markers.LookupByName(name)
		if !ok {
			return
		}
		byID.Chain(m.ID).Insert(fn, tr, 0)
	}

	bind("schedchange", onSchedChange)
	bind("fork", onFork)
	bind("exit", onExit)
	bind("free", onFree)
	bind("exec", onExec)
	bind("thread_brand", onThreadBrand)
	bind("kernel_thread", onKernelThread)

	bind("syscall_entry", pushHook(lttv.ModeSyscall))
	bind("syscall_exit", popHook())
	bind("trap_entry", pushHook(lttv.ModeTrap))
	bind("trap_exit", popHook())
	bind("irq_entry", pushHook(lttv.ModeIRQ))
	bind("irq_exit", popHook())
	bind("soft_irq_entry", pushHook(lttv.ModeSoftIRQ))
	bind("soft_irq_exit", popHook())

	bind("function_entry", onFunctionEntry)
	bind("function_exit", onFunctionExit)

	for _, name := range tr.trace.Markers.NamesWithPrefix("statedump_enumerate_") {
		bind(name, onStatedumpEnumerate)
	}
}

func (tr *Tracker) littleEndian() bool { return tr.trace.Header.Arch.LittleEndian }

func onSchedChange(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	le := tr.littleEndian()

	prevState, _ := ev.FieldInt("prev_state", le)
	nextPID, _ := ev.FieldInt("next_pid", le)

	if cur, ok := tr.runningByCPU[ev.CPU]; ok {
		top := cur.Top()
		if prevState == 0 {
			top.Status = lttv.StatusWaitCPU
		} else {
			top.Status = lttv.StatusWait
		}
		top.ChangeTime = ev.Timestamp
	}

	next := tr.getOrCreate(lttv.KeyOf(nextPID, ev.CPU), ev.Timestamp)
	next.CPU = ev.CPU
	next.Top().Status = lttv.StatusRunning
	next.Top().ChangeTime = ev.Timestamp
	tr.runningByCPU[ev.CPU] = next

	tr.tick(ev.Timestamp)
	return false
}

func onFork(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	le := tr.littleEndian()

	parentPID, _ := ev.FieldInt("parent_pid", le)
	childPID, _ := ev.FieldInt("child_pid", le)

	child := tr.getOrCreate(lttv.KeyOf(childPID, ev.CPU), ev.Timestamp)
	child.PPID = parentPID
	child.TGID = childPID
	child.Top().Status = lttv.StatusWaitFork

	tr.tick(ev.Timestamp)
	return false
}

func onExit(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	if p, ok := tr.runningByCPU[ev.CPU]; ok {
		p.Top().Status = lttv.StatusExit
	}
	tr.tick(ev.Timestamp)
	return false
}

func onFree(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	le := tr.littleEndian()
	pid, ok := ev.FieldInt("pid", le)
	if !ok {
		return false
	}
	if p, ok := tr.processes[lttv.KeyOf(pid, ev.CPU)]; ok {
		p.Top().Status = lttv.StatusDead
	}
	tr.tick(ev.Timestamp)
	return false
}

func onExec(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	if p, ok := tr.runningByCPU[ev.CPU]; ok {
		if name, ok := ev.FieldString("filename", ev.PayloadOffset); ok {
			p.Name = name
		}
	}
	tr.tick(ev.Timestamp)
	return false
}

func onThreadBrand(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	if p, ok := tr.runningByCPU[ev.CPU]; ok {
		if brand, ok := ev.FieldString("name", ev.PayloadOffset); ok {
			p.Brand = brand
		}
	}
	return false
}

func onKernelThread(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	if p, ok := tr.runningByCPU[ev.CPU]; ok {
		p.Type = lttv.ProcessKernelThread
	}
	return false
}

func pushHook(mode lttv.Mode) lttvhook.Func {
	return func(data any, callData any) bool {
		tr := data.(*Tracker)
		ev := callData.(*lttv.Event)
		p, ok := tr.runningByCPU[ev.CPU]
		if !ok {
			return false
		}
		le := tr.littleEndian()
		submode := ""
		if id, ok := ev.FieldInt("id", le); ok {
			submode = fmt.Sprintf("%s-%d", mode, id)
		} else if ev.Marker != nil {
			submode = ev.Marker.Name
		}
		tr.push(p, mode, submode, ev.Timestamp)
		return false
	}
}

func popHook() lttvhook.Func {
	return func(data any, callData any) bool {
		tr := data.(*Tracker)
		ev := callData.(*lttv.Event)
		if p, ok := tr.runningByCPU[ev.CPU]; ok {
			tr.pop(p, ev.Timestamp)
		}
		return false
	}
}

func onFunctionEntry(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	p, ok := tr.runningByCPU[ev.CPU]
	if !ok {
		return false
	}
	name, _ := ev.FieldString("name", ev.PayloadOffset)
	p.CallStack = append(p.CallStack, name)
	return false
}

func onFunctionExit(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	p, ok := tr.runningByCPU[ev.CPU]
	if !ok || len(p.CallStack) == 0 {
		return false
	}
	p.CallStack = p.CallStack[:len(p.CallStack)-1]
	return false
}

// onStatedumpEnumerate replays the kernel's initial process-list dump,
// marking the trace's statedump as complete once seen (SPEC_FULL.md
// §3.S1). Field layout is marker-specific in the real format; this records
// only the fields that every statedump-enumerate-* marker shares.
func onStatedumpEnumerate(data any, callData any) bool {
	tr := data.(*Tracker)
	ev := callData.(*lttv.Event)
	le := tr.littleEndian()
	if pid, ok := ev.FieldInt("pid", le); ok {
		p := tr.getOrCreate(lttv.KeyOf(pid, ev.CPU), ev.Timestamp)
		if name, ok := ev.FieldString("name", ev.PayloadOffset); ok {
			p.Name = name
		}
	}
	tr.trace.StatedumpComplete = true
	return false
}

// tick increments the event counter and checkpoints the process table
// every SaveInterval events (spec.md §4.6).
func (tr *Tracker) tick(now lttv.Timestamp) {
	tr.eventCount++
	if tr.eventCount%tr.saveInterval == 0 {
		tr.checkpoint(now)
	}
}

// checkpoint deep-copies the process table into the checkpoints subtree,
// keyed by the timestamp at which it was taken.
func (tr *Tracker) checkpoint(at lttv.Timestamp) {
	snapshot := make(map[lttv.ProcessKey]*lttv.Process, len(tr.processes))
	for k, p := range tr.processes {
		clone := *p
		clone.ExecutionStack = append([]lttv.ExecutionFrame(nil), p.ExecutionStack...)
		clone.CallStack = append([]string(nil), p.CallStack...)
		snapshot[k] = &clone
	}
	tr.checkpoints.FindOrCreate(fmt.Sprintf("%d", uint64(at)), lttvattr.KindPointer)
	tr.checkpoints.SetLeaf(fmt.Sprintf("%d", uint64(at)), lttvattr.PointerLeaf{Value: snapshot})
	lttvdebug.CheckpointCounters.Alloc.Add(1)
}

// Restore finds the largest checkpoint at or before t and deep-copies it
// back into the live process table (spec.md §4.6's state_restore). The
// caller is responsible for then replaying events up to t with all hooks
// but this tracker disabled; the merged iterator's SeekTime does not call
// Restore.
func (tr *Tracker) Restore(t lttv.Timestamp) bool {
	var best uint64
	var bestSnapshot map[lttv.ProcessKey]*lttv.Process
	for i := 0; i < tr.checkpoints.Number(); i++ {
		name, node, ok := tr.checkpoints.Get(i)
		if !ok {
			continue
		}
		var ts uint64
		if _, err := fmt.Sscanf(name, "%d", &ts); err != nil || ts > uint64(t) {
			continue
		}
		leaf, ok := node.(lttvattr.PointerLeaf)
		if !ok {
			continue
		}
		snapshot, ok := leaf.Value.(map[lttv.ProcessKey]*lttv.Process)
		if !ok {
			continue
		}
		if bestSnapshot == nil || ts > best {
			best = ts
			bestSnapshot = snapshot
		}
	}
	if bestSnapshot == nil {
		return false
	}

	tr.processes = make(map[lttv.ProcessKey]*lttv.Process, len(bestSnapshot))
	tr.runningByCPU = map[int]*lttv.Process{}
	for k, p := range bestSnapshot {
		clone := *p
		clone.ExecutionStack = append([]lttv.ExecutionFrame(nil), p.ExecutionStack...)
		clone.CallStack = append([]string(nil), p.CallStack...)
		tr.processes[k] = &clone
		if clone.Top().Status == lttv.StatusRunning {
			tr.runningByCPU[clone.CPU] = &clone
		}
	}
	return true
}
