// Package lttvstate implements the process/execution-mode state tracker
// (C6): a process table keyed by (pid, cpu-for-idle), each with a nested
// execution-mode stack, updated by a fixed set of hooks keyed by marker
// name (fork, exit, exec, schedchange, syscall/trap/irq/softirq
// entry-exit, ...), plus periodic checkpointing into an attribute subtree
// for O(1) seek-to-time.
//
// Grounded on the teacher's collector.go state-machine-over-hooks shape
// (a Collector walks events and mutates a Trace's derived state through
// registered funcs), generalized to a typed Process table and a
// lttvhook.Chain per marker name instead of trc's single decorator chain.
package lttvstate
