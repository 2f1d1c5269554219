// Package lttv is the analysis engine of the Linux Trace Toolkit Viewer.
//
// It ingests kernel-produced binary trace streams (one stream per CPU per
// trace, plus per-process usertrace streams), reconstructs operating-system
// state as events are replayed in time order, and exposes hookable passes
// over the merged event stream so that downstream consumers (text dumpers,
// statistics aggregators, state-machine checkers, GUI viewers) can compute
// arbitrary summaries.
//
// This package holds the shared data model (Traceset, Trace, Event,
// Process, ExecutionFrame) and the per-trace event-id to field-layout
// registry (MarkerRegistry, in marker.go). The subsystems that do the hard
// work live in dedicated packages:
//
//   - lttvdecode: per-CPU sub-buffer decoder
//   - lttviter: N-way merged traceset iterator
//   - lttvstate: process/execution-mode state tracker
//   - lttvattr:  typed hierarchical attribute tree
//   - lttvhook:  priority-ordered hook chains and per-id tables
//   - lttvfilter: boolean filter-expression engine
//   - lttvstats: per-process x per-cpu x per-mode statistics
//   - lttvdriver: begin/middle/end process-trace loop
package lttv
