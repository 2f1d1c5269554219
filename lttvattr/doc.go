// Package lttvattr implements the attribute tree: a typed, named,
// hierarchical key/value store used throughout the engine for statistics
// output and as the rendezvous point where hook chains are published (see
// lttvhook). A node is either a leaf holding a typed scalar value, or a
// branch mapping keys to child nodes.
//
// The tree is deliberately decoupled from the rest of the engine: it has no
// notion of traces, events, or processes, so it composes the same way the
// teacher's generic internal containers (internal/trcringbuf,
// internal/trcpubsub) compose into the rest of trc.
package lttvattr
