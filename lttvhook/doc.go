// Package lttvhook implements the engine's hook-chain dispatch primitive:
// priority-ordered, mergeable lists of callbacks, plus a sparse per-event-id
// table of chains.
//
// Like lttvattr, this package has no notion of traces or events — it only
// knows about priorities and opaque callback/data pairs — so it stays a
// dependency-free leaf next to lttvattr, and the root lttv package wires
// both into the context tree.
package lttvhook
