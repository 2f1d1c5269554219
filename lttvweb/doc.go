// Package lttvweb exposes an HTTP surface over the analysis engine
// (SPEC_FULL.md §4.S1, §6.S1): JSON query endpoints plus a live
// server-sent-events stream of events matching a filter, published through
// internal/lttvpubsub.Broker.
//
// Grounded on the teacher's trchttp.Server (JSON API + HTML UI dispatch on
// Accept header) and trchttp.StreamServer (bernerdschaefer/eventsource
// handler fed by a background publish goroutine), generalized from
// trc.Trace search/stream to lttv.Event filter/stream.
package lttvweb
