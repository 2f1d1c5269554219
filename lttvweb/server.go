package lttvweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/internal/lttvpubsub"
	"github.com/giraldeau/lttv/lttvfilter"
	"github.com/giraldeau/lttv/lttvstats"
	"github.com/oklog/ulid/v2"
)

// eventsPollTimeout bounds how long /events waits to fill a batch before
// returning whatever it collected; an ad hoc query shouldn't hang forever
// on a quiet trace.
const eventsPollTimeout = 2 * time.Second

// Server is a JSON + SSE HTTP surface over one Traceset analysis (SPEC_FULL.md
// §6.S1). Its three endpoints are /events (a filtered JSON page),
// /events/stream (live SSE of matching events as they're published), and
// /stats (the aggregator's rolled-up attribute tree as JSON).
type Server struct {
	broker *lttvpubsub.Broker[*lttv.Event]
	stats  *lttvstats.Aggregator
	mux    *http.ServeMux
}

// NewServer wires a Server publishing through broker, with /stats backed by
// agg.
func NewServer(broker *lttvpubsub.Broker[*lttv.Event], agg *lttvstats.Aggregator) *Server {
	s := &Server{broker: broker, stats: agg, mux: http.NewServeMux()}
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.HandleFunc("/events/stream", s.handleStream)
	s.mux.HandleFunc("/stats", s.handleStats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// eventJSON is the wire shape for an lttv.Event: the Payload bytes aren't
// serialized since they're only meaningful alongside the marker's field
// layout and are ephemeral per spec.md §3.
type eventJSON struct {
	ID        string `json:"id"`
	Timestamp uint64 `json:"timestamp"`
	EventID   uint16 `json:"event_id"`
	Marker    string `json:"marker,omitempty"`
	CPU       int    `json:"cpu"`
}

func toJSON(ev *lttv.Event) eventJSON {
	name := ""
	if ev.Marker != nil {
		name = ev.Marker.Name
	}
	return eventJSON{
		ID:        ulid.Make().String(),
		Timestamp: uint64(ev.Timestamp),
		EventID:   ev.EventID,
		Marker:    name,
		CPU:       ev.CPU,
	}
}

// handleEvents evaluates the "q" filter expression against a short-lived
// subscription to the live broker and returns the first batch of matches as
// JSON. It is meant for quick ad hoc queries, not bulk export (SPEC_FULL.md
// §6.S1); bulk export is the CLI's job.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	node, err := compileQuery(r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, err, http.StatusBadRequest)
		return
	}

	const batch = 100
	out := make([]eventJSON, 0, batch)

	ctx, cancel := context.WithTimeout(r.Context(), eventsPollTimeout)
	defer cancel()
	ch := make(chan *lttv.Event, batch)
	allow := func(ev *lttv.Event) bool {
		if node == nil {
			return true
		}
		return node.Eval(&lttvfilter.EvalContext{Event: ev})
	}

	go s.broker.Subscribe(ctx, allow, ch)

collect:
	for len(out) < batch {
		select {
		case ev := <-ch:
			out = append(out, toJSON(ev))
		case <-ctx.Done():
			break collect
		}
	}
	cancel()

	respondJSON(w, map[string]any{"events": out})
}

// handleStream serves text/event-stream: a live feed of events matching "q",
// grounded on the teacher's trchttp.StreamServer eventsource.Handler shape.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	node, err := compileQuery(r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, err, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, fmt.Errorf("streaming unsupported"), http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	ctx := r.Context()
	ch := make(chan *lttv.Event, 100)
	allow := func(ev *lttv.Event) bool {
		if node == nil {
			return true
		}
		return node.Eval(&lttvfilter.EvalContext{Event: ev})
	}

	go s.broker.Subscribe(ctx, allow, ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(toJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: event\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		respondError(w, fmt.Errorf("no aggregator configured"), http.StatusNotFound)
		return
	}
	respondJSON(w, s.stats.Root().ToMap())
}

func compileQuery(q string) (*lttvfilter.Node, error) {
	if q == "" {
		return nil, nil
	}
	return lttvfilter.Parse(q)
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
