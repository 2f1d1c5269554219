package lttvweb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/internal/lttvpubsub"
	"github.com/giraldeau/lttv/lttvattr"
	"github.com/giraldeau/lttv/lttvstate"
	"github.com/giraldeau/lttv/lttvstats"
)

func testMarker(name string) *lttv.Marker {
	return &lttv.Marker{ID: 1, Name: name}
}

func TestHandleEventsFiltersByQuery(t *testing.T) {
	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	srv := NewServer(broker, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	matching := &lttv.Event{Timestamp: 42, EventID: 1, Marker: testMarker("wanted"), CPU: 0}
	other := &lttv.Event{Timestamp: 43, EventID: 2, Marker: testMarker("ignored"), CPU: 0}

	go func() {
		for !broker.IsActive() {
			time.Sleep(time.Millisecond)
		}
		broker.Publish(other)
		broker.Publish(matching)
	}()

	resp, err := ts.Client().Get(ts.URL + "/events?q=" + `event.name=="wanted"`)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Events []eventJSON `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Marker != "wanted" {
		t.Fatalf("events = %+v, want exactly the \"wanted\" event", body.Events)
	}
}

func TestHandleEventsBadFilterReturns400(t *testing.T) {
	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	srv := NewServer(broker, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/events?q=" + `(((`)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleStatsExportsAttributeTree(t *testing.T) {
	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	root := lttvattr.NewBranch()
	trace := &lttv.Trace{Markers: lttv.NewMarkerRegistry()}
	tracker := lttvstate.NewTracker(trace, 1)
	agg := lttvstats.NewAggregator(root, tracker)
	root.SetLeaf("processes/1-0/cpu/0/mode_types/kernel/submodes/none/event_types/sample", lttvattr.ULongLeaf(3))

	srv := NewServer(broker, agg)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := out["processes"]; !ok {
		t.Fatalf("stats = %+v, want a \"processes\" key", out)
	}
}

func TestHandleStatsWithoutAggregatorReturns404(t *testing.T) {
	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	srv := NewServer(broker, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleStreamSendsSSEFrames(t *testing.T) {
	broker := lttvpubsub.NewBroker[*lttv.Event](nil)
	srv := NewServer(broker, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/events/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	client := ts.Client()
	client.Timeout = 2 * time.Second

	resp, err := client.Do(req)
	if err != nil {
		// The handler flushes its headers before waiting for events, so Do
		// returns as soon as the stream is open; an error here means no
		// response arrived at all.
		t.Fatalf("SSE request: %v", err)
	}
	defer resp.Body.Close()

	go func() {
		for !broker.IsActive() {
			time.Sleep(time.Millisecond)
		}
		broker.Publish(&lttv.Event{Timestamp: 1, EventID: 1, Marker: testMarker("tick"), CPU: 0})
	}()

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "event: event") {
		t.Fatalf("stream body = %q, want an SSE event frame", buf[:n])
	}
}
