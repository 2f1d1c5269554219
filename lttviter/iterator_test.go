package lttviter

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvdecode"
	"github.com/giraldeau/lttv/lttvhook"
)

// writeStream emits a minimal one-sub-buffer trace file (spec.md §6.1) with
// events at the given tsc deltas from a fixed start_tsc of 1000.
func writeStream(t *testing.T, dir, name string, deltas []uint32) string {
	t.Helper()
	order := binary.LittleEndian
	const subBufSize = 512

	buf := make([]byte, subBufSize)
	order.PutUint64(buf[0:8], 1000)
	order.PutUint64(buf[8:16], 1_000_000)
	order.PutUint64(buf[16:24], 100000)
	order.PutUint64(buf[24:32], 1_000_000)
	order.PutUint32(buf[32:36], 0)
	order.PutUint32(buf[36:40], subBufSize)

	th := buf[40:]
	order.PutUint32(th[0:4], 0x00D6B7ED)
	order.PutUint32(th[16:20], 64)
	order.PutUint32(th[24:28], 1)
	order.PutUint64(th[44:52], 1_000_000)
	order.PutUint64(th[52:60], 1000)

	off := 40 + 84 // blockHeaderSize + traceHeaderSize computed inline to avoid import cycle with lttvdecode internals
	for _, d := range deltas {
		order.PutUint16(buf[off:off+2], 1)
		order.PutUint32(buf[off+2:off+6], d)
		off += 6
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMiddleEmitsEventsInGlobalTimeOrder(t *testing.T) {
	dir := t.TempDir()
	trace := &lttv.Trace{Markers: lttv.NewMarkerRegistry()}
	trace.Markers.DeclareID(1, "sample")

	pathA := writeStream(t, dir, "cpu0", []uint32{10, 40}) // tsc 1010, 1050
	pathB := writeStream(t, dir, "cpu1", []uint32{20, 30}) // tsc 1020, 1050

	sA, err := lttvdecode.Open(pathA, 0, trace)
	if err != nil {
		t.Fatalf("open A: %v", err)
	}
	defer sA.Close()
	sB, err := lttvdecode.Open(pathB, 1, trace)
	if err != nil {
		t.Fatalf("open B: %v", err)
	}
	defer sB.Close()

	traceset := &lttv.Traceset{Traces: []*lttv.Trace{trace}}
	it := New(traceset, [][]*lttvdecode.Stream{{sA, sB}})

	var seen []lttv.Timestamp
	chain := lttvhook.NewChain()
	chain.Insert(func(data any, callData any) bool {
		seen = append(seen, callData.(*lttv.Event).Timestamp)
		return false
	}, "recorder", 0)

	if err := it.Begin(Hooks{Event: chain}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for {
		n, err := it.Middle(1<<62, 10, nil)
		if err != nil {
			t.Fatalf("Middle: %v", err)
		}
		if n == 0 {
			break
		}
	}

	want := []lttv.Timestamp{1010, 1020, 1050, 1050}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}
