package lttvdriver

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/lttvdecode"
	"github.com/giraldeau/lttv/lttvhook"
	"github.com/giraldeau/lttv/lttviter"
)

func writeOneStream(t *testing.T, dir string, deltas []uint32) string {
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

	off := 40 + 84
	for _, d := range deltas {
		order.PutUint16(buf[off:off+2], 1)
		order.PutUint32(buf[off+2:off+6], d)
		off += 6
	}
	path := filepath.Join(dir, "cpu0")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunProcessesAllEventsThenStops(t *testing.T) {
	dir := t.TempDir()
	trace := &lttv.Trace{Markers: lttv.NewMarkerRegistry()}
	trace.Markers.DeclareID(1, "sample")
	path := writeOneStream(t, dir, []uint32{1, 2, 3, 4, 5})

	s, err := lttvdecode.Open(path, 0, trace)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	traceset := &lttv.Traceset{Traces: []*lttv.Trace{trace}}
	it := lttviter.New(traceset, [][]*lttvdecode.Stream{{s}})

	count := 0
	chain := lttvhook.NewChain()
	chain.Insert(func(data any, callData any) bool { count++; return false }, "counter", 0)

	n, err := Run(context.Background(), it, lttviter.Hooks{Event: chain}, lttv.Timestamp(1<<62), nil, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 5 || count != 5 {
		t.Fatalf("Run processed %d (hook saw %d), want 5", n, count)
	}
}

func TestRunRespectsCanceledContext(t *testing.T) {
	dir := t.TempDir()
	trace := &lttv.Trace{Markers: lttv.NewMarkerRegistry()}
	trace.Markers.DeclareID(1, "sample")
	path := writeOneStream(t, dir, []uint32{1, 2, 3, 4, 5})

	s, err := lttvdecode.Open(path, 0, trace)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	traceset := &lttv.Traceset{Traces: []*lttv.Trace{trace}}
	it := lttviter.New(traceset, [][]*lttvdecode.Stream{{s}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Run(ctx, it, lttviter.Hooks{}, lttv.Timestamp(1<<62), nil, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("Run processed %d events on an already-canceled context, want 0", n)
	}
}
