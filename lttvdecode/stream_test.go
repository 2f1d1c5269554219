package lttvdecode

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/giraldeau/lttv"
)

// buildSyntheticStream writes a single-sub-buffer trace file with a trace
// header and two fixed-layout events, and returns its path. It exists
// because the real LTT binary format has no small canonical fixture in
// this corpus; the layout follows spec.md §6.1 field-for-field.
func buildSyntheticStream(t *testing.T, dir string) string {
	t.Helper()

	order := binary.LittleEndian
	const subBufSize = 256

	buf := make([]byte, subBufSize)
	order.PutUint64(buf[0:8], 1000)  // begin.cycle_count
	order.PutUint64(buf[8:16], 1_000_000)
	order.PutUint64(buf[16:24], 5000) // end.cycle_count
	order.PutUint64(buf[24:32], 1_000_000)
	order.PutUint32(buf[32:36], 0)            // lost_size
	order.PutUint32(buf[36:40], subBufSize)   // buf_size

	th := buf[40:]
	order.PutUint32(th[0:4], traceHeaderMagic)
	order.PutUint32(th[4:8], 1)  // arch_type
	order.PutUint32(th[8:12], 0) // arch_variant
	order.PutUint32(th[12:16], 0)
	order.PutUint32(th[16:20], 64) // arch_size
	order.PutUint32(th[20:24], 0)  // major
	order.PutUint32(th[24:28], 1)  // minor
	order.PutUint32(th[28:32], 0)
	order.PutUint32(th[32:36], 1) // has_heartbeat
	order.PutUint32(th[36:40], 1) // has_alignment
	order.PutUint32(th[40:44], 0) // freq_scale
	order.PutUint64(th[44:52], 1_000_000)
	order.PutUint64(th[52:60], 1000) // start_tsc
	order.PutUint64(th[60:68], 0)
	order.PutUint64(th[68:76], 0)
	order.PutUint64(th[76:84], 0)

	eventsOff := blockHeaderSize + traceHeaderSize
	// event 1: id=1, delta=10 -> tsc 1010
	order.PutUint16(buf[eventsOff:eventsOff+2], 1)
	order.PutUint32(buf[eventsOff+2:eventsOff+6], 10)
	// event 2: id=1, delta=20 -> tsc 1030 (1010 + 20)
	off2 := eventsOff + eventHeaderSize
	order.PutUint16(buf[off2:off2+2], 1)
	order.PutUint32(buf[off2+2:off2+6], 20)

	path := filepath.Join(dir, "cpu0")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAdvanceDecodesEventsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := buildSyntheticStream(t, dir)

	trace := &lttv.Trace{Markers: lttv.NewMarkerRegistry()}
	trace.Markers.DeclareID(1, "sample_event")

	s, err := Open(path, 0, trace)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if trace.Header.Magic != traceHeaderMagic {
		t.Fatalf("trace header not populated: magic = %#x", trace.Header.Magic)
	}

	ev1, err := s.Advance()
	if err != nil {
		t.Fatalf("Advance 1: %v", err)
	}
	if ev1 == nil || ev1.Timestamp != 1010 {
		t.Fatalf("event 1 = %+v, want tsc 1010", ev1)
	}

	ev2, err := s.Advance()
	if err != nil {
		t.Fatalf("Advance 2: %v", err)
	}
	if ev2 == nil || ev2.Timestamp != 1030 {
		t.Fatalf("event 2 = %+v, want tsc 1030", ev2)
	}
}
