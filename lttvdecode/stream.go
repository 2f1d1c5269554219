package lttvdecode

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/giraldeau/lttv"
	"github.com/giraldeau/lttv/internal/lttvdebug"
)

// eventHeaderSize is {event_id: u16, tsc_delta: u32}, per spec.md §6.1.
const eventHeaderSize = 2 + 4

const (
	markerHeartbeat         = "heartbeat"
	markerFacilityLoad      = "facility_load"
	markerIDDeclare         = "marker_id_declare"
	markerFormatDeclare     = "marker_format_declare"
)

// Stream decodes one per-CPU ring-buffer file: it maintains
// {mmap_base, current_sub_buffer_index, cursor_within_sub_buffer,
// current_tsc, heartbeat_count} exactly as spec.md §4.4 describes, and
// exposes Advance/SeekTime over it.
type Stream struct {
	Path string
	CPU  int

	trace *lttv.Trace

	file    *os.File
	mapping *mmapping
	data    []byte
	order   binary.ByteOrder

	subBuffers []subBufferInfo

	subBufferIndex int
	cursor         int
	currentTSC     lttv.Timestamp
	heartbeatCount uint64

	truncated bool
}

type subBufferInfo struct {
	offset    int
	header    blockHeader
	beginTSC  lttv.Timestamp
	endTSC    lttv.Timestamp
	payloadOff int // offset within the sub-buffer where events start
}

// Open maps path and parses its sub-buffer index. If this is the trace's
// first-opened stream, parsing sub-buffer 0 also populates trace.Header.
func Open(path string, cpu int, trace *lttv.Trace) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	mapping, data, err := mapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &Stream{
		Path:    path,
		CPU:     cpu,
		trace:   trace,
		file:    f,
		mapping: mapping,
		data:    data,
	}

	if err := s.indexSubBuffers(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the stream's mapping and underlying file descriptor.
func (s *Stream) Close() error {
	var err error
	if s.mapping != nil {
		err = s.mapping.Close()
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// indexSubBuffers parses every sub-buffer's block header up front: sizes
// are fixed after sub-buffer 0, so this is a single linear pass, and it
// gives SeekTime a begin_tsc-sorted index to binary-search without
// re-parsing headers.
func (s *Stream) indexSubBuffers() error {
	if len(s.data) < blockHeaderSize {
		return fmt.Errorf("%s: %w", s.Path, lttv.ErrCorruptBlockHeader)
	}

	order, err := detectByteOrder(s.data)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	s.order = order

	h0, err := parseBlockHeader(s.data, order)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	if h0.bufSize == 0 || int(h0.bufSize) > len(s.data) {
		return fmt.Errorf("%s: %w: buf_size %d disagrees with file size %d", s.Path, lttv.ErrCorruptBlockHeader, h0.bufSize, len(s.data))
	}

	th, err := parseTraceHeader(s.data[blockHeaderSize:], order)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	if s.trace != nil && s.trace.Header.Magic == 0 {
		s.trace.Header = th
	}

	offset := 0
	for offset+blockHeaderSize <= len(s.data) {
		h, err := parseBlockHeader(s.data[offset:], order)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Path, err)
		}
		if h.bufSize == 0 {
			break
		}
		payloadOff := blockHeaderSize
		if offset == 0 {
			payloadOff += traceHeaderSize
		}

		info := subBufferInfo{
			offset:     offset,
			header:     h,
			beginTSC:   lttv.Timestamp(h.beginCycleCount),
			endTSC:     lttv.Timestamp(h.endCycleCount),
			payloadOff: payloadOff,
		}
		if info.endTSC == 0 {
			s.truncated = true
			lttvdebug.Decoder.StreamsTruncated.Add(1)
			s.subBuffers = append(s.subBuffers, info)
			break
		}
		s.subBuffers = append(s.subBuffers, info)

		next := offset + int(h.bufSize)
		if next <= offset || next > len(s.data) {
			break
		}
		offset = next
	}

	if len(s.subBuffers) == 0 {
		return fmt.Errorf("%s: %w: no sub-buffers found", s.Path, lttv.ErrCorruptBlockHeader)
	}

	s.currentTSC = s.subBuffers[0].beginTSC
	return nil
}

// Truncated reports whether the final sub-buffer had end_tsc == 0, meaning
// the writer died mid-trace (spec.md §5).
func (s *Stream) Truncated() bool { return s.truncated }

// cur returns the sub-buffer info for the stream's current position.
func (s *Stream) cur() subBufferInfo {
	return s.subBuffers[s.subBufferIndex]
}

// Advance reads the next event header, expands its tsc, resolves its
// marker, and returns the event. It returns io.EOF-compatible nil,nil when
// the stream is exhausted. Meta events (heartbeat, facility_load,
// marker_id_declare, marker_format_declare) are consumed internally and
// never returned to the caller (spec.md §6.1), except that a
// marker_id_declare first updates the trace's registry; the other meta
// events, marker_format_declare included, leave the registry unchanged.
func (s *Stream) Advance() (*lttv.Event, error) {
	for {
		ev, meta, err := s.advanceOne()
		if err != nil || ev == nil {
			return ev, err
		}
		if !meta {
			return ev, nil
		}
		if err := s.consumeMeta(ev); err != nil {
			return nil, err
		}
	}
}

func (s *Stream) advanceOne() (*lttv.Event, bool, error) {
	if s.subBufferIndex >= len(s.subBuffers) {
		return nil, false, nil
	}

	sb := s.cur()
	limit := int(sb.header.bufSize) - int(sb.header.lostSize)

	if s.cursor == 0 {
		s.cursor = sb.payloadOff
	}

	if s.cursor+eventHeaderSize > sb.offset+limit {
		if !s.nextSubBuffer() {
			return nil, false, nil
		}
		return s.advanceOne()
	}

	start := s.cursor
	id := s.order.Uint16(s.data[start : start+2])
	delta := s.order.Uint32(s.data[start+2 : start+6])
	payloadOffset := start + eventHeaderSize

	next, ok := lttv.ExpandTSC(s.currentTSC, delta, sb.endTSC)
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", s.Path, lttv.ErrTimestampGoesBackwards)
	}
	s.currentTSC = next

	marker, known := s.trace.Markers.Lookup(id)
	name := ""
	if known {
		name = marker.Name
	} else if !isMetaID(id) {
		return nil, false, fmt.Errorf("%s: %w: id %d", s.Path, lttv.ErrUnknownEventID, id)
	}

	size := eventHeaderSize
	if known {
		size += fixedPayloadSize(marker)
	}
	s.cursor = start + size

	lttvdebug.Decoder.EventsDecoded.Add(1)

	ev := &lttv.Event{
		Timestamp:      s.currentTSC,
		EventID:        id,
		Marker:         marker,
		CPU:            s.CPU,
		SubBufferIndex: s.subBufferIndex,
		Cursor:         start,
		PayloadOffset:  payloadOffset,
		Payload:        s.data,
	}

	meta := isMetaID(id) || isMetaName(name)
	if name == markerHeartbeat {
		s.heartbeatCount++
		lttvdebug.Decoder.HeartbeatsSeen.Add(1)
	}
	return ev, meta, nil
}

// fixedPayloadSize returns the payload size up to (not including) the first
// dynamic field, since dynamic fields can only be sized by scanning the
// actual bytes; callers needing dynamic fields walk the payload themselves.
func fixedPayloadSize(m *lttv.Marker) int {
	size := 0
	for _, f := range m.Fields {
		if f.Dynamic {
			break
		}
		size = f.Offset + f.Size
	}
	return size
}

func isMetaID(id uint16) bool { return id == 0 }

func isMetaName(name string) bool {
	switch name {
	case markerHeartbeat, markerFacilityLoad, markerIDDeclare, markerFormatDeclare:
		return true
	default:
		return false
	}
}

// consumeMeta applies the registry side effects of a meta event. It does
// not attempt to parse the real LTT meta-event payload layout byte for
// byte: it looks the fields up by name, so unit tests can synthesize
// marker declarations without hand-encoding the original binary form.
// Only marker_id_declare is applied (its "id" and "name" fields go to
// DeclareID); marker_format_declare is consumed without touching the
// registry.
func (s *Stream) consumeMeta(ev *lttv.Event) error {
	if ev.Marker == nil {
		return nil
	}
	switch ev.Marker.Name {
	case markerIDDeclare:
		id, ok := ev.FieldInt("id", s.order == binary.LittleEndian)
		if !ok {
			return nil
		}
		name, ok := ev.FieldString("name", ev.PayloadOffset)
		if !ok {
			return nil
		}
		return s.trace.Markers.DeclareID(uint16(id), name)
	}
	return nil
}

func (s *Stream) nextSubBuffer() bool {
	if s.subBufferIndex+1 >= len(s.subBuffers) {
		return false
	}
	s.subBufferIndex++
	s.cursor = 0
	sb := s.cur()
	s.currentTSC = sb.beginTSC
	return true
}

// SeekTime repositions the stream via binary search over sub-buffers by
// begin_tsc, then a linear scan within the selected sub-buffer, so that
// the next Advance returns the first event with tsc >= t (spec.md §4.4,
// §4.5).
func (s *Stream) SeekTime(t lttv.Timestamp) error {
	idx := sort.Search(len(s.subBuffers), func(i int) bool {
		return s.subBuffers[i].beginTSC > t
	})
	if idx > 0 {
		idx--
	}
	s.subBufferIndex = idx
	s.cursor = 0
	sb := s.cur()
	s.currentTSC = sb.beginTSC

	for {
		save := *s
		ev, _, err := s.advanceOne()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}
		if ev.Timestamp >= t {
			*s = save
			return nil
		}
	}
}

// CurrentTSC returns the tsc of the last event returned by Advance (or the
// stream's starting tsc if nothing has been read yet).
func (s *Stream) CurrentTSC() lttv.Timestamp { return s.currentTSC }

// Position captures the stream's reader position for C5's position tokens
// (spec.md §4.5).
type Position struct {
	SubBufferIndex int
	Cursor         int
	TSC            lttv.Timestamp
}

func (s *Stream) Position() Position {
	return Position{SubBufferIndex: s.subBufferIndex, Cursor: s.cursor, TSC: s.currentTSC}
}

func (s *Stream) Restore(p Position) {
	s.subBufferIndex = p.SubBufferIndex
	s.cursor = p.Cursor
	s.currentTSC = p.TSC
}

// Less gives the total order over stream positions used to break ties
// between equal timestamps (spec.md §5): (sub_buffer_index, cursor)
// ascending.
func (p Position) Less(o Position) bool {
	if p.SubBufferIndex != o.SubBufferIndex {
		return p.SubBufferIndex < o.SubBufferIndex
	}
	return p.Cursor < o.Cursor
}
