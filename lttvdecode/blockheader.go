package lttvdecode

import (
	"encoding/binary"
	"fmt"

	"github.com/giraldeau/lttv"
)

// blockHeaderSize is the encoded size of a sub-buffer's block header,
// before the embedded trace header that only appears in sub-buffer 0
// (spec.md §6.1): four u64 fields (begin/end cycle_count/freq_khz) plus two
// u32 fields (lost_size, buf_size).
const blockHeaderSize = 8*4 + 4*2

// traceHeaderMagic identifies a valid trace header and, combined with
// trying both byte orders, lets the decoder discover a trace's endianness
// without being told it out of band (spec.md §6.1).
const traceHeaderMagic = 0x00D6B7ED

// traceHeaderSize is the encoded size of the fixed-layout portion of the
// trace header embedded at the start of sub-buffer 0 (spec.md §6.1):
// magic, arch_type, arch_variant, float_word_order, arch_size, major,
// minor, flight_recorder, has_heartbeat, has_alignment, freq_scale
// (all u32), followed by start_freq, start_tsc, start_monotonic (u64),
// start_time_sec, start_time_usec (u64).
const traceHeaderSize = 4*11 + 8*5

type blockHeader struct {
	beginCycleCount uint64
	beginFreqKHz    uint64
	endCycleCount   uint64
	endFreqKHz      uint64
	lostSize        uint32
	bufSize         uint32
}

// parseBlockHeader decodes the fixed block header at the start of buf using
// order. It does not look at the embedded trace header, if any.
func parseBlockHeader(buf []byte, order binary.ByteOrder) (blockHeader, error) {
	if len(buf) < blockHeaderSize {
		return blockHeader{}, fmt.Errorf("%w: sub-buffer shorter than block header (%d bytes)", lttv.ErrCorruptBlockHeader, len(buf))
	}
	var h blockHeader
	h.beginCycleCount = order.Uint64(buf[0:8])
	h.beginFreqKHz = order.Uint64(buf[8:16])
	h.endCycleCount = order.Uint64(buf[16:24])
	h.endFreqKHz = order.Uint64(buf[24:32])
	h.lostSize = order.Uint32(buf[32:36])
	h.bufSize = order.Uint32(buf[36:40])
	return h, nil
}

// detectByteOrder tries to parse a trace header immediately following a
// block header under both byte orders and returns whichever one yields the
// expected magic (spec.md §6.1).
func detectByteOrder(buf []byte) (binary.ByteOrder, error) {
	if len(buf) < blockHeaderSize+4 {
		return nil, fmt.Errorf("%w: sub-buffer 0 too short to hold a trace header", lttv.ErrCorruptBlockHeader)
	}
	magicOffset := blockHeaderSize
	if binary.LittleEndian.Uint32(buf[magicOffset:magicOffset+4]) == traceHeaderMagic {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(buf[magicOffset:magicOffset+4]) == traceHeaderMagic {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: trace header magic not found in either byte order", lttv.ErrCorruptBlockHeader)
}

// parseTraceHeader decodes the trace header embedded after sub-buffer 0's
// block header.
func parseTraceHeader(buf []byte, order binary.ByteOrder) (lttv.TraceHeader, error) {
	if len(buf) < traceHeaderSize {
		return lttv.TraceHeader{}, fmt.Errorf("%w: trace header truncated", lttv.ErrCorruptBlockHeader)
	}

	u32 := func(off int) uint32 { return order.Uint32(buf[off : off+4]) }
	u64 := func(off int) uint64 { return order.Uint64(buf[off : off+8]) }

	var h lttv.TraceHeader
	h.Magic = u32(0)
	h.Arch.ArchType = u32(4)
	h.Arch.ArchVariant = u32(8)
	h.FloatWordOrder = u32(12) != 0
	archSize := u32(16)
	h.Arch.ArchSize = int(archSize)
	h.Arch.LittleEndian = order == binary.LittleEndian
	h.Major = int(u32(20))
	h.Minor = int(u32(24))
	h.FlightRecorder = u32(28) != 0
	h.HasHeartbeat = u32(32) != 0
	h.HasAlignment = u32(36) != 0
	h.FreqScale = u32(40)

	off := 44
	h.StartFreqHz = u64(off)
	off += 8
	h.StartTSC = lttv.Timestamp(u64(off))
	off += 8
	h.StartMonotonic = u64(off)
	off += 8
	h.StartTimeSec = int64(u64(off))
	off += 8
	h.StartTimeUsec = int64(u64(off))

	if h.Magic != traceHeaderMagic {
		return h, fmt.Errorf("%w: magic %#x", lttv.ErrCorruptBlockHeader, h.Magic)
	}
	return h, nil
}
