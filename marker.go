package lttv

import (
	"fmt"
	"sync"
)

// FieldType is the wire type of one marker field (spec.md §3, Marker).
type FieldType int

const (
	FieldInt FieldType = iota
	FieldUint
	FieldPointer
	FieldString
	FieldCompact
)

func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "int"
	case FieldUint:
		return "uint"
	case FieldPointer:
		return "pointer"
	case FieldString:
		return "string"
	case FieldCompact:
		return "compact"
	default:
		return "unknown"
	}
}

// Field describes one member of a marker's payload, as declared by a
// "format-string declaration" meta-event and refined by ResolveOffsets.
type Field struct {
	Name      string
	Type      FieldType
	Size      int // bytes; 0 for string fields (NUL-terminated, variable length)
	Alignment int // bytes
	Format    string

	// Offset and Dynamic are computed by ResolveOffsets, not supplied by the
	// format-string declaration itself.
	Offset  int
	Dynamic bool // true if a string field precedes this one in the marker
}

// Marker is an event-id descriptor: a name and its field layout (spec.md
// §3, §4.3).
type Marker struct {
	ID     uint16
	Name   string
	Fields []Field
}

// MarkerRegistry maps numeric event ids to Markers, populated from the
// "id-to-name" and "format-string" in-stream meta-events (spec.md §4.3).
// It rejects a format-string declaration that conflicts with one already
// recorded for the same name: the trace is self-inconsistent, which is
// fatal to the whole analysis (spec.md §7, Schema errors).
//
// Single-writer, many-reader in practice (decoding is single-threaded per
// spec.md §5), but guarded anyway since multiple Traces can share process
// memory.
type MarkerRegistry struct {
	mtx    sync.RWMutex
	byID   map[uint16]*Marker
	byName map[string]*Marker
}

// NewMarkerRegistry returns an empty registry.
func NewMarkerRegistry() *MarkerRegistry {
	return &MarkerRegistry{
		byID:   map[uint16]*Marker{},
		byName: map[string]*Marker{},
	}
}

// DeclareID records that id refers to name, handling the "id-to-name
// declaration" meta-event. If name already has fields from an earlier
// format-string declaration, they are carried over to the new id.
func (r *MarkerRegistry) DeclareID(id uint16, name string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	m := &Marker{ID: id, Name: name}
	if existing, ok := r.byName[name]; ok {
		m.Fields = existing.Fields
	}
	r.byID[id] = m
	r.byName[name] = m
	return nil
}

// DeclareFormat records the field layout for name, handling the
// "format-string declaration" meta-event. A conflicting redeclaration
// (different field layout for the same name) is rejected.
func (r *MarkerRegistry) DeclareFormat(name string, format string, fields []Field) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	resolved := ResolveOffsets(fields, 8, 8)

	if existing, ok := r.byName[name]; ok && existing.Fields != nil {
		if !fieldsEqual(existing.Fields, resolved) {
			return fmt.Errorf("marker %q: %w", name, ErrFormatConflict)
		}
		return nil
	}

	m, ok := r.byName[name]
	if !ok {
		m = &Marker{Name: name}
		r.byName[name] = m
	}
	m.Fields = resolved
	_ = format
	return nil
}

// Lookup returns the marker for id, and false if id has not been declared.
func (r *MarkerRegistry) Lookup(id uint16) (*Marker, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// NamesWithPrefix returns every declared marker name beginning with prefix,
// used by the state tracker to find the statedump-enumerate-* family
// without hardcoding every variant (spec.md §4.6).
func (r *MarkerRegistry) NamesWithPrefix(prefix string) []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	var out []string
	for name := range r.byName {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out = append(out, name)
		}
	}
	return out
}

// LookupByName returns the marker for name, and false if it is unknown.
func (r *MarkerRegistry) LookupByName(name string) (*Marker, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type || a[i].Size != b[i].Size {
			return false
		}
	}
	return true
}

// ResolveOffsets applies spec.md §4.3's field-layout rules to a freshly
// parsed format string's field list:
//
//   - a field whose width is given explicitly (Size != 0) keeps that exact
//     width; otherwise it takes wordSize (the trace's int/long/pointer/
//     size_t width from its header, never the host's).
//   - each field's offset is the previous field's offset + size, padded up
//     to the field's own alignment, bounded by alignRule (the trace's
//     global alignment rule).
//   - a string field has no fixed size (it's NUL-terminated) and marks
//     every subsequent field Dynamic: their real offsets can only be
//     computed per event, by walking the payload. The string field itself
//     keeps its computed offset and is not marked Dynamic.
func ResolveOffsets(fields []Field, wordSize, alignRule int) []Field {
	out := make([]Field, len(fields))
	offset := 0
	dynamic := false

	for i, f := range fields {
		if f.Type != FieldString && f.Size == 0 {
			f.Size = wordSize
		}
		if f.Alignment == 0 {
			f.Alignment = min(f.Size, alignRule)
			if f.Alignment == 0 {
				f.Alignment = 1
			}
		}

		f.Dynamic = dynamic
		if !dynamic {
			offset = padTo(offset, f.Alignment)
			f.Offset = offset
			offset += f.Size
		} else {
			f.Offset = -1
		}

		if f.Type == FieldString {
			dynamic = true
		}

		out[i] = f
	}
	return out
}

func padTo(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	if r := offset % alignment; r != 0 {
		return offset + (alignment - r)
	}
	return offset
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
