package lttvhook

import "sync"

// Table is a sparse array of Chains indexed by a 16-bit event id
// (spec.md §4.2): most ids are never hooked, so slots are allocated lazily,
// and a compact side array of used indices lets the table be iterated or
// reset without scanning the full 65536-entry index space.
type Table struct {
	mu   sync.Mutex
	rows []*Chain // len always 1<<16 once initialized; nil entries unused
	used []uint16
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{rows: make([]*Chain, 1<<16)}
}

// Chain returns the chain registered at id, lazily allocating one on first
// use.
func (t *Table) Chain(id uint16) *Chain {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rows[id] == nil {
		t.rows[id] = NewChain()
		t.used = append(t.used, id)
	}
	return t.rows[id]
}

// Lookup returns the chain registered at id without allocating one, and
// false if id has no chain yet.
func (t *Table) Lookup(id uint16) (*Chain, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.rows[id]
	return c, c != nil
}

// Used returns the ids that currently have an allocated chain, in the order
// they were first allocated.
func (t *Table) Used() []uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint16, len(t.used))
	copy(out, t.used)
	return out
}

// Reset drops every allocated chain, without reallocating the backing
// index array.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.used {
		t.rows[id] = nil
	}
	t.used = t.used[:0]
}
