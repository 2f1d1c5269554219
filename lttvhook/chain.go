package lttvhook

import "sync"

// Func is a hook callback. data is the opaque registration-time payload
// (closure state); callData is the per-call argument (typically an *Event).
// The return value's meaning is chain-dependent: Call ORs every return
// value together, CallCheck stops at the first true.
type Func func(data any, callData any) bool

type entry struct {
	fn       Func
	data     any
	prio     int
	refcount int
}

// Chain is an ordered sequence of (fn, data, prio, refcount) entries,
// sorted by ascending prio (spec.md §4.2). Duplicate (fn, data) pairs
// collapse into a single entry with an incremented refcount; Remove
// decrements and only drops the entry once the refcount reaches zero.
//
// data must be comparable (Go's == must not panic on it): hooks are
// typically registered with a pointer or a small value type as data.
type Chain struct {
	mu      sync.Mutex
	entries []entry
}

// NewChain returns an empty Chain.
func NewChain() *Chain { return &Chain{} }

// Insert adds fn/data at priority prio, or increments the refcount of an
// existing (fn, data) entry regardless of the prio it was first inserted
// with.
func (c *Chain) Insert(fn Func, data any, prio int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if sameHook(c.entries[i], fn, data) {
			c.entries[i].refcount++
			return
		}
	}

	i := 0
	for i < len(c.entries) && c.entries[i].prio <= prio {
		i++
	}
	c.entries = append(c.entries, entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = entry{fn: fn, data: data, prio: prio, refcount: 1}
}

// Remove decrements the refcount of the (fn, data) entry and drops it once
// it reaches zero. It is a no-op if the pair is not registered.
func (c *Chain) Remove(fn Func, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if sameHook(c.entries[i], fn, data) {
			c.entries[i].refcount--
			if c.entries[i].refcount <= 0 {
				c.entries = append(c.entries[:i], c.entries[i+1:]...)
			}
			return
		}
	}
}

// Len reports the number of distinct (fn, data) entries.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func sameHook(e entry, fn Func, data any) bool {
	return funcsEqual(e.fn, fn) && e.data == data
}

// snapshot returns a copy of the entry slice for lock-free iteration. Chains
// are expected to be mutated rarely (registration time) and called often
// (once per event), so Call/CallCheck/CallMerge copy out under the lock and
// then run callbacks without holding it — a callback is free to register or
// remove hooks on this same chain without deadlocking.
func (c *Chain) snapshot() []entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Call invokes every hook in priority order and returns the logical OR of
// their return values.
func (c *Chain) Call(callData any) bool {
	result := false
	for _, e := range c.snapshot() {
		if e.fn(e.data, callData) {
			result = true
		}
	}
	return result
}

// CallCheck invokes hooks in priority order and stops at the first one that
// returns true, returning true itself. If none do, it returns false.
func (c *Chain) CallCheck(callData any) bool {
	for _, e := range c.snapshot() {
		if e.fn(e.data, callData) {
			return true
		}
	}
	return false
}

// CallMerge fires c1 and c2 as if they were a single chain ordered by
// priority, without allocating a merged slice: it walks both pre-sorted
// entry lists with two cursors, always firing the next-lowest priority
// (spec.md §4.2). c1's hooks are called with cd1, c2's with cd2. Returns the
// logical OR of every hook's return value.
func CallMerge(c1 *Chain, cd1 any, c2 *Chain, cd2 any) bool {
	a := c1.snapshot()
	b := c2.snapshot()

	result := false
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].prio <= b[j].prio {
			if a[i].fn(a[i].data, cd1) {
				result = true
			}
			i++
		} else {
			if b[j].fn(b[j].data, cd2) {
				result = true
			}
			j++
		}
	}
	for ; i < len(a); i++ {
		if a[i].fn(a[i].data, cd1) {
			result = true
		}
	}
	for ; j < len(b); j++ {
		if b[j].fn(b[j].data, cd2) {
			result = true
		}
	}
	return result
}
