package ref

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("guest heap closed")

// Table is an in-memory refcounted heap. Each slot holds one value and a
// reference count; the slot is freed when the count drops to zero.
type Table struct {
	entries   []entry
	freeList  []Addr
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value    any
	refs     uint32
	valid    bool
	immortal bool
}

var _ Counter = (*Table)(nil)

// NewTable creates an empty heap.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Addr, 0, 16),
	}
}

// Alloc stores a value with a reference count of one and returns its address.
func (t *Table) Alloc(value any) (Addr, error) {
	return t.alloc(value, false)
}

// Immortal stores a value whose slot is never freed by DecRef.
func (t *Table) Immortal(value any) (Addr, error) {
	return t.alloc(value, true)
}

func (t *Table) alloc(value any, immortal bool) (Addr, error) {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{
		value:    value,
		refs:     1,
		valid:    true,
		immortal: immortal,
	}

	var addr Addr
	if len(t.freeList) > 0 {
		addr = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[addr-1] = e
	} else {
		t.entries = append(t.entries, e)
		addr = Addr(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventAllocated, Addr: addr, RefCount: 1, Value: value})
	return addr, nil
}

// Get retrieves the value stored at addr.
func (t *Table) Get(addr Addr) (any, bool) {
	if addr == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := addr - 1
	if int(idx) >= len(t.entries) {
		return nil, false
	}

	e := t.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// IncRef adds one reference to the slot at addr.
func (t *Table) IncRef(addr Addr) {
	if addr == 0 {
		return
	}

	t.mu.Lock()
	e := t.lookup(addr)
	if e == nil {
		t.mu.Unlock()
		return
	}
	e.refs++
	ev := Event{Type: EventIncRef, Addr: addr, RefCount: e.refs, Value: e.value}
	t.mu.Unlock()

	t.notify(ev)
}

// DecRef drops one reference from the slot at addr. When the count
// reaches zero the slot is freed and a Dropper value is dropped.
func (t *Table) DecRef(addr Addr) {
	if addr == 0 {
		return
	}

	t.mu.Lock()
	e := t.lookup(addr)
	if e == nil || e.refs == 0 {
		t.mu.Unlock()
		return
	}

	if e.immortal && e.refs == 1 {
		t.mu.Unlock()
		return
	}

	e.refs--
	ev := Event{Type: EventDecRef, Addr: addr, RefCount: e.refs, Value: e.value}
	if e.refs > 0 {
		t.mu.Unlock()
		t.notify(ev)
		return
	}

	value := e.value
	e.valid = false
	e.value = nil
	t.freeList = append(t.freeList, addr)
	t.mu.Unlock()

	// Drop runs outside the lock so it may release other slots.
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(ev)
	t.notify(Event{Type: EventFreed, Addr: addr, Value: value})
}

// RefCount returns the reference count of the slot, or 0 if it is not live.
func (t *Table) RefCount(addr Addr) int {
	if addr == 0 {
		return 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := addr - 1
	if int(idx) >= len(t.entries) {
		return 0
	}

	e := t.entries[idx]
	if !e.valid {
		return 0
	}
	return int(e.refs)
}

// Len returns the number of live slots.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live slots.
func (t *Table) Each(fn func(Addr, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid {
			if !fn(Addr(i+1), e.value) {
				break
			}
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close frees every slot regardless of its reference count.
func (t *Table) Close() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var dropped []any
	for i := range t.entries {
		if t.entries[i].valid {
			dropped = append(dropped, t.entries[i].value)
			t.entries[i].valid = false
			t.entries[i].value = nil
		}
	}

	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	for _, v := range dropped {
		if d, ok := v.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}

func (t *Table) lookup(addr Addr) *entry {
	idx := addr - 1
	if int(idx) >= len(t.entries) {
		return nil
	}
	e := &t.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnRefEvent(e)
	}
}
