package ref

// Borrowed is a reference the holder does not own. It must not be
// released and is only valid for the duration of the call that produced it.
// Borrowed values are freely copyable.
type Borrowed struct {
	addr Addr
}

// BorrowAddr marks a raw address as borrowed.
func BorrowAddr(addr Addr) Borrowed {
	return Borrowed{addr: addr}
}

// Addr returns the raw address.
func (b Borrowed) Addr() Addr { return b.addr }

// IsNull reports whether the handle refers to nothing.
func (b Borrowed) IsNull() bool { return b.addr == 0 }

// cell holds one reference. Consuming it (Release, Steal, Adopt, Move)
// empties the cell, so every copy of the owning handle observes the
// consumption and a second release is a no-op.
type cell struct {
	heap Counter
	addr Addr
}

func (c *cell) take() (Counter, Addr) {
	if c == nil {
		return nil, 0
	}
	heap, addr := c.heap, c.addr
	c.heap, c.addr = nil, 0
	return heap, addr
}

// Owned holds exactly one reference and must be released exactly once.
// The zero Owned is null and safe to release.
type Owned struct {
	c *cell
}

// NewOwned adopts a reference the caller already holds on addr, such as
// the reference returned by an allocation. The count is not changed.
func NewOwned(heap Counter, addr Addr) Owned {
	if addr == 0 || heap == nil {
		return Owned{}
	}
	return Owned{c: &cell{heap: heap, addr: addr}}
}

// ToOwned takes a new reference on a borrowed handle.
func ToOwned(heap Counter, b Borrowed) Owned {
	if b.addr == 0 || heap == nil {
		return Owned{}
	}
	heap.IncRef(b.addr)
	return Owned{c: &cell{heap: heap, addr: b.addr}}
}

// Addr returns the raw address, or 0 once the reference is consumed.
func (o Owned) Addr() Addr {
	if o.c == nil {
		return 0
	}
	return o.c.addr
}

// IsNull reports whether the handle holds no reference.
func (o Owned) IsNull() bool { return o.Addr() == 0 }

// Borrow returns a borrowed view without changing the count.
func (o Owned) Borrow() Borrowed {
	return Borrowed{addr: o.Addr()}
}

// Steal hands the reference off. The receiver owns it; o becomes null.
func (o Owned) Steal() Stolen {
	heap, addr := o.c.take()
	if addr == 0 {
		return Stolen{}
	}
	return Stolen{c: &cell{heap: heap, addr: addr}}
}

// Move transfers the reference to a new handle and empties o. It is used
// to return an owned value past a deferred Release.
func (o Owned) Move() Owned {
	heap, addr := o.c.take()
	if addr == 0 {
		return Owned{}
	}
	return Owned{c: &cell{heap: heap, addr: addr}}
}

// Release drops the reference. Releasing a null or already consumed
// handle does nothing.
func (o Owned) Release() {
	heap, addr := o.c.take()
	if addr != 0 {
		heap.DecRef(addr)
	}
}

// Stolen is a reference in transit. The receiver adopts it; the donor
// must not touch it again.
type Stolen struct {
	c *cell
}

// Addr returns the raw address, or 0 once adopted.
func (s Stolen) Addr() Addr {
	if s.c == nil {
		return 0
	}
	return s.c.addr
}

// IsNull reports whether the handle holds no reference.
func (s Stolen) IsNull() bool { return s.Addr() == 0 }

// Borrow returns a borrowed view without changing the count.
func (s Stolen) Borrow() Borrowed {
	return Borrowed{addr: s.Addr()}
}

// Adopt turns the stolen reference into an owned one held by the receiver.
// A second Adopt returns null.
func (s Stolen) Adopt() Owned {
	heap, addr := s.c.take()
	if addr == 0 {
		return Owned{}
	}
	return Owned{c: &cell{heap: heap, addr: addr}}
}

// ReleaseAll releases every handle; null entries are skipped.
func ReleaseAll(hs ...Owned) {
	for _, h := range hs {
		h.Release()
	}
}

// Borrows returns borrowed views of the given handles.
func Borrows(hs []Owned) []Borrowed {
	out := make([]Borrowed, len(hs))
	for i, h := range hs {
		out[i] = h.Borrow()
	}
	return out
}
