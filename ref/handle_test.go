package ref

import "testing"

func TestOwned_ReleaseDecrementsOnce(t *testing.T) {
	heap := NewTable()
	addr, _ := heap.Alloc("v")
	heap.IncRef(addr) // keep the slot alive for inspection

	o := NewOwned(heap, addr)
	if heap.RefCount(addr) != 2 {
		t.Fatalf("NewOwned must not change the count, got %d", heap.RefCount(addr))
	}

	o.Release()
	if heap.RefCount(addr) != 1 {
		t.Fatalf("Release should decrement by one, got %d", heap.RefCount(addr))
	}

	// Second release through the same handle or a copy is a no-op.
	alias := o
	o.Release()
	alias.Release()
	if heap.RefCount(addr) != 1 {
		t.Fatalf("Repeated Release changed the count to %d", heap.RefCount(addr))
	}
	if !o.IsNull() || !alias.IsNull() {
		t.Fatal("Released handle should be null")
	}
}

func TestBorrowToOwnedNetsZero(t *testing.T) {
	heap := NewTable()
	addr, _ := heap.Alloc("v")
	owner := NewOwned(heap, addr)
	before := heap.RefCount(addr)

	b := owner.Borrow()
	if heap.RefCount(addr) != before {
		t.Fatal("Borrow must not change the count")
	}

	o := ToOwned(heap, b)
	if heap.RefCount(addr) != before+1 {
		t.Fatalf("ToOwned should increment, got %d", heap.RefCount(addr))
	}

	o.Release()
	if heap.RefCount(addr) != before {
		t.Fatalf("Borrow/ToOwned/Release should net zero, got %d want %d", heap.RefCount(addr), before)
	}

	owner.Release()
	if heap.Len() != 0 {
		t.Fatal("Expected heap to be empty")
	}
}

func TestSteal(t *testing.T) {
	heap := NewTable()
	addr, _ := heap.Alloc("v")
	o := NewOwned(heap, addr)

	s := o.Steal()
	if !o.IsNull() {
		t.Fatal("Donor must be null after Steal")
	}
	if s.Addr() != addr {
		t.Fatalf("Stolen addr = %d, want %d", s.Addr(), addr)
	}
	if heap.RefCount(addr) != 1 {
		t.Fatal("Steal must not change the count")
	}

	// Donor release after steal is a no-op.
	o.Release()
	if heap.RefCount(addr) != 1 {
		t.Fatal("Release after Steal must not decrement")
	}

	adopted := s.Adopt()
	if s.Adopt().Addr() != 0 {
		t.Fatal("Second Adopt should yield null")
	}
	adopted.Release()
	if heap.Len() != 0 {
		t.Fatal("Adopted reference should free the slot on Release")
	}
}

func TestMove(t *testing.T) {
	heap := NewTable()
	addr, _ := heap.Alloc("v")
	o := NewOwned(heap, addr)

	moved := func() Owned {
		defer o.Release()
		return o.Move()
	}()

	if heap.RefCount(addr) != 1 {
		t.Fatalf("Move should survive the deferred release, count %d", heap.RefCount(addr))
	}
	moved.Release()
	if heap.Len() != 0 {
		t.Fatal("Expected heap to be empty")
	}
}

func TestNullHandles(t *testing.T) {
	var o Owned
	var s Stolen

	o.Release()
	if !o.IsNull() || !o.Borrow().IsNull() {
		t.Fatal("zero Owned should be null")
	}
	if !o.Steal().IsNull() {
		t.Fatal("stealing null should yield null")
	}
	if !s.Adopt().IsNull() {
		t.Fatal("adopting null should yield null")
	}
	if !ToOwned(NewTable(), Borrowed{}).IsNull() {
		t.Fatal("ToOwned of null should be null")
	}

	ReleaseAll(Owned{}, Owned{}, o)
}

func TestReleaseAll_PartialArray(t *testing.T) {
	heap := NewTable()
	items := make([]Owned, 4)
	for i := 0; i < 2; i++ {
		a, _ := heap.Alloc(i)
		items[i] = NewOwned(heap, a)
	}

	ReleaseAll(items...)
	if heap.Len() != 0 {
		t.Fatalf("Expected all slots freed, %d live", heap.Len())
	}

	bs := Borrows(items)
	for i, b := range bs {
		if !b.IsNull() {
			t.Errorf("borrow %d should be null after release", i)
		}
	}
}
