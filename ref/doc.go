// Package ref provides guest object references with explicit ownership.
//
// Every guest object lives in a refcounted heap slot addressed by an Addr.
// A raw Addr is never passed around on its own; it is wrapped in one of
// three handle types that make the ownership mode part of the type:
//
//	Borrowed - caller owns no reference; copyable; never released
//	Owned    - caller holds exactly one reference; released exactly once
//	Stolen   - a reference being handed to a receiver that adopts it
//
// Mode changes go through refcount-correct operations only:
//
//	b := owned.Borrow()          // no count change
//	o := ref.ToOwned(heap, b)    // +1
//	s := owned.Steal()           // no count change; owned becomes null
//	o = s.Adopt()                // receiver takes the reference
//	o.Release()                  // -1; slot freed at zero
//
// # Null Handles
//
// The zero Owned and Stolen are null and always safe to release, so
// failure paths can release a partially built slice of handles
// unconditionally:
//
//	items := make([]ref.Owned, n)
//	defer ref.ReleaseAll(items...)
//
// Consuming a handle empties the cell shared by every copy of it, so a
// second Release is a no-op rather than a double decrement.
//
// # Heap
//
// Table is the slot heap backing the guest runtime:
//
//	heap := ref.NewTable()
//	addr, _ := heap.Alloc(value) // count 1
//	heap.IncRef(addr)
//	heap.DecRef(addr)
//	heap.DecRef(addr)            // freed, Dropper.Drop called
//
// Observers receive allocation, incref, decref and free events, which the
// guest runtime uses to keep its identity index in sync.
//
// # Thread Safety
//
// Table is safe for concurrent use. Handles are not; they are used under
// the guest lock.
package ref
