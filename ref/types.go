package ref

// Addr is the address of an object in the guest heap.
// Addr 0 is reserved and always null.
type Addr uint32

// Event types for heap slot lifecycle notifications.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventIncRef
	EventDecRef
	EventFreed
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventIncRef:
		return "incref"
	case EventDecRef:
		return "decref"
	case EventFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// Event represents a heap slot lifecycle event.
type Event struct {
	Value    any
	Addr     Addr
	RefCount uint32
	Type     EventType
}

// Observer receives notifications about heap slot lifecycle events.
type Observer interface {
	OnRefEvent(Event)
}

// Counter adjusts reference counts of heap slots.
// Operations on a null or stale address are ignored.
type Counter interface {
	// IncRef adds one reference to the slot.
	IncRef(addr Addr)

	// DecRef drops one reference; the slot is freed when the count reaches zero.
	DecRef(addr Addr)
}

// Dropper is optionally implemented by heap values that need cleanup
// when their last reference is released.
type Dropper interface {
	Drop()
}
