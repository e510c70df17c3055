package guest

import (
	"github.com/wippyai/hostbridge/ref"
)

// Object is an owned guest value held by host code. It is what an
// untyped host parameter receives when no plainer Go value fits.
// A host function that is passed an Object owns it once the call
// succeeds and may keep it past the call. Close releases the reference;
// the zero Object is safe to Close.
type Object struct {
	api API
	h   ref.Owned
}

// NewObject takes a new reference on b.
func NewObject(api API, b ref.Borrowed) *Object {
	return &Object{api: api, h: api.NewRef(b)}
}

// Borrow returns a borrowed view valid until Close.
func (o *Object) Borrow() ref.Borrowed { return o.h.Borrow() }

// NewRef returns a new owned reference to the same value.
func (o *Object) NewRef() ref.Owned { return o.api.NewRef(o.h.Borrow()) }

// TypeName returns the guest type name.
func (o *Object) TypeName() string { return o.api.TypeName(o.h.Borrow()) }

// Kind returns the guest kind.
func (o *Object) Kind() Kind { return o.api.Kind(o.h.Borrow()) }

func (o *Object) String() string {
	if o == nil || o.h.IsNull() {
		return "<nil>"
	}
	s, err := o.api.Str(o.h.Borrow())
	if err != nil {
		return "<" + o.TypeName() + ">"
	}
	return s
}

// Close releases the reference.
func (o *Object) Close() error {
	if o == nil {
		return nil
	}
	o.h.Release()
	return nil
}
