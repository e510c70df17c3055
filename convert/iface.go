package convert

import "reflect"

// Convertible is implemented by host values that define conversions to
// other host types. It is consulted when a wrapped host value is not
// directly assignable to the requested type.
type Convertible interface {
	ConvertTo(t reflect.Type) (any, bool)
}

// ChangeNotifier is implemented by collections that publish their own
// mutations. Such slices cross to the guest wrapped instead of copied, so
// guest code sees the live collection.
type ChangeNotifier interface {
	Subscribe(fn func()) (cancel func())
}
