// Package types defines the compiled descriptors used by the converter.
//
// A Type is computed once per Go type and records the conversion kind and
// the descriptors of element, key and enum information, so the hot paths
// of the converter switch on Kind instead of reflecting repeatedly.
//
// This package is internal to convert.
package types
