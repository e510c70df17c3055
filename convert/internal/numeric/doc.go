// Package numeric provides range checks and numeric coercion helpers for
// the converter.
//
// # Contents
//
//   - coerce.go: lossless coercion between Go numeric types
//   - fits.go: width checks used before narrowing a guest number
//
// This package is internal to convert.
package numeric
