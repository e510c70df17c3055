package numeric

import "math"

// FitsInt reports whether v fits a signed integer of the given width.
func FitsInt(v int64, bits int) bool {
	switch bits {
	case 8:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case 16:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case 32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	}
	return true
}

// FitsUint reports whether v fits an unsigned integer of the given width.
func FitsUint(v uint64, bits int) bool {
	switch bits {
	case 8:
		return v <= math.MaxUint8
	case 16:
		return v <= math.MaxUint16
	case 32:
		return v <= math.MaxUint32
	}
	return true
}

// FitsFloat32 reports whether f can be stored as float32 without
// overflowing. Infinities and NaN pass through.
func FitsFloat32(f float64) bool {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return true
	}
	return math.Abs(f) <= math.MaxFloat32
}
