package common

// Coalesce returns the first non-zero value from the provided arguments.
// If all values are the zero value for type T, returns the zero value.
//
// Parameters:
//   - values: variadic list of comparable values to check
//
// Returns:
//   - T: the first non-zero value, or the zero value if none found
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp constrains a value to the inclusive range [lo, hi].
//
// Parameters:
//   - v: the value to constrain
//   - lo: lower bound
//   - hi: upper bound
//
// Returns:
//   - T: v limited to the range
func Clamp[T ~int | ~int32 | ~uint32 | ~float32 | ~float64](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
