package value

import "strings"

// --------------------------------------------------------------------------
// Comparison
// --------------------------------------------------------------------------

// Equal reports structural equality.
// Numbers compare numerically across int and float, arrays element-wise.
func Equal(a, b Value) bool {
	if a.Kind == KindNull && b.Kind == KindNull {
		return true
	}
	if a.Kind == KindNull || b.Kind == KindNull {
		return false
	}

	if a.IsNumber() && b.IsNumber() {
		// prefer exact int compare when possible
		if a.Kind == KindInt && b.Kind == KindInt {
			return a.I64 == b.I64
		}
		return asFloat64(a) == asFloat64(b)
	}

	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindString:
		return a.S == b.S
	case KindBool:
		return a.B == b.B
	case KindArray:
		if len(a.A) != len(b.A) {
			return false
		}
		for i := range a.A {
			if !Equal(a.A[i], b.A[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Comparable reports whether a and b can be ordered against each other.
// Null is never comparable here; callers decide where nulls go.
func Comparable(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	return a.Kind == KindString || a.Kind == KindBool
}

// Compare returns -1, 0 or 1 when a is less than, equal to or greater than b.
// The boolean is false when the two values are not comparable (see Comparable).
func Compare(a, b Value) (int, bool) {
	if !Comparable(a, b) {
		return 0, false
	}

	switch {
	case a.Kind == KindInt && b.Kind == KindInt:
		return cmpOrdered(a.I64, b.I64), true
	case a.IsNumber():
		return cmpOrdered(asFloat64(a), asFloat64(b)), true
	case a.Kind == KindString:
		return strings.Compare(a.S, b.S), true
	case a.Kind == KindBool:
		switch {
		case a.B == b.B:
			return 0, true
		case !a.B:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// Contains reports whether arr is an array holding an element equal to v.
func Contains(arr, v Value) bool {
	if arr.Kind != KindArray {
		return false
	}
	for _, item := range arr.A {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether arr holds at least one of the given values.
func ContainsAny(arr Value, values []Value) bool {
	for _, v := range values {
		if Contains(arr, v) {
			return true
		}
	}
	return false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat64(v Value) float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.I64)
	case KindFloat:
		return v.F64
	default:
		return 0
	}
}
