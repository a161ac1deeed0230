package key

// Range is an interval in key order. Either bound may be absent (unbounded)
// and each present bound carries its own open/closed flag.
type Range struct {
	// Lower is the lower bound; meaningful only when HasLower is set.
	Lower Key

	// Upper is the upper bound; meaningful only when HasUpper is set.
	Upper Key

	// HasLower and HasUpper mark which bounds are present.
	HasLower bool
	HasUpper bool

	// ExcludeLower and ExcludeUpper make the corresponding bound open.
	ExcludeLower bool
	ExcludeUpper bool
}

// All returns the range unbounded on both ends.
func All() Range {
	return Range{}
}

// Only returns the closed single-key range [k, k].
func Only(k Key) Range {
	return Range{Lower: k, Upper: k, HasLower: true, HasUpper: true}
}

// LowerBound returns the range bounded below by k, unbounded above.
func LowerBound(k Key, exclude bool) Range {
	return Range{Lower: k, HasLower: true, ExcludeLower: exclude}
}

// UpperBound returns the range bounded above by k, unbounded below.
func UpperBound(k Key, exclude bool) Range {
	return Range{Upper: k, HasUpper: true, ExcludeUpper: exclude}
}

// Bound returns the range between lower and upper with the given open flags.
func Bound(lower, upper Key, excludeLower, excludeUpper bool) Range {
	return Range{
		Lower:        lower,
		Upper:        upper,
		HasLower:     true,
		HasUpper:     true,
		ExcludeLower: excludeLower,
		ExcludeUpper: excludeUpper,
	}
}

// IsAll reports whether the range is unbounded on both ends.
func (r Range) IsAll() bool {
	return !r.HasLower && !r.HasUpper
}

// Contains reports whether k falls inside the range.
func (r Range) Contains(k Key) bool {
	if r.HasLower {
		if k < r.Lower || (r.ExcludeLower && k == r.Lower) {
			return false
		}
	}
	if r.HasUpper {
		if k > r.Upper || (r.ExcludeUpper && k == r.Upper) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no key can satisfy the range.
func (r Range) IsEmpty() bool {
	if !r.HasLower || !r.HasUpper {
		return false
	}
	if r.Lower > r.Upper {
		return true
	}
	return r.Lower == r.Upper && (r.ExcludeLower || r.ExcludeUpper)
}

// Intersect composes two ranges into the range matched by both.
// The tighter bound wins; on equal bounds an open flag wins over a closed one.
func (r Range) Intersect(other Range) Range {
	out := r
	if other.HasLower {
		switch {
		case !out.HasLower, other.Lower > out.Lower:
			out.Lower = other.Lower
			out.HasLower = true
			out.ExcludeLower = other.ExcludeLower
		case other.Lower == out.Lower:
			out.ExcludeLower = out.ExcludeLower || other.ExcludeLower
		}
	}
	if other.HasUpper {
		switch {
		case !out.HasUpper, other.Upper < out.Upper:
			out.Upper = other.Upper
			out.HasUpper = true
			out.ExcludeUpper = other.ExcludeUpper
		case other.Upper == out.Upper:
			out.ExcludeUpper = out.ExcludeUpper || other.ExcludeUpper
		}
	}
	return out
}
