package capacity

// Limit is a count that may be unbounded. A plan dimension of zero places no
// bound on the estimate.
type Limit struct {
	n       int64
	bounded bool
}

// Unbounded is the identity of Min.
func Unbounded() Limit {
	return Limit{}
}

// Bound returns a bounded limit of n.
func Bound(n int64) Limit {
	return Limit{n: max(n, 0), bounded: true}
}

// Min returns the tighter of two limits.
func (l Limit) Min(o Limit) Limit {
	switch {
	case !l.bounded:
		return o
	case !o.bounded:
		return l
	case o.n < l.n:
		return o
	default:
		return l
	}
}

// OrZero returns the bound, or 0 when unbounded.
func (l Limit) OrZero() int64 {
	if !l.bounded {
		return 0
	}
	return l.n
}

// fits returns how many units of size fit into free. A size of zero is
// unbounded.
func fits(free float64, size float64) Limit {
	if size <= 0 {
		return Unbounded()
	}
	return Bound(int64(free / size))
}
