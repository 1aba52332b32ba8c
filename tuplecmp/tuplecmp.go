// Package tuplecmp implements lexicographic ordering over cursor tuples,
// mirroring SQL row-value comparison semantics: (a, b) > (x, y) compares a
// to x first, falling through to b vs y only on a tie.
package tuplecmp

import "github.com/bglgwyng/rx-table/expr"

// Compare returns -1, 0 or 1 according to whether a is lexicographically
// less than, equal to, or greater than b. a and b must have equal length.
func Compare(a, b []expr.Value) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c, err := expr.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	default:
		return 0, nil
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b []expr.Value) (bool, error) {
	c, err := Compare(a, b)
	return c < 0, err
}

// ByTuple adapts a slice of tuples (each a []expr.Value) plus a tiebreak-free
// total order into sort.Interface, used by test fixtures to verify a planner
// result is sorted the way orderBy demands.
type ByTuple struct {
	Tuples [][]expr.Value
	Desc   []bool // per-column direction; len must equal each tuple's length
}

func (b ByTuple) Len() int      { return len(b.Tuples) }
func (b ByTuple) Swap(i, j int) { b.Tuples[i], b.Tuples[j] = b.Tuples[j], b.Tuples[i] }
func (b ByTuple) Less(i, j int) bool {
	a, c := b.Tuples[i], b.Tuples[j]
	for k := range a {
		cmp, err := expr.Compare(a[k], c[k])
		if err != nil || cmp == 0 {
			continue
		}
		if k < len(b.Desc) && b.Desc[k] {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}
