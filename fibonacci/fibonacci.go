// Package fibonacci computes Fibonacci numbers by loop and by recursion.
//
// The int64 variants wrap on overflow once n exceeds MaxInt64Index.
// Big never overflows.
package fibonacci

import (
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/exp/constraints"
)

// MaxInt64Index is the largest n for which F(n) fits into an int64.
const MaxInt64Index = 92

var ErrInvalidArgument = errors.New("invalid argument")

func checkIndex(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidArgument, n)
	}
	return nil
}

// iterate runs the loop shared by Iterative and Sequence. prev and current
// start at F(1) and F(2), and the loop stops short of n, so current is F(n)
// when it returns. visit, if set, receives every new current value.
func iterate(n int, visit func(int64)) int64 {
	if n == 0 {
		return 0
	}
	if n < 2 {
		return 1
	}
	prev, current := int64(1), int64(1)
	for i := 2; i < n; i++ {
		next := prev + current
		prev = current
		current = next
		if visit != nil {
			visit(current)
		}
	}
	return current
}

// Iterative returns F(n).
func Iterative(n int) (int64, error) {
	if err := checkIndex(n); err != nil {
		return 0, err
	}
	return iterate(n, nil), nil
}

// Sequence returns F(1) through F(n). The result has length n.
func Sequence(n int) ([]int64, error) {
	if err := checkIndex(n); err != nil {
		return nil, err
	}
	switch n {
	case 0:
		return []int64{}, nil
	case 1:
		return []int64{1}, nil
	}
	seq := make([]int64, 2, n)
	seq[0], seq[1] = 1, 1
	iterate(n, func(v int64) {
		seq = append(seq, v)
	})
	return seq, nil
}

// Recursive returns F(n) using the naive double recursion.
// It runs in exponential time.
func Recursive(n int) (int64, error) {
	if err := checkIndex(n); err != nil {
		return 0, err
	}
	return Recurse(int64(n)), nil
}

// Recurse is the unchecked recurrence behind Recursive.
// Negative n is returned unchanged.
func Recurse[N constraints.Integer](n N) N {
	if n < 2 {
		return n
	}
	return Recurse(n-1) + Recurse(n-2)
}

// Big returns F(n) with arbitrary precision.
func Big(n int) (*big.Int, error) {
	if err := checkIndex(n); err != nil {
		return nil, err
	}
	if n == 0 {
		return big.NewInt(0), nil
	}
	prev, current := big.NewInt(1), big.NewInt(1)
	for i := 2; i < n; i++ {
		// prev becomes the next value, then the two swap roles.
		prev.Add(prev, current)
		prev, current = current, prev
	}
	return current, nil
}
