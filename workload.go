package fibbench

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/grafana/fibbench/fibonacci"
)

type Variant string

const (
	VariantIterative Variant = "iterative"
	VariantSequence  Variant = "sequence"
	VariantRecursive Variant = "recursive"
	VariantBig       Variant = "big"
)

// MaxRecursiveIndex bounds n for the recursive variant, which takes
// exponential time.
const MaxRecursiveIndex = 40

var ErrIndexTooLarge = errors.New("index too large")

// workload calls the variant iterations times and formats the last result.
// It stops early with ctx.Err() once ctx is done.
type workload func(ctx context.Context, n, iterations int) (string, error)

var workloads = map[Variant]workload{
	VariantIterative: func(ctx context.Context, n, iterations int) (string, error) {
		v, err := repeat(ctx, n, iterations, fibonacci.Iterative)
		return strconv.FormatInt(v, 10), err
	},
	VariantSequence: func(ctx context.Context, n, iterations int) (string, error) {
		v, err := repeat(ctx, n, iterations, fibonacci.Sequence)
		return fmt.Sprint(v), err
	},
	VariantRecursive: func(ctx context.Context, n, iterations int) (string, error) {
		if n > MaxRecursiveIndex {
			return "", fmt.Errorf("%w: n=%d, the recursive variant allows up to %d", ErrIndexTooLarge, n, MaxRecursiveIndex)
		}
		v, err := repeat(ctx, n, iterations, fibonacci.Recursive)
		return strconv.FormatInt(v, 10), err
	},
	VariantBig: func(ctx context.Context, n, iterations int) (string, error) {
		v, err := repeat(ctx, n, iterations, fibonacci.Big)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	},
}

func repeat[T any](ctx context.Context, n, iterations int, compute func(int) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	// Done is nil for a context that is never canceled, the select then
	// always falls through.
	done := ctx.Done()
	for i := 0; i < iterations; i++ {
		select {
		case <-done:
			return v, ctx.Err()
		default:
		}
		if v, err = compute(n); err != nil {
			return v, err
		}
	}
	return v, nil
}

// wraps reports whether the variant computes on int64.
func (v Variant) wraps() bool {
	return v == VariantIterative || v == VariantSequence || v == VariantRecursive
}

// ParseVariants parses a comma separated list such as "iterative,recursive".
func ParseVariants(s string) ([]Variant, error) {
	var ret []Variant
	for _, f := range splitList(s) {
		v := Variant(f)
		if _, ok := workloads[v]; !ok {
			return nil, fmt.Errorf("unknown variant %q", f)
		}
		ret = append(ret, v)
	}
	return ret, nil
}
