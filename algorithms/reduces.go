package algorithms

import (
	"math"

	ezflow "github.com/go-ezflow/ezflow"
)

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return math.NaN()
	}
}

// Sum folds n value columns into n running sums.
func Sum(n int) ezflow.Reducer {
	seed := make(ezflow.Row, n)
	for i := range seed {
		seed[i] = 0.0
	}
	return ezflow.ReduceInPlace(seed, func(acc, key, val ezflow.Row) error {
		for i := range acc {
			acc[i] = acc[i].(float64) + toFloat(val[i])
		}
		return nil
	})
}

// Count folds any value columns into a single row count.
func Count() ezflow.Reducer {
	return ezflow.ReduceInPlace(ezflow.R(int64(0)), func(acc, key, val ezflow.Row) error {
		acc[0] = acc[0].(int64) + 1
		return nil
	})
}

// Max folds n value columns into n running maxima.
func Max(n int) ezflow.Reducer {
	seed := make(ezflow.Row, n)
	for i := range seed {
		seed[i] = math.Inf(-1)
	}
	return ezflow.ReduceInPlace(seed, func(acc, key, val ezflow.Row) error {
		for i := range acc {
			if v := toFloat(val[i]); v > acc[i].(float64) {
				acc[i] = v
			}
		}
		return nil
	})
}

// Min folds n value columns into n running minima.
func Min(n int) ezflow.Reducer {
	seed := make(ezflow.Row, n)
	for i := range seed {
		seed[i] = math.Inf(1)
	}
	return ezflow.ReduceInPlace(seed, func(acc, key, val ezflow.Row) error {
		for i := range acc {
			if v := toFloat(val[i]); v < acc[i].(float64) {
				acc[i] = v
			}
		}
		return nil
	})
}

// Mean averages each value column over a whole group; a reduceAll
// function.
func Mean(key ezflow.Row, group []ezflow.Row) ([]ezflow.Row, error) {
	if len(group) == 0 {
		return nil, nil
	}
	n := len(group[0])
	out := make(ezflow.Row, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, r := range group {
			sum += toFloat(r[i])
		}
		out[i] = sum / float64(len(group))
	}
	return []ezflow.Row{out}, nil
}
