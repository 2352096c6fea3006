package algorithms

import (
	ezflow "github.com/go-ezflow/ezflow"
)

// Gt is true when the first selected column exceeds v.
func Gt(v float64) ezflow.FilterFunc {
	return func(in ezflow.Row) (bool, error) {
		return toFloat(in[0]) > v, nil
	}
}

// Lt is true when the first selected column is below v.
func Lt(v float64) ezflow.FilterFunc {
	return func(in ezflow.Row) (bool, error) {
		return toFloat(in[0]) < v, nil
	}
}

// EqVal is true when the first selected column equals v.
func EqVal(v interface{}) ezflow.FilterFunc {
	return func(in ezflow.Row) (bool, error) {
		return ezflow.RowEq(ezflow.R(in[0]), ezflow.R(v)), nil
	}
}

// Tautology accepts every row; useful as a counting splice.
func Tautology() ezflow.FilterFunc {
	return func(ezflow.Row) (bool, error) { return true, nil }
}
