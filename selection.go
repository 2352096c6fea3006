package ezflow

import (
	"github.com/go-ezflow/ezflow/errors"
)

// A Selection is an ordered list of 1-based slot indices into a row.
// The empty selection denotes no columns and projects to the empty
// subrow. Selections may also be written as a boolean mask over all
// slots; NewSelection normalizes a mask to index form.
type Selection []int

// Cols builds a Selection from 1-based indices.
func Cols(indices ...int) Selection {
	out := make(Selection, len(indices))
	copy(out, indices)
	return out
}

// NewSelection interprets vals against a row arity: if every value is 0
// or 1 and there is one value per slot, vals is a boolean mask;
// otherwise vals is a list of indices. The returned Selection is always
// in index form.
func NewSelection(arity int, vals ...int) Selection {
	if len(vals) == arity && arity > 0 {
		mask := true
		for _, v := range vals {
			if v != 0 && v != 1 {
				mask = false
				break
			}
		}
		if mask {
			out := make(Selection, 0, arity)
			for i, v := range vals {
				if v == 1 {
					out = append(out, i+1)
				}
			}
			return out
		}
	}
	return Cols(vals...)
}

// Identity returns the selection of every slot of a row in order.
func Identity(arity int) Selection {
	out := make(Selection, arity)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Complement returns every slot not present in s, in order. Used to
// derive value columns as the complement of key columns.
func (s Selection) Complement(arity int) Selection {
	in := make(map[int]bool, len(s))
	for _, i := range s {
		in[i] = true
	}
	out := make(Selection, 0, arity-len(s))
	for i := 1; i <= arity; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

// Sane verifies the selection against a row arity: every index must be
// within [1, arity] and no index may repeat.
func (s Selection) Sane(arity int) error {
	seen := make(map[int]bool, len(s))
	for _, i := range s {
		if i < 1 || i > arity {
			return errors.ColumnBoundsError{Index: i, Arity: arity}
		}
		if seen[i] {
			return errors.DuplicateColumnError{Index: i}
		}
		seen[i] = true
	}
	return nil
}

// Project returns the subrow of r selected by s. Slot values are shared,
// not copied.
func (s Selection) Project(r Row) Row {
	out := make(Row, len(s))
	for i, idx := range s {
		out[i] = r[idx-1]
	}
	return out
}

// Hash hashes the projection of r through s.
func (s Selection) Hash(r Row) uint64 {
	return HashRow(s.Project(r))
}

// Contains reports whether the selection includes the 1-based index i.
func (s Selection) Contains(i int) bool {
	for _, v := range s {
		if v == i {
			return true
		}
	}
	return false
}

// Supersetof reports whether s contains every index of other.
func (s Selection) Supersetof(other Selection) bool {
	for _, i := range other {
		if !s.Contains(i) {
			return false
		}
	}
	return true
}
