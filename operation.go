package ezflow

// MapFunc transforms the projection of a row through the stage's
// function columns into a single result row. The stage output is the
// output selection applied to concat(input, result).
type MapFunc func(in Row) (Row, error)

// FlatMapFunc is the vector form of MapFunc: zero or many result rows,
// each yielding one output row.
type FlatMapFunc func(in Row) ([]Row, error)

// FilterFunc is a predicate over the projection of a row through the
// stage's function columns.
type FilterFunc func(in Row) (bool, error)

// Reducer folds grouped rows into an accumulator. Exactly one of
// InPlace and ByValue is set; the engine dispatches so the in-place
// form never copies the accumulator.
type Reducer struct {
	// Seed is the initial accumulator for a fresh key.
	Seed Row
	// InPlace mutates acc and returns no replacement.
	InPlace func(acc Row, key Row, val Row) error
	// ByValue returns the next accumulator.
	ByValue func(acc Row, key Row, val Row) (Row, error)
}

// ReduceInPlace builds a Reducer that mutates its accumulator.
func ReduceInPlace(seed Row, f func(acc Row, key Row, val Row) error) Reducer {
	return Reducer{Seed: seed, InPlace: f}
}

// ReduceByValue builds a Reducer that returns a fresh accumulator.
func ReduceByValue(seed Row, f func(acc Row, key Row, val Row) (Row, error)) Reducer {
	return Reducer{Seed: seed, ByValue: f}
}

// Step applies the reducer to one row, returning the accumulator to
// store. acc may be mutated when the in-place form is set.
func (r Reducer) Step(acc Row, key Row, val Row) (Row, error) {
	if r.InPlace != nil {
		if err := r.InPlace(acc, key, val); err != nil {
			return nil, err
		}
		return acc, nil
	}
	return r.ByValue(acc, key, val)
}

// SeedCopy returns a private copy of the seed for a fresh bucket.
func (r Reducer) SeedCopy() Row {
	return r.Seed.Clone()
}

// ReduceAllFunc folds a whole buffered group into zero or many result
// rows. The stage output is the output selection applied to
// concat(key, result) for each result row.
type ReduceAllFunc func(key Row, group []Row) ([]Row, error)

// RiseSource produces the rows of a root stage. Next returns a possibly
// empty batch; an empty batch (or nil) signals end-of-stream.
type RiseSource interface {
	Next() ([]Row, error)
}

// RankAware is implemented by rise sources that partition their input
// internally; Init is called with the stage's position and rank list
// before any data is pulled.
type RankAware interface {
	Init(pos int, ranks []int)
}

// RiseFunc adapts a plain function to RiseSource.
type RiseFunc func() ([]Row, error)

// Next produces the next batch.
func (f RiseFunc) Next() ([]Row, error) { return f() }

// Partitioner maps a key subrow to a routing hash; the shuffle bridge
// takes the hash modulo the downstream rank count. The default is
// HashRow.
type Partitioner func(key Row) uint64
