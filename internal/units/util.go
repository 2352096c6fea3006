// Package units implements the pipeline stage operators: rise, map,
// filter, reduce, reduceAll, zip, noop, dump and the in-memory sink.
// Units embed the graph bases and override data handling; grouping
// units key their tables by the canonical byte encoding of the key
// subrow so distinct keys can never collide.
package units

import (
	ezflow "github.com/go-ezflow/ezflow"
)

// keyBytes returns the canonical byte encoding of a key subrow, used as
// the accumulator-table key. The empty subrow encodes to the empty
// string, which compares equal to itself.
func keyBytes(key ezflow.Row) string {
	buf := make([]byte, 0, 32)
	for _, v := range key {
		buf = ezflow.AppendValueBytes(buf, v)
	}
	return string(buf)
}
