// Package graph implements the pipeline graph primitives: source and
// dest bases with bidirectional linking, links with signal bookkeeping,
// roots that drive execution, and flows that bundle a DAG fragment
// behind its first and last nodes. Traversals carry visited flags so
// merge/tee shapes that revisit nodes terminate; ownership stays a DAG.
package graph

import (
	"sync/atomic"
)

var idCounter int64

// NextID hands out process-unique node identities.
func NextID() int64 {
	return atomic.AddInt64(&idCounter, 1)
}
