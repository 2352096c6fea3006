package shuffle_test

import (
	"fmt"
	"sync"
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/cluster"
	"github.com/go-ezflow/ezflow/internal/shuffle"
	"github.com/go-ezflow/ezflow/internal/units"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/stretchr/testify/require"
)

// runBridge drives one bridge per rank over an in-memory pool: every
// rank is both a sender (feeding its own rows) and a receiver.
func runBridge(t *testing.T, nProc int, toAll, ordered bool, kslct ezflow.Selection,
	inputs [][]ezflow.Row) [][]ezflow.Row {
	t.Helper()
	pool := cluster.NewPool(nProc)
	results := make([][]ezflow.Row, nProc)
	var mu sync.Mutex
	ranks := make([]int, nProc)
	for i := range ranks {
		ranks[i] = i
	}
	err := pool.Run(func(rank int, k *karta.Karta) error {
		br := shuffle.NewBridge(karta.All(), toAll, ordered, kslct, nil)
		sink := units.NewMemSink()
		br.LinkNext(sink)
		br.SetComm(k.Comm())
		br.SetPar(karta.NewPar(ranks, [3]int{1, 2, 3}, rank))
		br.Signal(0)
		br.ForwardPar(karta.NewPar(ranks, [3]int{}, rank))
		for _, r := range inputs[rank] {
			br.Data(r)
		}
		br.Signal(1)
		mu.Lock()
		results[rank] = sink.Rows()
		mu.Unlock()
		return nil
	})
	require.Nil(t, err)
	return results
}

func TestShardDeliversEachRowOnce(t *testing.T) {
	inputs := [][]ezflow.Row{
		{ezflow.R("a", 1.0), ezflow.R("b", 2.0), ezflow.R("c", 3.0)},
		{ezflow.R("a", 4.0), ezflow.R("d", 5.0), ezflow.R("b", 6.0)},
	}
	results := runBridge(t, 2, false, false, ezflow.Cols(1), inputs)

	seen := map[float64]int{}
	keyRank := map[string]int{}
	for rank, rows := range results {
		for _, r := range rows {
			seen[r[1].(float64)]++
			if prev, ok := keyRank[r[0].(string)]; ok {
				require.Equal(t, prev, rank, "key %s split across ranks", r[0])
			}
			keyRank[r[0].(string)] = rank
		}
	}
	require.Equal(t, 6, len(seen))
	for v, n := range seen {
		require.Equal(t, 1, n, "row %v delivered %d times", v, n)
	}
}

func TestDupeDeliversToEveryRank(t *testing.T) {
	inputs := [][]ezflow.Row{
		{ezflow.R("a", 1.0)},
		{ezflow.R("b", 2.0)},
	}
	results := runBridge(t, 2, true, false, nil, inputs)
	for rank, rows := range results {
		require.Equal(t, 2, len(rows), "rank %d", rank)
	}
}

func TestEmptyKeyRoundRobins(t *testing.T) {
	var in []ezflow.Row
	for i := 0; i < 40; i++ {
		in = append(in, ezflow.R(float64(i)))
	}
	results := runBridge(t, 2, false, false, nil, [][]ezflow.Row{in, nil})
	seen := map[float64]int{}
	for _, rows := range results {
		for _, r := range rows {
			seen[r[0].(float64)]++
		}
	}
	require.Equal(t, 40, len(seen))
	// a single sender round-robins evenly
	require.Equal(t, 20, len(results[0]))
	require.Equal(t, 20, len(results[1]))
}

func TestLocalPassThrough(t *testing.T) {
	inputs := [][]ezflow.Row{{ezflow.R("a", 1.0), ezflow.R("b", 2.0)}}
	results := runBridge(t, 1, false, false, ezflow.Cols(1), inputs)
	require.Equal(t, 2, len(results[0]))
}

func TestOrderedKeepsSenderKeysContiguous(t *testing.T) {
	// one sender with grouped keys; with ordered set, a key's rows are
	// released only when the next key is seen, so each receiver sees
	// every key as one contiguous run
	inputs := [][]ezflow.Row{
		{
			ezflow.R("a0", 1.0), ezflow.R("a0", 2.0),
			ezflow.R("a1", 3.0), ezflow.R("a1", 4.0),
			ezflow.R("b0", 5.0), ezflow.R("b0", 6.0),
			ezflow.R("b1", 7.0), ezflow.R("b1", 8.0),
		},
		nil,
	}
	results := runBridge(t, 2, false, true, ezflow.Cols(1), inputs)
	total := 0
	for _, rows := range results {
		last := map[string]bool{}
		var cur string
		for _, r := range rows {
			key := r[0].(string)
			if key != cur {
				require.False(t, last[key], "key %s resumed after a gap", key)
				last[key] = true
				cur = key
			}
		}
		total += len(rows)
	}
	require.Equal(t, 8, total)
}

func TestSignalDrainsAllBuffers(t *testing.T) {
	// a large keyed load: after the run returns, every row has landed
	var in0, in1 []ezflow.Row
	for i := 0; i < 5000; i++ {
		in0 = append(in0, ezflow.R(fmt.Sprintf("k%d", i%17), float64(i)))
		in1 = append(in1, ezflow.R(fmt.Sprintf("k%d", i%17), float64(10000+i)))
	}
	results := runBridge(t, 2, false, false, ezflow.Cols(1), [][]ezflow.Row{in0, in1})
	require.Equal(t, 10000, len(results[0])+len(results[1]))
}
