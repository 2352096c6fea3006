package dataflow_test

import (
	"sort"
	"sync"
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/algorithms"
	"github.com/go-ezflow/ezflow/cluster"
	"github.com/go-ezflow/ezflow/dataflow"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/stretchr/testify/require"
)

func TestMapFilterPipeline(t *testing.T) {
	src := algorithms.NewFromMem([]ezflow.Row{
		ezflow.R(1.0, 2.0), ezflow.R(2.0, 5.0), ezflow.R(3.0, 7.0),
	})
	rows, err := dataflow.Rise(src, 2).
		MapOf(ezflow.Cols(1, 2), func(in ezflow.Row) (ezflow.Row, error) {
			return ezflow.R(in[0].(float64) + in[1].(float64)), nil
		}).
		FilterOf(ezflow.Cols(3), algorithms.Gt(4)).
		Get(cluster.Local(), karta.All())
	require.Nil(t, err)
	require.Equal(t, 2, len(rows))
	sort.Slice(rows, func(i, j int) bool { return rows[i][0].(float64) < rows[j][0].(float64) })
	require.True(t, ezflow.RowEq(ezflow.R(2.0, 5.0, 7.0), rows[0]))
	require.True(t, ezflow.RowEq(ezflow.R(3.0, 7.0, 10.0), rows[1]))
}

func TestColsTransformReplacesInPlace(t *testing.T) {
	src := algorithms.NewFromMem([]ezflow.Row{ezflow.R("k", 3.0)})
	rows, err := dataflow.Rise(src, 2).
		MapOf(ezflow.Cols(2), func(in ezflow.Row) (ezflow.Row, error) {
			return ezflow.R(in[0].(float64) * 10), nil
		}).ColsTransform().
		Get(cluster.Local(), karta.All())
	require.Nil(t, err)
	require.True(t, ezflow.RowEq(ezflow.R("k", 30.0), rows[0]))
}

func TestBuildRejectsBadSelection(t *testing.T) {
	src := algorithms.NewFromMem([]ezflow.Row{ezflow.R(1.0)})
	_, err := dataflow.Rise(src, 1).
		MapOf(ezflow.Cols(5), func(in ezflow.Row) (ezflow.Row, error) { return in, nil }).
		Build()
	require.NotNil(t, err)

	_, err = dataflow.Rise(src, 1).
		Reduce(ezflow.Cols(1, 1), ezflow.Cols(1), algorithms.Sum(1)).
		Build()
	require.NotNil(t, err)
}

func TestReduceLocalRun(t *testing.T) {
	src := algorithms.NewFromMem([]ezflow.Row{
		ezflow.R("a", 1.0), ezflow.R("b", 2.0), ezflow.R("a", 3.0),
		ezflow.R("a", 4.0), ezflow.R("b", 5.0),
	})
	rows, err := dataflow.Rise(src, 2).
		Reduce(ezflow.Cols(1), ezflow.Cols(2), algorithms.Sum(1)).
		Get(cluster.Local(), karta.All())
	require.Nil(t, err)
	got := map[string]float64{}
	for _, r := range rows {
		got[r[0].(string)] = r[1].(float64)
	}
	require.Equal(t, map[string]float64{"a": 8, "b": 7}, got)
}

func TestMergeUnionsStreams(t *testing.T) {
	left, err := dataflow.Rise(algorithms.NewFromMem([]ezflow.Row{ezflow.R(1.0)}), 1).Build()
	require.Nil(t, err)
	rows, err := dataflow.FromFlow(left).
		Merge(mustBuild(t, dataflow.Rise(algorithms.NewFromMem([]ezflow.Row{ezflow.R(2.0)}), 1))).
		Get(cluster.Local(), karta.All())
	require.Nil(t, err)
	require.Equal(t, 2, len(rows))
}

func mustBuild(t *testing.T, b *dataflow.Builder) *dataflow.Flow {
	t.Helper()
	fl, err := b.Build()
	require.Nil(t, err)
	return fl
}

func TestZipThroughBuilder(t *testing.T) {
	right := mustBuild(t, dataflow.Rise(algorithms.NewFromMem([]ezflow.Row{
		ezflow.R("k1", 100.0), ezflow.R("k1", 200.0), ezflow.R("k3", 300.0),
	}), 2))
	rows, err := dataflow.Rise(algorithms.NewFromMem([]ezflow.Row{
		ezflow.R("k1", 10.0), ezflow.R("k2", 20.0), ezflow.R("k1", 11.0),
	}), 2).
		Zip(right, ezflow.Cols(1), ezflow.Cols(1)).
		Cols(ezflow.Cols(1, 2, 4)).
		Get(cluster.Local(), karta.All())
	require.Nil(t, err)
	require.Equal(t, 2, len(rows))
	sort.Slice(rows, func(i, j int) bool { return rows[i][1].(float64) < rows[j][1].(float64) })
	require.True(t, ezflow.RowEq(ezflow.R("k1", 10.0, 100.0), rows[0]))
	require.True(t, ezflow.RowEq(ezflow.R("k1", 11.0, 200.0), rows[1]))
}

func TestTeeKeepsMainPathFlowing(t *testing.T) {
	branch := dataflow.From(1)
	branchFl := mustBuild(t, branch)
	main := dataflow.Rise(algorithms.NewFromMem([]ezflow.Row{ezflow.R(1.0), ezflow.R(2.0)}), 1).
		Tee(branchFl).
		FilterOf(ezflow.Cols(1), algorithms.Gt(1.5))
	rows, err := main.Get(cluster.Local(), karta.All())
	require.Nil(t, err)
	require.Equal(t, 1, len(rows))
}

// Property: with the default sharding of the key column, any input
// distribution across reading workers produces one output row per key
// with the correct per-key sum.
func TestPartitionedReduceAcrossWorkers(t *testing.T) {
	const nProc = 4
	var input []ezflow.Row
	want := map[string]float64{}
	keys := []string{"ka", "kb", "kc", "kd", "ke", "kf", "kg"}
	for i := 0; i < 84; i++ {
		k := keys[i%len(keys)]
		input = append(input, ezflow.R(k, float64(i)))
		want[k] += float64(i)
	}
	pool := cluster.NewPool(nProc)
	var mu sync.Mutex
	got := map[string]float64{}
	err := pool.Run(func(rank int, k *karta.Karta) error {
		rows, err := dataflow.Rise(algorithms.NewFromMem(input), 2).
			Reduce(ezflow.Cols(1), ezflow.Cols(2), algorithms.Sum(1)).
			Get(k, karta.All())
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, r := range rows {
			key := r[0].(string)
			if _, dup := got[key]; dup {
				t.Errorf("key %s emitted on more than one worker", key)
			}
			got[key] = r[1].(float64)
		}
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, want, got)
}

func TestDupeModeBroadcasts(t *testing.T) {
	const nProc = 2
	input := []ezflow.Row{ezflow.R(1.0), ezflow.R(2.0), ezflow.R(3.0)}
	pool := cluster.NewPool(nProc)
	counts := make([]int, nProc)
	var mu sync.Mutex
	err := pool.Run(func(rank int, k *karta.Karta) error {
		rows, err := dataflow.Rise(algorithms.NewFromMem(input), 1).
			Filter(algorithms.Tautology()).
			Prll(karta.Ratio(1.0), ezflow.ModeTask|ezflow.ModeDupe).
			Get(k, karta.All())
		if err != nil {
			return err
		}
		mu.Lock()
		counts[rank] = len(rows)
		mu.Unlock()
		return nil
	})
	require.Nil(t, err)
	for rank, n := range counts {
		require.Equal(t, len(input), n, "rank %d", rank)
	}
}
