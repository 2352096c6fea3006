package units

import (
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/stretchr/testify/require"
)

func mean(key ezflow.Row, group []ezflow.Row) ([]ezflow.Row, error) {
	sum := 0.0
	for _, r := range group {
		sum += r[0].(float64)
	}
	return []ezflow.Row{ezflow.R(sum / float64(len(group)))}, nil
}

func oneToFive() []ezflow.Row {
	return []ezflow.Row{
		ezflow.R(1.0), ezflow.R(2.0), ezflow.R(3.0), ezflow.R(4.0), ezflow.R(5.0),
	}
}

func emitted(sink *MemSink) []float64 {
	var out []float64
	for _, r := range sink.Rows() {
		out = append(out, r[0].(float64))
	}
	return out
}

func TestAdjacentWindowSlides(t *testing.T) {
	u := NewReduceAll(ezflow.Cols(), ezflow.Cols(1), ezflow.Identity(1), mean, false, true, 3, false)
	sink := NewMemSink()
	u.LinkNext(sink)
	drive(u, oneToFive())
	// full windows 2, 3, 4; partial windows keep shrinking out at
	// end-of-stream
	require.Equal(t, []float64{2, 3, 4, 4.5, 5}, emitted(sink))
}

func TestAdjacentFixedDropsPartials(t *testing.T) {
	u := NewReduceAll(ezflow.Cols(), ezflow.Cols(1), ezflow.Identity(1), mean, false, true, 3, true)
	sink := NewMemSink()
	u.LinkNext(sink)
	drive(u, oneToFive())
	require.Equal(t, []float64{2, 3, 4}, emitted(sink))
}

func TestBunchClearsBuffer(t *testing.T) {
	u := NewReduceAll(ezflow.Cols(), ezflow.Cols(1), ezflow.Identity(1), mean, false, false, 2, false)
	sink := NewMemSink()
	u.LinkNext(sink)
	drive(u, oneToFive())
	require.Equal(t, []float64{1.5, 3.5, 5}, emitted(sink))
}

func TestBunchFixedDropsPartial(t *testing.T) {
	u := NewReduceAll(ezflow.Cols(), ezflow.Cols(1), ezflow.Identity(1), mean, false, false, 2, true)
	sink := NewMemSink()
	u.LinkNext(sink)
	drive(u, oneToFive())
	require.Equal(t, []float64{1.5, 3.5}, emitted(sink))
}

func TestReduceAllDefaultFlushesAtEnd(t *testing.T) {
	u := NewReduceAll(ezflow.Cols(1), ezflow.Cols(2), ezflow.Identity(2), mean, false, false, 0, false)
	sink := NewMemSink()
	u.LinkNext(sink)
	drive(u, keyedInput())
	got := map[string]float64{}
	for _, r := range sink.Rows() {
		got[r[0].(string)] = r[1].(float64)
	}
	require.Equal(t, map[string]float64{"a": 8.0 / 3.0, "b": 3.5}, got)
}

func TestReduceAllOrderedEvictsGroups(t *testing.T) {
	u := NewReduceAll(ezflow.Cols(1), ezflow.Cols(2), ezflow.Identity(2), mean, true, false, 0, false)
	sink := NewMemSink()
	u.LinkNext(sink)
	u.Signal(0)
	grouped := []ezflow.Row{
		ezflow.R("a", 2.0), ezflow.R("a", 4.0),
		ezflow.R("b", 6.0),
	}
	for _, r := range grouped {
		u.Data(r)
		require.LessOrEqual(t, u.GroupCount(), 1)
	}
	u.Signal(1)
	got := map[string]float64{}
	for _, r := range sink.Rows() {
		got[r[0].(string)] = r[1].(float64)
	}
	require.Equal(t, map[string]float64{"a": 3, "b": 6}, got)
}
