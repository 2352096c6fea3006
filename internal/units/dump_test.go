package units

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/stretchr/testify/require"
)

func TestDumpWritesRowsWithHeader(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "out.txt")
	d := NewDump(name, "k v")
	d.ForwardPar(karta.LocalPar(0))
	d.Signal(0)
	d.Data(ezflow.R("a", 8.0))
	d.Data(ezflow.R("b", 7.0))
	d.Signal(1)
	data, err := ioutil.ReadFile(name)
	require.Nil(t, err)
	require.Equal(t, []string{"k v", "a 8", "b 7"},
		strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestDumpDecoratesParallelFileNames(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "out.txt")
	d := NewDump(name, "")
	par := karta.NewPar([]int{0, 1}, [3]int{}, 1)
	d.ForwardPar(par)
	d.Signal(0)
	d.Data(ezflow.R(1.0))
	d.Signal(1)
	decorated := filepath.Join(dir, "out_p1.txt")
	data, err := ioutil.ReadFile(decorated)
	require.Nil(t, err)
	require.Equal(t, "1", strings.TrimSpace(string(data)))
}

func TestDumpSkipsOutOfRangeRanks(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "out.txt")
	d := NewDump(name, "")
	par := karta.NewPar([]int{0}, [3]int{}, 3)
	d.ForwardPar(par)
	require.Nil(t, d.f)
}
