package query_test

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-ezflow/ezflow/cluster"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/go-ezflow/ezflow/query"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *query.Session {
	t.Helper()
	return query.NewSession(cluster.Local())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.Nil(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := ioutil.ReadFile(path)
	require.Nil(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	sort.Strings(lines)
	return lines
}

func TestMapFilterShow(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "1 2.0\n2 5.0\n3 7.0\n")
	out := filepath.Join(dir, "out.txt")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | $y = $1 + $2 | where $y > 4 | show %q`, in, out)
	require.Nil(t, sess.Exec(q))
	require.Equal(t, []string{"2 5 7", "3 7 10"}, readLines(t, out))
}

func TestReduceShow(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "a 1\nb 2\na 3\na 4\nb 5\n")
	out := filepath.Join(dir, "out.txt")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | reduce %%1 $s = sum($2) | show %q`, in, out)
	require.Nil(t, sess.Exec(q))
	require.Equal(t, []string{"a 8", "b 7"}, readLines(t, out))
}

func TestReduceAvgAndCount(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "a 1\nb 2\na 3\n")
	out := filepath.Join(dir, "out.txt")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | reduce %%1 $m = avg($2) $c = count($2) | show %q`, in, out)
	require.Nil(t, sess.Exec(q))
	require.Equal(t, []string{"a 2 2", "b 2 1"}, readLines(t, out))
}

func TestZipSharedKey(t *testing.T) {
	dir := t.TempDir()
	left := writeFile(t, dir, "left.txt", "k1 10\nk2 20\nk1 11\n")
	right := writeFile(t, dir, "right.txt", "k1 100\nk1 200\nk3 300\n")
	out := filepath.Join(dir, "out.txt")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | where $2 > 0 | zip %%1 (file %q | where $2 > 0) | show %q`, left, right, out)
	require.Nil(t, sess.Exec(q))
	require.Equal(t, []string{"k1 10 100", "k1 11 200"}, readLines(t, out))
}

func TestHeaderNamesInQueries(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "name price\nx 4\ny 9\n")
	out := filepath.Join(dir, "out.txt")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | where $price > 5 | show %q`, in, out)
	require.Nil(t, sess.Exec(q))
	require.Equal(t, []string{"9"}, readLines(t, out))
}

func TestSaveVal(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "a 1\na 2\n")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | reduce %%1 $s = sum($2) | saveVal total = $s key = %%1`, in)
	require.Nil(t, sess.Exec(q))
	require.Equal(t, 3.0, sess.Values["total"])
	require.Equal(t, "a", sess.Values["key"])
}

func TestSaveQueryAsSkipsExecution(t *testing.T) {
	sess := newSession(t)
	q := `file "never-read.txt" | $y = $1 | saveQueryAs mine`
	require.Nil(t, sess.Exec(q))
	require.Equal(t, q, sess.Queries["mine"])
}

func TestSavedQueryRunsByName(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "a 5\n")
	sess := newSession(t)
	save := fmt.Sprintf(`file %q | reduce %%1 $s = sum($2) | saveVal total = $s | saveQueryAs mine`, in)
	// the terminal is the last unit; saveQueryAs records the full text
	_ = save
	q := fmt.Sprintf(`file %q | reduce %%1 $s = sum($2) | saveQueryAs keep`, in)
	require.Nil(t, sess.Exec(q))
	require.Nil(t, sess.Exec("keep"))
}

func TestSemanticErrorAbortsBeforeRunning(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "a 1\n")
	out := filepath.Join(dir, "out.txt")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | where $nope > 1 | show %q`, in, out)
	err := sess.Exec(q)
	require.NotNil(t, err)
	_, ok := err.(errors.UndeclaredVariableError)
	require.True(t, ok)
	_, statErr := ioutil.ReadFile(out)
	require.NotNil(t, statErr)
}

func TestLoadCmdRejectedByDefault(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.txt", "a 1\n")
	sess := newSession(t)
	q := fmt.Sprintf(`file %q | $y = $2 | where loadcmd "lib.so" "sym" | show`, in)
	err := sess.Exec(q)
	require.NotNil(t, err)
	_, ok := err.(errors.LoadCmdError)
	require.True(t, ok)
}

func TestCheckValidates(t *testing.T) {
	sess := newSession(t)
	require.NotNil(t, sess.Check(`file "f" | where $y > 1 | show`))
	require.Nil(t, sess.Check(`file "f" | $y = $1 | where $y > 1 | show`))
}
