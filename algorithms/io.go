// Package algorithms bundles reusable user functions for pipelines:
// rise sources over memory, number ranges, JSON-lines files, and the
// common reducers and predicates.
package algorithms

import (
	"bufio"
	"os"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/tidwall/gjson"
)

// FromMem produces rows from a slice. With share set, the rows are
// divided across the rise's assigned ranks; otherwise every rank
// produces the full slice.
type FromMem struct {
	rows  []ezflow.Row
	share bool
	lo    int
	hi    int
	done  bool
}

// NewFromMem creates a shared in-memory source.
func NewFromMem(rows []ezflow.Row) *FromMem {
	return &FromMem{rows: rows, share: true}
}

// NoShare makes every rank produce the full slice.
func (m *FromMem) NoShare() *FromMem {
	m.share = false
	return m
}

// Init divides the slice across ranks.
func (m *FromMem) Init(pos int, ranks []int) {
	m.done = false
	if !m.share || len(ranks) <= 1 {
		m.lo, m.hi = 0, len(m.rows)
		return
	}
	n := len(m.rows)
	per := (n + len(ranks) - 1) / len(ranks)
	m.lo = pos * per
	m.hi = m.lo + per
	if m.lo > n {
		m.lo = n
	}
	if m.hi > n {
		m.hi = n
	}
}

// Next returns the rank's share in one batch.
func (m *FromMem) Next() ([]ezflow.Row, error) {
	if m.done {
		return nil, nil
	}
	m.done = true
	return m.rows[m.lo:m.hi], nil
}

// Iota produces the integers [0, n) as single-column rows, divided
// across ranks.
func Iota(n int64) *FromMem {
	rows := make([]ezflow.Row, n)
	for i := int64(0); i < n; i++ {
		rows[i] = ezflow.R(i)
	}
	return NewFromMem(rows)
}

// FromJSONL reads a JSON-lines file, extracting one row per record from
// the configured gjson paths. String-typed paths become string slots,
// the rest numeric slots. Lines are divided across ranks round-robin.
type FromJSONL struct {
	path     string
	strPaths []string
	numPaths []string
	pos      int
	nProc    int
	opened   bool
	f        *os.File
	sc       *bufio.Scanner
	line     int
}

// NewFromJSONL creates a JSON-lines source over the given paths.
func NewFromJSONL(path string, strPaths, numPaths []string) *FromJSONL {
	return &FromJSONL{path: path, strPaths: strPaths, numPaths: numPaths, nProc: 1}
}

// Init records this rank's share of lines.
func (j *FromJSONL) Init(pos int, ranks []int) {
	j.pos = pos
	j.nProc = len(ranks)
	j.opened = false
	j.line = 0
}

// Next returns the next batch of decoded rows.
func (j *FromJSONL) Next() ([]ezflow.Row, error) {
	if !j.opened {
		f, err := os.Open(j.path)
		if err != nil {
			return nil, err
		}
		j.f = f
		j.sc = bufio.NewScanner(f)
		j.opened = true
	}
	const batch = 256
	var out []ezflow.Row
	for len(out) < batch && j.sc.Scan() {
		line := j.sc.Text()
		n := j.line
		j.line++
		if j.nProc > 1 && n%j.nProc != j.pos {
			continue
		}
		r := make(ezflow.Row, 0, len(j.strPaths)+len(j.numPaths))
		for _, p := range j.strPaths {
			r = append(r, gjson.Get(line, p).String())
		}
		for _, p := range j.numPaths {
			r = append(r, gjson.Get(line, p).Float())
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		j.f.Close()
		return nil, j.sc.Err()
	}
	return out, nil
}
