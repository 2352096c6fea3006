// Package file provides the row loader backing file-fed pipelines:
// whitespace- or delimiter-separated records with an optional header
// line, glob expansion, and byte-range division across worker ranks
// with re-alignment to the next record boundary. Each rank owns the
// records that start inside its byte range, so every record is read by
// exactly one rank.
package file

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/logging"
)

// Status is the verdict of the parse hook on one record.
type Status int

const (
	// Break accepts the record and ends it at the delimiter
	Break Status = iota
	// NoBreak accepts the record like Break; the line is not joined
	// with the next one
	NoBreak
	// PriorBreak accepts the record like Break; the line is not re-read
	PriorBreak
	// Ignore drops the record
	Ignore
	// EndOfData stops this rank's reading
	EndOfData
	// EndOfFile stops reading the current file
	EndOfFile
)

// ParseHook inspects a record's fields before row conversion.
type ParseHook func(fields []string) Status

type span struct {
	path string
	off  int64
	end  int64
}

// Loader reads rows from files matching a glob pattern, projecting the
// selected 1-based string and numeric columns into ([]string,
// []float64) rows of arity two.
type Loader struct {
	pattern string
	strCols []int
	numCols []int
	header  bool
	strict  bool
	hook    ParseHook

	pos   int
	nProc int
	spans []span
	cur   int

	f       *os.File
	rd      *bufio.Reader
	read    int64
	limit   int64
	atStart bool
	done    bool
}

// New creates a loader over the pattern selecting the given columns.
func New(pattern string, strCols, numCols []int) *Loader {
	return &Loader{pattern: pattern, strCols: strCols, numCols: numCols, nProc: 1}
}

// WithHeader skips (and exposes via ReadHeader) a first header line.
func (l *Loader) WithHeader(h bool) *Loader {
	l.header = h
	return l
}

// Strict drops rows that fail numeric parsing instead of null-padding.
func (l *Loader) Strict(s bool) *Loader {
	l.strict = s
	return l
}

// WithHook installs a parse hook.
func (l *Loader) WithHook(h ParseHook) *Loader {
	l.hook = h
	return l
}

// Init divides the matched files' bytes across the assigned ranks.
func (l *Loader) Init(pos int, ranks []int) {
	l.pos = pos
	l.nProc = len(ranks)
	l.spans = nil
	l.cur = 0
	l.done = false
	l.closeCurrent()

	files, err := filepath.Glob(l.pattern)
	if err != nil || len(files) == 0 {
		if l.pos == 0 {
			logging.Default().Log(logging.ModeWarning, "No files match %q; no rows will be produced", l.pattern)
		}
		l.done = true
		return
	}
	var total int64
	sizes := make([]int64, len(files))
	for i, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			logging.Default().Log(logging.ModeWarning, "Can not open file %s", f)
			continue
		}
		sizes[i] = st.Size()
		total += st.Size()
	}
	if total == 0 {
		l.done = true
		return
	}
	lo := total * int64(l.pos) / int64(l.nProc)
	hi := total * int64(l.pos+1) / int64(l.nProc)
	var base int64
	for i, f := range files {
		flo, fhi := base, base+sizes[i]
		s, e := maxInt64(lo, flo), minInt64(hi, fhi)
		if s < e {
			l.spans = append(l.spans, span{path: f, off: s - flo, end: e - flo})
		}
		base = fhi
	}
}

// Next returns the next batch of rows, or an empty batch at
// end-of-stream.
func (l *Loader) Next() ([]ezflow.Row, error) {
	const batch = 512
	var out []ezflow.Row
	for !l.done && len(out) < batch {
		if l.rd == nil {
			if l.cur >= len(l.spans) {
				l.done = true
				break
			}
			if err := l.openSpan(l.spans[l.cur]); err != nil {
				logging.Default().Log(logging.ModeWarning, "Can not open file %s", l.spans[l.cur].path)
				l.cur++
				continue
			}
		}
		line, err := l.nextLine()
		if err == io.EOF {
			l.closeCurrent()
			l.cur++
			continue
		}
		if err != nil {
			return nil, err
		}
		row, st := l.parseLine(line)
		switch st {
		case Ignore:
			continue
		case EndOfFile:
			l.closeCurrent()
			l.cur++
			continue
		case EndOfData:
			l.closeCurrent()
			l.done = true
		default:
			out = append(out, row)
		}
	}
	return out, nil
}

func (l *Loader) openSpan(sp span) error {
	f, err := os.Open(sp.path)
	if err != nil {
		return err
	}
	// a rank owns the records whose first byte lies in [off, end); to
	// re-align, seek one byte back and discard the record containing
	// that byte, which the previous rank reads to completion
	start := sp.off
	if start > 0 {
		start--
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return err
		}
	}
	l.f = f
	l.rd = bufio.NewReader(f)
	l.read = 0
	l.limit = sp.end - start
	l.atStart = true
	if sp.off > 0 {
		skipped, err := l.rd.ReadString('\n')
		if err != nil {
			l.closeCurrent()
			return nil
		}
		l.read += int64(len(skipped))
		l.atStart = false
	}
	return nil
}

func (l *Loader) nextLine() (string, error) {
	// a record that starts inside the range is read to completion even
	// when it ends past the range boundary
	if l.read >= l.limit {
		return "", io.EOF
	}
	line, err := l.rd.ReadString('\n')
	if len(line) == 0 && err != nil {
		return "", io.EOF
	}
	l.read += int64(len(line))
	first := l.atStart
	l.atStart = false
	line = strings.TrimRight(line, "\r\n")
	if first && l.header && l.spans[l.cur].off == 0 {
		// the header line never yields a row
		return l.nextLine()
	}
	return line, nil
}

func (l *Loader) parseLine(line string) (ezflow.Row, Status) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, Ignore
	}
	if l.hook != nil {
		if st := l.hook(fields); st != Break && st != NoBreak && st != PriorBreak {
			return nil, st
		}
	}
	strs := make([]string, 0, len(l.strCols))
	nums := make([]float64, 0, len(l.numCols))
	for _, c := range l.strCols {
		if c >= 1 && c <= len(fields) {
			strs = append(strs, fields[c-1])
		} else if l.strict {
			return nil, Ignore
		} else {
			strs = append(strs, "")
		}
	}
	for _, c := range l.numCols {
		if c >= 1 && c <= len(fields) {
			v, err := strconv.ParseFloat(fields[c-1], 64)
			if err != nil {
				if l.strict {
					return nil, Ignore
				}
				v = 0
			}
			nums = append(nums, v)
		} else if l.strict {
			return nil, Ignore
		} else {
			nums = append(nums, 0)
		}
	}
	return ezflow.R(strs, nums), Break
}

func (l *Loader) closeCurrent() {
	if l.f != nil {
		l.f.Close()
	}
	l.f = nil
	l.rd = nil
}

// ReadHeader reads the first line of the first file matching pattern
// and returns its whitespace-separated column names.
func ReadHeader(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(files[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return strings.Fields(strings.TrimRight(line, "\r\n")), nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
