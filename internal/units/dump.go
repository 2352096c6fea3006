package units

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/go-ezflow/ezflow/logging"
)

// Dump is a dead-end sink writing rows to a file or stdout, one row per
// line with whitespace-separated columns. When the upstream runs on
// more than one process and a file name is given, the name is decorated
// with the worker rank (name_pN.ext). A requested header is the first
// line: every worker writes it to its own file, but only the position-0
// worker writes it to stdout.
type Dump struct {
	graph.DestBase

	fname  string
	header string

	f      *os.File
	parred bool
}

// NewDump creates a dump sink. An empty fname writes to stdout.
func NewDump(fname, header string) *Dump {
	d := &Dump{fname: fname, header: header}
	d.InitDest(graph.NextID(), d)
	return d
}

// ForwardPar opens the output before data flows.
func (d *Dump) ForwardPar(par *karta.Par) {
	if d.parred || par == nil || !par.InRange() {
		return
	}
	d.parred = true
	if d.fname != "" {
		name := d.fname
		if par.NProc() > 1 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_p%d%s", strings.TrimSuffix(name, ext), par.Rank(), ext)
		}
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logging.Default().Log(logging.ModeWarning, "Can not write to file %s", name)
		} else {
			d.f = f
		}
	}
	if d.header != "" && (d.fname != "" && d.f != nil || d.fname == "" && par.Pos() == 0) {
		fmt.Fprintln(d.out(), d.header)
	}
}

func (d *Dump) out() *os.File {
	if d.f != nil {
		return d.f
	}
	return os.Stdout
}

// Data writes one row.
func (d *Dump) Data(r ezflow.Row) {
	fmt.Fprintln(d.out(), r.String())
}

// Signal closes the output once every upstream closer has finished.
func (d *Dump) Signal(k int) {
	if k == 0 {
		d.IncSig()
		return
	}
	if d.DecSig() != 0 {
		return
	}
	d.parred = false
	if d.f != nil {
		d.f.Close()
		d.f = nil
	}
}

// ForwardTasks returns nothing; a sink has no downstream tasks.
func (d *Dump) ForwardTasks() []karta.Task { return nil }
