package graph

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/karta"
)

// RootBase provides the task behavior of a root source: it owns the
// pull loop that drives the whole graph and the begin-signal broadcast.
// Concrete roots set PullData.
type RootBase struct {
	SourceBase

	// PullData produces the root's rows; called only when the calling
	// process is in the task's rank set.
	PullData func()

	taskSelf        karta.Task
	req             karta.ProcReq
	par             *karta.Par
	traversingTasks bool
}

// InitRoot wires the base to its outer node and process request.
func (r *RootBase) InitRoot(self ezflow.Source, task karta.Task, req karta.ProcReq) {
	r.InitSource(NextID(), self)
	r.taskSelf = task
	r.req = req
	r.par = karta.LocalPar(0)
}

// Roots returns the root itself.
func (r *RootBase) Roots() []karta.Task {
	return []karta.Task{r.taskSelf}
}

// BranchTasks walks downstream collecting every task below this root.
func (r *RootBase) BranchTasks() []karta.Task {
	if r.traversingTasks {
		return nil
	}
	r.traversingTasks = true
	var tasks []karta.Task
	for _, n := range r.Next() {
		tasks = append(tasks, n.ForwardTasks()...)
	}
	r.traversingTasks = false
	return tasks
}

// Pull pushes placement downstream, produces data if this process is in
// range, then propagates end-of-stream.
func (r *RootBase) Pull() {
	if len(r.Next()) == 0 {
		return
	}
	for _, n := range r.Next() {
		n.ForwardPar(r.par)
	}
	if r.par.InRange() && r.PullData != nil {
		r.PullData()
	}
	for _, n := range r.Next() {
		n.Signal(1)
	}
}

// PrePull broadcasts the begin-of-stream signal.
func (r *RootBase) PrePull() {
	for _, n := range r.Next() {
		n.Signal(0)
	}
}

// Req returns the root's process request.
func (r *RootBase) Req() karta.ProcReq { return r.req }

// SetReq replaces the process request before a run.
func (r *RootBase) SetReq(req karta.ProcReq) { r.req = req }

// SetPar installs the placement for the coming run.
func (r *RootBase) SetPar(p *karta.Par) { r.par = p }

// Par returns the current placement.
func (r *RootBase) Par() *karta.Par { return r.par }

// Bro returns nil; roots never pair.
func (r *RootBase) Bro() karta.Task { return nil }
