// Package errors holds the typed errors raised by the ezflow engine.
package errors

import (
	"fmt"
)

// ColumnBoundsError occurs when a selection index falls outside a row's arity
type ColumnBoundsError struct {
	Index int
	Arity int
}

// Error returns a textual representation of this ColumnBoundsError
func (e ColumnBoundsError) Error() string {
	return fmt.Sprintf("Column index %d is out of bounds for rows of %d columns", e.Index, e.Arity)
}

// DuplicateColumnError occurs when a selection names the same column twice
type DuplicateColumnError struct{ Index int }

// Error returns a textual representation of this DuplicateColumnError
func (e DuplicateColumnError) Error() string {
	return fmt.Sprintf("Column index %d appears more than once in a selection", e.Index)
}

// ParseError occurs when a query is malformed
type ParseError struct {
	Pos  int
	Near string
	Msg  string
}

// Error returns a textual representation of this ParseError
func (e ParseError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("Syntax error at offset %d near %q: %s", e.Pos, e.Near, e.Msg)
	}
	return fmt.Sprintf("Syntax error at offset %d: %s", e.Pos, e.Msg)
}

// SemanticError occurs at column-resolution time, before a graph is built
type SemanticError struct{ Msg string }

// Error returns a textual representation of this SemanticError
func (e SemanticError) Error() string {
	return e.Msg
}

// UndeclaredVariableError occurs when a query references a variable no
// preceding map stage has declared
type UndeclaredVariableError struct{ Name string }

// Error returns a textual representation of this UndeclaredVariableError
func (e UndeclaredVariableError) Error() string {
	return fmt.Sprintf("Variable $%s used before declaration", e.Name)
}

// RedeclaredVariableError occurs when a query declares a variable twice
type RedeclaredVariableError struct{ Name string }

// Error returns a textual representation of this RedeclaredVariableError
func (e RedeclaredVariableError) Error() string {
	return fmt.Sprintf("Variable $%s is already declared", e.Name)
}

// KeySetError occurs when a later reduce keys on a set that is not a
// superset of an earlier reduce's keys
type KeySetError struct{}

// Error returns a textual representation of this KeySetError
func (e KeySetError) Error() string {
	return "A chained reduce must key on a superset of the earlier reduce's keys"
}

// SchedulingError occurs when requested explicit ranks are not in the
// current process pool
type SchedulingError struct{ Ranks []int }

// Error returns a textual representation of this SchedulingError
func (e SchedulingError) Error() string {
	return fmt.Sprintf("None of the requested ranks %v are in the current pool", e.Ranks)
}

// EmptyFlowError occurs when running a flow with no rise attached
type EmptyFlowError struct{}

// Error returns a textual representation of this EmptyFlowError
func (e EmptyFlowError) Error() string {
	return "Flow has no root to pull from"
}

// RowDecodeError occurs when a wire payload does not decode to rows
type RowDecodeError struct{ Msg string }

// Error returns a textual representation of this RowDecodeError
func (e RowDecodeError) Error() string {
	return fmt.Sprintf("Cannot decode row payload: %s", e.Msg)
}

// LoadCmdError occurs when a where clause names an external predicate
// library and the session has not opted in to loading one
type LoadCmdError struct{ Path string }

// Error returns a textual representation of this LoadCmdError
func (e LoadCmdError) Error() string {
	return fmt.Sprintf("External predicate %q rejected: load-cmd support is not enabled", e.Path)
}
