// Package vm executes a bytecode.Image: a program counter, a bounded
// data stack, a bounded return stack, 1024 cells of linear memory, and
// two flags (overflow, error) set by arithmetic.
//
// An Instance owns no file handles and touches no global state: program
// output and the line-oriented input consumed by wait/inputnum/inputchar
// are supplied by the caller as an io.Writer and an io.Reader (see the
// Output and Input options).
//
// Run executes until a STOP/END opcode, an optional step budget (see
// MaxSteps), context cancellation, or a RuntimeError. A RuntimeError
// always carries the PC, both stack snapshots and the flags at the
// point of failure.
package vm
