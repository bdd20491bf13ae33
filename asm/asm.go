package asm

import (
	"io"

	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/opcode"
)

// Option configures an Assemble call.
type Option func(*Assembler)

// EmitOnError controls whether Assemble returns the partial image it
// built so far alongside a non-nil error. The default is false: a
// failed assembly returns a nil image. The reference implementation
// this spec was distilled from always writes its partial output; set
// EmitOnError(true) to reproduce that behavior.
func EmitOnError(b bool) Option {
	return func(a *Assembler) { a.emitOnError = b }
}

// WithTable overrides the opcode table used to resolve mnemonics. The
// default is opcode.Default().
func WithTable(tbl *opcode.Table) Option {
	return func(a *Assembler) { a.tbl = tbl }
}

// Assemble reads stack-machine source from r and returns the assembled
// image. On a failed assembly it returns a non-nil Errors alongside a
// nil image, unless EmitOnError(true) was given, in which case the
// partial image assembled so far is also returned.
func Assemble(r io.Reader, opts ...Option) (bytecode.Image, error) {
	a := newAssembler(opts...)
	a.run(r)
	img := a.finish()

	if len(a.errs) > 0 {
		if a.emitOnError {
			return img, a.errs
		}
		return nil, a.errs
	}
	return img, nil
}
