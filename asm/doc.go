// Package asm assembles stack-machine source text into a bytecode.Image.
//
// Source is line-oriented; each line is tokenized on whitespace after a
// standalone `#` or `;` token truncates it to a comment. Tokens are, in
// order of recognition: quoted char/string literals ('x', "like this"),
// pseudo-ops (label, const, if/else/then, begin/while/repeat, do/loop),
// opcode mnemonics from the supplied opcode.Table, named constants, and
// bare decimal integers.
//
// Labels may be referenced before they are defined; every reference is
// recorded in a fixup table and patched once the label's target offset
// is known, after the whole source has been read.
//
// Macros are defined with a `macro name` line followed by non-empty body
// lines, ended by a blank line, and invoked with a leading underscore:
//
//	macro double
//	$0 $0
//
//	_double 21
//
// expands to the token stream `21 21`, with `$0`, `$1`, ... substituted
// positionally before the expansion is retokenized.
//
// Structured control compiles to the same jump opcodes a hand-written
// program would use, with synthetic labels (if_<n>, begin_<n>, ...)
// generated from a monotonically increasing level counter so nested
// structures never collide.
package asm
