// Package disasm renders a bytecode.Image back to a human-readable
// listing: one line per instruction, addr/decimal/hex/mnemonic/operands.
//
// Walk is a pure function of an image and an opcode table; it owns no
// file handles. Unlike the reference decompiler, Walk does not stop at
// the first STOP/END opcode — a program may hold labeled, jump-only-
// reachable code after an early END (see the jof/jef branch-handler
// idiom), and the listing would otherwise silently truncate it.
package disasm
