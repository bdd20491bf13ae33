package disasm

import (
	"fmt"
	"io"

	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/opcode"
)

// Walk validates img and writes a listing to w: a header row followed
// by one row per instruction, each as "addr dec (hex) mnemonic
// operands". Width-3 operands that are jump/call targets decode as
// unsigned addresses; the number literal decodes as signed. Strings
// print as "L:<bytes>".
func Walk(img bytecode.Image, tbl *opcode.Table, w io.Writer) error {
	if err := img.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%-4s dec (xx) %-10s params\n", "addr", "opname")
	fmt.Fprintf(w, "%-4s --- ---- %-10s ------\n", "----", "----------")

	end := len(img) - 1 // exclude trailing checksum byte
	for off := bytecode.HeaderLen; off < end; {
		code := img[off]
		e := tbl.ByCode(code)
		if e == nil {
			return fmt.Errorf("disasm: unknown opcode %d at offset %d", code, off)
		}

		fmt.Fprintf(w, "%04d %03d (%02X) %-10s", off, code, code, e.Mnemonic)

		switch {
		case e.Mnemonic == "string":
			if off+1 >= end {
				return fmt.Errorf("disasm: truncated string length byte at offset %d", off)
			}
			l := int(img[off+1])
			start, stop := off+2, off+2+l
			if stop > end+1 {
				return fmt.Errorf("disasm: string at offset %d runs past end of image", off)
			}
			fmt.Fprintf(w, " %d:%s\n", l, img[start:stop])
			off = stop

		case e.Width == 1:
			fmt.Fprintln(w)
			off++

		case e.Width == 2:
			if off+1 >= end {
				return fmt.Errorf("disasm: truncated operand at offset %d", off)
			}
			fmt.Fprintf(w, " %4d\n", img[off+1])
			off += 2

		case e.Width == 3:
			if off+2 >= end {
				return fmt.Errorf("disasm: truncated operand at offset %d", off)
			}
			hi, lo := img[off+1], img[off+2]
			var decoded int
			if e.Mnemonic == "number" {
				decoded = bytecode.DecodeNumber(hi, lo)
			} else {
				decoded = bytecode.DecodeAddr(hi, lo)
			}
			fmt.Fprintf(w, " %4d %4d (%d)\n", hi, lo, decoded)
			off += 3

		default:
			return fmt.Errorf("disasm: opcode %q has unsupported width %d", e.Mnemonic, e.Width)
		}
	}
	return nil
}
