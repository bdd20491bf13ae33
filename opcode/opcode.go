// Package opcode loads and indexes the stack machine's opcode table.
//
// The table is the single source of truth shared by the assembler, the
// VM and the disassembler: it maps a numeric opcode to its mnemonic,
// its instruction width in bytes (1, 2 or 3, including the opcode byte
// itself) and a human-readable description. Widths for variable-length
// payloads (the Hollerith string literal) are declared as 1: the extra
// bytes are not part of the fixed instruction width and are walked
// specially by the VM and the disassembler.
package opcode

import (
	"bufio"
	_ "embed"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed opcodes.tsv
var defaultTSV string

// Entry describes one opcode.
type Entry struct {
	Code        byte
	Mnemonic    string
	Width       int
	Description string
}

// Table indexes a set of Entry values by code and by mnemonic. It is
// immutable once returned by Load or Default and may be shared
// read-only across assembler, VM and disassembler instances.
type Table struct {
	byCode [256]*Entry
	byName map[string]*Entry
}

// ByCode returns the entry for the given numeric opcode, or nil if the
// code is not present in the table.
func (t *Table) ByCode(code byte) *Entry {
	return t.byCode[code]
}

// ByMnemonic returns the entry for the given mnemonic, or nil if it is
// not a known opcode name.
func (t *Table) ByMnemonic(name string) *Entry {
	return t.byName[name]
}

// Default returns the table compiled in from opcodes.tsv.
func Default() *Table {
	t, err := Load(strings.NewReader(defaultTSV))
	if err != nil {
		// The embedded table is a build-time asset; a parse failure here
		// is a programming error, not a runtime condition callers can act on.
		panic(errors.Wrap(err, "opcode: invalid embedded table"))
	}
	return t
}

// Load reads a tab-separated opcode table: one header line (skipped),
// then rows of code<TAB>mnemonic<TAB>width<TAB>description.
func Load(r io.Reader) (*Table, error) {
	t := &Table{byName: make(map[string]*Entry)}
	s := bufio.NewScanner(r)
	lineno := 0
	for s.Scan() {
		lineno++
		if lineno == 1 {
			continue // header row
		}
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 4)
		if len(fields) != 4 {
			return nil, errors.Errorf("opcode table line %d: expected 4 tab-separated fields, got %d", lineno, len(fields))
		}
		code, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "opcode table line %d: bad code", lineno)
		}
		if code < 0 || code > 255 {
			return nil, errors.Errorf("opcode table line %d: code %d out of byte range", lineno, code)
		}
		width, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "opcode table line %d: bad width", lineno)
		}
		if width < 1 || width > 3 {
			return nil, errors.Errorf("opcode table line %d: width %d not in {1,2,3}", lineno, width)
		}
		e := &Entry{
			Code:        byte(code),
			Mnemonic:    fields[1],
			Width:       width,
			Description: fields[3],
		}
		if t.byCode[e.Code] != nil {
			return nil, errors.Errorf("opcode table line %d: duplicate code %d", lineno, code)
		}
		if _, dup := t.byName[e.Mnemonic]; dup {
			return nil, errors.Errorf("opcode table line %d: duplicate mnemonic %q", lineno, e.Mnemonic)
		}
		t.byCode[e.Code] = e
		t.byName[e.Mnemonic] = e
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "opcode: reading table")
	}
	return t, nil
}
