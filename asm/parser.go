package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/opcode"
)

// parserState names what the next whitespace-delimited token means.
type parserState int

const (
	stateNormal parserState = iota
	stateDefLabel
	stateDefConst1
	stateDefConst2
	stateGetByte
	stateGetNumber
	stateGetChar
	stateGetString
	stateRefLabel
)

// ctrlKind tags the kind of structured-control frame on the ctrlstack.
type ctrlKind int

const (
	ctrlIf ctrlKind = iota
	ctrlIfElse
	ctrlBegin
	ctrlDo
)

func (k ctrlKind) String() string {
	switch k {
	case ctrlIf:
		return "if"
	case ctrlIfElse:
		return "if/else"
	case ctrlBegin:
		return "begin"
	case ctrlDo:
		return "do"
	}
	return "?"
}

type ctrlFrame struct {
	kind  ctrlKind
	level int
}

var pseudoOps = map[string]bool{
	"label": true, "const": true,
	"if": true, "else": true, "then": true,
	"begin": true, "while": true, "repeat": true,
	"do": true, "loop": true,
	"macro": true,
}

// Assembler holds all state for one assembly pass. It is not safe for
// concurrent or repeated use; call Assemble for each source.
type Assembler struct {
	tbl *opcode.Table

	cf     []byte
	labset map[string]int
	labref map[int]string
	macros map[string]string
	consts map[string]int

	ctrlstack []ctrlFrame
	nextLevel int

	state       parserState
	pendingName string
	macroName   string
	inMacroDef  bool

	line        int
	emitOnError bool

	errs Errors
}

func newAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		tbl:    opcode.Default(),
		cf:     bytecode.NewHeader(),
		labset: make(map[string]int),
		labref: make(map[int]string),
		macros: make(map[string]string),
		consts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) errorf(format string, args ...interface{}) {
	a.errs = append(a.errs, errEntry{Line: a.line, Msg: fmt.Sprintf(format, args...)})
}

func (a *Assembler) abort() bool { return len(a.errs) >= maxErrors }

func (a *Assembler) mustCode(mnemonic string) byte {
	e := a.tbl.ByMnemonic(mnemonic)
	if e == nil {
		a.errorf("opcode table has no entry for required mnemonic %q", mnemonic)
		return 0
	}
	return e.Code
}

func (a *Assembler) emit(b byte) { a.cf = append(a.cf, b) }

// emitRef emits a 2-byte placeholder and records it for back-patching
// against labset once the whole body has been assembled.
func (a *Assembler) emitRef(name string) {
	off := len(a.cf)
	a.cf = append(a.cf, 0, 0)
	a.labref[off] = name
}

// emitLiteral compiles a bare integer per the normal-state literal rule:
// BYTE,n for 0<=n<=255, else NUMBER,hi,lo.
func (a *Assembler) emitLiteral(n int) {
	if n >= 0 && n <= 255 {
		a.emit(a.mustCode("byte"))
		a.emit(byte(n))
		return
	}
	hi, lo, err := bytecode.EncodeNumber(n)
	if err != nil {
		a.errorf("integer literal %d out of range", n)
		return
	}
	a.emit(a.mustCode("number"))
	a.emit(hi)
	a.emit(lo)
}

func (a *Assembler) freshLevel() int {
	a.nextLevel++
	return a.nextLevel
}

// topFrame returns the innermost open control frame, or nil if none.
func (a *Assembler) topFrame() *ctrlFrame {
	if len(a.ctrlstack) == 0 {
		return nil
	}
	return &a.ctrlstack[len(a.ctrlstack)-1]
}

func (a *Assembler) pushFrame(k ctrlKind, level int) {
	a.ctrlstack = append(a.ctrlstack, ctrlFrame{kind: k, level: level})
}

func (a *Assembler) popFrame() ctrlFrame {
	f := a.ctrlstack[len(a.ctrlstack)-1]
	a.ctrlstack = a.ctrlstack[:len(a.ctrlstack)-1]
	return f
}

// run feeds line-tokenized source through the state machine until
// end-of-input or too many errors. The "end" opcode is emitted like any
// other instruction and does not stop assembly: source may continue
// past it with labeled, jump-reachable code.
func (a *Assembler) run(r io.Reader) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 4096), 1<<20)
	for s.Scan() {
		if a.abort() {
			return
		}
		a.line++
		a.processLine(s.Text())
	}
	if err := s.Err(); err != nil {
		a.errorf("reading source: %v", err)
	}
}

func (a *Assembler) processLine(line string) {
	if a.inMacroDef {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			a.inMacroDef = false
			a.macroName = ""
			return
		}
		a.macros[a.macroName] += " " + trimmed
		return
	}

	toks := tokenize(line)
	if len(toks) == 0 {
		return
	}

	if len(toks[0]) > 1 && toks[0][0] == '_' {
		name := toks[0][1:]
		body, ok := a.macros[name]
		if !ok {
			a.errorf("undefined macro %q", name)
			return
		}
		expanded := body
		for i, arg := range toks[1:] {
			expanded = strings.ReplaceAll(expanded, fmt.Sprintf("$%d", i), arg)
		}
		a.processTokens(tokenize(expanded))
		return
	}

	if toks[0] == "macro" {
		if len(toks) < 2 {
			a.errorf("macro: missing name")
			return
		}
		name := toks[1]
		if _, dup := a.macros[name]; dup {
			a.errorf("duplicate macro %q", name)
			return
		}
		a.macros[name] = ""
		a.macroName = name
		a.inMacroDef = true
		return
	}

	a.processTokens(toks)
}

func (a *Assembler) processTokens(toks []string) {
	for _, tok := range toks {
		if a.abort() {
			return
		}
		a.processToken(tok)
	}
}

func (a *Assembler) processToken(tok string) {
	switch a.state {
	case stateDefLabel:
		a.defineLabel(tok)
		a.state = stateNormal
		return
	case stateDefConst1:
		if a.tbl.ByMnemonic(tok) != nil || pseudoOps[tok] {
			a.errorf("const name %q shadows an opcode or pseudo-op", tok)
			a.state = stateNormal
			return
		}
		if _, dup := a.consts[tok]; dup {
			a.errorf("duplicate const %q", tok)
			a.state = stateNormal
			return
		}
		a.pendingName = tok
		a.state = stateDefConst2
		return
	case stateDefConst2:
		n, ok := a.intOperand(tok)
		if !ok {
			a.state = stateNormal
			return
		}
		a.consts[a.pendingName] = n
		a.state = stateNormal
		return
	case stateGetByte:
		n, ok := a.intOperand(tok)
		if ok {
			a.emit(byte(((n % 256) + 256) % 256))
		}
		a.state = stateNormal
		return
	case stateGetNumber:
		n, ok := a.intOperand(tok)
		if ok {
			hi, lo, err := bytecode.EncodeNumber(n)
			if err != nil {
				a.errorf("number literal %d out of range", n)
			} else {
				a.emit(hi)
				a.emit(lo)
			}
		}
		a.state = stateNormal
		return
	case stateGetChar:
		a.emitCharOperand(tok)
		a.state = stateNormal
		return
	case stateGetString:
		a.emitStringOperand(tok)
		a.state = stateNormal
		return
	case stateRefLabel:
		a.emitRef(tok)
		a.state = stateNormal
		return
	}

	// state == stateNormal
	if isQuotedChar(tok) {
		a.emitCharLiteral(tok)
		return
	}
	if isQuotedString(tok) {
		a.emitStringLiteral(tok)
		return
	}

	switch tok {
	case "label":
		a.state = stateDefLabel
		return
	case "const":
		a.state = stateDefConst1
		return
	case "if":
		l := a.freshLevel()
		a.pushFrame(ctrlIf, l)
		a.emit(a.mustCode("jeq"))
		a.emitRef(fmt.Sprintf("if_%d", l))
		return
	case "else":
		f := a.topFrame()
		if f == nil || f.kind != ctrlIf {
			a.errorf("'else' without matching 'if'")
			return
		}
		l := f.level
		f.kind = ctrlIfElse
		a.emit(a.mustCode("jump"))
		a.emitRef(fmt.Sprintf("else_%d", l))
		a.labset[fmt.Sprintf("if_%d", l)] = len(a.cf)
		return
	case "then":
		f := a.topFrame()
		if f == nil || (f.kind != ctrlIf && f.kind != ctrlIfElse) {
			a.errorf("'then' without matching 'if'")
			return
		}
		popped := a.popFrame()
		if popped.kind == ctrlIf {
			a.labset[fmt.Sprintf("if_%d", popped.level)] = len(a.cf)
		} else {
			a.labset[fmt.Sprintf("else_%d", popped.level)] = len(a.cf)
		}
		return
	case "begin":
		l := a.freshLevel()
		a.pushFrame(ctrlBegin, l)
		a.labset[fmt.Sprintf("begin_%d", l)] = len(a.cf)
		return
	case "while":
		f := a.topFrame()
		if f == nil || f.kind != ctrlBegin {
			a.errorf("'while' without matching 'begin'")
			return
		}
		a.emit(a.mustCode("jeq"))
		a.emitRef(fmt.Sprintf("repeat_%d", f.level))
		return
	case "repeat":
		f := a.topFrame()
		if f == nil || f.kind != ctrlBegin {
			a.errorf("'repeat' without matching 'begin'")
			return
		}
		popped := a.popFrame()
		a.emit(a.mustCode("jump"))
		a.emitRef(fmt.Sprintf("begin_%d", popped.level))
		a.labset[fmt.Sprintf("repeat_%d", popped.level)] = len(a.cf)
		return
	case "do":
		l := a.freshLevel()
		a.pushFrame(ctrlDo, l)
		a.emit(a.mustCode("dsrs"))
		a.labset[fmt.Sprintf("do_%d", l)] = len(a.cf)
		a.emit(a.mustCode("rsds"))
		a.emit(a.mustCode("dup"))
		a.emit(a.mustCode("dsrs"))
		a.emit(a.mustCode("jeq"))
		a.emitRef(fmt.Sprintf("loop_%d", l))
		return
	case "loop":
		f := a.topFrame()
		if f == nil || f.kind != ctrlDo {
			a.errorf("'loop' without matching 'do'")
			return
		}
		popped := a.popFrame()
		a.emit(a.mustCode("rsds"))
		a.emit(a.mustCode("byte"))
		a.emit(1)
		a.emit(a.mustCode("sub"))
		a.emit(a.mustCode("dsrs"))
		a.emit(a.mustCode("jump"))
		a.emitRef(fmt.Sprintf("do_%d", popped.level))
		a.labset[fmt.Sprintf("loop_%d", popped.level)] = len(a.cf)
		return
	}

	if e := a.tbl.ByMnemonic(tok); e != nil {
		a.emit(e.Code)
		switch tok {
		case "byte":
			a.state = stateGetByte
		case "number":
			a.state = stateGetNumber
		case "char":
			a.state = stateGetChar
		case "string":
			a.state = stateGetString
		case "jump", "jeq", "jne", "jge", "jgt", "jle", "jlt", "jof", "jef", "calld", "addr":
			a.state = stateRefLabel
		}
		return
	}

	if v, ok := a.consts[tok]; ok {
		a.emitLiteral(v)
		return
	}

	if n, err := strconv.Atoi(tok); err == nil {
		a.emitLiteral(n)
		return
	}

	a.errorf("unknown token %q", tok)
}

func (a *Assembler) defineLabel(name string) {
	if _, dup := a.labset[name]; dup {
		a.errorf("duplicate label %q", name)
		return
	}
	a.labset[name] = len(a.cf)
}

// intOperand resolves a token used as an immediate operand: it may be a
// named constant or a bare decimal integer.
func (a *Assembler) intOperand(tok string) (int, bool) {
	if v, ok := a.consts[tok]; ok {
		return v, true
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		a.errorf("expected integer operand, got %q", tok)
		return 0, false
	}
	return n, true
}

func (a *Assembler) emitCharLiteral(tok string) {
	body := tok[1 : len(tok)-1]
	if len(body) == 0 {
		a.errorf("empty character literal")
		return
	}
	a.emit(a.mustCode("char"))
	a.emit(body[0])
}

func (a *Assembler) emitCharOperand(tok string) {
	body := tok
	if isQuotedChar(tok) {
		body = tok[1 : len(tok)-1]
	}
	if len(body) == 0 {
		a.errorf("empty character operand")
		return
	}
	a.emit(body[0])
}

func (a *Assembler) emitStringLiteral(tok string) {
	body := tok[1 : len(tok)-1]
	if len(body) > 255 {
		a.errorf("string literal %d bytes exceeds maximum of 255", len(body))
		return
	}
	a.emit(a.mustCode("string"))
	a.emit(byte(len(body)))
	a.cf = append(a.cf, body...)
}

func (a *Assembler) emitStringOperand(tok string) {
	body := tok
	if isQuotedString(tok) {
		body = tok[1 : len(tok)-1]
	}
	if len(body) > 255 {
		a.errorf("string operand %d bytes exceeds maximum of 255", len(body))
		return
	}
	a.emit(byte(len(body)))
	a.cf = append(a.cf, body...)
}

// finish appends a trailing END if needed, resolves every label
// reference, and appends the checksum byte.
func (a *Assembler) finish() bytecode.Image {
	endCode := a.mustCode("end")
	if len(a.cf) == 0 || a.cf[len(a.cf)-1] != endCode {
		a.emit(endCode)
	}

	if len(a.ctrlstack) > 0 {
		f := a.ctrlstack[0]
		a.errorf("unclosed %s control structure", f.kind)
	}

	for off, name := range a.labref {
		target, ok := a.labset[name]
		if !ok {
			a.errorf("undefined label %q", name)
			continue
		}
		hi, lo, err := bytecode.EncodeAddr(target)
		if err != nil {
			a.errorf("label %q: %v", name, err)
			continue
		}
		a.cf[off] = hi
		a.cf[off+1] = lo
	}

	return bytecode.Image(a.cf).Finalize()
}
