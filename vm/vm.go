package vm

import (
	"bufio"
	"io"
	"math/rand/v2"

	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/opcode"
)

const (
	maxStackDepth = 256
	memSize       = 1024
)

// Flags holds the two condition flags set by arithmetic instructions.
type Flags struct {
	Overflow bool
	Error    bool
}

// Instance is one run of a bytecode.Image. It is not safe for concurrent
// use; create a new Instance per run.
type Instance struct {
	tbl *opcode.Table
	img bytecode.Image

	PC     int
	ds     []int
	rs     []int
	memory [memSize]int
	Flags  Flags

	out io.Writer
	in  *bufio.Reader

	rng *rand.Rand

	maxSteps int64
	steps    int64

	trace func(pc int, code byte, mnemonic string, ds, rs []int)
}

// Option configures a New Instance.
type Option func(*Instance)

// WithTable overrides the opcode table used to decode the image. The
// default is opcode.Default().
func WithTable(tbl *opcode.Table) Option {
	return func(i *Instance) { i.tbl = tbl }
}

// Output directs printnum/printchar/println/printstr/show/dump text to w.
// The default is io.Discard.
func Output(w io.Writer) Option {
	return func(i *Instance) { i.out = w }
}

// Input supplies the line-oriented reader behind wait/inputnum/inputchar.
// The default is an empty reader, so wait/inputnum/inputchar see EOF
// immediately rather than blocking a headless run forever.
func Input(r io.Reader) Option {
	return func(i *Instance) { i.in = bufio.NewReader(r) }
}

// Seed pins the PRNG behind the random opcode for deterministic tests.
func Seed(n uint64) Option {
	return func(i *Instance) { i.rng = rand.New(rand.NewPCG(n, n)) }
}

// MaxSteps bounds the number of instructions Run will execute before
// returning ErrStepBudget. Zero (the default) means unlimited.
func MaxSteps(n int64) Option {
	return func(i *Instance) { i.maxSteps = n }
}

// Trace installs a callback invoked before each instruction is executed,
// with the current PC, raw opcode byte, mnemonic, and a snapshot of both
// stacks. A nil fn (the default) disables tracing with no overhead beyond
// the nil check.
func Trace(fn func(pc int, code byte, mnemonic string, ds, rs []int)) Option {
	return func(i *Instance) { i.trace = fn }
}

// New creates an Instance ready to run img, starting at the image's
// header-relative entry point (offset bytecode.HeaderLen).
func New(img bytecode.Image, opts ...Option) (*Instance, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	i := &Instance{
		img: img,
		PC:  bytecode.HeaderLen,
		ds:  make([]int, 0, maxStackDepth),
		rs:  make([]int, 0, maxStackDepth),
		out: io.Discard,
		in:  bufio.NewReader(new(io.LimitedReader)),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.tbl == nil {
		i.tbl = opcode.Default()
	}
	if i.rng == nil {
		i.rng = rand.New(rand.NewPCG(1, 1))
	}
	return i, nil
}

// DataStack returns a snapshot of the data stack, bottom first.
func (i *Instance) DataStack() []int {
	out := make([]int, len(i.ds))
	copy(out, i.ds)
	return out
}

// ReturnStack returns a snapshot of the return stack, bottom first.
func (i *Instance) ReturnStack() []int {
	out := make([]int, len(i.rs))
	copy(out, i.rs)
	return out
}

// Memory returns the live backing array of the VM's linear memory.
func (i *Instance) Memory() *[memSize]int {
	return &i.memory
}

// Steps returns the number of instructions executed so far.
func (i *Instance) Steps() int64 {
	return i.steps
}
