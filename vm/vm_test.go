package vm

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mykespb/stack-machine/bytecode"
)

func assemble(t *testing.T, body ...byte) bytecode.Image {
	t.Helper()
	img := append(bytecode.NewHeader(), body...)
	return bytecode.Image(img).Finalize()
}

func run(t *testing.T, img bytecode.Image, opts ...Option) (*Instance, error) {
	t.Helper()
	inst, err := New(img, opts...)
	require.NoError(t, err)
	return inst, inst.Run(context.Background())
}

func TestRun_arithmetic(t *testing.T) {
	img := assemble(t, 73, 5, 73, 7, 21, 2) // 5 7 add end
	inst, err := run(t, img)
	require.NoError(t, err)
	require.Equal(t, []int{12}, inst.DataStack())
}

func TestRun_printnum(t *testing.T) {
	var out bytes.Buffer
	img := assemble(t, 73, 5, 73, 7, 21, 60, 2)
	_, err := run(t, img, Output(&out))
	require.NoError(t, err)
	require.Equal(t, "12 ", out.String())
}

func TestRun_divByZero(t *testing.T) {
	img := assemble(t, 73, 5, 73, 0, 24, 2) // 5 0 div end
	inst, err := run(t, img)
	require.NoError(t, err)
	require.True(t, inst.Flags.Error)
	require.Equal(t, []int{0}, inst.DataStack())
}

func TestRun_overflow(t *testing.T) {
	img := assemble(t,
		74, 127, 255, // number 32767
		74, 127, 255, // number 32767
		21,           // add -> 65534, out of [-32768,32767]
		2,
	)
	inst, err := run(t, img)
	require.NoError(t, err)
	require.True(t, inst.Flags.Overflow)
}

func TestRun_not(t *testing.T) {
	img := assemble(t, 73, 0, 26, 73, 1, 26, 2) // 0 not  1 not  end
	inst, err := run(t, img)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, inst.DataStack())
}

func TestRun_rot(t *testing.T) {
	// 1 2 3   3 rot   end   -> rot pulls the 3rd-deepest (1) to top
	img := assemble(t, 73, 1, 73, 2, 73, 3, 73, 3, 14, 2)
	inst, err := run(t, img)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 1}, inst.DataStack())
}

func TestRun_over(t *testing.T) {
	img := assemble(t, 73, 1, 73, 2, 73, 3, 73, 3, 15, 2)
	inst, err := run(t, img)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 1}, inst.DataStack())
}

func TestRun_memory(t *testing.T) {
	// 42 7 store   7 fetch   end
	img := assemble(t, 73, 42, 73, 7, 51, 73, 7, 50, 2)
	inst, err := run(t, img)
	require.NoError(t, err)
	require.Equal(t, []int{42}, inst.DataStack())
	require.Equal(t, 42, inst.Memory()[7])
}

func TestRun_jumpLoop(t *testing.T) {
	// label L: 1 printnum jump L
	img := assemble(t, 73, 1, 60, 30, 0, 4)
	var out bytes.Buffer
	inst, err := New(img, Output(&out), MaxSteps(5))
	require.NoError(t, err)
	err = inst.Run(context.Background())
	require.ErrorIs(t, err, ErrStepBudget)
}

func TestRun_unknownOpcode(t *testing.T) {
	img := assemble(t, 250, 2)
	_, err := run(t, img)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestRun_dataStackUnderflow(t *testing.T) {
	img := assemble(t, 21, 2) // add with nothing pushed
	_, err := run(t, img)
	require.Error(t, err)
}

func TestRun_charStringLiterals(t *testing.T) {
	var out bytes.Buffer
	// 'A' printchar  "hi" printstr  end
	img := assemble(t, 70, 'A', 61, 72, 2, 'h', 'i', 68, 2)
	_, err := run(t, img, Output(&out))
	require.NoError(t, err)
	require.Equal(t, "Ahi", out.String())
}

func TestRun_subroutineCall(t *testing.T) {
	// calld double; end; double: dup add return
	img := assemble(t,
		73, 4, // byte 4
		40, 0, 10, // calld -> addr 10 (the "double" subroutine below)
		2,       // end
		12, 21, // dup add
		42, // return
	)
	inst, err := run(t, img)
	require.NoError(t, err)
	require.Equal(t, []int{8}, inst.DataStack())
}
