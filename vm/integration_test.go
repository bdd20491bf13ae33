package vm_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mykespb/stack-machine/asm"
	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/vm"
)

func assembleSource(t *testing.T, src string) bytecode.Image {
	t.Helper()
	img, err := asm.Assemble(strings.NewReader(src))
	require.NoError(t, err)
	return img
}

func TestAddAndPrint(t *testing.T) {
	img := assembleSource(t, "5 7 add printnum end")
	require.Equal(t, []byte("SM11"), []byte(img[:4]))

	var out bytes.Buffer
	inst, err := vm.New(img, vm.Output(&out))
	require.NoError(t, err)
	require.NoError(t, inst.Run(context.Background()))
	require.Equal(t, "12 ", out.String())
}

// A backward jump with no halting condition runs forever without a step budget.
func TestBackwardJumpLoops(t *testing.T) {
	img := assembleSource(t, "label L 1 printnum jump L end")

	var out bytes.Buffer
	inst, err := vm.New(img, vm.Output(&out), vm.MaxSteps(10))
	require.NoError(t, err)
	err = inst.Run(context.Background())
	require.ErrorIs(t, err, vm.ErrStepBudget)
	require.Equal(t, "1 1 1 ", out.String())
}

// A countdown loop built from the do/loop structured-control pseudo-ops;
// the counter lives on rs and the body peeks it with rsds/dup/dsrs.
func TestCountdownLoop(t *testing.T) {
	img := assembleSource(t, "10 do rsds dup dsrs printnum loop end")

	var out bytes.Buffer
	inst, err := vm.New(img, vm.Output(&out), vm.MaxSteps(10000))
	require.NoError(t, err)
	require.NoError(t, inst.Run(context.Background()))
	require.Equal(t, "10 9 8 7 6 5 4 3 2 1 ", out.String())
}

// Arithmetic overflow sets the flag and jof branches to the handler.
func TestOverflowBranch(t *testing.T) {
	img := assembleSource(t,
		`32000 32000 add jof ov printnum end label ov "overflow" printstr end`)

	var out bytes.Buffer
	inst, err := vm.New(img, vm.Output(&out))
	require.NoError(t, err)
	require.NoError(t, inst.Run(context.Background()))
	require.True(t, inst.Flags.Overflow)
	require.Equal(t, "overflow", out.String())
}

// Division by zero sets the error flag and jef branches.
func TestDivZeroBranch(t *testing.T) {
	img := assembleSource(t,
		`5 0 div jef err printnum end label err "divzero" printstr end`)

	var out bytes.Buffer
	inst, err := vm.New(img, vm.Output(&out))
	require.NoError(t, err)
	require.NoError(t, inst.Run(context.Background()))
	require.True(t, inst.Flags.Error)
	require.Equal(t, "divzero", out.String())
}

// A corrupted image is rejected before execution starts.
func TestCorruptedImageRejected(t *testing.T) {
	img := assembleSource(t, "5 7 add printnum end")

	corruptChecksum := append(bytecode.Image{}, img...)
	corruptChecksum[len(corruptChecksum)-1] ^= 0xFF
	_, err := vm.New(corruptChecksum)
	require.Error(t, err)
	var ferr *bytecode.FormatError
	require.ErrorAs(t, err, &ferr)

	corruptVersion := append(bytecode.Image{}, img...)
	corruptVersion[2], corruptVersion[3] = '0', '0'
	_, err = vm.New(corruptVersion)
	require.Error(t, err)
	require.ErrorAs(t, err, &ferr)
}
