// Command smr runs a .smb bytecode image, capturing its output to .smo.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/mna/mainer"
	"github.com/sirupsen/logrus"

	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/internal/errwriter"
	"github.com/mykespb/stack-machine/internal/names"
	"github.com/mykespb/stack-machine/internal/rlog"
	"github.com/mykespb/stack-machine/vm"
)

const binName = "smr"

var shortUsage = fmt.Sprintf(`usage: %s [<option>...] [<name>]
Run '%[1]s --help' for details.
`, binName)

var longUsage = fmt.Sprintf(`usage: %s [<option>...] [<name>]
       %[1]s -h|--help

Runs <name>.smb on the stack machine. <name> defaults to %q and may be
given with or without a .smb extension. Program output is written to
stdout and captured to <name>.smo; a run log is appended to <name>.sml.

Valid options are:
       -h --help                 Show this help and exit.
       --step-budget <n>         Abort after n instructions (0, the
                                 default, means unlimited).
       --trace                   Log every fetch-decode-execute step
                                 (pc, opcode, stack snapshot) at debug
                                 level.
`, binName, names.DefaultBase)

// Cmd is the smr mainer.Cmd implementation.
type Cmd struct {
	Help       bool  `flag:"h,help"`
	StepBudget int64 `flag:"step-budget"`
	TraceFlag  bool  `flag:"trace"`

	args []string
}

func (c *Cmd) SetArgs(args []string)    { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help {
		return nil
	}
	if len(c.args) > 1 {
		return fmt.Errorf("at most one <name> argument is accepted, got %d", len(c.args))
	}
	if c.StepBudget < 0 {
		return fmt.Errorf("--step-budget must not be negative, got %d", c.StepBudget)
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: true, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}
	if c.Help {
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	}

	var base string
	if len(c.args) == 1 {
		base = c.args[0]
	}
	n := names.Derive(base)

	logFile, err := os.OpenFile(n.Log, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return mainer.Failure
	}
	defer logFile.Close()

	log := rlog.New(logFile, stdio.Stderr, c.TraceFlag)

	raw, err := os.ReadFile(n.Bin)
	if err != nil {
		log.WithError(err).Error("read image")
		return mainer.Failure
	}

	outFile, err := os.Create(n.Out)
	if err != nil {
		log.WithError(err).Error("create output capture")
		return mainer.Failure
	}
	defer outFile.Close()

	capture := errwriter.New(io.MultiWriter(stdio.Stdout, outFile))

	opts := []vm.Option{
		vm.Output(capture),
		vm.Input(stdio.Stdin),
	}
	if c.StepBudget > 0 {
		opts = append(opts, vm.MaxSteps(c.StepBudget))
	}
	if c.TraceFlag {
		opts = append(opts, vm.Trace(func(pc int, code byte, mnemonic string, ds, rs []int) {
			log.WithFields(logrus.Fields{
				"pc": pc, "code": code, "op": mnemonic, "ds": ds, "rs": rs,
			}).Debug("step")
		}))
	}

	inst, err := vm.New(bytecode.Image(raw), opts...)
	if err != nil {
		log.WithError(err).Error("load image")
		return mainer.Failure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	runErr := inst.Run(ctx)
	elapsed := time.Since(start)

	if capture.Err != nil {
		log.WithError(capture.Err).Error("write output")
		return mainer.Failure
	}

	log.WithFields(logrus.Fields{
		"steps": inst.Steps(), "elapsed": elapsed, "overflow": inst.Flags.Overflow, "error": inst.Flags.Error,
	}).Info("run finished")

	if runErr != nil {
		if errors.Is(runErr, vm.ErrStepBudget) {
			log.Warn("step budget exhausted")
			return mainer.Failure
		}
		entry := log.WithError(runErr)
		var rerr *vm.RuntimeError
		if errors.As(runErr, &rerr) {
			entry = entry.WithFields(logrus.Fields{
				"pc": rerr.PC, "ds": rerr.DS, "rs": rerr.RS,
				"overflow": rerr.Flags.Overflow, "error_flag": rerr.Flags.Error,
			})
		}
		entry.Error("run")
		return mainer.Failure
	}
	return mainer.Success
}

func main() {
	c := &Cmd{}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
