// Command smd disassembles a .smb bytecode image into a .smd listing.
package main

import (
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mykespb/stack-machine/bytecode"
	"github.com/mykespb/stack-machine/disasm"
	"github.com/mykespb/stack-machine/internal/errwriter"
	"github.com/mykespb/stack-machine/internal/names"
	"github.com/mykespb/stack-machine/internal/rlog"
	"github.com/mykespb/stack-machine/opcode"
)

const binName = "smd"

var shortUsage = fmt.Sprintf(`usage: %s [<option>...] [<name>]
Run '%[1]s --help' for details.
`, binName)

var longUsage = fmt.Sprintf(`usage: %s [<option>...] [<name>]
       %[1]s -h|--help

Disassembles <name>.smb into <name>.smd. <name> defaults to %q and may
be given with or without a .smb extension. A log of the run is
appended to <name>.sml.

Valid options are:
       -h --help                 Show this help and exit.
`, binName, names.DefaultBase)

// Cmd is the smd mainer.Cmd implementation.
type Cmd struct {
	Help bool `flag:"h,help"`

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

	log := rlog.New(logFile, stdio.Stderr, false)

	raw, err := os.ReadFile(n.Bin)
	if err != nil {
		log.WithError(err).Error("read image")
		return mainer.Failure
	}

	listing, err := os.Create(n.List)
	if err != nil {
		log.WithError(err).Error("create listing")
		return mainer.Failure
	}
	defer listing.Close()

	lw := errwriter.New(listing)
	if err := disasm.Walk(bytecode.Image(raw), opcode.Default(), lw); err != nil {
		log.WithError(err).Error("disassemble")
		return mainer.Failure
	}
	if lw.Err != nil {
		log.WithError(lw.Err).Error("write listing")
		return mainer.Failure
	}

	log.WithField("listing", n.List).Info("disassembled")
	return mainer.Success
}

func main() {
	c := &Cmd{}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
