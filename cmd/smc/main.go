// Command smc assembles a .smt source file into a .smb bytecode image.
package main

import (
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mykespb/stack-machine/asm"
	"github.com/mykespb/stack-machine/internal/errwriter"
	"github.com/mykespb/stack-machine/internal/names"
	"github.com/mykespb/stack-machine/internal/rlog"
)

const binName = "smc"

var shortUsage = fmt.Sprintf(`usage: %s [<option>...] [<name>]
Run '%[1]s --help' for details.
`, binName)

var longUsage = fmt.Sprintf(`usage: %s [<option>...] [<name>]
       %[1]s -h|--help

Assembles <name>.smt into <name>.smb. <name> defaults to %q and may be
given with or without a .smt extension. A log of the run is appended
to <name>.sml.

Valid options are:
       -h --help                 Show this help and exit.
       --emit-on-error           Write the partial image assembled so
                                 far even when errors are reported.
`, binName, names.DefaultBase)

// Cmd is the smc mainer.Cmd implementation.
type Cmd struct {
	Help        bool `flag:"h,help"`
	EmitOnError bool `flag:"emit-on-error"`

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

	src, err := os.Open(n.Text)
	if err != nil {
		log.WithError(err).Error("open source")
		return mainer.Failure
	}
	defer src.Close()

	log.WithField("source", n.Text).Info("assembling")
	img, err := asm.Assemble(src, asm.EmitOnError(c.EmitOnError))
	if err != nil {
		log.WithError(err).Error("assemble")
		if img == nil {
			return mainer.Failure
		}
	}

	out, err := os.Create(n.Bin)
	if err != nil {
		log.WithError(err).Error("create image")
		return mainer.Failure
	}
	defer out.Close()

	ow := errwriter.New(out)
	ow.Write(img)
	if ow.Err != nil {
		log.WithError(ow.Err).Error("write image")
		return mainer.Failure
	}

	log.WithField("bytes", len(img)).Info("assembled")
	if err != nil {
		// EmitOnError wrote a partial image above; still a failed run.
		return mainer.Failure
	}
	return mainer.Success
}

func main() {
	c := &Cmd{}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
