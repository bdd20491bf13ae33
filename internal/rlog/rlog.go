// Package rlog builds the two-sink logger shared by the smc/smr/smd
// binaries: JSON lines appended to a run's .sml file, plus a
// human-readable line on stderr for anything at warning level or
// above.
package rlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

type stderrHook struct {
	out       io.Writer
	formatter logrus.Formatter
}

func (h *stderrHook) Levels() []logrus.Level {
	return logrus.AllLevels[:logrus.WarnLevel+1]
}

func (h *stderrHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.out.Write(b)
	return err
}

// New returns a Logger that writes JSON-formatted entries to sml (the
// run's .sml log file) at every level, plus a plain-text line to
// stderr for warnings and errors only. When trace is true the file
// sink is opened at debug level to carry --trace's per-step records.
func New(sml io.Writer, stderr io.Writer, trace bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(sml)
	log.SetFormatter(&logrus.JSONFormatter{})
	if trace {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	log.AddHook(&stderrHook{out: stderr, formatter: &logrus.TextFormatter{DisableColors: true}})
	return log
}
