// Package errwriter wraps an io.Writer so a long sequence of writes (a
// disassembly listing, a captured program-output stream) can be
// checked for failure once at the end instead of after every call.
package errwriter

import (
	"io"

	"github.com/pkg/errors"
)

// Writer tracks the first error seen from the underlying writer. Once
// set, Write becomes a no-op that keeps returning that error.
type Writer struct {
	w   io.Writer
	Err error
}

func (w *Writer) Write(p []byte) (n int, err error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err = w.w.Write(p)
	if err != nil {
		w.Err = errors.Wrap(err, "write failed")
	}
	return n, w.Err
}

// New returns a Writer wrapping w.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}
