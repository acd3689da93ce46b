// Package console emits the colorized, line-oriented progress output of the
// batch pipelines. It is informational only; nothing reads it back and
// pipeline control flow never depends on it.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/colorstring"
)

type Reporter struct {
	out io.Writer
}

// New creates a reporter writing to out. Passing nil selects stdout.
func New(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

// Printf renders color markup like [green]added[reset] and writes the result.
func (r *Reporter) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, colorstring.Color(format), args...)
}

// Errorf writes a highlighted error line.
func (r *Reporter) Errorf(format string, args ...any) {
	r.Printf("[red]error:[reset] "+format, args...)
}
