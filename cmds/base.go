// Package cmds defines the command handlers the CLI and the tests drive.
// Commands carry their arguments as struct fields so that both cobra
// flags and test code can fill them the same way.
package cmds

import (
	"errors"
	"fmt"
	"io"

	"github.com/lainio/err2/try"
)

var ErrInvalid = errors.New("invalid command, check arguments")

type Result interface {
	JSON() ([]byte, error)
}

type Command interface {
	Validate() error
	Exec(w io.Writer) (r Result, err error)
}

// Fprintln is fmt.Fprintln but it allows writer to be nil. Note! it
// throws an error.
func Fprintln(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintln(w, a...))
	}
}

// Fprintf is fmt.Fprintf but it allows writer to be nil. Note! it
// throws an error.
func Fprintf(w io.Writer, format string, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintf(w, format, a...))
	}
}
