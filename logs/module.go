// Package logs provides the structured logger and build correlation ids.
package logs

import (
	"io"
	"os"

	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
}

// Writer receives the text log output. Tests fork it to capture lines.
type Writer io.Writer

func (Module) Writer() Writer {
	return os.Stderr
}
