// Package debugs inspects live engine state from Starlark.
package debugs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/logs"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}
