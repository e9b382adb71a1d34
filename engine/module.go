package engine

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/beatconfigs"
	"github.com/reusee/taibeat/logs"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/synth"
	"github.com/reusee/taibeat/transport"
)

type Module struct {
	dscope.Module
	Synth   synth.Module
	Configs beatconfigs.Module
	Logs    logs.Module
}

func (Module) Engine(
	tr *transport.Transport,
	library sandbox.Library,
	destination *synth.Destination,
	logger logs.Logger,
	volume beatconfigs.DefaultVolume,
) *Engine {
	return New(tr, library, destination, logger, float64(volume))
}
