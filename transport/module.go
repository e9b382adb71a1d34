package transport

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/beatconfigs"
)

type Module struct {
	dscope.Module
	Configs beatconfigs.Module
}

func (Module) Transport(
	bpm beatconfigs.DefaultBPM,
) *Transport {
	return New(float64(bpm))
}
