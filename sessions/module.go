package sessions

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/beatconfigs"
	"github.com/reusee/taibeat/engine"
	"github.com/reusee/taibeat/logs"
	"github.com/reusee/taibeat/storages"
)

type Module struct {
	dscope.Module
	Engine   engine.Module
	Storages storages.Module
}

func (Module) Session(
	eng *engine.Engine,
	store *storages.Store,
	logger logs.Logger,
	sampleRate beatconfigs.SampleRate,
) *Session {
	return New(eng, store, logger, int(sampleRate))
}
