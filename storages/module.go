package storages

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/beatconfigs"
	"github.com/reusee/taibeat/logs"
)

type Module struct {
	dscope.Module
	Configs beatconfigs.Module
	Logs    logs.Module
}

func (Module) Store(
	path beatconfigs.StorePath,
	logger logs.Logger,
) *Store {
	if path == "" {
		logger.Info("persistence disabled")
		return Unavailable(logger)
	}
	store, err := Open(string(path), logger)
	if err != nil {
		logger.Warn("persistence disabled", "path", path, "error", err)
		return Unavailable(logger)
	}
	return store
}
