package beatconfigs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/configs"
	"github.com/reusee/taibeat/logs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}
