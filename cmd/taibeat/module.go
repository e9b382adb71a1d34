package main

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/debugs"
	"github.com/reusee/taibeat/sessions"
)

type Module struct {
	dscope.Module
	Sessions sessions.Module
	Debugs   debugs.Module
}
