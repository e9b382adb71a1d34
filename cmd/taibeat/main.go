package main

import (
	"context"
	"os"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/beatconfigs"
	"github.com/reusee/taibeat/cmds"
	"github.com/reusee/taibeat/debugs"
	"github.com/reusee/taibeat/logs"
	"github.com/reusee/taibeat/modes"
	"github.com/reusee/taibeat/sessions"
	"github.com/reusee/taibeat/storages"
)

// App is what command words act on once the scope is built.
type App struct {
	Session       *sessions.Session
	Logger        logs.Logger
	Tap           debugs.Tap
	Eval          debugs.Eval
	FrameInterval time.Duration
	Lanes         []string
}

type action func(ctx context.Context, app App) error

var actions []action

// define registers a word whose arguments are parsed now and whose effect
// runs after the persisted session is loaded, in command line order.
func define(name, desc string, fn any) {
	cmds.Define(name, cmds.Func(fn).Desc(desc))
}

func enqueue(a action) {
	actions = append(actions, a)
}

func main() {
	ce(cmds.Execute(os.Args[1:]))
	ctx := context.Background()

	dscope.New(
		new(Module),
		modes.ForProduction(),
	).Call(func(
		session *sessions.Session,
		store *storages.Store,
		logger logs.Logger,
		tap debugs.Tap,
		eval debugs.Eval,
		frameInterval beatconfigs.FrameInterval,
		lanes beatconfigs.TimelineLanes,
	) {
		defer store.Close()
		defer session.Engine().Close()

		if err := session.Load(ctx); err != nil {
			logger.WarnContext(ctx, "restored patch does not build", "error", err)
		}

		app := App{
			Session:       session,
			Logger:        logger,
			Tap:           tap,
			Eval:          eval,
			FrameInterval: time.Duration(frameInterval),
			Lanes:         lanes,
		}
		for _, a := range actions {
			ce(a(ctx, app))
		}
	})
}
