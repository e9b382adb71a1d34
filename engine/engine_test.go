package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/codegen"
	"github.com/reusee/taibeat/events"
	"github.com/reusee/taibeat/modes"
	"github.com/reusee/taibeat/patches"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/synth"
	"github.com/reusee/taibeat/transport"
)

type countingLibrary struct {
	sandbox.Library
	bindings []*countingBinding
	onBind   func()
}

func (c *countingLibrary) Bind(vm *goja.Runtime) sandbox.Binding {
	if c.onBind != nil {
		c.onBind()
	}
	b := &countingBinding{
		Binding: c.Library.Bind(vm),
	}
	c.bindings = append(c.bindings, b)
	return b
}

type countingBinding struct {
	sandbox.Binding
	released int
}

func (c *countingBinding) Release() {
	c.released++
	c.Binding.Release()
}

func withEngine(t *testing.T, fn func(e *Engine, tr *transport.Transport, lib *countingLibrary)) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Fork(
		func(tr *transport.Transport, dest *synth.Destination) sandbox.Library {
			return &countingLibrary{
				Library: synth.New(tr, dest),
			}
		},
	).Call(func(
		e *Engine,
		tr *transport.Transport,
		lib sandbox.Library,
	) {
		defer e.Close()
		fn(e, tr, lib.(*countingLibrary))
	})
}

const valid = `function buildPatch(ctx) {
  ctx.registerEvent({ time: 0, duration: 1, label: "x", lane: "kick" });
  return { dispose: function() {} };
}`

const registersThenThrows = `function buildPatch(ctx) {
  ctx.registerEvent({ time: 0, duration: 1, label: "a", lane: "kick" });
  ctx.registerEvent({ time: 1, duration: 1, label: "b", lane: "kick" });
  throw new Error("halfway");
}`

var failing = map[string]struct {
	code   string
	target error
}{
	"no entry point": {`function other() {}`, sandbox.ErrNoEntryPoint},
	"parse error":    {`function buildPatch(ctx) {`, sandbox.ErrParse},
	"not callable":   {`var buildPatch = 1;`, sandbox.ErrNotCallable},
	"runtime error":  {registersThenThrows, sandbox.ErrRuntime},
	"no dispose":     {`function buildPatch(ctx) { return {}; }`, sandbox.ErrRuntime},
	"starts clock":   {`function buildPatch(ctx) { ctx.Transport.start(); throw new Error("late"); }`, sandbox.ErrRuntime},
}

func TestInitialState(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		if e.State() != Idle {
			t.Fatalf("got %v", e.State())
		}
		if e.LastKnownGood() != strings.TrimSpace(patches.Default) {
			t.Fatal("should start from the default patch")
		}
		if len(e.Events()) != 0 || e.Err() != nil {
			t.Fatal("should be empty")
		}
		if e.Play() {
			t.Fatal("nothing to play")
		}
		if tr.Started() {
			t.Fatal("should stay stopped")
		}
	})
}

func TestApplyDefault(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		if err := e.Apply(context.Background(), patches.Default); err != nil {
			t.Fatal(err)
		}
		if e.State() != Built {
			t.Fatalf("got %v", e.State())
		}
		if n := len(e.Events()); n != 70 {
			t.Fatalf("got %v", n)
		}
		if e.LastKnownGood() != patches.Default {
			t.Fatal("should update last known good")
		}
		if !e.Play() || !tr.Started() {
			t.Fatal("should play")
		}
		e.Stop()
		if tr.Started() {
			t.Fatal("should stop")
		}
	})
}

func TestFailedApplyKeepsLastKnownGood(t *testing.T) {
	for name, c := range failing {
		t.Run(name, func(t *testing.T) {
			withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
				ctx := context.Background()
				if err := e.Apply(ctx, valid); err != nil {
					t.Fatal(err)
				}
				err := e.Apply(ctx, c.code)
				if !errors.Is(err, c.target) {
					t.Fatalf("got %v", err)
				}
				if !errors.Is(e.Err(), c.target) {
					t.Fatalf("got %v", e.Err())
				}
				if e.State() != Errored {
					t.Fatalf("got %v", e.State())
				}
				if e.LastKnownGood() != valid {
					t.Fatal("last known good changed")
				}
			})
		})
	}
}

func TestCompileFailureLeavesNothingInstalled(t *testing.T) {
	for _, code := range []string{
		"function buildPatch(ctx) {",
		"export default {",
		"function other() {}",
	} {
		withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
			ctx := context.Background()
			if err := e.Apply(ctx, valid); err != nil {
				t.Fatal(err)
			}
			e.Play()
			if err := e.Apply(ctx, code); err == nil {
				t.Fatal("should fail")
			}
			if e.HasHandle() {
				t.Fatal("no handle should be installed")
			}
			if got := e.Events(); len(got) != 0 {
				t.Fatalf("got %+v", got)
			}
			if lib.bindings[0].released != 1 {
				t.Fatalf("got %v", lib.bindings[0].released)
			}
			if e.Play() || tr.Started() {
				t.Fatal("should not play without a handle")
			}
			if e.State() != Errored || e.LastKnownGood() != valid {
				t.Fatalf("got %v", e.State())
			}
		})
	}
}

func TestRuntimeFailurePublishesPartialEvents(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		if err := e.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		if err := e.Apply(ctx, registersThenThrows); err == nil {
			t.Fatal("should fail")
		}
		got := e.Events()
		if len(got) != 2 || got[0].Label != "a" || got[1].Label != "b" {
			t.Fatalf("got %+v", got)
		}
		if e.HasHandle() {
			t.Fatal("no handle should be installed")
		}
		if e.Play() || tr.Started() {
			t.Fatal("should not play without a handle")
		}
	})
}

func TestSingleLiveHandle(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		sequence := []string{
			valid,
			patches.Default,
			registersThenThrows,
			valid,
			`var buildPatch = 1;`,
			codegen.Generate(e.Events()),
			`function buildPatch(ctx) { return { dispose: function() { throw new Error("dispose broke"); } }; }`,
			valid,
			`function nope() {}`,
			valid,
		}
		for _, code := range sequence {
			e.Apply(ctx, code)
			live := 0
			for _, b := range lib.bindings {
				switch b.released {
				case 0:
					live++
				case 1:
				default:
					t.Fatalf("released %d times", b.released)
				}
			}
			if live > 1 {
				t.Fatalf("%d live handles", live)
			}
			if e.HasHandle() != (live == 1) {
				t.Fatal("handle and binding disagree")
			}
		}
		e.Close()
		for _, b := range lib.bindings {
			if b.released != 1 {
				t.Fatalf("got %v", b.released)
			}
		}
	})
}

func TestTransportContinuity(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		if err := e.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}

		// running stays running
		e.Play()
		if err := e.Apply(ctx, patches.Default); err != nil {
			t.Fatal(err)
		}
		if !tr.Started() {
			t.Fatal("should keep running")
		}

		// stopped stays stopped
		e.Stop()
		if err := e.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		if tr.Started() {
			t.Fatal("should stay stopped")
		}
	})

	for name, c := range failing {
		t.Run(name, func(t *testing.T) {
			withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
				ctx := context.Background()
				if err := e.Apply(ctx, valid); err != nil {
					t.Fatal(err)
				}
				e.Play()
				e.Apply(ctx, c.code)
				if tr.Started() {
					t.Fatal("failed apply should leave the transport stopped")
				}
			})
		})
	}
}

func TestRevert(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		if err := e.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		if got := e.Revert(); got != valid {
			t.Fatalf("got %v", got)
		}
		if e.State() != Built {
			t.Fatalf("got %v", e.State())
		}

		e.Apply(ctx, "broken")
		if e.Err() == nil {
			t.Fatal("should fail")
		}
		if got := e.Revert(); got != valid {
			t.Fatalf("got %v", got)
		}
		if e.Err() != nil {
			t.Fatal("should clear the error")
		}
		// the failed apply disposed the previous patch
		if e.State() != Idle {
			t.Fatalf("got %v", e.State())
		}

		e.Apply(ctx, registersThenThrows)
		e.Revert()
		if e.State() != Idle {
			t.Fatalf("got %v", e.State())
		}
	})
}

func TestTempoLiveGainLazy(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		report := `function buildPatch(ctx) {
  ctx.registerEvent({ time: 0, duration: 1, label: ctx.volume + "/" + ctx.bpm, lane: "meta" });
  return { dispose: function() {} };
}`
		if err := e.Apply(ctx, report); err != nil {
			t.Fatal(err)
		}

		e.SetBPM(98)
		if tr.BPM() != 98 {
			t.Fatal("tempo should apply immediately")
		}
		e.SetVolume(-6)
		if got := e.Events()[0].Label; got != "0/120" {
			t.Fatalf("got %v", got)
		}

		if err := e.Apply(ctx, report); err != nil {
			t.Fatal(err)
		}
		if got := e.Events()[0].Label; got != "-6/98" {
			t.Fatalf("got %v", got)
		}
	})
}

func TestReentrantApply(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		var inner error
		lib.onBind = func() {
			lib.onBind = nil
			inner = e.Apply(ctx, valid)
		}
		if err := e.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		if !errors.Is(inner, ErrReentrantApply) {
			t.Fatalf("got %v", inner)
		}
		if e.State() != Built {
			t.Fatalf("got %v", e.State())
		}
	})
}

func TestRender(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		if _, err := e.Render(1); err == nil {
			t.Fatal("nothing to render")
		}
		code := codegen.Generate([]events.ScheduledEvent{
			{Time: 0, Duration: 0.25, Label: "Kick", Lane: "kick"},
			{Time: 0.5, Duration: 0.25, Label: "Snare", Lane: "snare"},
		})
		if err := e.Apply(context.Background(), code); err != nil {
			t.Fatal(err)
		}
		score, err := e.Render(codegen.LoopBars * 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(score) != 4 {
			t.Fatalf("got %+v", score)
		}
		// rendering twice starts from an empty score
		score, _ = e.Render(codegen.LoopBars)
		if len(score) != 2 {
			t.Fatalf("got %+v", score)
		}
	})
}

func TestWatchPosition(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		if err := e.Apply(context.Background(), valid); err != nil {
			t.Fatal(err)
		}
		positions := make(chan float64, 1)
		e.WatchPosition(context.Background(), time.Millisecond, func(seconds float64) {
			select {
			case positions <- seconds:
			default:
			}
		})
		e.Play()
		select {
		case p := <-positions:
			if p < 0 {
				t.Fatalf("got %v", p)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no position reported")
		}
	})
}

func TestClose(t *testing.T) {
	withEngine(t, func(e *Engine, tr *transport.Transport, lib *countingLibrary) {
		ctx := context.Background()
		if err := e.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		e.Play()
		e.Close()
		if tr.Started() || e.HasHandle() {
			t.Fatal("should tear down")
		}
		if err := e.Apply(ctx, valid); !errors.Is(err, ErrClosed) {
			t.Fatalf("got %v", err)
		}
		// idempotent
		e.Close()
	})
}
