package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/reusee/taibeat/codegen"
	"github.com/reusee/taibeat/diffs"
	"github.com/reusee/taibeat/events"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/vars"
)

func init() {
	define("apply", "build a patch file and make it live", func(path string) {
		enqueue(func(ctx context.Context, app App) error {
			code, err := os.ReadFile(path)
			if err != nil {
				return wrap(err)
			}
			if err := app.Session.Apply(ctx, string(code)); err != nil {
				printBuildError(err)
				return nil
			}
			pt("applied %s, %d events\n", path, len(app.Session.Engine().Events()))
			return nil
		})
	})

	define("revert", "put the last known good patch back in the editor", func() {
		enqueue(func(ctx context.Context, app App) error {
			app.Session.Revert(ctx)
			pt("reverted\n")
			return nil
		})
	})

	define("timeline", "print the events of the last build", func() {
		enqueue(func(ctx context.Context, app App) error {
			eng := app.Session.Engine()
			pt("state %v, bpm %g, volume %gdB\n", eng.State(), eng.BPM(), eng.Volume())
			if err := eng.Err(); err != nil {
				printBuildError(err)
			}
			for _, e := range inLanes(eng.Events(), app.Lanes) {
				pt("%-6s %8.4f %8.4f  %s\n", e.Lane, e.Time, e.Duration, e.Label)
			}
			return nil
		})
	})

	define("generate", "print a patch generated from a JSON event list", func(path string) {
		enqueue(func(ctx context.Context, app App) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return wrap(err)
			}
			var timeline []events.ScheduledEvent
			if err := json.Unmarshal(data, &timeline); err != nil {
				return wrap(err)
			}
			for _, e := range timeline {
				if err := e.Validate(); err != nil {
					return err
				}
			}
			pt("%s", codegen.Generate(timeline))
			return nil
		})
	})

	define("regenerate", "replace the patch with one generated from its own timeline", func() {
		enqueue(func(ctx context.Context, app App) error {
			code, err := app.Session.Regenerate(ctx)
			if err != nil {
				printBuildError(err)
				return nil
			}
			pt("%s", code)
			return nil
		})
	})

	define("diff", "print changed lines between two patch files", func(oldPath, newPath string) {
		enqueue(func(ctx context.Context, app App) error {
			previous, err := os.ReadFile(oldPath)
			if err != nil {
				return wrap(err)
			}
			current, err := os.ReadFile(newPath)
			if err != nil {
				return wrap(err)
			}
			return printDiff(diffs.Diff(string(previous), string(current)))
		})
	})

	define("changes", "print editor changes against the last known good patch", func() {
		enqueue(func(ctx context.Context, app App) error {
			return printDiff(app.Session.Changes())
		})
	})

	define("render", "bounce bars of the live patch to a wav file", func(bars float64, path string) {
		enqueue(func(ctx context.Context, app App) error {
			f, err := os.Create(path)
			if err != nil {
				return wrap(err)
			}
			defer f.Close()
			if err := app.Session.Render(f, bars); err != nil {
				return wrap(err)
			}
			pt("rendered %g bars to %s\n", bars, path)
			return f.Close()
		})
	})

	define("play", "run the transport for a number of seconds and print the position", func(seconds float64) {
		enqueue(func(ctx context.Context, app App) error {
			eng := app.Session.Engine()
			if !eng.Play() {
				return errors.New("no patch installed")
			}
			defer eng.Stop()
			ctx, cancel := context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
			defer cancel()
			eng.WatchPosition(ctx, app.FrameInterval, func(at float64) {
				pt("\r%7.3fs", at)
			})
			<-ctx.Done()
			pt("\n")
			return nil
		})
	})

	define("tempo", "set the tempo in bpm", func(bpm float64) {
		enqueue(func(ctx context.Context, app App) error {
			if bpm <= 0 {
				return fmt.Errorf("bad tempo: %g", bpm)
			}
			app.Session.SetBPM(ctx, bpm)
			return nil
		})
	})

	define("gain", "set the output gain in dB for the next build", func(db float64) {
		enqueue(func(ctx context.Context, app App) error {
			app.Session.SetVolume(ctx, db)
			return nil
		})
	})

	define("save", "persist the editor state, optionally under a new title", func(title *string) {
		enqueue(func(ctx context.Context, app App) error {
			entry := app.Session.Save(ctx, vars.DerefOr(title, ""))
			pt("saved %s at %s\n", entry.ID, entry.At.Format(time.RFC3339))
			return nil
		})
	})

	define("export", "write the patch to a file: .json structured, .mid timeline, else plain", func(path string) {
		enqueue(func(ctx context.Context, app App) error {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".json":
				data, err := app.Session.ExportStructured()
				if err != nil {
					return wrap(err)
				}
				return writeFile(path, data)
			case ".mid", ".midi":
				f, err := os.Create(path)
				if err != nil {
					return wrap(err)
				}
				defer f.Close()
				if err := app.Session.ExportMIDI(f); err != nil {
					return wrap(err)
				}
				return f.Close()
			}
			return writeFile(path, app.Session.ExportPlain())
		})
	})

	define("import", "load an exported file and build it", func(path string) {
		enqueue(func(ctx context.Context, app App) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return wrap(err)
			}
			if err := app.Session.Import(ctx, data); err != nil {
				printBuildError(err)
			}
			return nil
		})
	})

	define("history", "list applied and saved versions", func() {
		enqueue(func(ctx context.Context, app App) error {
			for _, e := range app.Session.History() {
				pt("%s  %-7s  %s  %d lines\n", e.ID, e.Label, e.At.Format(time.RFC3339), strings.Count(e.Code, "\n")+1)
			}
			return nil
		})
	})

	define("restore", "build the version with the given history id", func(id string) {
		enqueue(func(ctx context.Context, app App) error {
			return app.Session.Restore(ctx, id)
		})
	})

	define("edit", "change the patch with a plain language request", func(message string) {
		enqueue(func(ctx context.Context, app App) error {
			result, err := app.Session.Edit(ctx, message)
			pt("%s\n", result.Message)
			if err != nil {
				printBuildError(err)
			}
			return nil
		})
	})

	define("debug", "open a starlark repl on the engine state", func() {
		enqueue(func(ctx context.Context, app App) error {
			app.Tap(ctx, "engine", globals(app))
			return nil
		})
	})

	define("eval", "evaluate a starlark expression on the engine state", func(expr string) {
		enqueue(func(ctx context.Context, app App) error {
			v, err := app.Eval(ctx, expr, globals(app))
			if err != nil {
				return err
			}
			pt("%s\n", v)
			return nil
		})
	})
}

// inLanes returns the events of the given lanes in time order. No lanes means all.
func inLanes(timeline []events.ScheduledEvent, lanes []string) []events.ScheduledEvent {
	var ret []events.ScheduledEvent
	for _, e := range timeline {
		if len(lanes) == 0 || slices.Contains(lanes, e.Lane) {
			ret = append(ret, e)
		}
	}
	events.SortByTime(ret)
	return ret
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wrap(err)
	}
	return nil
}

func globals(app App) map[string]any {
	eng := app.Session.Engine()
	return map[string]any{
		"events":          eng.Events(),
		"state":           eng.State().String(),
		"error":           eng.Err(),
		"last_known_good": eng.LastKnownGood(),
		"code":            app.Session.Code(),
		"bpm":             eng.BPM(),
		"volume":          eng.Volume(),
		"title":           app.Session.Title(),
		"history":         app.Session.History(),
	}
}

func printBuildError(err error) {
	var buildErr *sandbox.BuildError
	if errors.As(err, &buildErr) {
		fmt.Fprintf(os.Stderr, "build failed (%v): %v\n", buildErr.Kind, buildErr)
		return
	}
	fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
}

func printDiff(decorations []diffs.LineChange, hunks []diffs.ChangeHunk) error {
	if hunks == nil {
		pt("no changes\n")
		return nil
	}
	for _, h := range hunks {
		pt("%-6s %d-%d\n", h.Type, h.StartLine, h.EndLine)
	}
	pt("%d changed lines\n", len(decorations))
	return nil
}
