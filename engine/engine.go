// Package engine owns the live patch. It applies, reverts, plays and stops,
// keeps the last text that built and keeps the transport consistent across
// rebuilds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reusee/taibeat/events"
	"github.com/reusee/taibeat/logs"
	"github.com/reusee/taibeat/patches"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/synth"
	"github.com/reusee/taibeat/transport"
)

type State int

const (
	Idle State = iota
	Built
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Built:
		return "built"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrReentrantApply = errors.New("apply called while a build is running")
	ErrClosed         = errors.New("engine closed")
)

type Engine struct {
	transport   *transport.Transport
	library     sandbox.Library
	destination *synth.Destination
	logger      logs.Logger

	applying atomic.Bool

	mu            sync.Mutex
	state         State
	handle        *sandbox.Handle
	events        []events.ScheduledEvent
	err           error
	lastKnownGood string
	volume        float64
	closed        bool

	watchCtx    context.Context
	stopWatches context.CancelFunc
	watches     sync.WaitGroup
}

func New(
	tr *transport.Transport,
	library sandbox.Library,
	destination *synth.Destination,
	logger logs.Logger,
	volume float64,
) *Engine {
	watchCtx, stopWatches := context.WithCancel(context.Background())
	return &Engine{
		transport:     tr,
		library:       library,
		destination:   destination,
		logger:        logger,
		lastKnownGood: strings.TrimSpace(patches.Default),
		volume:        volume,
		watchCtx:      watchCtx,
		stopWatches:   stopWatches,
	}
}

// Apply builds code and makes it the live patch. Build failures are recorded
// as the current error and returned; the last known good text is only
// replaced on success.
//
// The previous handle is disposed and the timeline cleared before the new
// text is evaluated, so a failed build leaves nothing installed and publishes
// only the events registered before the failure. The transport is stopped
// during the build and restarted only if it was running and the build succeeded.
func (e *Engine) Apply(ctx context.Context, code string) error {
	if !e.applying.CompareAndSwap(false, true) {
		return ErrReentrantApply
	}
	defer e.applying.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	ctx, _ = logs.NewBuild(ctx)
	start := time.Now()

	wasRunning := e.transport.Started()
	e.transport.Stop()
	e.disposeHandle(ctx)
	registry := events.NewRegistry()

	handle, err := sandbox.Evaluate(code, sandbox.Capabilities{
		Transport:   e.transport,
		Register:    registry.Register,
		Destination: e.destination,
		BPM:         e.transport.BPM(),
		Volume:      e.volume,
		Library:     e.library,
	})
	registry.Seal()
	e.events = registry.Snapshot()

	if err != nil {
		e.state = Errored
		e.err = err
		// the patch may have started the clock before failing
		e.transport.Stop()
		e.logger.WarnContext(ctx, "patch failed",
			"error", err,
			"events", len(e.events),
		)
		return logs.WrapBuild(ctx, err)
	}

	e.handle = handle
	e.state = Built
	e.err = nil
	e.lastKnownGood = code
	if wasRunning {
		e.transport.Start()
	}
	e.logger.InfoContext(ctx, "patch applied",
		"events", len(e.events),
		"duration", time.Since(start),
		"playing", e.transport.Started(),
	)
	return nil
}

func (e *Engine) disposeHandle(ctx context.Context) {
	if e.handle == nil {
		return
	}
	if err := e.handle.Dispose(); err != nil {
		e.logger.WarnContext(ctx, "dispose failed", "error", err)
	}
	e.handle = nil
}

// Revert clears the current error and returns the last known good text. It
// does not rebuild.
func (e *Engine) Revert() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = nil
	if e.handle != nil {
		e.state = Built
	} else {
		e.state = Idle
	}
	return e.lastKnownGood
}

// Play starts the transport when a patch is installed.
func (e *Engine) Play() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == nil {
		return false
	}
	e.transport.Start()
	return true
}

func (e *Engine) Stop() {
	e.transport.Stop()
}

// SetBPM changes the tempo immediately.
func (e *Engine) SetBPM(bpm float64) {
	e.transport.SetBPM(bpm)
}

func (e *Engine) BPM() float64 {
	return e.transport.BPM()
}

// SetVolume records the output gain in dB. Patches receive it on the next
// apply; the live patch keeps the gain it was built with.
func (e *Engine) SetVolume(db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = db
}

func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Events returns a copy of the timeline of the last build attempt.
func (e *Engine) Events() []events.ScheduledEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Engine) LastKnownGood() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastKnownGood
}

func (e *Engine) HasHandle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle != nil
}

func (e *Engine) Playing() bool {
	return e.transport.Started()
}

// Position is the play position in seconds, zero when stopped.
func (e *Engine) Position() float64 {
	return e.transport.Seconds()
}

// Render runs the live patch offline over bars and returns the notes that
// reached the destination.
func (e *Engine) Render(bars float64) ([]synth.Note, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == nil {
		return nil, errors.New("no patch installed")
	}
	e.destination.Reset()
	if err := e.transport.Render(bars); err != nil {
		return nil, err
	}
	return e.destination.Score(), nil
}

// Close stops position watchers, disposes the live patch and stops the transport.
func (e *Engine) Close() {
	e.stopWatches()
	e.watches.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.transport.Stop()
	e.disposeHandle(context.Background())
}
