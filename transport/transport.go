// Package transport is the engine clock shared by every patch build.
package transport

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"
)

const BeatsPerBar = 4

type State int

const (
	Stopped State = iota
	Started
)

func (s State) String() string {
	if s == Started {
		return "started"
	}
	return "stopped"
}

// Event is one firing of a scheduled source. At is in bars.
type Event struct {
	At   float64
	Fire func(seconds float64) error
}

// Source produces the events that fall in the bar window [from, to).
type Source interface {
	Window(from, to float64) []Event
}

type Transport struct {
	mu        sync.Mutex
	bpm       float64
	swing     float64
	state     State
	startedAt time.Time
	now       func() time.Time
	sources   map[int]Source
	serial    int
}

func New(bpm float64) *Transport {
	return &Transport{
		bpm:     bpm,
		now:     time.Now,
		sources: make(map[int]Source),
	}
}

// WithClock replaces the wall clock, for tests.
func (t *Transport) WithClock(now func() time.Time) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

func (t *Transport) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

func (t *Transport) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bpm = bpm
}

func (t *Transport) Swing() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swing
}

func (t *Transport) SetSwing(amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swing = min(max(amount, 0), 1)
}

func (t *Transport) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Started {
		return
	}
	t.state = Started
	t.startedAt = t.now()
}

// Stop halts the clock and rewinds the position to zero.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Stopped
	t.startedAt = time.Time{}
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) Started() bool {
	return t.State() == Started
}

// Seconds is the play position.
func (t *Transport) Seconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Started {
		return 0
	}
	return t.now().Sub(t.startedAt).Seconds()
}

func (t *Transport) BarsToSeconds(bars float64) float64 {
	return bars * BeatsPerBar * 60 / t.BPM()
}

func (t *Transport) SecondsToBars(seconds float64) float64 {
	return seconds * t.BPM() / (60 * BeatsPerBar)
}

// Schedule registers a source. The returned function removes it and is safe to call twice.
func (t *Transport) Schedule(src Source) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serial++
	id := t.serial
	t.sources[id] = src
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.sources, id)
	}
}

func (t *Transport) NumScheduled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sources)
}

func (t *Transport) snapshot() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := slices.Sorted(maps.Keys(t.sources))
	ret := make([]Source, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, t.sources[id])
	}
	return ret
}

// Render fires every scheduled event in [0, bars) in time order, offline.
// Sources added or removed by the fired callbacks do not affect the pass in progress.
func (t *Transport) Render(bars float64) error {
	var all []Event
	for _, src := range t.snapshot() {
		all = append(all, src.Window(0, bars)...)
	}
	slices.SortStableFunc(all, func(a, b Event) int {
		return cmp.Compare(a.At, b.At)
	})
	for _, e := range all {
		if err := e.Fire(t.BarsToSeconds(t.swung(e.At))); err != nil {
			return err
		}
	}
	return nil
}

const eighth = 1.0 / 8

// swung delays events on odd eighth positions by swing times a sixteenth.
func (t *Transport) swung(at float64) float64 {
	swing := t.Swing()
	if swing == 0 {
		return at
	}
	n := at / eighth
	rounded := float64(int64(n + 0.5))
	if n-rounded > 1e-9 || rounded-n > 1e-9 {
		return at
	}
	if int64(rounded)%2 == 0 {
		return at
	}
	return at + swing*eighth/2
}
