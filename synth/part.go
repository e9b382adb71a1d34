package synth

import (
	"fmt"
	"math"

	"github.com/dop251/goja"
	"github.com/reusee/taibeat/transport"
)

type partEvent struct {
	at    float64
	value goja.Value
}

// sequence is a Part or a Loop. Times are in bars.
type sequence struct {
	vm       *goja.Runtime
	clock    Clock
	callback goja.Callable

	// parts
	events  []partEvent
	loop    bool
	loopEnd float64

	// loops
	interval float64

	isLoop   bool
	startAt  float64
	cancel   func()
	disposed bool
}

var _ transport.Source = new(sequence)

func (s *sequence) Start(at float64) {
	if s.disposed {
		return
	}
	s.Stop()
	s.startAt = at
	s.cancel = s.clock.Schedule(s)
}

func (s *sequence) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *sequence) Started() bool {
	return s.cancel != nil
}

func (s *sequence) Dispose() {
	s.Stop()
	s.disposed = true
}

func (s *sequence) Window(from, to float64) (ret []transport.Event) {
	if s.isLoop {
		if s.interval <= 0 {
			return nil
		}
		k := math.Max(0, math.Ceil((from-s.startAt)/s.interval))
		for at := s.startAt + k*s.interval; at < to; at = s.startAt + k*s.interval {
			if at >= from {
				ret = append(ret, s.event(at, goja.Undefined()))
			}
			k++
		}
		return
	}

	if !s.loop {
		for _, e := range s.events {
			if at := s.startAt + e.at; at >= from && at < to {
				ret = append(ret, s.event(at, e.value))
			}
		}
		return
	}

	if s.loopEnd <= 0 {
		return nil
	}
	k := math.Max(0, math.Floor((from-s.startAt)/s.loopEnd))
	for base := s.startAt + k*s.loopEnd; base < to; base = s.startAt + k*s.loopEnd {
		for _, e := range s.events {
			if e.at >= s.loopEnd {
				continue
			}
			if at := base + e.at; at >= from && at < to {
				ret = append(ret, s.event(at, e.value))
			}
		}
		k++
	}
	return
}

func (s *sequence) event(at float64, value goja.Value) transport.Event {
	return transport.Event{
		At: at,
		Fire: func(seconds float64) (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("callback panicked: %v", p)
				}
			}()
			if s.disposed {
				return nil
			}
			_, err = s.callback(goja.Undefined(), s.vm.ToValue(seconds), value)
			return err
		},
	}
}
