package sandbox

import (
	"github.com/dop251/goja"
	"github.com/reusee/taibeat/events"
)

// Transport is the part of the engine clock a patch may touch.
type Transport interface {
	BPM() float64
	SetBPM(float64)
	Swing() float64
	SetSwing(float64)
	Start()
	Stop()
	Seconds() float64
}

// Library installs an audio-synthesis toolkit into a runtime.
type Library interface {
	Bind(vm *goja.Runtime) Binding
}

// Binding is a library bound to one runtime. Release disposes whatever was
// created through it that is still alive.
type Binding interface {
	Handle() goja.Value
	Wrap(v any) goja.Value
	Release()
}

// Capabilities is everything a patch receives at build time. It is built
// fresh for every build and not kept once the build returns.
type Capabilities struct {
	Transport   Transport
	Register    func(events.ScheduledEvent) error
	Destination any
	BPM         float64
	Volume      float64
	Library     Library
}
