package sandbox

import (
	"errors"
	"math"

	"github.com/dop251/goja"
	"github.com/reusee/taibeat/events"
)

// newContext builds the object passed to the entry point.
func newContext(vm *goja.Runtime, caps Capabilities, binding Binding) *goja.Object {
	ctx := vm.NewObject()

	if tr := caps.Transport; tr != nil {
		transport := vm.NewObject()
		bpm := vm.NewObject()
		defineAccessor(vm, bpm, "value",
			func() any { return tr.BPM() },
			func(v goja.Value) { tr.SetBPM(v.ToFloat()) },
		)
		must(transport.Set("bpm", bpm))
		defineAccessor(vm, transport, "swing",
			func() any { return tr.Swing() },
			func(v goja.Value) { tr.SetSwing(v.ToFloat()) },
		)
		defineAccessor(vm, transport, "seconds",
			func() any { return tr.Seconds() },
			nil,
		)
		must(transport.Set("start", func() { tr.Start() }))
		must(transport.Set("stop", func() { tr.Stop() }))
		must(ctx.Set("Transport", transport))
	}

	must(ctx.Set("registerEvent", func(call goja.FunctionCall) goja.Value {
		e, err := toEvent(vm, call.Argument(0))
		if err == nil && caps.Register != nil {
			err = caps.Register(e)
		}
		if err != nil {
			panic(vm.NewTypeError("registerEvent: " + err.Error()))
		}
		return goja.Undefined()
	}))

	must(ctx.Set("destination", binding.Wrap(caps.Destination)))
	must(ctx.Set("bpm", caps.BPM))
	must(ctx.Set("volume", caps.Volume))
	must(ctx.Set("Tone", binding.Handle()))

	return ctx
}

func defineAccessor(vm *goja.Runtime, obj *goja.Object, name string, get func() any, set func(goja.Value)) {
	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(get())
	})
	var setter goja.Value
	if set != nil {
		setter = vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	must(obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE))
}

func toEvent(vm *goja.Runtime, v goja.Value) (events.ScheduledEvent, error) {
	if isAbsent(v) {
		return events.ScheduledEvent{}, errors.New("expecting an event object")
	}
	obj := v.ToObject(vm)
	return events.ScheduledEvent{
		Time:     number(obj.Get("time")),
		Duration: number(obj.Get("duration")),
		Label:    text(obj.Get("label")),
		Lane:     text(obj.Get("lane")),
	}, nil
}

func isAbsent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func number(v goja.Value) float64 {
	if isAbsent(v) {
		return math.NaN()
	}
	return v.ToFloat()
}

func text(v goja.Value) string {
	if isAbsent(v) {
		return ""
	}
	return v.String()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
