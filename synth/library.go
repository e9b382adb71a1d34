// Package synth is the audio library patches see as Tone. It builds a graph
// of nodes, schedules parts and loops on the engine transport and records
// every note that reaches the master destination.
package synth

import (
	"strconv"

	"github.com/dop251/goja"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/transport"
)

// Clock is what the library needs from the engine transport.
type Clock interface {
	BPM() float64
	Seconds() float64
	Schedule(transport.Source) (cancel func())
}

type Library struct {
	Clock       Clock
	Destination *Destination
}

var _ sandbox.Library = new(Library)

func New(clock Clock, dest *Destination) *Library {
	return &Library{
		Clock:       clock,
		Destination: dest,
	}
}

func (l *Library) Bind(vm *goja.Runtime) sandbox.Binding {
	b := &binding{
		lib:   l,
		vm:    vm,
		nodes: make(map[*goja.Object]*Node),
	}
	b.destination = vm.NewObject()
	b.nodes[b.destination] = l.Destination.Node()
	b.tone = b.newTone()
	return b
}

type binding struct {
	lib         *Library
	vm          *goja.Runtime
	tone        *goja.Object
	destination *goja.Object
	nodes       map[*goja.Object]*Node
	created     []*Node
	sequences   []*sequence
}

var _ sandbox.Binding = new(binding)

func (b *binding) Handle() goja.Value {
	return b.tone
}

func (b *binding) Wrap(v any) goja.Value {
	if d, ok := v.(*Destination); ok && d == b.lib.Destination {
		return b.destination
	}
	return b.vm.ToValue(v)
}

// Release stops every part and loop and disposes every node created through
// this binding. The destination is engine owned and stays.
func (b *binding) Release() {
	for _, s := range b.sequences {
		s.Dispose()
	}
	for _, n := range b.created {
		n.Dispose()
	}
}

func (b *binding) newTone() *goja.Object {
	tone := b.vm.NewObject()
	b.set(tone, "Destination", b.destination)
	b.set(tone, "now", func() float64 {
		return b.lib.Clock.Seconds()
	})

	b.set(tone, "Volume", b.constructor(func(call goja.ConstructorCall) *Node {
		n := &Node{Kind: KindVolume}
		if v := call.Argument(0); !isAbsent(v) {
			n.GainDB = v.ToFloat()
		}
		obj := call.This
		b.set(obj, "volume", b.param(&n.GainDB))
		return n
	}))

	b.set(tone, "Filter", b.constructor(func(call goja.ConstructorCall) *Node {
		n := &Node{
			Kind:       KindFilter,
			Cutoff:     350,
			FilterType: "lowpass",
		}
		if opts, ok := call.Argument(0).(*goja.Object); ok {
			n.Cutoff = getNumber(opts, "frequency", n.Cutoff)
			n.FilterType = getString(opts, "type", n.FilterType)
		} else {
			if v := call.Argument(0); !isAbsent(v) {
				n.Cutoff = v.ToFloat()
			}
			if v := call.Argument(1); !isAbsent(v) {
				n.FilterType = v.String()
			}
		}
		obj := call.This
		b.set(obj, "frequency", b.param(&n.Cutoff))
		b.accessor(obj, "type",
			func() any { return n.FilterType },
			func(v goja.Value) { n.FilterType = v.String() },
		)
		return n
	}))

	b.set(tone, "Reverb", b.constructor(func(call goja.ConstructorCall) *Node {
		n := &Node{
			Kind:      KindReverb,
			Wet:       1,
			DecayTime: 1.5,
		}
		if opts, ok := call.Argument(0).(*goja.Object); ok {
			n.DecayTime = getNumber(opts, "decay", n.DecayTime)
			n.Wet = getNumber(opts, "wet", n.Wet)
		} else if v := call.Argument(0); !isAbsent(v) {
			n.DecayTime = v.ToFloat()
		}
		obj := call.This
		b.set(obj, "wet", b.param(&n.Wet))
		b.accessor(obj, "decay",
			func() any { return n.DecayTime },
			func(v goja.Value) { n.DecayTime = v.ToFloat() },
		)
		return n
	}))

	for name, kind := range map[string]Kind{
		"MembraneSynth": KindMembrane,
		"NoiseSynth":    KindNoise,
		"MetalSynth":    KindMetal,
		"Synth":         KindSynth,
	} {
		b.set(tone, name, b.constructor(func(call goja.ConstructorCall) *Node {
			n := &Node{
				Kind:   kind,
				Timbre: parseTimbre(kind, call.Argument(0)),
			}
			if opts, ok := call.Argument(0).(*goja.Object); ok {
				n.GainDB = getNumber(opts, "volume", 0)
			}
			obj := call.This
			b.set(obj, "volume", b.param(&n.GainDB))
			b.set(obj, "triggerAttackRelease", func(call goja.FunctionCall) goja.Value {
				b.trigger(n, call.Arguments)
				return obj
			})
			return n
		}))
	}

	b.set(tone, "Part", b.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		s := b.newSequence(call.Argument(0))
		s.loopEnd = 1
		if list, ok := call.Argument(1).(*goja.Object); ok {
			for i := range arrayLength(list) {
				s.events = append(s.events, b.partEvent(list.Get(strconv.Itoa(i))))
			}
		}
		obj := call.This
		b.sequenceMethods(obj, s)
		b.accessor(obj, "loop",
			func() any { return s.loop },
			func(v goja.Value) { s.loop = v.ToBoolean() },
		)
		b.accessor(obj, "loopEnd",
			func() any { return s.loopEnd },
			func(v goja.Value) { s.loopEnd = b.bars(v) },
		)
		b.set(obj, "add", func(call goja.FunctionCall) goja.Value {
			s.events = append(s.events, partEvent{
				at:    b.bars(call.Argument(0)),
				value: call.Argument(1),
			})
			return obj
		})
		return nil
	}))

	b.set(tone, "Loop", b.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		s := b.newSequence(call.Argument(0))
		s.isLoop = true
		s.interval = 0.25
		if v := call.Argument(1); !isAbsent(v) {
			s.interval = b.bars(v)
		}
		obj := call.This
		b.sequenceMethods(obj, s)
		b.accessor(obj, "interval",
			func() any { return s.interval },
			func(v goja.Value) { s.interval = b.bars(v) },
		)
		return nil
	}))

	return tone
}

// constructor wraps a node factory into a native constructor and attaches the
// methods every node has.
func (b *binding) constructor(fn func(goja.ConstructorCall) *Node) goja.Value {
	return b.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		n := fn(call)
		obj := call.This
		b.nodes[obj] = n
		b.created = append(b.created, n)

		b.set(obj, "connect", func(call goja.FunctionCall) goja.Value {
			n.Connect(b.resolve(call.Argument(0)))
			return obj
		})
		toDestination := func(goja.FunctionCall) goja.Value {
			n.Connect(b.lib.Destination.Node())
			return obj
		}
		b.set(obj, "toDestination", toDestination)
		b.set(obj, "toMaster", toDestination)
		b.set(obj, "disconnect", func(goja.FunctionCall) goja.Value {
			n.Disconnect()
			return obj
		})
		b.set(obj, "dispose", func(goja.FunctionCall) goja.Value {
			n.Dispose()
			return obj
		})
		return nil
	})
}

func (b *binding) resolve(v goja.Value) *Node {
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := b.nodes[obj]; ok {
			return n
		}
	}
	panic(b.vm.NewTypeError("connect: not an audio node"))
}

func (b *binding) newSequence(callback goja.Value) *sequence {
	fn, ok := goja.AssertFunction(callback)
	if !ok {
		panic(b.vm.NewTypeError("expecting a callback function"))
	}
	s := &sequence{
		vm:       b.vm,
		clock:    b.lib.Clock,
		callback: fn,
	}
	b.sequences = append(b.sequences, s)
	return s
}

func (b *binding) sequenceMethods(obj *goja.Object, s *sequence) {
	b.set(obj, "start", func(call goja.FunctionCall) goja.Value {
		at := 0.0
		if v := call.Argument(0); !isAbsent(v) {
			at = b.bars(v)
		}
		s.Start(at)
		return obj
	})
	b.set(obj, "stop", func(goja.FunctionCall) goja.Value {
		s.Stop()
		return obj
	})
	b.set(obj, "dispose", func(goja.FunctionCall) goja.Value {
		s.Dispose()
		return obj
	})
	b.accessor(obj, "state",
		func() any {
			if s.Started() {
				return "started"
			}
			return "stopped"
		},
		nil,
	)
}

func (b *binding) partEvent(v goja.Value) partEvent {
	obj, ok := v.(*goja.Object)
	if !ok {
		panic(b.vm.NewTypeError("part events must be [time, value] pairs or objects with a time"))
	}
	if obj.ClassName() == "Array" {
		return partEvent{
			at:    b.bars(obj.Get("0")),
			value: valueOrUndefined(obj.Get("1")),
		}
	}
	return partEvent{
		at:    b.bars(obj.Get("time")),
		value: obj,
	}
}

func (b *binding) trigger(n *Node, args []goja.Value) {
	arg := func(i int) goja.Value {
		if i < len(args) {
			return args[i]
		}
		return goja.Undefined()
	}

	pitched := true
	switch n.Kind {
	case KindNoise:
		pitched = false
	case KindMetal:
		pitched = len(args) >= 3 || isNoteName(arg(0))
	}

	hz := n.Timbre.Frequency
	i := 0
	if pitched {
		hz = b.frequency(arg(0))
		i = 1
	}
	duration := b.seconds(arg(i), 0)
	start := b.seconds(arg(i+1), b.lib.Clock.Seconds())
	velocity := 1.0
	if v := arg(i + 2); !isAbsent(v) {
		velocity = v.ToFloat()
	}
	n.Trigger(hz, start, duration, velocity)
}

func (b *binding) frequency(v goja.Value) float64 {
	if isAbsent(v) {
		panic(b.vm.NewTypeError("missing note"))
	}
	if s, ok := v.Export().(string); ok {
		hz, err := ParseNote(s)
		if err != nil {
			panic(b.vm.NewTypeError(err.Error()))
		}
		return hz
	}
	return v.ToFloat()
}

// bars reads a scheduling position. Numbers are bars.
func (b *binding) bars(v goja.Value) float64 {
	if isAbsent(v) {
		return 0
	}
	if s, ok := v.Export().(string); ok {
		bars, err := ParseBars(s)
		if err != nil {
			panic(b.vm.NewTypeError(err.Error()))
		}
		return bars
	}
	return v.ToFloat()
}

// seconds reads a trigger time or duration. Numbers are seconds, notation
// strings are converted at the current tempo.
func (b *binding) seconds(v goja.Value, fallback float64) float64 {
	if isAbsent(v) {
		return fallback
	}
	if s, ok := v.Export().(string); ok {
		bars, err := ParseBars(s)
		if err != nil {
			panic(b.vm.NewTypeError(err.Error()))
		}
		return bars * transport.BeatsPerBar * 60 / b.lib.Clock.BPM()
	}
	return v.ToFloat()
}

func (b *binding) param(ptr *float64) *goja.Object {
	p := b.vm.NewObject()
	set := func(v goja.Value) {
		*ptr = v.ToFloat()
	}
	b.accessor(p, "value",
		func() any { return *ptr },
		set,
	)
	assign := func(call goja.FunctionCall) goja.Value {
		set(call.Argument(0))
		return p
	}
	b.set(p, "rampTo", assign)
	b.set(p, "setValueAtTime", assign)
	return p
}

func (b *binding) set(obj *goja.Object, name string, v any) {
	if err := obj.Set(name, v); err != nil {
		panic(err)
	}
}

func (b *binding) accessor(obj *goja.Object, name string, get func() any, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return b.vm.ToValue(get())
	})
	var setter goja.Value
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		panic(err)
	}
}

func isAbsent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func arrayLength(obj *goja.Object) int {
	v := obj.Get("length")
	if isAbsent(v) {
		return 0
	}
	return int(v.ToInteger())
}

func valueOrUndefined(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}

func isNoteName(v goja.Value) bool {
	if isAbsent(v) {
		return false
	}
	s, ok := v.Export().(string)
	return ok && notePattern.MatchString(s)
}
