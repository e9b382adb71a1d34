package synth

import "github.com/dop251/goja"

var defaultTimbres = map[Kind]Timbre{
	KindMembrane: {
		Envelope:   Envelope{Attack: 0.001, Decay: 0.4, Sustain: 0.01, Release: 1.4},
		Oscillator: "sine",
		PitchDecay: 0.05,
		Octaves:    10,
	},
	KindNoise: {
		Envelope: Envelope{Attack: 0.005, Decay: 0.1, Sustain: 0},
		Noise:    "white",
	},
	KindMetal: {
		Envelope:        Envelope{Attack: 0.001, Decay: 1.4, Release: 0.2},
		Frequency:       200,
		Harmonicity:     5.1,
		ModulationIndex: 32,
		Resonance:       4000,
		Octaves:         1.5,
	},
	KindSynth: {
		Envelope:   Envelope{Attack: 0.005, Decay: 0.1, Sustain: 0.3, Release: 1},
		Oscillator: "triangle",
	},
}

func parseTimbre(kind Kind, v goja.Value) Timbre {
	t := defaultTimbres[kind]
	opts, ok := v.(*goja.Object)
	if !ok {
		return t
	}
	t.PitchDecay = getNumber(opts, "pitchDecay", t.PitchDecay)
	t.Octaves = getNumber(opts, "octaves", t.Octaves)
	t.Frequency = getNumber(opts, "frequency", t.Frequency)
	t.Harmonicity = getNumber(opts, "harmonicity", t.Harmonicity)
	t.ModulationIndex = getNumber(opts, "modulationIndex", t.ModulationIndex)
	t.Resonance = getNumber(opts, "resonance", t.Resonance)
	if env, ok := opts.Get("envelope").(*goja.Object); ok {
		t.Envelope.Attack = getNumber(env, "attack", t.Envelope.Attack)
		t.Envelope.Decay = getNumber(env, "decay", t.Envelope.Decay)
		t.Envelope.Sustain = getNumber(env, "sustain", t.Envelope.Sustain)
		t.Envelope.Release = getNumber(env, "release", t.Envelope.Release)
	}
	if osc, ok := opts.Get("oscillator").(*goja.Object); ok {
		t.Oscillator = getString(osc, "type", t.Oscillator)
	}
	if noise, ok := opts.Get("noise").(*goja.Object); ok {
		t.Noise = getString(noise, "type", t.Noise)
	}
	return t
}

func getNumber(obj *goja.Object, name string, fallback float64) float64 {
	v := obj.Get(name)
	if isAbsent(v) {
		return fallback
	}
	return v.ToFloat()
}

func getString(obj *goja.Object, name string, fallback string) string {
	v := obj.Get(name)
	if isAbsent(v) {
		return fallback
	}
	return v.String()
}
