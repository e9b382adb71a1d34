// Package bounce renders a score offline to PCM samples and WAV files.
package bounce

import (
	"math"
	"math/rand/v2"

	"github.com/reusee/taibeat/synth"
)

// MaxNoteSeconds bounds the rendered length of a single note.
const MaxNoteSeconds = 8

// headroom keeps a handful of overlapping voices out of clipping
const headroom = 0.5

var metalRatios = []float64{1, 1.483, 1.932, 2.546, 2.630, 3.897}

// Mix renders score into mono samples in [-1, 1]. A length of zero or less
// extends the output to the end of the last note.
func Mix(score []synth.Note, sampleRate int, length float64) []float64 {
	if length <= 0 {
		for _, note := range score {
			length = math.Max(length, note.Start+noteSeconds(note))
		}
	}
	n := int(math.Ceil(length * float64(sampleRate)))
	if n <= 0 {
		return nil
	}
	dry := make([]float64, n)
	send := make([]float64, n)
	rng := rand.New(rand.NewPCG(1, 2))

	for _, note := range score {
		renderNote(note, sampleRate, rng, dry, send)
	}

	out := reverb(send, sampleRate)
	for i := range out {
		out[i] = clip((out[i] + dry[i]) * headroom)
	}
	return out
}

func noteSeconds(note synth.Note) float64 {
	return math.Min(note.Duration+note.Timbre.Envelope.Release, MaxNoteSeconds)
}

func renderNote(note synth.Note, sampleRate int, rng *rand.Rand, dry, send []float64) {
	sr := float64(sampleRate)
	first := int(math.Round(note.Start * sr))
	if first < 0 || first >= len(dry) {
		return
	}
	count := int(noteSeconds(note) * sr)
	gain := math.Pow(10, note.GainDB/20)
	osc := oscillator(note, sr, rng)
	lowpass := newOnePole(note.Cutoff, sr)
	wet := math.Min(math.Max(note.Wet, 0), 1)

	for i := range count {
		at := first + i
		if at >= len(dry) {
			break
		}
		t := float64(i) / sr
		v := osc(t) * envelope(note.Timbre.Envelope, note.Duration, t) * gain
		v = lowpass(v)
		dry[at] += v * (1 - wet)
		send[at] += v * wet
	}
}

// envelope is a linear attack, decay, sustain and release curve.
func envelope(env synth.Envelope, hold, t float64) float64 {
	level := func(t float64) float64 {
		switch {
		case t < env.Attack:
			return t / env.Attack
		case t < env.Attack+env.Decay:
			return 1 - (1-env.Sustain)*(t-env.Attack)/env.Decay
		default:
			return env.Sustain
		}
	}
	if t < hold {
		return level(t)
	}
	if env.Release <= 0 {
		return 0
	}
	released := t - hold
	if released >= env.Release {
		return 0
	}
	return level(hold) * (1 - released/env.Release)
}

func oscillator(note synth.Note, sr float64, rng *rand.Rand) func(t float64) float64 {
	timbre := note.Timbre
	switch note.Voice {

	case synth.KindMembrane:
		phase := 0.0
		return func(t float64) float64 {
			hz := note.Hz
			if timbre.PitchDecay > 0 && t < timbre.PitchDecay && timbre.Octaves > 1 {
				hz *= math.Pow(timbre.Octaves, 1-t/timbre.PitchDecay)
			}
			v := math.Sin(2 * math.Pi * phase)
			phase = math.Mod(phase+hz/sr, 1)
			return v
		}

	case synth.KindNoise:
		return noise(timbre.Noise, rng)

	case synth.KindMetal:
		phases := make([]float64, len(metalRatios))
		return func(float64) float64 {
			var sum float64
			for i, ratio := range metalRatios {
				sum += wave("square", phases[i])
				phases[i] = math.Mod(phases[i]+note.Hz*ratio/sr, 1)
			}
			return sum / float64(len(metalRatios))
		}

	}

	shape := timbre.Oscillator
	if shape == "" {
		shape = "triangle"
	}
	phase := 0.0
	return func(float64) float64 {
		v := wave(shape, phase)
		phase = math.Mod(phase+note.Hz/sr, 1)
		return v
	}
}

func wave(shape string, phase float64) float64 {
	switch shape {
	case "square":
		if phase < 0.5 {
			return 1
		}
		return -1
	case "sawtooth":
		return 2*phase - 1
	case "triangle":
		return 1 - 4*math.Abs(phase-0.5)
	}
	return math.Sin(2 * math.Pi * phase)
}

func noise(color string, rng *rand.Rand) func(float64) float64 {
	white := func() float64 {
		return rng.Float64()*2 - 1
	}
	switch color {
	case "brown":
		var last float64
		return func(float64) float64 {
			last = (last + 0.02*white()) / 1.02
			return last * 3.5
		}
	case "pink":
		var b0, b1, b2 float64
		return func(float64) float64 {
			w := white()
			b0 = 0.99765*b0 + w*0.0990460
			b1 = 0.96300*b1 + w*0.2965164
			b2 = 0.57000*b2 + w*1.0526913
			return (b0 + b1 + b2 + w*0.1848) * 0.2
		}
	}
	return func(float64) float64 {
		return white()
	}
}

// newOnePole returns a one-pole low-pass filter, or the identity when cutoff is zero.
func newOnePole(cutoff, sr float64) func(float64) float64 {
	if cutoff <= 0 || cutoff >= sr/2 {
		return func(v float64) float64 {
			return v
		}
	}
	alpha := 1 - math.Exp(-2*math.Pi*cutoff/sr)
	var state float64
	return func(v float64) float64 {
		state += alpha * (v - state)
		return state
	}
}

// comb delays in samples at 44.1kHz
var combDelays = []int{1557, 1617, 1491, 1422}

const combFeedback = 0.84

// reverb runs the send bus through parallel feedback combs.
func reverb(send []float64, sampleRate int) []float64 {
	out := make([]float64, len(send))
	scale := float64(sampleRate) / 44100
	for _, base := range combDelays {
		delay := max(1, int(float64(base)*scale))
		line := make([]float64, delay)
		pos := 0
		for i, v := range send {
			delayed := line[pos]
			line[pos] = v + delayed*combFeedback
			pos = (pos + 1) % delay
			out[i] += delayed / float64(len(combDelays))
		}
	}
	return out
}

func clip(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
