package synth

import (
	"math"
	"slices"
	"sync"
)

type Kind string

const (
	KindDestination Kind = "destination"
	KindVolume      Kind = "volume"
	KindFilter      Kind = "filter"
	KindReverb      Kind = "reverb"
	KindMembrane    Kind = "membrane"
	KindNoise       Kind = "noise"
	KindMetal       Kind = "metal"
	KindSynth       Kind = "synth"
)

func (k Kind) IsVoice() bool {
	switch k {
	case KindMembrane, KindNoise, KindMetal, KindSynth:
		return true
	}
	return false
}

type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Timbre holds the constructor options of a voice that affect its sound.
type Timbre struct {
	Envelope        Envelope
	Oscillator      string
	Noise           string
	PitchDecay      float64
	Octaves         float64
	Frequency       float64
	Harmonicity     float64
	ModulationIndex float64
	Resonance       float64
}

// Node is one unit of an audio graph built by a patch.
type Node struct {
	Kind   Kind
	Timbre Timbre
	// GainDB is the volume of volume nodes and voices
	GainDB float64
	// Cutoff is the frequency of filter nodes
	Cutoff     float64
	FilterType string
	Wet        float64
	DecayTime  float64

	outputs  []*Node
	disposed bool
	dest     *Destination
}

func (n *Node) Connect(to *Node) {
	if slices.Contains(n.outputs, to) {
		return
	}
	n.outputs = append(n.outputs, to)
}

func (n *Node) Disconnect() {
	n.outputs = nil
}

func (n *Node) Dispose() {
	n.disposed = true
	n.outputs = nil
}

func (n *Node) Disposed() bool {
	return n.disposed
}

// Note is one voice trigger that reached the destination.
type Note struct {
	Voice  Kind
	Timbre Timbre
	Hz     float64
	// Start and Duration are in seconds
	Start    float64
	Duration float64
	GainDB   float64
	// Cutoff is the lowest filter frequency on the path, zero when unfiltered
	Cutoff float64
	Wet    float64
}

const maxRouteDepth = 64

// route follows the connections of n and records note at every destination reached.
func (n *Node) route(note Note, depth int) {
	if n.disposed || depth > maxRouteDepth {
		return
	}
	switch n.Kind {
	case KindDestination:
		if n.dest != nil {
			n.dest.record(note)
		}
		return
	case KindVolume:
		note.GainDB += n.GainDB
	case KindFilter:
		if n.FilterType == "" || n.FilterType == "lowpass" {
			if note.Cutoff == 0 || n.Cutoff < note.Cutoff {
				note.Cutoff = n.Cutoff
			}
		}
	case KindReverb:
		note.Wet = math.Max(note.Wet, n.Wet)
	}
	for _, out := range n.outputs {
		out.route(note, depth+1)
	}
}

// Trigger plays a note on a voice node.
func (n *Node) Trigger(hz, start, duration, velocity float64) {
	if n.disposed || !n.Kind.IsVoice() {
		return
	}
	gain := n.GainDB
	if velocity > 0 && velocity != 1 {
		gain += 20 * math.Log10(velocity)
	}
	note := Note{
		Voice:    n.Kind,
		Timbre:   n.Timbre,
		Hz:       hz,
		Start:    start,
		Duration: duration,
		GainDB:   gain,
	}
	for _, out := range n.outputs {
		out.route(note, 1)
	}
}

// Destination is the engine master output. It collects the score of
// everything the transport fired.
type Destination struct {
	mu    sync.Mutex
	node  *Node
	notes []Note
}

func NewDestination() *Destination {
	d := new(Destination)
	d.node = &Node{
		Kind: KindDestination,
		dest: d,
	}
	return d
}

func (d *Destination) Node() *Node {
	return d.node
}

func (d *Destination) record(note Note) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = append(d.notes, note)
}

// Score returns the recorded notes in trigger order.
func (d *Destination) Score() []Note {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.notes)
}

func (d *Destination) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = nil
}
