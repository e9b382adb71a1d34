package exports

import (
	"cmp"
	"io"
	"math"
	"slices"

	"github.com/reusee/taibeat/events"
	"github.com/reusee/taibeat/synth"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	TicksPerQuarter = 480
	ticksPerBar     = TicksPerQuarter * 4

	drumChannel  = 9
	bassChannel  = 0
	otherChannel = 1
	velocity     = 100
)

// general MIDI percussion keys
var drumKeys = map[string]uint8{
	events.LaneKick:  36,
	events.LaneSnare: 38,
	events.LaneHats:  42,
}

type midiNote struct {
	tick    uint32
	on      bool
	channel uint8
	key     uint8
}

// WriteMIDI writes the timeline as a single track standard MIDI file. Drum
// lanes go to the percussion channel, bass labels are played as pitches and
// other lanes as middle C.
func WriteMIDI(w io.Writer, timeline []events.ScheduledEvent, bpm float64) error {
	var notes []midiNote
	for _, e := range timeline {
		channel, key := noteFor(e)
		start := toTicks(e.Time)
		end := max(toTicks(e.Time+e.Duration), start+1)
		notes = append(notes,
			midiNote{tick: start, on: true, channel: channel, key: key},
			midiNote{tick: end, on: false, channel: channel, key: key},
		)
	}
	// note offs first on the same tick, so repeated notes retrigger
	slices.SortStableFunc(notes, func(a, b midiNote) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		switch {
		case !a.on && b.on:
			return -1
		case a.on && !b.on:
			return 1
		}
		return 0
	})

	var track smf.Track
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(bpm))
	last := uint32(0)
	for _, n := range notes {
		delta := n.tick - last
		last = n.tick
		if n.on {
			track.Add(delta, midi.NoteOn(n.channel, n.key, velocity))
		} else {
			track.Add(delta, midi.NoteOff(n.channel, n.key))
		}
	}
	track.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	if err := file.Add(track); err != nil {
		return err
	}
	_, err := file.WriteTo(w)
	return err
}

func noteFor(e events.ScheduledEvent) (channel, key uint8) {
	if key, ok := drumKeys[e.Lane]; ok {
		return drumChannel, key
	}
	if e.Lane == events.LaneBass {
		if n, err := synth.ParseMIDI(e.Label); err == nil && n >= 0 && n <= 127 {
			return bassChannel, uint8(n)
		}
		return bassChannel, 36
	}
	return otherChannel, 60
}

func toTicks(bars float64) uint32 {
	if math.IsNaN(bars) || bars <= 0 {
		return 0
	}
	return uint32(math.Round(bars * ticksPerBar))
}
