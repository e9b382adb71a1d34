// Package codegen turns a timeline back into patch text.
package codegen

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/reusee/taibeat/events"
	"github.com/reusee/taibeat/synth"
)

// LoopBars is the length of the cycle every generated part loops over.
const LoopBars = 4

// DefaultBassNote is played for bass events whose label is not a note name.
const DefaultBassNote = "C2"

type lane struct {
	name    string
	voice   string
	trigger string
	value   func(events.ScheduledEvent) string
}

var lanes = []lane{
	{
		name:    events.LaneKick,
		voice:   `new Tone.MembraneSynth({ pitchDecay: 0.05, octaves: 6, envelope: { attack: 0.001, decay: 0.2, sustain: 0, release: 0.5 } })`,
		trigger: `kick.triggerAttackRelease(note, "8n", time);`,
		value:   func(events.ScheduledEvent) string { return `"C1"` },
	},
	{
		name:    events.LaneSnare,
		voice:   `new Tone.NoiseSynth({ noise: { type: "white" }, envelope: { attack: 0.001, decay: 0.2, sustain: 0, release: 0.2 } })`,
		trigger: `snare.triggerAttackRelease("8n", time);`,
		value:   func(events.ScheduledEvent) string { return "0" },
	},
	{
		name:    events.LaneHats,
		voice:   `new Tone.MetalSynth({ frequency: 200, envelope: { attack: 0.001, decay: 0.05, release: 0.05 }, harmonicity: 5.1, modulationIndex: 32, resonance: 4000, octaves: 0.5 })`,
		trigger: `hats.triggerAttackRelease("32n", time);`,
		value:   func(events.ScheduledEvent) string { return "0" },
	},
	{
		name:    events.LaneBass,
		voice:   `new Tone.Synth({ oscillator: { type: "triangle" }, envelope: { attack: 0.01, decay: 0.2, sustain: 0.4, release: 0.5 } })`,
		trigger: `bass.triggerAttackRelease(note, "8n", time);`,
		value: func(e events.ScheduledEvent) string {
			if _, err := synth.ParseNote(e.Label); err == nil {
				return jsString(e.Label)
			}
			return jsString(DefaultBassNote)
		},
	},
}

// Generate emits a patch that registers exactly the given events, in order,
// and plays every canonical lane on a fixed voice looped over LoopBars bars.
// Events in other lanes are registered but not played.
func Generate(timeline []events.ScheduledEvent) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("export function buildPatch(ctx) {")
	line("  var registerEvent = ctx.registerEvent;")
	line("  var destination = ctx.destination;")
	line("  var volume = ctx.volume !== undefined ? ctx.volume : 0;")
	line("")
	line("  var nodes = [];")
	line("  var parts = [];")
	line("")
	line("  var vol = new Tone.Volume(volume).connect(destination);")
	line("  nodes.push(vol);")
	for _, l := range lanes {
		line("  var %s = %s.connect(vol);", l.name, l.voice)
		line("  nodes.push(%s);", l.name)
	}
	line("")

	line("  var events = [")
	for _, e := range timeline {
		line("    %s,", eventLiteral(e))
	}
	line("  ];")
	line("  events.forEach(function(e) { registerEvent(e); });")

	for _, l := range lanes {
		partition := events.InLane(timeline, l.name)
		items := make([]string, 0, len(partition))
		for _, e := range partition {
			items = append(items, "["+jsNumber(e.Time)+", "+l.value(e)+"]")
		}
		line("")
		line("  var %sPart = new Tone.Part(function(time, note) { %s }, [%s]);",
			l.name, l.trigger, strings.Join(items, ", "))
		line("  %sPart.loop = true;", l.name)
		line(`  %sPart.loopEnd = "%dm";`, l.name, LoopBars)
		line("  %sPart.start(0);", l.name)
		line("  parts.push(%sPart);", l.name)
	}
	line("")

	line("  return {")
	line("    dispose: function() {")
	line("      parts.forEach(function(p) { p.dispose(); });")
	line("      nodes.forEach(function(n) { n.dispose(); });")
	line("    }")
	line("  };")
	b.WriteString("}")

	return b.String()
}

func eventLiteral(e events.ScheduledEvent) string {
	return "{ time: " + jsNumber(e.Time) +
		", duration: " + jsNumber(e.Duration) +
		", label: " + jsString(e.Label) +
		", lane: " + jsString(e.Lane) + " }"
}

// jsNumber formats a float as the shortest JavaScript literal that parses back to it.
func jsNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func jsString(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		// unreachable for strings
		panic(err)
	}
	return string(encoded)
}
