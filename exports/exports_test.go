package exports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/reusee/taibeat/events"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestPlain(t *testing.T) {
	if got := string(Plain("a")); got != "a\n" {
		t.Fatalf("got %q", got)
	}
	if got := string(Plain("a\n")); got != "a\n" {
		t.Fatalf("got %q", got)
	}
	imported := Import(Plain("export function buildPatch(ctx) {\n  return { dispose() {} };\n}"))
	if imported.Structured {
		t.Fatal("should be plain")
	}
	if imported.Code != "export function buildPatch(ctx) {\n  return { dispose() {} };\n}" {
		t.Fatalf("got %q", imported.Code)
	}
}

func TestStructuredRoundTrip(t *testing.T) {
	data, err := Structured(Document{
		Code:   "function buildPatch(ctx) { return { dispose() {} }; } // <&>",
		BPM:    128,
		Volume: -6,
		Title:  "night",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<&>")) {
		t.Fatalf("got %s", data)
	}
	imported := Import(data)
	if !imported.Structured {
		t.Fatal("should be structured")
	}
	if imported.Code != "function buildPatch(ctx) { return { dispose() {} }; } // <&>" {
		t.Fatalf("got %q", imported.Code)
	}
	if imported.BPM == nil || *imported.BPM != 128 {
		t.Fatalf("got %v", imported.BPM)
	}
	if imported.Volume == nil || *imported.Volume != -6 {
		t.Fatalf("got %v", imported.Volume)
	}
	if imported.Title == nil || *imported.Title != "night" {
		t.Fatalf("got %v", imported.Title)
	}
}

func TestImportMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		bpm    bool
		volume bool
	}{
		{"json without numbers", `{"code": "x"}`, false, false},
		{"json with bpm", `{"code": "x", "bpm": 90}`, true, false},
		{"wrong types", `{"code": "x", "bpm": "fast", "volume": null}`, false, false},
		{"yaml", "code: x\nvolume: -3.5\n", false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			imported := Import([]byte(c.input))
			if !imported.Structured || imported.Code != "x" {
				t.Fatalf("got %+v", imported)
			}
			if (imported.BPM != nil) != c.bpm {
				t.Fatalf("got %v", imported.BPM)
			}
			if (imported.Volume != nil) != c.volume {
				t.Fatalf("got %v", imported.Volume)
			}
		})
	}
}

func TestImportNotStructured(t *testing.T) {
	for _, input := range []string{
		`{"code": 42}`,
		`{"title": "no code"}`,
		`[1, 2]`,
		"// bpm: 120\nfunction buildPatch(ctx) {}",
	} {
		imported := Import([]byte(input))
		if imported.Structured {
			t.Fatalf("%s: should be plain", input)
		}
		if imported.Code != input {
			t.Fatalf("got %q", imported.Code)
		}
	}
}

func TestImportSettingsWithoutCode(t *testing.T) {
	for _, input := range []string{
		`{"bpm": 90, "volume": -3}`,
		`{"code": 42, "bpm": 90, "volume": -3, "title": "loose"}`,
		"bpm: 90\nvolume: -3\n",
	} {
		imported := Import([]byte(input))
		if imported.Structured {
			t.Fatalf("%s: should be plain", input)
		}
		if imported.Code != strings.TrimSpace(input) {
			t.Fatalf("got %q", imported.Code)
		}
		if imported.BPM == nil || *imported.BPM != 90 {
			t.Fatalf("%s: got %v", input, imported.BPM)
		}
		if imported.Volume == nil || *imported.Volume != -3 {
			t.Fatalf("%s: got %v", input, imported.Volume)
		}
	}
}

func TestWriteMIDI(t *testing.T) {
	timeline := []events.ScheduledEvent{
		{Time: 0, Duration: 0.25, Label: "Kick", Lane: "kick"},
		{Time: 0.25, Duration: 0.25, Label: "Snare", Lane: "snare"},
		{Time: 0.5, Duration: 0.125, Label: "Eb2", Lane: "bass"},
		{Time: 0.75, Duration: 0.125, Label: "Pad", Lane: "pads"},
	}
	buf := new(bytes.Buffer)
	if err := WriteMIDI(buf, timeline, 120); err != nil {
		t.Fatal(err)
	}

	file, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(file.Tracks) != 1 {
		t.Fatalf("got %v", len(file.Tracks))
	}
	var keys []uint8
	var ticks []uint32
	var now uint32
	for _, ev := range file.Tracks[0] {
		now += ev.Delta
		var channel, key, vel uint8
		if midi.Message(ev.Message).GetNoteStart(&channel, &key, &vel) {
			keys = append(keys, key)
			ticks = append(ticks, now)
		}
	}
	expectedKeys := []uint8{36, 38, 39, 60}
	expectedTicks := []uint32{0, 480, 960, 1440}
	if len(keys) != len(expectedKeys) {
		t.Fatalf("got %v", keys)
	}
	for i := range keys {
		if keys[i] != expectedKeys[i] || ticks[i] != expectedTicks[i] {
			t.Fatalf("got %v %v", keys, ticks)
		}
	}
}
