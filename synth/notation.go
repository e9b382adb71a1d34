package synth

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var notePattern = regexp.MustCompile(`^([A-Ga-g])(##|bb|#|b)?(-?[0-9]+)$`)

var semitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// ParseNote converts a scientific pitch name like "C1", "Eb2" or "F#3" to Hz,
// with A4 at 440.
func ParseNote(name string) (float64, error) {
	midi, err := ParseMIDI(name)
	if err != nil {
		return 0, err
	}
	return MIDIToHz(midi), nil
}

// ParseMIDI converts a pitch name to a MIDI note number, C4 being 60.
func ParseMIDI(name string) (int, error) {
	m := notePattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, fmt.Errorf("bad note name: %q", name)
	}
	semitone := semitones[strings.ToUpper(m[1])[0]]
	switch m[2] {
	case "#":
		semitone++
	case "##":
		semitone += 2
	case "b":
		semitone--
	case "bb":
		semitone -= 2
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, fmt.Errorf("bad octave: %w", err)
	}
	return 12*(octave+1) + semitone, nil
}

func MIDIToHz(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// ParseBars converts time notation to bars. Accepted forms:
//
//	"2m"     two bars
//	"8n"     an eighth note, 1/8 bar
//	"4n."    dotted quarter
//	"8t"     eighth triplet
//	"1:2:0"  bars:beats:sixteenths
//	"1.5"    plain number, in bars
func ParseBars(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("bad time: %q", s)
		}
		var bars float64
		for i, part := range parts {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return 0, fmt.Errorf("bad time: %q", s)
			}
			bars += v / []float64{1, 4, 16}[i]
		}
		return bars, nil
	}

	dotted := strings.HasSuffix(s, ".")
	body := strings.TrimSuffix(s, ".")
	var unit byte
	if body != "" {
		switch c := body[len(body)-1]; c {
		case 'm', 'n', 't':
			unit = c
			body = body[:len(body)-1]
		}
	}
	v, err := strconv.ParseFloat(body, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad time: %q", s)
	}

	var bars float64
	switch unit {
	case 'm', 0:
		bars = v
	case 'n', 't':
		if v <= 0 {
			return 0, fmt.Errorf("bad note value: %q", s)
		}
		bars = 1 / v
		if unit == 't' {
			bars *= 2.0 / 3
		}
	}
	if dotted {
		bars *= 1.5
	}
	return bars, nil
}
