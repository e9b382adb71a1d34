package events

import (
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ScheduledEvent{Time: 0, Duration: 0.25, Label: "Kick", Lane: LaneKick}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(ScheduledEvent{Time: 1, Duration: 0.25, Label: "Snare", Lane: LaneSnare}); err != nil {
		t.Fatal(err)
	}

	snapshot := r.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("got %v", snapshot)
	}
	snapshot[0].Label = "changed"
	if r.Snapshot()[0].Label != "Kick" {
		t.Fatal("snapshot should be a copy")
	}

	r.Seal()
	err := r.Register(ScheduledEvent{Time: 2, Duration: 1, Lane: LaneBass})
	if !errors.Is(err, ErrRegistrySealed) {
		t.Fatalf("got %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("got %v", r.Len())
	}
}

func TestRegistryRejectsInvalidEvents(t *testing.T) {
	r := NewRegistry()
	for _, e := range []ScheduledEvent{
		{Time: -1, Duration: 1},
		{Time: 0, Duration: 0},
		{Time: 0, Duration: -0.5},
	} {
		if err := r.Register(e); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("%+v: got %v", e, err)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("got %v", r.Len())
	}
}

func TestInLane(t *testing.T) {
	input := []ScheduledEvent{
		{Time: 2, Duration: 1, Label: "a", Lane: LaneBass},
		{Time: 0, Duration: 1, Label: "b", Lane: LaneKick},
		{Time: 1, Duration: 1, Label: "c", Lane: LaneBass},
		{Time: 1, Duration: 1, Label: "d", Lane: LaneBass},
	}
	bass := InLane(input, LaneBass)
	var labels string
	for _, e := range bass {
		labels += e.Label
	}
	if labels != "cda" {
		t.Fatalf("got %q", labels)
	}
	if input[0].Label != "a" {
		t.Fatal("input should not be reordered")
	}
}

func TestLanes(t *testing.T) {
	lanes := Lanes([]ScheduledEvent{
		{Lane: "pad"}, {Lane: LaneKick}, {Lane: "pad"},
	})
	if len(lanes) != 2 || lanes[0] != "pad" || lanes[1] != LaneKick {
		t.Fatalf("got %v", lanes)
	}
	if IsCanonicalLane("pad") || !IsCanonicalLane(LaneHats) {
		t.Fatal("bad canonical lanes")
	}
}
