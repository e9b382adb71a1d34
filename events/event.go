// Package events holds timeline entries registered by patches while they build.
package events

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ScheduledEvent is one block on the timeline. Time and Duration are in bars.
type ScheduledEvent struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Label    string  `json:"label"`
	Lane     string  `json:"lane"`
}

const (
	LaneKick  = "kick"
	LaneSnare = "snare"
	LaneHats  = "hats"
	LaneBass  = "bass"
)

// CanonicalLanes are the lanes the patch generator knows how to play.
var CanonicalLanes = []string{LaneKick, LaneSnare, LaneHats, LaneBass}

func IsCanonicalLane(lane string) bool {
	return slices.Contains(CanonicalLanes, lane)
}

var ErrInvalidEvent = errors.New("invalid event")

func (e ScheduledEvent) Validate() error {
	switch {
	case math.IsNaN(e.Time) || math.IsInf(e.Time, 0) || e.Time < 0:
		return fmt.Errorf("%w: time must be >= 0, got %v", ErrInvalidEvent, e.Time)
	case math.IsNaN(e.Duration) || math.IsInf(e.Duration, 0) || e.Duration <= 0:
		return fmt.Errorf("%w: duration must be > 0, got %v", ErrInvalidEvent, e.Duration)
	}
	return nil
}

// InLane returns the events of lane sorted by time, keeping input order on ties.
func InLane(events []ScheduledEvent, lane string) []ScheduledEvent {
	var ret []ScheduledEvent
	for _, e := range events {
		if e.Lane == lane {
			ret = append(ret, e)
		}
	}
	SortByTime(ret)
	return ret
}

func SortByTime(events []ScheduledEvent) {
	slices.SortStableFunc(events, func(a, b ScheduledEvent) int {
		return cmp.Compare(a.Time, b.Time)
	})
}

// Lanes returns the distinct lanes in first-seen order.
func Lanes(events []ScheduledEvent) []string {
	var lanes []string
	for _, e := range events {
		if !slices.Contains(lanes, e.Lane) {
			lanes = append(lanes, e.Lane)
		}
	}
	return lanes
}
