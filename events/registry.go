package events

import (
	"errors"
	"slices"
)

var ErrRegistrySealed = errors.New("event registry sealed")

// Registry collects the events of a single build. It is append-only while the
// build runs and sealed afterwards, so closures a patch kept around cannot add
// to a timeline that was already published.
type Registry struct {
	events []ScheduledEvent
	sealed bool
}

func NewRegistry() *Registry {
	return new(Registry)
}

func (r *Registry) Register(e ScheduledEvent) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if err := e.Validate(); err != nil {
		return err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Registry) Seal() {
	r.sealed = true
}

func (r *Registry) Len() int {
	return len(r.events)
}

// Snapshot copies the registered events.
func (r *Registry) Snapshot() []ScheduledEvent {
	return slices.Clone(r.events)
}
