// Package history keeps the capped list of applied and saved patch versions.
package history

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Cap is the number of entries kept. Older entries are evicted first.
const Cap = 50

type Label string

const (
	Applied Label = "Applied"
	Saved   Label = "Saved"
)

type Entry struct {
	ID    string    `json:"id"`
	Code  string    `json:"code"`
	At    time.Time `json:"at"`
	Label Label     `json:"label"`
}

func NewEntry(code string, label Label, at time.Time) Entry {
	return Entry{
		ID:    uuid.NewString(),
		Code:  code,
		At:    at,
		Label: label,
	}
}

// History is ordered most recent last.
type History struct {
	entries []Entry
}

func New(entries []Entry) *History {
	h := new(History)
	h.entries = truncate(slices.Clone(entries))
	return h
}

func (h *History) Append(e Entry) {
	h.entries = truncate(append(h.entries, e))
}

func (h *History) Entries() []Entry {
	return slices.Clone(h.entries)
}

func (h *History) Len() int {
	return len(h.entries)
}

// Last returns the most recent entry.
func (h *History) Last() (Entry, bool) {
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Find looks an entry up by id.
func (h *History) Find(id string) (Entry, bool) {
	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func truncate(entries []Entry) []Entry {
	if over := len(entries) - Cap; over > 0 {
		entries = slices.Delete(entries, 0, over)
	}
	return entries
}
