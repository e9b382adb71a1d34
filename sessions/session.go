// Package sessions is the editing workflow around an engine: persisted
// state, history, import and export, assisted edits and offline render.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/reusee/taibeat/assist"
	"github.com/reusee/taibeat/bounce"
	"github.com/reusee/taibeat/codegen"
	"github.com/reusee/taibeat/diffs"
	"github.com/reusee/taibeat/engine"
	"github.com/reusee/taibeat/exports"
	"github.com/reusee/taibeat/history"
	"github.com/reusee/taibeat/logs"
	"github.com/reusee/taibeat/patches"
	"github.com/reusee/taibeat/storages"
	"github.com/reusee/taibeat/transport"
	"github.com/reusee/taibeat/vars"
)

var ErrUnknownEntry = errors.New("unknown history entry")

type Session struct {
	engine     *engine.Engine
	store      *storages.Store
	logger     logs.Logger
	sampleRate int
	now        func() time.Time

	mu      sync.Mutex
	loaded  bool
	code    string
	title   string
	savedAt *time.Time
	history *history.History
}

func New(
	eng *engine.Engine,
	store *storages.Store,
	logger logs.Logger,
	sampleRate int,
) *Session {
	return &Session{
		engine:     eng,
		store:      store,
		logger:     logger,
		sampleRate: sampleRate,
		now:        time.Now,
		code:       strings.TrimSpace(patches.Default),
		history:    history.New(nil),
	}
}

// Load restores the persisted state and applies the restored code, or the
// default patch when nothing was saved. Only the first call has effect.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	s.loaded = true

	if state, ok := s.store.LoadState(ctx); ok {
		if state.BPM != nil {
			s.engine.SetBPM(*state.BPM)
		}
		if state.Volume != nil {
			s.engine.SetVolume(*state.Volume)
		}
		s.title = state.Title
		s.savedAt = state.LastSavedAt
		if state.PatchCode != "" {
			s.code = state.PatchCode
		}
	}
	s.history = history.New(s.store.LoadHistory(ctx))

	s.logger.DebugContext(ctx, "session loaded",
		"title", s.title,
		"history", s.history.Len(),
	)
	return s.engine.Apply(ctx, s.code)
}

// Apply makes code the editor text and builds it. Successful builds are
// recorded in history.
func (s *Session) Apply(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, code)
}

func (s *Session) apply(ctx context.Context, code string) error {
	s.code = code
	defer s.persistDraft(ctx)
	if err := s.engine.Apply(ctx, code); err != nil {
		return err
	}
	s.history.Append(history.NewEntry(code, history.Applied, s.now()))
	s.store.SaveHistory(ctx, s.history.Entries())
	return nil
}

func (s *Session) state() storages.State {
	return storages.State{
		PatchCode:   s.code,
		BPM:         vars.PtrTo(s.engine.BPM()),
		Volume:      vars.PtrTo(s.engine.Volume()),
		Title:       s.title,
		LastSavedAt: s.savedAt,
	}
}

func (s *Session) persistDraft(ctx context.Context) {
	s.store.SaveDraft(ctx, s.state())
}

// Save persists the editor state and records a Saved history entry. An empty
// title keeps the current one.
func (s *Session) Save(ctx context.Context, title string) history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title != "" {
		s.title = title
	}
	saved := s.store.SaveState(ctx, s.state())
	s.savedAt = saved.LastSavedAt
	entry := history.NewEntry(s.code, history.Saved, s.now())
	s.history.Append(entry)
	s.store.SaveHistory(ctx, s.history.Entries())
	return entry
}

// Revert clears the build error and puts the last known good text back in the editor.
func (s *Session) Revert(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = s.engine.Revert()
	s.persistDraft(ctx)
	return s.code
}

// Restore applies the code of a history entry.
func (s *Session) Restore(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.history.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	return s.apply(ctx, entry.Code)
}

func (s *Session) SetBPM(ctx context.Context, bpm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetBPM(bpm)
	s.persistDraft(ctx)
}

// SetVolume takes effect on the next apply.
func (s *Session) SetVolume(ctx context.Context, db float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetVolume(db)
	s.persistDraft(ctx)
}

func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) LastSavedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedAt
}

func (s *Session) History() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// Changes compares the editor text with the last known good text.
func (s *Session) Changes() ([]diffs.LineChange, []diffs.ChangeHunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return diffs.Diff(s.engine.LastKnownGood(), s.code)
}

// Edit runs the local rule table on the editor text and applies the result
// when it changed anything.
func (s *Session) Edit(ctx context.Context, message string) (assist.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := assist.Local(message, s.code, s.engine.BPM())
	if result.BPM != nil {
		s.engine.SetBPM(*result.BPM)
	}
	if result.Code == s.code {
		s.persistDraft(ctx)
		return result, nil
	}
	return result, s.apply(ctx, result.Code)
}

// Regenerate replaces the editor text with a patch generated from the
// current timeline and applies it.
func (s *Session) Regenerate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := codegen.Generate(s.engine.Events())
	return code, s.apply(ctx, code)
}

func (s *Session) Document() exports.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return exports.Document{
		Code:   s.code,
		BPM:    s.engine.BPM(),
		Volume: s.engine.Volume(),
		Title:  s.title,
	}
}

func (s *Session) ExportPlain() []byte {
	return exports.Plain(s.Code())
}

func (s *Session) ExportStructured() ([]byte, error) {
	return exports.Structured(s.Document())
}

// ExportMIDI writes the timeline of the last build as a standard MIDI file.
func (s *Session) ExportMIDI(w io.Writer) error {
	return exports.WriteMIDI(w, s.engine.Events(), s.engine.BPM())
}

// Import loads exported data. Settings present in a structured document are
// applied before the code is built.
func (s *Session) Import(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	imported := exports.Import(data)
	if imported.BPM != nil {
		s.engine.SetBPM(*imported.BPM)
	}
	if imported.Volume != nil {
		s.engine.SetVolume(*imported.Volume)
	}
	s.title = vars.DerefOr(imported.Title, s.title)
	s.logger.InfoContext(ctx, "import",
		"structured", imported.Structured,
		"title", s.title,
	)
	return s.apply(ctx, imported.Code)
}

// Render bounces bars of the live patch to WAV.
func (s *Session) Render(w io.WriteSeeker, bars float64) error {
	score, err := s.engine.Render(bars)
	if err != nil {
		return err
	}
	seconds := bars * transport.BeatsPerBar * 60 / s.engine.BPM()
	return bounce.Bounce(w, score, s.sampleRate, seconds)
}
