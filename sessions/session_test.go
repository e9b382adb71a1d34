package sessions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/reusee/dscope"
	"github.com/reusee/taibeat/engine"
	"github.com/reusee/taibeat/history"
	"github.com/reusee/taibeat/modes"
	"github.com/reusee/taibeat/patches"
	"github.com/reusee/taibeat/sandbox"
	"github.com/reusee/taibeat/storages"
)

const valid = `function buildPatch(ctx) {
  ctx.registerEvent({ time: 0, duration: 0.25, label: "C1", lane: "kick" });
  return { dispose: function() {} };
}`

const other = `function buildPatch(ctx) {
  ctx.registerEvent({ time: 1, duration: 0.25, label: "D", lane: "snare" });
  return { dispose: function() {} };
}`

func withSession(t *testing.T, store *storages.Store, fn func(s *Session)) {
	scope := dscope.New(
		modes.ForTest(t),
		new(Module),
	)
	if store != nil {
		scope = scope.Fork(func() *storages.Store {
			return store
		})
	}
	scope.Call(func(
		s *Session,
		eng *engine.Engine,
	) {
		defer eng.Close()
		fn(s)
	})
}

func openStore(t *testing.T, path string) *storages.Store {
	store, err := storages.Open(path, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestLoadDefault(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		if s.Code() != strings.TrimSpace(patches.Default) {
			t.Fatal("should load the default patch")
		}
		if s.Engine().State() != engine.Built {
			t.Fatalf("got %v", s.Engine().State())
		}
		if len(s.History()) != 0 {
			t.Fatalf("got %v", s.History())
		}
		if s.LastSavedAt() != nil {
			t.Fatal("never saved")
		}
		// only once
		if err := s.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		if s.Code() != valid {
			t.Fatalf("got %v", s.Code())
		}
	})
}

func TestApplyRecordsHistory(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		entries := s.History()
		if len(entries) != 1 || entries[0].Label != history.Applied || entries[0].Code != valid {
			t.Fatalf("got %+v", entries)
		}

		err := s.Apply(ctx, `function buildPatch(ctx) {`)
		if !errors.Is(err, sandbox.ErrParse) {
			t.Fatalf("got %v", err)
		}
		if len(s.History()) != 1 {
			t.Fatal("failed builds are not recorded")
		}
		if s.Code() != `function buildPatch(ctx) {` {
			t.Fatal("editor keeps the failing text")
		}
		if s.Engine().LastKnownGood() != valid {
			t.Fatal("last known good should stay")
		}
		_, hunks := s.Changes()
		if len(hunks) == 0 {
			t.Fatal("should differ from last known good")
		}
	})
}

func TestRevert(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		if err := s.Apply(ctx, `var buildPatch = 1;`); err == nil {
			t.Fatal("should fail")
		}
		if code := s.Revert(ctx); code != valid {
			t.Fatalf("got %v", code)
		}
		if s.Code() != valid {
			t.Fatalf("got %v", s.Code())
		}
		if s.Engine().Err() != nil {
			t.Fatal("error should be cleared")
		}
		if decorations, hunks := s.Changes(); decorations != nil || hunks != nil {
			t.Fatal("should be identical")
		}
	})
}

func TestRestore(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		first := s.History()[0]
		if err := s.Apply(ctx, other); err != nil {
			t.Fatal(err)
		}
		if err := s.Restore(ctx, first.ID); err != nil {
			t.Fatal(err)
		}
		if s.Engine().LastKnownGood() != valid {
			t.Fatal("should restore")
		}
		if n := len(s.History()); n != 3 {
			t.Fatalf("got %v", n)
		}
		if err := s.Restore(ctx, "nope"); !errors.Is(err, ErrUnknownEntry) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestSavePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store := openStore(t, path)
	withSession(t, store, func(s *Session) {
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		s.SetBPM(ctx, 98)
		s.SetVolume(ctx, -6)
		if err := s.Apply(ctx, valid); err != nil {
			t.Fatal(err)
		}
		entry := s.Save(ctx, "demo")
		if entry.Label != history.Saved || entry.Code != valid {
			t.Fatalf("got %+v", entry)
		}
		if s.LastSavedAt() == nil {
			t.Fatal("should stamp")
		}
		// empty title keeps the current one
		s.Save(ctx, "")
		if s.Title() != "demo" {
			t.Fatalf("got %v", s.Title())
		}
	})
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store = openStore(t, path)
	defer store.Close()
	withSession(t, store, func(s *Session) {
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		if s.Code() != valid || s.Title() != "demo" {
			t.Fatalf("got %v %v", s.Code(), s.Title())
		}
		if bpm := s.Engine().BPM(); bpm != 98 {
			t.Fatalf("got %v", bpm)
		}
		if v := s.Engine().Volume(); v != -6 {
			t.Fatalf("got %v", v)
		}
		if s.LastSavedAt() == nil {
			t.Fatal("should keep save time")
		}
		labels := []history.Label{}
		for _, e := range s.History() {
			labels = append(labels, e.Label)
		}
		if len(labels) != 3 || labels[0] != history.Applied || labels[2] != history.Saved {
			t.Fatalf("got %v", labels)
		}
	})
}

func TestImportExport(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		volume := s.Engine().Volume()

		doc := `{"code": ` + quote(valid) + `, "bpm": 100, "title": "imported"}`
		if err := s.Import(ctx, []byte(doc)); err != nil {
			t.Fatal(err)
		}
		if s.Code() != valid || s.Title() != "imported" {
			t.Fatalf("got %v %v", s.Code(), s.Title())
		}
		if s.Engine().BPM() != 100 {
			t.Fatalf("got %v", s.Engine().BPM())
		}
		if s.Engine().Volume() != volume {
			t.Fatal("missing volume leaves gain unchanged")
		}

		data, err := s.ExportStructured()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(data, []byte(`"bpm": 100`)) || !bytes.Contains(data, []byte(`"title": "imported"`)) {
			t.Fatalf("got %s", data)
		}
		if err := s.Import(ctx, []byte("\n"+other+"\n\n")); err != nil {
			t.Fatal(err)
		}
		if s.Code() != other || s.Title() != "imported" {
			t.Fatalf("got %v %v", s.Code(), s.Title())
		}
		if plain := s.ExportPlain(); string(plain) != other+"\n" {
			t.Fatalf("got %q", plain)
		}

		buf := new(bytes.Buffer)
		if err := s.ExportMIDI(buf); err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("MThd")) {
			t.Fatalf("got %q", buf.Bytes()[:min(buf.Len(), 8)])
		}
	})
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

func TestEdit(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		bpm := s.Engine().BPM()

		result, err := s.Edit(ctx, "make it faster")
		if err != nil {
			t.Fatal(err)
		}
		if result.BPM == nil || s.Engine().BPM() != min(180, bpm+15) {
			t.Fatalf("got %v", s.Engine().BPM())
		}
		if len(s.History()) != 0 {
			t.Fatal("unchanged code is not rebuilt")
		}

		if _, err := s.Edit(ctx, "add swing"); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(s.Code(), "Transport.swing = 0.1") {
			t.Fatalf("got %v", s.Code())
		}
		if s.Engine().LastKnownGood() != s.Code() {
			t.Fatal("should apply the edit")
		}
		if len(s.History()) != 1 {
			t.Fatalf("got %v", s.History())
		}

		result, err = s.Edit(ctx, "sing a song")
		if err != nil {
			t.Fatal(err)
		}
		if result.BPM != nil || result.Code != s.Code() {
			t.Fatalf("got %+v", result)
		}
	})
}

func TestRegenerate(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		before := s.Engine().Events()
		code, err := s.Regenerate(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(code, "export function buildPatch(ctx)") {
			t.Fatalf("got %v", code)
		}
		after := s.Engine().Events()
		if len(after) != len(before) {
			t.Fatalf("got %v, want %v", len(after), len(before))
		}
		if s.Code() != code {
			t.Fatal("should replace the editor text")
		}
	})
}

func TestRender(t *testing.T) {
	withSession(t, nil, func(s *Session) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "out.wav")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := s.Render(f, 1); err == nil {
			t.Fatal("nothing installed yet")
		}

		if err := s.Load(ctx); err != nil {
			t.Fatal(err)
		}
		s.SetBPM(ctx, 120)
		if err := s.Render(f, 1); err != nil {
			t.Fatal(err)
		}
		if _, err := f.Seek(0, 0); err != nil {
			t.Fatal(err)
		}
		dec := wav.NewDecoder(f)
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			t.Fatal(err)
		}
		// one bar at 120 bpm
		if want := 2 * s.sampleRate; len(buf.Data) != want {
			t.Fatalf("got %v, want %v", len(buf.Data), want)
		}
	})
}
