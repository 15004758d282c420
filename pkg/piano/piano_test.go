package piano

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/pianoroom/pkg/samples"
)

type call struct {
	note     string
	velocity float64
	delay    time.Duration
	owner    string
}

type fakeEngine struct {
	mu        sync.Mutex
	plays     []call
	stops     []call
	locators  map[string]string
	failNotes map[string]bool
}

func (f *fakeEngine) Play(note string, velocity float64, delay time.Duration, owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, call{note, velocity, delay, owner})
}

func (f *fakeEngine) Stop(note string, delay time.Duration, owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, call{note: note, delay: delay, owner: owner})
}

func (f *fakeEngine) LoadPack(_ context.Context, pack samples.Pack, base string, onLoaded func(string)) error {
	locs, err := pack.Locators(base)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.locators = locs
	f.mu.Unlock()

	var errs []error
	for note := range locs {
		if f.failNotes[note] {
			errs = append(errs, errors.New("load "+note+": not found"))
			continue
		}
		onLoaded(note)
	}
	return errors.Join(errs...)
}

var alice = Participant{ID: "alice", Name: "Alice", Color: "#ff0000"}

func loadedPiano(t *testing.T, f *fakeEngine, opts ...Option) *Piano {
	t.Helper()
	p := New(f, opts...)
	if err := p.AddPack(samples.Pack{Name: "Classic", URL: "/sounds/classic", Ext: ".mp3"}); err != nil {
		t.Fatalf("AddPack failed: %v", err)
	}
	if err := p.LoadPack(context.Background(), "Classic"); err != nil {
		t.Fatalf("LoadPack failed: %v", err)
	}
	return p
}

func TestNewPianoHas88Keys(t *testing.T) {
	p := New(&fakeEngine{})
	keys := p.Keys()
	if len(keys) != 88 {
		t.Fatalf("expected 88 keys, got %d", len(keys))
	}
	if keys[0].Note != "a-1" || keys[87].Note != "c7" {
		t.Errorf("unexpected range %s..%s", keys[0].Note, keys[87].Note)
	}
	if !keys[1].Sharp || keys[2].Sharp {
		t.Error("as-1 should be sharp and b-1 not")
	}
	if p.LoadedCount() != 0 {
		t.Error("fresh piano has loaded keys")
	}
}

func TestPlayUnloadedKeySilent(t *testing.T) {
	f := &fakeEngine{}
	p := New(f)

	p.Play("a3", 0.5, alice, 0)
	p.Stop("a3", alice, 0)
	if len(f.plays) != 0 || len(f.stops) != 0 {
		t.Error("unloaded key reached the engine")
	}
	if k, _ := p.Key("a3"); k.TimePlayed.IsZero() {
		t.Error("press on unloaded key should still be recorded")
	}
}

func TestPlayLoadedKey(t *testing.T) {
	f := &fakeEngine{}
	p := loadedPiano(t, f, WithSoundBase("https://sounds.example"))

	if p.LoadedCount() != 88 {
		t.Fatalf("expected 88 loaded keys, got %d", p.LoadedCount())
	}
	if got := f.locators["a3"]; got != "https://sounds.example/sounds/classic/a3.mp3" {
		t.Errorf("unexpected locator %s", got)
	}

	p.Play("a3", 0.7, alice, 40*time.Millisecond)
	p.Stop("a3", alice, 90*time.Millisecond)

	if len(f.plays) != 1 || f.plays[0] != (call{"a3", 0.7, 40 * time.Millisecond, "alice"}) {
		t.Errorf("unexpected plays %+v", f.plays)
	}
	if len(f.stops) != 1 || f.stops[0].delay != 90*time.Millisecond || f.stops[0].owner != "alice" {
		t.Errorf("unexpected stops %+v", f.stops)
	}
}

func TestPlayIgnoresUnknownKeyAndAnonymous(t *testing.T) {
	f := &fakeEngine{}
	p := loadedPiano(t, f)

	p.Play("h9", 0.5, alice, 0)
	p.Play("a3", 0.5, Participant{}, 0)
	p.Stop("a3", Participant{}, 0)
	if len(f.plays) != 0 || len(f.stops) != 0 {
		t.Errorf("expected no engine calls, got %d plays %d stops", len(f.plays), len(f.stops))
	}
}

func TestLoadPackPartialFailure(t *testing.T) {
	f := &fakeEngine{failNotes: map[string]bool{"c4": true}}
	p := New(f)
	p.AddPack(samples.Pack{Name: "Classic", URL: "/s/", Ext: ".mp3"})

	err := p.LoadPack(context.Background(), "Classic")
	if err == nil || !strings.Contains(err.Error(), "c4") {
		t.Errorf("expected error naming c4, got %v", err)
	}
	if k, _ := p.Key("c4"); k.Loaded {
		t.Error("failed key marked loaded")
	}
	if k, _ := p.Key("d4"); !k.Loaded || k.TimeLoaded.IsZero() {
		t.Error("d4 should be loaded")
	}
	if p.CurrentPack() != "Classic" {
		t.Errorf("unexpected current pack %q", p.CurrentPack())
	}
}

func TestAddPackRules(t *testing.T) {
	p := New(&fakeEngine{})

	if err := p.AddPack(samples.Pack{Name: "Zebra", URL: "/z"}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddPack(samples.Pack{Name: "Alpha", URL: "/a", Keys: []string{"c4"}}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddPack(samples.Pack{Name: "Alpha"}); err == nil {
		t.Error("expected duplicate pack error")
	}

	packs := p.Packs()
	if packs[0].Name != "Alpha" || packs[1].Name != "Zebra" {
		t.Errorf("packs not sorted: %v", packs)
	}
	if packs[1].URL != "/z/" || len(packs[1].Keys) != 88 {
		t.Errorf("pack not normalized: %+v", packs[1])
	}
	if err := p.LoadPack(context.Background(), "Missing"); err == nil {
		t.Error("expected error for unknown pack")
	}
}

func TestLoadPackSkipsForeignKeys(t *testing.T) {
	f := &fakeEngine{}
	p := New(f, WithKeys("c2"))
	p.AddPack(samples.Pack{Name: "Big", URL: "/b/", Ext: ".wav", Keys: []string{"c2", "d2"}})

	if err := p.LoadPack(context.Background(), "Big"); err != nil {
		t.Fatal(err)
	}
	if len(f.locators) != 1 {
		t.Errorf("expected only c2 requested, got %v", f.locators)
	}
	if len(p.Keys()) != 1 || p.LoadedCount() != 1 {
		t.Error("test-mode keyboard should have one loaded key")
	}
}

func TestVoiceStartedUsesOwnerColor(t *testing.T) {
	var got []string
	p := New(&fakeEngine{}, WithVisualizer(func(note, color string) {
		got = append(got, note+" "+color)
	}))
	p.Join(alice)

	p.VoiceStarted("a3", "alice")
	p.VoiceStarted("b3", "stranger")

	if len(got) != 2 || got[0] != "a3 #ff0000" || got[1] != "b3 "+DefaultColor {
		t.Errorf("unexpected visualizations %v", got)
	}
}

func TestParticipants(t *testing.T) {
	p := New(&fakeEngine{})
	p.Join(Participant{ID: "b"})
	p.Join(Participant{ID: "a", Color: "#000"})
	p.Join(Participant{ID: "a", Color: "#fff"})

	parts := p.Participants()
	if len(parts) != 2 || parts[0].ID != "a" || parts[0].Color != "#fff" {
		t.Errorf("unexpected participants %v", parts)
	}
	p.Leave("a")
	if _, ok := p.Participant("a"); ok {
		t.Error("participant a should be gone")
	}
}
