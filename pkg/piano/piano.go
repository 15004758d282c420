// ABOUTME: Keyboard model on top of an AudioEngine
// ABOUTME: Tracks loaded keys, sound packs and participant colors for visualization
package piano

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/samples"
)

// DefaultVelocity is used for presses without an explicit velocity
const DefaultVelocity = 0.5

// DefaultColor is the local participant color when none is configured
const DefaultColor = "#ecfaed"

// AudioEngine is what Piano needs from the audio core
type AudioEngine interface {
	Play(noteID string, velocity float64, delay time.Duration, ownerID string)
	Stop(noteID string, delay time.Duration, ownerID string)
	LoadPack(ctx context.Context, pack samples.Pack, base string, onLoaded func(noteID string)) error
}

// Participant is someone playing the piano
type Participant struct {
	ID    string
	Name  string
	Color string
}

// Key is one piano key
type Key struct {
	Note       string
	Sharp      bool
	Loaded     bool
	TimeLoaded time.Time
	TimePlayed time.Time
}

// Visualizer is told which key sounded and in whose color
type Visualizer func(note, color string)

// Option configures a Piano
type Option func(*Piano)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Piano) { p.logger = l.Named("piano") }
}

// WithVisualizer sets the visualization callback
func WithVisualizer(v Visualizer) Option {
	return func(p *Piano) { p.visualize = v }
}

// WithSoundBase resolves relative pack URLs against base
func WithSoundBase(base string) Option {
	return func(p *Piano) { p.soundBase = base }
}

// WithKeys restricts the keyboard, e.g. to a single test key
func WithKeys(notes ...string) Option {
	return func(p *Piano) { p.order = append([]string(nil), notes...) }
}

// Piano is a keyboard shared by local and remote participants
type Piano struct {
	mu           sync.Mutex
	engine       AudioEngine
	keys         map[string]*Key
	order        []string
	participants map[string]Participant
	packs        []samples.Pack
	current      string
	soundBase    string
	visualize    Visualizer
	logger       *zap.Logger
}

// New creates a piano driving engine
func New(engine AudioEngine, opts ...Option) *Piano {
	p := &Piano{
		engine:       engine,
		keys:         make(map[string]*Key),
		order:        KeyNames,
		participants: make(map[string]Participant),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, note := range p.order {
		p.keys[note] = &Key{Note: note, Sharp: IsSharp(note)}
	}
	return p
}

// Play presses note for participant after delay. Unknown keys and
// anonymous participants are ignored; keys without a sample stay silent.
func (p *Piano) Play(note string, velocity float64, part Participant, delay time.Duration) {
	if part.ID == "" {
		return
	}
	p.mu.Lock()
	key, ok := p.keys[note]
	if !ok {
		p.mu.Unlock()
		return
	}
	loaded := key.Loaded
	key.TimePlayed = time.Now().Add(delay)
	p.mu.Unlock()

	if loaded {
		p.engine.Play(note, velocity, delay, part.ID)
	}
}

// Stop releases note for participant after delay
func (p *Piano) Stop(note string, part Participant, delay time.Duration) {
	if part.ID == "" {
		return
	}
	p.mu.Lock()
	key, ok := p.keys[note]
	loaded := ok && key.Loaded
	p.mu.Unlock()

	if loaded {
		p.engine.Stop(note, delay, part.ID)
	}
}

// VoiceStarted forwards a started voice to the visualizer in its owner's color.
// It matches piano.Config.OnVoiceStarted.
func (p *Piano) VoiceStarted(noteID, ownerID string) {
	p.mu.Lock()
	vis := p.visualize
	color := DefaultColor
	if part, ok := p.participants[ownerID]; ok && part.Color != "" {
		color = part.Color
	}
	p.mu.Unlock()

	if vis != nil {
		vis(noteID, color)
	}
}

// SetVisualizer replaces the visualization callback
func (p *Piano) SetVisualizer(v Visualizer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visualize = v
}

// Join adds or updates a participant
func (p *Piano) Join(part Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.participants[part.ID] = part
}

// Leave removes a participant
func (p *Piano) Leave(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.participants, id)
}

// Participant looks up a participant by id
func (p *Piano) Participant(id string) (Participant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.participants[id]
	return part, ok
}

// Participants returns everyone present, sorted by id
func (p *Piano) Participants() []Participant {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Participant, 0, len(p.participants))
	for _, part := range p.participants {
		out = append(out, part)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Key returns a copy of a key's state
func (p *Piano) Key(note string) (Key, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.keys[note]
	if !ok {
		return Key{}, false
	}
	return *k, true
}

// Keys returns every key, lowest first
func (p *Piano) Keys() []Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Key, 0, len(p.order))
	for _, note := range p.order {
		out = append(out, *p.keys[note])
	}
	return out
}

// LoadedCount returns how many keys have a sample
func (p *Piano) LoadedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if k.Loaded {
			n++
		}
	}
	return n
}

// AddPack registers a sound pack. A pack without keys covers the whole keyboard.
func (p *Piano) AddPack(pack samples.Pack) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.packs {
		if existing.Name == pack.Name {
			return fmt.Errorf("sound pack %q already added", pack.Name)
		}
	}
	if len(pack.Keys) == 0 {
		pack.Keys = append([]string(nil), p.order...)
	}
	p.packs = append(p.packs, pack.Normalize())
	sort.Slice(p.packs, func(i, j int) bool { return p.packs[i].Name < p.packs[j].Name })
	return nil
}

// Packs returns the registered packs sorted by name
func (p *Piano) Packs() []samples.Pack {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]samples.Pack(nil), p.packs...)
}

// CurrentPack returns the name of the last pack loaded
func (p *Piano) CurrentPack() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// LoadPack marks the pack's keys unloaded and loads them; keys become
// playable one by one as their samples arrive. Keys the pack does not know
// about are skipped.
func (p *Piano) LoadPack(ctx context.Context, name string) error {
	p.mu.Lock()
	var pack *samples.Pack
	for i := range p.packs {
		if p.packs[i].Name == name {
			pack = &p.packs[i]
			break
		}
	}
	if pack == nil {
		p.mu.Unlock()
		return fmt.Errorf("unknown sound pack %q", name)
	}
	load := *pack
	load.Keys = nil
	for _, note := range pack.Keys {
		if k, ok := p.keys[note]; ok {
			k.Loaded = false
			load.Keys = append(load.Keys, note)
		}
	}
	p.current = name
	base := p.soundBase
	p.mu.Unlock()

	p.logger.Info("loading sound pack", zap.String("pack", name), zap.Int("keys", len(load.Keys)))
	return p.engine.LoadPack(ctx, load, base, p.markLoaded)
}

func (p *Piano) markLoaded(note string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k, ok := p.keys[note]; ok {
		k.Loaded = true
		k.TimeLoaded = time.Now()
	}
}
