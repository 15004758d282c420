// ABOUTME: Per-note voice table with steal and release envelopes
// ABOUTME: Schedules buffer sources and gain automation on the mixer graph
package voice

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
	"github.com/Resonate-Protocol/pianoroom/pkg/mixer"
)

// Envelope timings in seconds relative to the scheduled time
const (
	StealFade    = 0.2
	StealStop    = 0.21
	ReleaseTail  = 0.16
	ReleaseLevel = 0.1
	ReleaseFade  = 0.4
	ReleaseStop  = 0.41
)

// SynthPatch is the envelope of the oscillator layer, in seconds and gain
type SynthPatch struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// DefaultSynthPatch decays to half level over 200ms and releases over 2s
var DefaultSynthPatch = SynthPatch{Attack: 0, Decay: 0.2, Sustain: 0.5, Release: 2.0}

// SampleSource resolves a note id to its decoded sample
type SampleSource interface {
	Get(noteID string) (*audio.Sample, bool)
}

// Config configures a Manager
type Config struct {
	Graph   *mixer.Graph
	Samples SampleSource
	// EnableSynth layers a square oscillator under every voice
	EnableSynth bool
	// Synth overrides DefaultSynthPatch when non-zero
	Synth SynthPatch
	// Frequency maps a note id to Hz for the synth layer
	Frequency func(noteID string) (float64, bool)
	Logger    *zap.Logger
}

// Voice is one sounding note
type Voice struct {
	NoteID    string
	OwnerID   string
	Velocity  float64
	Source    *mixer.BufferSource
	Gain      *mixer.Gain
	StartTime float64
	StopTime  float64 // zero until a stop is scheduled

	synth *synthVoice
}

type synthVoice struct {
	osc     *mixer.Oscillator
	gain    *mixer.Gain
	release float64
}

// Stats counts what the manager did
type Stats struct {
	Played   uint64
	Stolen   uint64
	Released uint64
	Ignored  uint64 // paused, missing sample or foreign owner
}

// Manager owns the note id -> voice table
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	graph  *mixer.Graph
	voices map[string]*Voice
	paused bool
	stats  Stats
	logger *zap.Logger
}

// NewManager creates a voice manager drawing on cfg.Graph
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Synth == (SynthPatch{}) {
		cfg.Synth = DefaultSynthPatch
	}
	return &Manager{
		cfg:    cfg,
		graph:  cfg.Graph,
		voices: make(map[string]*Voice),
		logger: cfg.Logger.Named("voice"),
	}
}

// PlayNote starts noteID at graph time at, replacing any voice already on that note.
// It returns false when paused or when the note has no sample.
func (m *Manager) PlayNote(noteID string, velocity, at float64, ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		m.stats.Ignored++
		return false
	}
	sample, ok := m.cfg.Samples.Get(noteID)
	if !ok {
		m.stats.Ignored++
		m.logger.Debug("no sample for note", zap.String("note", noteID))
		return false
	}
	velocity = clampVelocity(velocity)

	if old := m.voices[noteID]; old != nil {
		m.steal(old, at)
	}

	gain := m.graph.NewGain(velocity, m.graph.PianoBus())
	src := m.graph.NewBufferSource(sample, gain)
	src.Start(at)

	v := &Voice{
		NoteID:    noteID,
		OwnerID:   ownerID,
		Velocity:  velocity,
		Source:    src,
		Gain:      gain,
		StartTime: at,
	}
	if m.cfg.EnableSynth {
		v.synth = m.startSynth(noteID, at)
	}
	m.voices[noteID] = v
	m.stats.Played++

	m.logger.Debug("note on",
		zap.String("note", noteID),
		zap.String("owner", ownerID),
		zap.Float64("velocity", velocity),
		zap.Float64("at", at))
	return true
}

// StopNote releases noteID at graph time at if ownerID started it
func (m *Manager) StopNote(noteID string, at float64, ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.voices[noteID]
	if v == nil || v.OwnerID != ownerID {
		m.stats.Ignored++
		return false
	}
	m.release(v, at)
	delete(m.voices, noteID)
	m.stats.Released++

	m.logger.Debug("note off",
		zap.String("note", noteID),
		zap.String("owner", ownerID),
		zap.Float64("at", at))
	return true
}

// ReleaseAll releases every sounding voice regardless of owner
func (m *Manager) ReleaseAll(at float64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.voices)
	for id, v := range m.voices {
		m.release(v, at)
		delete(m.voices, id)
	}
	m.stats.Released += uint64(n)
	return n
}

// steal fades out a voice that is being replaced (must hold m.mu)
func (m *Manager) steal(v *Voice, at float64) {
	p := v.Gain.Gain
	p.SetValueAtTime(p.ValueAt(at), at)
	p.LinearRampToValueAtTime(0, at+StealFade)
	v.Source.Stop(at + StealStop)
	v.StopTime = at + StealStop
	if v.synth != nil {
		v.synth.stop(at)
	}
	m.stats.Stolen++
}

// release schedules the note-off envelope (must hold m.mu)
func (m *Manager) release(v *Voice, at float64) {
	p := v.Gain.Gain
	g := p.ValueAt(at)
	p.SetValueAtTime(g, at)
	p.LinearRampToValueAtTime(g*ReleaseLevel, at+ReleaseTail)
	p.LinearRampToValueAtTime(0, at+ReleaseFade)
	v.Source.Stop(at + ReleaseStop)
	v.StopTime = at + ReleaseStop
	if v.synth != nil {
		v.synth.stop(at)
	}
}

func (m *Manager) startSynth(noteID string, at float64) *synthVoice {
	if m.cfg.Frequency == nil {
		return nil
	}
	freq, ok := m.cfg.Frequency(noteID)
	if !ok {
		return nil
	}
	patch := m.cfg.Synth
	gain := m.graph.NewGain(0, m.graph.SynthBus())
	osc := m.graph.NewOscillator(freq, gain)
	osc.Start(at)
	gain.Gain.SetValueAtTime(0, at)
	gain.Gain.LinearRampToValueAtTime(1, at+patch.Attack)
	gain.Gain.LinearRampToValueAtTime(patch.Sustain, at+patch.Attack+patch.Decay)
	return &synthVoice{osc: osc, gain: gain, release: patch.Release}
}

// stop ramps from wherever the envelope was scheduled to be down to silence
func (s *synthVoice) stop(at float64) {
	s.gain.Gain.LinearRampToValueAtTime(0, at+s.release)
	s.osc.Stop(at + s.release)
}

// SetPaused gates new notes; sounding voices keep playing
func (m *Manager) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}

// Paused reports whether new notes are refused
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Get returns a copy of the voice on noteID
func (m *Manager) Get(noteID string) (Voice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voices[noteID]
	if !ok {
		return Voice{}, false
	}
	return *v, true
}

// Active returns copies of all sounding voices
func (m *Manager) Active() []Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Voice, 0, len(m.voices))
	for _, v := range m.voices {
		out = append(out, *v)
	}
	return out
}

// Len returns the number of table entries
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Stats returns a snapshot of the counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func clampVelocity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
