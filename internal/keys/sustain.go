// ABOUTME: Held and sustained note bookkeeping for the local player
// ABOUTME: Decides when a released key actually stops sounding
package keys

import (
	"sort"
	"sync"
	"time"

	"github.com/Resonate-Protocol/pianoroom/pkg/piano"
)

// Player sounds notes; *piano.Piano and *relay.Client both qualify
type Player interface {
	Play(note string, velocity float64, part piano.Participant, delay time.Duration)
	Stop(note string, part piano.Participant, delay time.Duration)
}

// Config configures a Sustain
type Config struct {
	Player Player
	// Local returns the participant presses are attributed to
	Local func() piano.Participant
	// AutoSustain keeps every released note ringing until it is pressed again
	AutoSustain bool
	// Synth reports whether the synth layer is on; sustain is ignored while it is
	Synth func() bool
}

// Sustain tracks which keys are held down and which are still ringing
type Sustain struct {
	mu        sync.Mutex
	config    Config
	pedal     bool
	auto      bool
	held      map[string]bool
	sustained map[string]bool
}

// New creates a Sustain
func New(config Config) *Sustain {
	if config.Local == nil {
		local := piano.Participant{ID: "local", Color: piano.DefaultColor}
		config.Local = func() piano.Participant { return local }
	}
	return &Sustain{
		config:    config,
		auto:      config.AutoSustain,
		held:      make(map[string]bool),
		sustained: make(map[string]bool),
	}
}

// Press sounds note and marks it held
func (s *Sustain) Press(note string, velocity float64) {
	s.mu.Lock()
	s.held[note] = true
	s.sustained[note] = true
	s.mu.Unlock()

	s.config.Player.Play(note, velocity, s.config.Local(), 0)
}

// Release lets go of note. With the pedal down, or auto sustain on, the
// note keeps ringing; otherwise it stops now.
func (s *Sustain) Release(note string) {
	s.mu.Lock()
	if !s.held[note] {
		s.mu.Unlock()
		return
	}
	s.held[note] = false
	if (s.auto || s.pedal) && !s.synth() {
		s.sustained[note] = true
		s.mu.Unlock()
		return
	}
	s.sustained[note] = false
	s.mu.Unlock()

	s.config.Player.Stop(note, s.config.Local(), 0)
}

// PressSustain puts the pedal down
func (s *Sustain) PressSustain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pedal = true
}

// ReleaseSustain lifts the pedal and stops every ringing note that isn't
// held. Auto sustain keeps them ringing.
func (s *Sustain) ReleaseSustain() {
	s.mu.Lock()
	s.pedal = false
	if s.auto {
		s.mu.Unlock()
		return
	}
	var stop []string
	for note, ringing := range s.sustained {
		if ringing && !s.held[note] {
			s.sustained[note] = false
			stop = append(stop, note)
		}
	}
	s.mu.Unlock()

	sort.Strings(stop)
	local := s.config.Local()
	for _, note := range stop {
		s.config.Player.Stop(note, local, 0)
	}
}

// SetAutoSustain toggles auto sustain
func (s *Sustain) SetAutoSustain(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto = on
}

// AutoSustain reports whether auto sustain is on
func (s *Sustain) AutoSustain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auto
}

// Pedal reports whether the sustain pedal is down
func (s *Sustain) Pedal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pedal
}

// Held reports whether note is held down
func (s *Sustain) Held(note string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[note]
}

// Sustained reports whether note is still ringing after its press
func (s *Sustain) Sustained(note string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sustained[note]
}

func (s *Sustain) synth() bool {
	return s.config.Synth != nil && s.config.Synth()
}
