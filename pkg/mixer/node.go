// ABOUTME: Graph nodes: gain stages, one-shot buffer sources and oscillators
// ABOUTME: Sources render frame-by-frame into their bus with per-frame gain automation
package mixer

import (
	"math"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

// Gain scales everything routed through it
type Gain struct {
	Gain *Param
	name string
	out  *Gain
	buf  []float32 // bus accumulation, nil for voice gains
}

// Name returns the node label used in logs
func (g *Gain) Name() string { return g.name }

// source is anything the graph pulls audio from
type source interface {
	// render adds frames [f0, f0+n) into dst and reports whether the source finished
	render(dst []float32, channels int, f0 int64, n int, rate float64) bool
	output() *Gain
}

// playback holds the start/stop window shared by all one-shot sources
type playback struct {
	gain      *Gain
	startTime float64
	stopTime  float64
	started   bool
	done      bool
}

func (p *playback) output() *Gain { return p.gain }

// StartTime returns the scheduled start in graph seconds
func (p *playback) StartTime() float64 { return p.startTime }

// StopTime returns the scheduled stop, or +Inf when none is set
func (p *playback) StopTime() float64 { return p.stopTime }

// BufferSource plays a decoded sample once from its beginning
type BufferSource struct {
	playback
	g      *Graph
	sample *audio.Sample
	pos    int
}

// Oscillator generates a square wave until stopped
type Oscillator struct {
	playback
	g     *Graph
	freq  float64
	phase float64
}

// NewBufferSource creates a source that will play s through gain
func (g *Graph) NewBufferSource(s *audio.Sample, gain *Gain) *BufferSource {
	return &BufferSource{
		playback: playback{gain: gain, stopTime: math.Inf(1)},
		g:        g,
		sample:   s,
	}
}

// NewOscillator creates a square-wave source at freq Hz
func (g *Graph) NewOscillator(freq float64, gain *Gain) *Oscillator {
	return &Oscillator{
		playback: playback{gain: gain, stopTime: math.Inf(1)},
		g:        g,
		freq:     freq,
	}
}

// Start schedules playback at graph time t; a past t starts on the next rendered frame
func (s *BufferSource) Start(t float64) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.startTime = t
	s.g.addLocked(s, &s.playback)
}

// addLocked registers a started source. Sources whose gain does not feed
// one of the graph's buses would never be rendered, so they finish at once.
func (g *Graph) addLocked(src source, p *playback) {
	if p.gain == nil || (p.gain.out != g.pianoBus && p.gain.out != g.synthBus) {
		name := "<nil>"
		if p.gain != nil {
			name = p.gain.name
		}
		g.logger.Warn("source not routed to a bus, dropping", zap.String("gain", name))
		p.done = true
		return
	}
	g.sources = append(g.sources, src)
}

// Stop schedules the end of playback at graph time t
func (s *BufferSource) Stop(t float64) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	s.stopTime = t
}

// Done reports whether the source finished and left the graph
func (s *BufferSource) Done() bool {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.done
}

func (s *BufferSource) render(dst []float32, channels int, f0 int64, n int, rate float64) bool {
	startFrame := frameAt(s.startTime, rate)
	stopFrame := frameAt(s.stopTime, rate)
	frames := s.sample.Frames()
	for i := 0; i < n; i++ {
		f := f0 + int64(i)
		if f < startFrame {
			continue
		}
		if f >= stopFrame || s.pos >= frames {
			s.done = true
			return true
		}
		gain := float32(s.gain.Gain.valueAt(float64(f) / rate))
		for ch := 0; ch < channels; ch++ {
			dst[i*channels+ch] += s.sample.Frame(s.pos, ch) * gain
		}
		s.pos++
	}
	if s.pos >= frames {
		s.done = true
	}
	return s.done
}

// Start schedules the oscillator at graph time t
func (o *Oscillator) Start(t float64) {
	o.g.mu.Lock()
	defer o.g.mu.Unlock()
	if o.started {
		return
	}
	o.started = true
	o.startTime = t
	o.g.addLocked(o, &o.playback)
}

// Stop schedules the end of the oscillator at graph time t
func (o *Oscillator) Stop(t float64) {
	o.g.mu.Lock()
	defer o.g.mu.Unlock()
	o.stopTime = t
}

// Done reports whether the oscillator stopped and left the graph
func (o *Oscillator) Done() bool {
	o.g.mu.Lock()
	defer o.g.mu.Unlock()
	return o.done
}

func (o *Oscillator) render(dst []float32, channels int, f0 int64, n int, rate float64) bool {
	startFrame := frameAt(o.startTime, rate)
	stopFrame := frameAt(o.stopTime, rate)
	step := o.freq / rate
	for i := 0; i < n; i++ {
		f := f0 + int64(i)
		if f < startFrame {
			continue
		}
		if f >= stopFrame {
			o.done = true
			return true
		}
		v := float32(1)
		if o.phase >= 0.5 {
			v = -1
		}
		v *= float32(o.gain.Gain.valueAt(float64(f) / rate))
		for ch := 0; ch < channels; ch++ {
			dst[i*channels+ch] += v
		}
		o.phase += step
		if o.phase >= 1 {
			o.phase -= math.Floor(o.phase)
		}
	}
	return false
}

// frameAt maps graph seconds to the first frame at or after t
func frameAt(t float64, rate float64) int64 {
	if math.IsInf(t, 1) {
		return math.MaxInt64
	}
	if t <= 0 {
		return 0
	}
	return int64(math.Ceil(t*rate - 1e-6))
}
