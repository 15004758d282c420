// ABOUTME: Software audio graph pulled by an output device
// ABOUTME: Owns the sample clock, the instrument buses, the limiter and master gain
package mixer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

const (
	// DefaultBusGain is the level of the piano and synth buses
	DefaultBusGain = 0.5
	// DefaultVolume is the master gain at startup
	DefaultVolume = 0.6
)

// Config holds graph settings
type Config struct {
	SampleRate int
	Channels   int
	// Volume is the initial master gain; nil means DefaultVolume
	Volume  *float64
	BusGain float64
	Limiter *LimiterConfig
	Logger  *zap.Logger
}

// Graph is voice gains -> piano/synth bus -> limiter -> master -> output.
// Its clock only advances while running and while being rendered.
type Graph struct {
	mu       sync.Mutex
	rate     float64
	channels int
	frame    atomic.Int64
	running  atomic.Bool

	pianoBus *Gain
	synthBus *Gain
	master   *Gain
	limiter  *Limiter
	sources  []source

	logger *zap.Logger
}

// New creates a suspended graph
func New(cfg Config) (*Graph, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", cfg.Channels)
	}
	volume := DefaultVolume
	if cfg.Volume != nil {
		volume = clampUnit(*cfg.Volume)
	}
	if cfg.BusGain == 0 {
		cfg.BusGain = DefaultBusGain
	}
	limiter := DefaultLimiter
	if cfg.Limiter != nil {
		limiter = *cfg.Limiter
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	g := &Graph{
		rate:     float64(cfg.SampleRate),
		channels: cfg.Channels,
		limiter:  NewLimiter(cfg.SampleRate, limiter),
		logger:   cfg.Logger.Named("mixer"),
	}
	g.master = &Gain{Gain: newParam(&g.mu, volume), name: "master"}
	g.pianoBus = &Gain{Gain: newParam(&g.mu, cfg.BusGain), name: "piano"}
	g.synthBus = &Gain{Gain: newParam(&g.mu, cfg.BusGain), name: "synth"}

	g.logger.Debug("graph created",
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("channels", cfg.Channels),
		zap.Float64("volume", volume))
	return g, nil
}

// SampleRate returns the rendering rate in Hz
func (g *Graph) SampleRate() int { return int(g.rate) }

// Channels returns the output channel count
func (g *Graph) Channels() int { return g.channels }

// PianoBus is the destination for sampled piano voices
func (g *Graph) PianoBus() *Gain { return g.pianoBus }

// SynthBus is the destination for oscillator voices
func (g *Graph) SynthBus() *Gain { return g.synthBus }

// NewGain creates a voice gain routed into bus
func (g *Graph) NewGain(value float64, bus *Gain) *Gain {
	return &Gain{Gain: newParam(&g.mu, value), name: "voice", out: bus}
}

// CurrentTime returns the graph clock in seconds
func (g *Graph) CurrentTime() float64 {
	return float64(g.frame.Load()) / g.rate
}

// Resume lets the clock run
func (g *Graph) Resume() {
	if !g.running.Swap(true) {
		// gain reduction from before the suspend no longer applies
		g.mu.Lock()
		g.limiter.Reset()
		g.mu.Unlock()
		g.logger.Info("graph resumed", zap.Float64("time", g.CurrentTime()))
	}
}

// Suspend freezes the clock; Render emits silence
func (g *Graph) Suspend() {
	if g.running.Swap(false) {
		g.logger.Info("graph suspended", zap.Float64("time", g.CurrentTime()))
	}
}

// Running reports whether the clock is advancing
func (g *Graph) Running() bool {
	return g.running.Load()
}

// SetVolume sets master gain, clamped to [0, 1]
func (g *Graph) SetVolume(v float64) {
	g.master.Gain.SetValue(clampUnit(v))
}

// Volume returns the current master gain
func (g *Graph) Volume() float64 {
	return g.master.Gain.ValueAt(g.CurrentTime())
}

// ActiveSources returns how many sources are scheduled or playing
func (g *Graph) ActiveSources() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sources)
}

// Render fills out with interleaved frames and advances the clock by len(out)/channels frames.
// A suspended graph writes silence and does not advance.
func (g *Graph) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}
	if !g.running.Load() {
		return
	}
	n := len(out) / g.channels
	if n == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	f0 := g.frame.Load()
	buses := [...]*Gain{g.pianoBus, g.synthBus}
	for _, bus := range buses {
		if cap(bus.buf) < len(out) {
			bus.buf = make([]float32, len(out))
		}
		bus.buf = bus.buf[:len(out)]
		for i := range bus.buf {
			bus.buf[i] = 0
		}
	}

	live := g.sources[:0]
	for _, src := range g.sources {
		if src.render(src.output().out.buf, g.channels, f0, n, g.rate) {
			continue
		}
		live = append(live, src)
	}
	for i := len(live); i < len(g.sources); i++ {
		g.sources[i] = nil
	}
	g.sources = live

	for i := 0; i < n; i++ {
		t := float64(f0+int64(i)) / g.rate
		frame := out[i*g.channels : (i+1)*g.channels]
		for _, bus := range buses {
			bg := float32(bus.Gain.valueAt(t))
			for ch := range frame {
				frame[ch] += bus.buf[i*g.channels+ch] * bg
			}
		}
		g.limiter.Process(frame)
		mg := float32(g.master.Gain.valueAt(t))
		for ch := range frame {
			frame[ch] = audio.Clamp(frame[ch] * mg)
		}
	}

	end := float64(f0+int64(n)) / g.rate
	for _, bus := range buses {
		bus.Gain.prune(end)
	}
	g.master.Gain.prune(end)
	for _, src := range g.sources {
		src.output().Gain.prune(end)
	}
	g.frame.Store(f0 + int64(n))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
