// ABOUTME: Audio engine facade routing play/stop requests by delay
// ABOUTME: Owns the graph, sample store, voice manager and lookahead scheduler
package piano

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
	"github.com/Resonate-Protocol/pianoroom/pkg/audio/output"
	"github.com/Resonate-Protocol/pianoroom/pkg/lookahead"
	"github.com/Resonate-Protocol/pianoroom/pkg/mixer"
	"github.com/Resonate-Protocol/pianoroom/pkg/samples"
	"github.com/Resonate-Protocol/pianoroom/pkg/voice"
)

// Config holds engine configuration
type Config struct {
	// SampleRate of the graph (default: 48000)
	SampleRate int

	// Channels of the graph (default: 2)
	Channels int

	// Volume is the initial master gain 0-1; nil means 0.6
	Volume *float64

	// Threshold is how far ahead a request may be before it goes through
	// the lookahead scheduler instead of straight to the graph (default: 0)
	Threshold time.Duration

	// EnableSynth layers a square oscillator under every note
	EnableSynth bool

	// AutoResume starts the engine unpaused
	AutoResume bool

	// Output pulls audio from the graph; nil leaves rendering to the caller
	Output output.Output

	// Fetcher overrides the default HTTP/file sample fetcher
	Fetcher samples.Fetcher

	// CacheDir enables the on-disk sample cache for the default fetcher
	CacheDir string

	// ClearCache removes CacheDir when the engine closes
	ClearCache bool

	// LoadConcurrency bounds parallel sample loads (default: 8)
	LoadConcurrency int

	// RawFormat describes headerless .pcm samples
	RawFormat audio.Format

	// OnVoiceStarted is called after a play actually started a voice
	OnVoiceStarted func(noteID, ownerID string)

	Logger *zap.Logger
}

// Stats is a snapshot of engine activity
type Stats struct {
	Voices        voice.Stats
	Sounding      int
	Sources       int
	Pending       int
	Loaded        int
	Time          float64
	Paused        bool
	LookaheadSent int64
}

// Engine schedules piano notes onto the mixer graph
type Engine struct {
	cfg       Config
	graph     *mixer.Graph
	store     *samples.Store
	voices    *voice.Manager
	scheduler *lookahead.Scheduler
	out       output.Output
	cache     *samples.Downloader
	threshold atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewEngine builds the graph, opens the output and starts the scheduler.
// The engine starts paused unless cfg.AutoResume is set.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.LoadConcurrency == 0 {
		cfg.LoadConcurrency = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.Named("engine")

	graph, err := mixer.New(mixer.Config{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Volume:     cfg.Volume,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mixer: %w", err)
	}

	var cache *samples.Downloader
	fetcher := cfg.Fetcher
	if fetcher == nil {
		d, err := samples.NewDownloader(samples.FetcherConfig{CacheDir: cfg.CacheDir, Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("failed to create sample fetcher: %w", err)
		}
		fetcher = d
		if cfg.ClearCache {
			cache = d
		}
	}
	store := samples.NewStore(samples.Config{
		SampleRate:  cfg.SampleRate,
		Fetcher:     fetcher,
		Concurrency: cfg.LoadConcurrency,
		RawFormat:   cfg.RawFormat,
		Logger:      cfg.Logger,
	})

	voices := voice.NewManager(voice.Config{
		Graph:       graph,
		Samples:     store,
		EnableSynth: cfg.EnableSynth,
		Frequency:   Frequency,
		Logger:      cfg.Logger,
	})
	voices.SetPaused(true)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		graph:     graph,
		store:     store,
		voices:    voices,
		scheduler: lookahead.New(lookahead.Config{Logger: cfg.Logger}),
		out:       cfg.Output,
		cache:     cache,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
	e.threshold.Store(int64(cfg.Threshold))

	if e.out != nil {
		if err := e.out.Open(cfg.SampleRate, cfg.Channels, graph); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open output: %w", err)
		}
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.scheduler.Run()
	}()
	go func() {
		defer e.wg.Done()
		e.dispatch()
	}()

	logger.Info("engine started",
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("channels", cfg.Channels),
		zap.Duration("threshold", cfg.Threshold),
		zap.Bool("synth", cfg.EnableSynth))

	if cfg.AutoResume {
		if err := e.Resume(); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Play starts noteID after delay. Notes without a loaded sample are ignored.
func (e *Engine) Play(noteID string, velocity float64, delay time.Duration, ownerID string) {
	if !e.store.Has(noteID) {
		return
	}
	if delay < 0 {
		delay = 0
	}
	at := e.graph.CurrentTime() + delay.Seconds()
	if wait := delay - e.Threshold(); wait > 0 {
		e.scheduler.Post(wait, lookahead.Event{
			Kind:     lookahead.Play,
			NoteID:   noteID,
			OwnerID:  ownerID,
			Velocity: velocity,
			At:       at,
		})
		return
	}
	e.playAt(noteID, velocity, at, ownerID)
}

// Stop releases noteID after delay if ownerID started it
func (e *Engine) Stop(noteID string, delay time.Duration, ownerID string) {
	if delay < 0 {
		delay = 0
	}
	at := e.graph.CurrentTime() + delay.Seconds()
	if wait := delay - e.Threshold(); wait > 0 {
		e.scheduler.Post(wait, lookahead.Event{
			Kind:    lookahead.Stop,
			NoteID:  noteID,
			OwnerID: ownerID,
			At:      at,
		})
		return
	}
	e.voices.StopNote(noteID, at, ownerID)
}

func (e *Engine) playAt(noteID string, velocity, at float64, ownerID string) {
	if !e.voices.PlayNote(noteID, velocity, at, ownerID) {
		return
	}
	if e.cfg.OnVoiceStarted != nil {
		e.cfg.OnVoiceStarted(noteID, ownerID)
	}
}

// dispatch applies events handed back by the lookahead scheduler
func (e *Engine) dispatch() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-e.scheduler.Events():
			switch ev.Kind {
			case lookahead.Play:
				e.playAt(ev.NoteID, ev.Velocity, ev.At, ev.OwnerID)
			case lookahead.Stop:
				e.voices.StopNote(ev.NoteID, ev.At, ev.OwnerID)
			}
		}
	}
}

// ReleaseAll releases every sounding note after delay, whoever owns it
func (e *Engine) ReleaseAll(delay time.Duration) int {
	if delay < 0 {
		delay = 0
	}
	return e.voices.ReleaseAll(e.graph.CurrentTime() + delay.Seconds())
}

// Load fetches a sample in the background; see samples.Store.Load
func (e *Engine) Load(ctx context.Context, noteID, locator string) <-chan error {
	return e.store.Load(ctx, noteID, locator)
}

// LoadPack loads every key of a pack, calling onLoaded as each one lands
func (e *Engine) LoadPack(ctx context.Context, pack samples.Pack, base string, onLoaded func(noteID string)) error {
	locators, err := pack.Locators(base)
	if err != nil {
		return err
	}
	start := time.Now()
	err = e.store.LoadAll(ctx, locators, onLoaded)
	e.logger.Info("sound pack loaded",
		zap.String("pack", pack.Name),
		zap.Int("keys", len(locators)),
		zap.Int("loaded", e.store.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return err
}

// Loaded reports whether noteID has a sample
func (e *Engine) Loaded(noteID string) bool {
	return e.store.Has(noteID)
}

// SetVolume sets master gain immediately, clamped to [0, 1]
func (e *Engine) SetVolume(v float64) {
	e.graph.SetVolume(v)
	e.logger.Debug("volume set", zap.Float64("volume", e.graph.Volume()))
}

// Volume returns the master gain
func (e *Engine) Volume() float64 {
	return e.graph.Volume()
}

// Resume unpauses the engine and starts the clock and device
func (e *Engine) Resume() error {
	e.voices.SetPaused(false)
	e.graph.Resume()
	if e.out != nil {
		if err := e.out.Resume(); err != nil {
			return fmt.Errorf("failed to resume output: %w", err)
		}
	}
	return nil
}

// Pause refuses new notes; sounding voices ring out
func (e *Engine) Pause() {
	e.voices.SetPaused(true)
	e.logger.Info("engine paused")
}

// Paused reports whether new notes are refused
func (e *Engine) Paused() bool {
	return e.voices.Paused()
}

// SetThreshold changes the lookahead threshold for subsequent requests
func (e *Engine) SetThreshold(d time.Duration) {
	e.threshold.Store(int64(d))
}

// Threshold returns the lookahead threshold
func (e *Engine) Threshold() time.Duration {
	return time.Duration(e.threshold.Load())
}

// CurrentTime returns the graph clock in seconds
func (e *Engine) CurrentTime() float64 {
	return e.graph.CurrentTime()
}

// Graph exposes the mixer graph, e.g. to render without a device
func (e *Engine) Graph() *mixer.Graph {
	return e.graph
}

// Voices exposes the voice table for inspection
func (e *Engine) Voices() *voice.Manager {
	return e.voices
}

// Stats returns a snapshot of engine activity
func (e *Engine) Stats() Stats {
	return Stats{
		Voices:        e.voices.Stats(),
		Sounding:      e.voices.Len(),
		Sources:       e.graph.ActiveSources(),
		Pending:       e.scheduler.Pending(),
		Loaded:        e.store.Len(),
		Time:          e.graph.CurrentTime(),
		Paused:        e.voices.Paused(),
		LookaheadSent: e.scheduler.Stats().Posted,
	}
}

// Close stops the scheduler, discards pending events and releases the output
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		e.scheduler.Stop()
		e.wg.Wait()
		e.graph.Suspend()
		if e.out != nil {
			if cerr := e.out.Close(); cerr != nil {
				err = fmt.Errorf("failed to close output: %w", cerr)
			}
		}
		if e.cache != nil {
			if cerr := e.cache.Cleanup(); cerr != nil {
				e.logger.Warn("failed to remove sample cache", zap.Error(cerr))
			}
		}
		e.logger.Info("engine closed")
	})
	return err
}
