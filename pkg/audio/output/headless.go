// ABOUTME: Headless output that renders in real time without a sound device
// ABOUTME: Keeps the graph clock moving on servers and in tests; blocks can be tapped
package output

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HeadlessConfig configures the headless output
type HeadlessConfig struct {
	// Tick is how often a block is rendered (default 10ms)
	Tick time.Duration
	// OnBlock receives every rendered block; the slice is reused after return
	OnBlock func([]float32)
	Logger  *zap.Logger
}

// Headless renders on a ticker, pacing frames against the wall clock
type Headless struct {
	cfg    HeadlessConfig
	mu     sync.Mutex
	src    Renderer
	rate   int
	chans  int
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	frames int64
	logger *zap.Logger
}

// NewHeadless creates a headless output
func NewHeadless(cfg HeadlessConfig) *Headless {
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Headless{cfg: cfg, logger: cfg.Logger.Named("headless")}
}

// Open starts the render loop
func (h *Headless) Open(sampleRate, channels int, src Renderer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = src
	h.rate = sampleRate
	h.chans = channels
	h.logger.Info("headless output initialized",
		zap.Int("sample_rate", sampleRate),
		zap.Int("channels", channels),
		zap.Duration("tick", h.cfg.Tick))
	h.startLocked()
	return nil
}

// Resume restarts the render loop
func (h *Headless) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.src == nil {
		return ErrNotOpen
	}
	h.startLocked()
	return nil
}

// Suspend stops the render loop
func (h *Headless) Suspend() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.src == nil {
		return ErrNotOpen
	}
	h.stopLocked()
	return nil
}

// Close stops rendering
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	return nil
}

// Frames returns the number of frames rendered so far
func (h *Headless) Frames() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

func (h *Headless) startLocked() {
	if h.cancel != nil {
		return
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.done = make(chan struct{})
	go h.loop(h.ctx, h.done)
}

func (h *Headless) stopLocked() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	done := h.done
	h.mu.Unlock()
	<-done
	h.mu.Lock()
}

func (h *Headless) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cfg.Tick)
	defer ticker.Stop()

	h.mu.Lock()
	src, rate, chans := h.src, h.rate, h.chans
	h.mu.Unlock()

	start := time.Now()
	var rendered int64
	var buf []float32

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due := int64(now.Sub(start).Seconds() * float64(rate))
			n := int(due - rendered)
			if n <= 0 {
				continue
			}
			if cap(buf) < n*chans {
				buf = make([]float32, n*chans)
			}
			buf = buf[:n*chans]
			src.Render(buf)
			rendered += int64(n)
			if h.cfg.OnBlock != nil {
				h.cfg.OnBlock(buf)
			}
			h.mu.Lock()
			h.frames += int64(n)
			h.mu.Unlock()
		}
	}
}
