// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 frames rendered on demand into an oto player
package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// otoBufferDuration bounds device latency; the graph clock runs this far ahead of the speaker
const otoBufferDuration = 20 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
	logger     *zap.Logger
}

// NewOto creates a new Oto output
func NewOto(logger *zap.Logger) Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oto{logger: logger.Named("oto")}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int, src Renderer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// oto allows one context per process
	if o.otoCtx != nil {
		return fmt.Errorf("oto output already open at %dHz/%dch", o.sampleRate, o.channels)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferDuration,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	o.player = ctx.NewPlayer(&renderReader{src: src, channels: channels})
	o.player.SetBufferSize(int(otoBufferDuration.Seconds()*float64(sampleRate)) * channels * 4)
	o.player.Play()

	o.logger.Info("audio output initialized",
		zap.Int("sample_rate", sampleRate),
		zap.Int("channels", channels))
	return nil
}

// Resume restarts the oto context
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx == nil {
		return ErrNotOpen
	}
	return o.otoCtx.Resume()
}

// Suspend pauses the oto context
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx == nil {
		return ErrNotOpen
	}
	return o.otoCtx.Suspend()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.logger.Warn("player close error", zap.Error(err))
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

// renderReader adapts a Renderer to the io.Reader oto pulls from
type renderReader struct {
	src      Renderer
	channels int
	buf      []float32
}

func (r *renderReader) Read(p []byte) (int, error) {
	frameBytes := 4 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.channels
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	r.buf = r.buf[:n]
	r.src.Render(r.buf)
	encodeFloat32LE(p, r.buf)
	return n * 4, nil
}

// encodeFloat32LE writes samples as little-endian float32 into dst
func encodeFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}
