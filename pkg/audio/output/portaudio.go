//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a float32 PortAudio callback
package output

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// PortAudio output implementation
type PortAudio struct {
	stream *portaudio.Stream
	logger *zap.Logger
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(logger *zap.Logger) Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortAudio{logger: logger.Named("portaudio")}
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int, src Renderer) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 0, func(out []float32) {
		src.Render(out)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.logger.Info("audio output initialized",
		zap.Int("sample_rate", sampleRate),
		zap.Int("channels", channels))
	return nil
}

// Resume restarts the stream
func (p *PortAudio) Resume() error {
	if p.stream == nil {
		return ErrNotOpen
	}
	return p.stream.Start()
}

// Suspend stops the stream
func (p *PortAudio) Suspend() error {
	if p.stream == nil {
		return ErrNotOpen
	}
	return p.stream.Stop()
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			return err
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}
