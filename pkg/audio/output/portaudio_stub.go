//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"

	"go.uber.org/zap"
)

var errNoPortAudio = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(*zap.Logger) Output {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(int, int, Renderer) error { return errNoPortAudio }

// Resume restarts the stream
func (p *PortAudio) Resume() error { return errNoPortAudio }

// Suspend stops the stream
func (p *PortAudio) Suspend() error { return errNoPortAudio }

// Close releases resources
func (p *PortAudio) Close() error { return errNoPortAudio }
