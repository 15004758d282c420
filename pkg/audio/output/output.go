// ABOUTME: Audio output interface definition
// ABOUTME: Common pull-based interface for playback backends
package output

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ErrNotOpen is returned when a device is used before Open
var ErrNotOpen = errors.New("output not open")

// Renderer produces interleaved float32 frames on demand
type Renderer interface {
	Render(out []float32)
}

// Output represents an audio output device that pulls from a Renderer
type Output interface {
	// Open initializes the device and starts pulling from src
	Open(sampleRate, channels int, src Renderer) error

	// Resume restarts a suspended device
	Resume() error

	// Suspend stops pulling without releasing the device
	Suspend() error

	// Close releases output resources
	Close() error
}

var backends = map[string]func(*zap.Logger) Output{
	"oto":       NewOto,
	"malgo":     NewMalgo,
	"portaudio": NewPortAudio,
	"headless":  func(l *zap.Logger) Output { return NewHeadless(HeadlessConfig{Logger: l}) },
}

// Backends lists the names accepted by New
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates an output by backend name; an empty name selects oto
func New(backend string, logger *zap.Logger) (Output, error) {
	if backend == "" {
		backend = "oto"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctor, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("unknown output backend %q (available: %v)", backend, Backends())
	}
	return ctor(logger), nil
}
