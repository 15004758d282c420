// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a float32 data callback pulling the renderer
package output

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	src        Renderer
	sampleRate int
	channels   int
	buf        []float32
	logger     *zap.Logger
}

// NewMalgo creates a new Malgo output
func NewMalgo(logger *zap.Logger) Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Malgo{logger: logger.Named("malgo")}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int, src Renderer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.logger.Info("reinitializing device",
			zap.Int("old_rate", m.sampleRate), zap.Int("new_rate", sampleRate))
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	m.src = src
	m.sampleRate = sampleRate
	m.channels = channels

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.device = device

	m.logger.Info("audio output initialized",
		zap.Int("sample_rate", sampleRate),
		zap.Int("channels", channels),
		zap.String("format", "f32"))
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	n := int(frameCount) * m.channels
	if cap(m.buf) < n {
		m.buf = make([]float32, n)
	}
	m.buf = m.buf[:n]
	m.src.Render(m.buf)
	encodeFloat32LE(pOutput, m.buf)
}

// Resume restarts the device
func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return ErrNotOpen
	}
	if m.device.IsStarted() {
		return nil
	}
	return m.device.Start()
}

// Suspend stops the device callback
func (m *Malgo) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return ErrNotOpen
	}
	return m.device.Stop()
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.logger.Warn("malgo context uninit error", zap.Error(err))
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		m.logger.Warn("device stop error", zap.Error(err))
	}
	m.device.Uninit()
	m.device = nil
}
