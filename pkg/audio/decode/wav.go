// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE files using go-wav
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
	"github.com/youpy/go-wav"
)

// WAVDecoder decodes WAV files
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV(format audio.Format) (Decoder, error) {
	if format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for WAV decoder: %s", format.Codec)
	}
	return &WAVDecoder{}, nil
}

// Decode converts a WAV file to a sample
func (d *WAVDecoder) Decode(data []byte) (*audio.Sample, error) {
	r := wav.NewReader(bytes.NewReader(data))

	f, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("wav header: %w", err)
	}

	// go-wav exposes at most two channels per frame
	channels := int(f.NumChannels)
	if channels > 2 {
		channels = 2
	}
	if channels == 0 {
		return nil, fmt.Errorf("wav has no channels")
	}

	bits := int(f.BitsPerSample)

	var out []float32
	for {
		samples, err := r.ReadSamples()
		for _, s := range samples {
			for ch := 0; ch < channels; ch++ {
				v := s.Values[ch]
				if bits == 8 {
					// 8-bit WAV is unsigned
					v -= 128
				}
				out = append(out, audio.FloatFromInt(int32(v), bits))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wav decode error: %w", err)
		}
	}

	return audio.NewSample(int(f.SampleRate), channels, out)
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return nil
}
