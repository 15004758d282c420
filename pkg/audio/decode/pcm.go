// ABOUTME: PCM audio decoder
// ABOUTME: Decodes headerless 16-bit and 24-bit little-endian PCM
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth == 0 {
		format.BitDepth = 16
	}
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("pcm needs sample rate and channels, got %dHz/%dch", format.SampleRate, format.Channels)
	}

	return &PCMDecoder{format: format}, nil
}

// Decode converts PCM bytes to a sample
func (d *PCMDecoder) Decode(data []byte) (*audio.Sample, error) {
	bytesPerSample := d.format.BitDepth / 8
	frameSize := bytesPerSample * d.format.Channels
	numFrames := len(data) / frameSize
	samples := make([]float32, numFrames*d.format.Channels)

	for i := range samples {
		off := i * bytesPerSample
		if bytesPerSample == 3 {
			v := audio.SampleFrom24Bit([3]byte{data[off], data[off+1], data[off+2]})
			samples[i] = audio.FloatFromInt(v, 24)
		} else {
			samples[i] = audio.FloatFromInt16(int16(binary.LittleEndian.Uint16(data[off:])))
		}
	}

	return audio.NewSample(d.format.SampleRate, d.format.Channels, samples)
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
