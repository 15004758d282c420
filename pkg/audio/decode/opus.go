// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Ogg/Opus files using libopusfile
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

// OpusDecoder decodes Ogg/Opus audio
type OpusDecoder struct {
	channels int
}

// NewOpus creates a new Opus decoder.
// The stream does not report its channel count, so it comes from format (default stereo).
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	channels := format.Channels
	if channels <= 0 {
		channels = 2
	}

	return &OpusDecoder{channels: channels}, nil
}

// Decode converts an Ogg/Opus file to a sample
func (d *OpusDecoder) Decode(data []byte) (*audio.Sample, error) {
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	pcm := make([]int16, 5760*d.channels)
	var out []float32
	for {
		n, err := stream.Read(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		for _, s := range pcm[:n*d.channels] {
			out = append(out, audio.FloatFromInt16(s))
		}
	}

	return audio.NewSample(opusSampleRate, d.channels, out)
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
