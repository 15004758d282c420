// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests 16-bit and 24-bit PCM decoding
package decode

import (
	"testing"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

func TestNewPCMValidation(t *testing.T) {
	if _, err := NewPCM(audio.Format{Codec: "mp3", SampleRate: 48000, Channels: 2}); err == nil {
		t.Error("expected error for wrong codec")
	}
	if _, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 8}); err == nil {
		t.Error("expected error for 8-bit pcm")
	}
	if _, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 16}); err == nil {
		t.Error("expected error without sample rate")
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 0x4000 = 16384 (0.5), 0xC000 = -16384 (-0.5)
	input := []byte{0x00, 0x40, 0x00, 0xC0}
	sample, err := decoder.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if sample.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", sample.Frames())
	}
	if sample.Data[0] != 0.5 || sample.Data[1] != -0.5 {
		t.Errorf("unexpected samples %v", sample.Data)
	}
}

func TestPCMDecode24Bit(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 1, BitDepth: 24})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 0x400000 = 2^22 (0.5), trailing partial frame is ignored
	input := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0, 0x01}
	sample, err := decoder.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if sample.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", sample.Frames())
	}
	if sample.Data[0] != 0.5 || sample.Data[1] != -0.5 {
		t.Errorf("unexpected samples %v", sample.Data)
	}
	if sample.SampleRate != 44100 {
		t.Errorf("expected 44100Hz, got %d", sample.SampleRate)
	}
}
