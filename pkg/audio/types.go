// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded note samples and sample format conversions
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes an encoded audio payload
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Sample is a decoded, immutable audio buffer for one note.
// Data is interleaved float32 PCM in the range [-1, 1].
type Sample struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// NewSample validates and wraps interleaved PCM data
func NewSample(sampleRate, channels int, data []float32) (*Sample, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("sample data length %d is not a multiple of %d channels", len(data), channels)
	}
	return &Sample{SampleRate: sampleRate, Channels: channels, Data: data}, nil
}

// Frames returns the number of frames (samples per channel)
func (s *Sample) Frames() int {
	if s == nil || s.Channels == 0 {
		return 0
	}
	return len(s.Data) / s.Channels
}

// Duration returns the playback length at the sample's own rate
func (s *Sample) Duration() time.Duration {
	if s == nil || s.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Frame returns the value of channel ch at frame i, upmixing mono to any channel
func (s *Sample) Frame(i, ch int) float32 {
	if s.Channels == 1 {
		return s.Data[i]
	}
	if ch >= s.Channels {
		ch = s.Channels - 1
	}
	return s.Data[i*s.Channels+ch]
}

// FloatFromInt16 converts a 16-bit sample to float32
func FloatFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// FloatToInt16 converts a float32 sample to int16 with clipping
func FloatToInt16(sample float32) int16 {
	return int16(Clamp(sample) * 32767)
}

// FloatFromInt converts a signed integer sample of the given bit depth to float32
func FloatFromInt(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	scale := float64(int64(1) << uint(bitDepth-1))
	return float32(float64(sample) / scale)
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// Clamp limits a sample to [-1, 1]
func Clamp(sample float32) float32 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}
