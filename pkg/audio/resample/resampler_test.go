// ABOUTME: Tests for the linear resampler
// ABOUTME: Verifies frame counts, interpolation and pass-through behaviour
package resample

import (
	"math"
	"testing"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

func TestSameRatePassThrough(t *testing.T) {
	s := &audio.Sample{SampleRate: 48000, Channels: 1, Data: []float32{1, 2, 3}}
	if got := Sample(s, 48000); got != s {
		t.Error("expected identical sample when rates match")
	}
}

func TestUpsampleInterpolates(t *testing.T) {
	r := New(24000, 48000, 1)
	out := r.Resample([]float32{0, 1, 0})

	expected := []float32{0, 0.5, 1, 0.5, 0}
	if len(out) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(out))
	}
	for i := range expected {
		if math.Abs(float64(out[i]-expected[i])) > 1e-6 {
			t.Errorf("sample %d: expected %v, got %v", i, expected[i], out[i])
		}
	}
}

func TestDownsampleStereo(t *testing.T) {
	s := &audio.Sample{
		SampleRate: 96000,
		Channels:   2,
		Data:       []float32{0, 0, 0.25, -0.25, 0.5, -0.5, 0.75, -0.75, 1, -1},
	}

	out := Sample(s, 48000)
	if out.SampleRate != 48000 {
		t.Errorf("expected 48000Hz, got %d", out.SampleRate)
	}
	if out.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", out.Frames())
	}
	if out.Data[2] != 0.5 || out.Data[3] != -0.5 {
		t.Errorf("expected frame 1 = (0.5, -0.5), got (%v, %v)", out.Data[2], out.Data[3])
	}
}

func TestEmptyInput(t *testing.T) {
	r := New(44100, 48000, 2)
	if out := r.Resample(nil); out != nil {
		t.Errorf("expected nil output, got %v", out)
	}
}

func BenchmarkResampleSecond(b *testing.B) {
	input := make([]float32, 44100*2)
	r := New(44100, 48000, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Resample(input)
	}
}
