// ABOUTME: Simple linear resampler for converting note samples to the mixer rate
// ABOUTME: Uses linear interpolation over interleaved float32 frames
package resample

import "github.com/Resonate-Protocol/pianoroom/pkg/audio"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// OutputFrames returns how many frames Resample produces for the given input frame count
func (r *Resampler) OutputFrames(inputFrames int) int {
	if inputFrames == 0 {
		return 0
	}
	return int(float64(inputFrames-1)/r.ratio) + 1
}

// Resample converts input samples to the output rate using linear interpolation.
// input and the returned slice are interleaved.
func (r *Resampler) Resample(input []float32) []float32 {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return nil
	}

	outputFrames := r.OutputFrames(inputFrames)
	output := make([]float32, outputFrames*r.channels)

	for outIdx := 0; outIdx < outputFrames; outIdx++ {
		inputPos := float64(outIdx) * r.ratio
		inputIdx := int(inputPos)
		frac := float32(inputPos - float64(inputIdx))

		next := inputIdx + 1
		if next >= inputFrames {
			next = inputFrames - 1
		}

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[next*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}
	}

	return output
}

// Sample converts a whole sample to the target rate, returning it unchanged if the rates match
func Sample(s *audio.Sample, outputRate int) *audio.Sample {
	if s == nil || s.SampleRate == outputRate || outputRate <= 0 {
		return s
	}
	r := New(s.SampleRate, outputRate, s.Channels)
	return &audio.Sample{
		SampleRate: outputRate,
		Channels:   s.Channels,
		Data:       r.Resample(s.Data),
	}
}
