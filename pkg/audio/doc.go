// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Sample type shared by decoders, the sample store and the mixer
// Package audio provides fundamental audio types and utilities.
//
// A Sample is an immutable, decoded note recording: interleaved float32 PCM with
// its sample rate and channel count. Decoders produce Samples, the sample store
// owns them, and the mixer plays them back.
//
// Example:
//
//	s, err := audio.NewSample(48000, 1, data)
//	fmt.Println(s.Frames(), s.Duration())
package audio
