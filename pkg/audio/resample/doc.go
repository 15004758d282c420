// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts note samples to the mixer's sample rate at load time
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling.
//
// Example:
//
//	converted := resample.Sample(decoded, 48000)
package resample
