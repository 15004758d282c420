// ABOUTME: Audio decoder package for note samples
// ABOUTME: Provides Decoder interface and implementations for WAV, MP3, FLAC, Opus and PCM
// Package decode turns encoded sample files into audio.Sample values.
//
// Supports: WAV, MP3, FLAC, Ogg/Opus and headerless PCM (16-bit and 24-bit).
//
// Example:
//
//	dec, err := decode.ForName("c4.mp3", audio.Format{})
//	sample, err := dec.Decode(data)
package decode
