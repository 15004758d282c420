// Package output provides audio playback backends.
//
// Every backend pulls interleaved float32 frames from a Renderer, usually
// a *mixer.Graph, from its own audio thread. Available backends are oto
// (default), malgo, portaudio (build with -tags portaudio) and headless,
// which renders on a ticker without a device.
//
// Example:
//
//	out, err := output.New("oto", logger)
//	err = out.Open(48000, 2, graph)
package output
