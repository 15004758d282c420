// Package samples fetches, decodes and keeps the recorded sound of every
// piano key.
//
// Loads are asynchronous: Load returns immediately and reports on a
// channel once the sample is decoded, resampled to the graph rate and
// stored. A failed load is logged and leaves the slot as it was, so a key
// that never loaded simply stays silent.
//
// Locators may be http(s) URLs, file:// URLs or plain paths. The codec is
// picked from the extension (.wav, .mp3, .flac, .ogg/.opus, .pcm).
package samples
