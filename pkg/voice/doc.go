// Package voice tracks the sounding note of every key and shapes how it
// starts, gets replaced and fades out.
//
// A Manager keeps at most one voice per note id. Pressing a key that is
// already sounding fades the old voice out over 200ms while the new one
// starts at full velocity. Releasing a key drops its level to 10% over
// 160ms and to silence by 400ms, but only when the release comes from the
// participant who started the voice.
//
// All times are seconds on the mixer.Graph clock.
package voice
