// Package mixer is a small software audio graph modelled on browser audio
// nodes. Sources (one-shot sample buffers and square oscillators) play
// through per-voice gains into a piano or synth bus. The buses are summed,
// limited and scaled by the master gain before reaching the output device.
//
// Every gain is a Param with a timeline of steps and linear ramps. Values
// and source start/stop times are evaluated per frame against the graph
// clock, so anything scheduled ahead of time lands on the exact frame.
//
// The graph does not own a device. An output from pkg/audio/output pulls
// blocks via Render, which is also how tests drive the clock.
package mixer
