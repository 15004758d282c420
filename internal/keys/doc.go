// Package keys turns key presses into piano notes for the local player.
//
// Sustain tracks held and ringing keys so the sustain pedal and auto
// sustain behave like a real piano, and HandleMIDI maps raw MIDI channel
// messages onto it.
package keys
