// ABOUTME: MIDI note numbers to piano key names
// ABOUTME: Decodes raw channel messages into presses, releases and pedal moves
package keys

import "github.com/Resonate-Protocol/pianoroom/pkg/piano"

// Transpose shifts incoming MIDI notes; the key table starts at a-1
const Transpose = -12

// MIDI status nibbles and controllers
const (
	cmdNoteOff       = 0x8
	cmdNoteOn        = 0x9
	cmdControlChange = 0xB
	ccSustain        = 64
)

// NoteName maps a MIDI note number to a key name
func NoteName(midi int) (string, bool) {
	i := midi - 9 + Transpose
	if i < 0 || i >= len(piano.KeyNames) {
		return "", false
	}
	return piano.KeyNames[i], true
}

// HandleMIDI applies one three-byte MIDI message to s. Note-on with
// velocity 0 counts as note-off; controller 64 drives the sustain pedal.
func (s *Sustain) HandleMIDI(status, data1, data2 byte) {
	switch status >> 4 {
	case cmdNoteOff:
		if name, ok := NoteName(int(data1)); ok {
			s.Release(name)
		}
	case cmdNoteOn:
		name, ok := NoteName(int(data1))
		if !ok {
			return
		}
		if data2 == 0 {
			s.Release(name)
			return
		}
		s.Press(name, float64(data2)/127*piano.DefaultVelocity)
	case cmdControlChange:
		if data1 != ccSustain {
			return
		}
		if data2 >= 64 {
			s.PressSustain()
		} else {
			s.ReleaseSustain()
		}
	}
}
