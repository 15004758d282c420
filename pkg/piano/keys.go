// ABOUTME: The 88-key keyboard from a-1 to c7
// ABOUTME: Note naming, ordering and equal-tempered frequencies
package piano

import (
	"math"
	"strconv"
)

// bareNotes are the note names within one octave, sharps spelled with "s"
var bareNotes = []string{"c", "cs", "d", "ds", "e", "f", "fs", "g", "gs", "a", "as", "b"}

// KeyNames lists all 88 key names from lowest to highest
var KeyNames = buildKeyNames()

var keyIndex = func() map[string]int {
	m := make(map[string]int, len(KeyNames))
	for i, name := range KeyNames {
		m[name] = i
	}
	return m
}()

func buildKeyNames() []string {
	names := []string{"a-1", "as-1", "b-1"}
	for oct := 0; oct < 7; oct++ {
		for _, n := range bareNotes {
			names = append(names, n+strconv.Itoa(oct))
		}
	}
	return append(names, "c7")
}

// KeyIndex returns the position of a key, 0 for a-1
func KeyIndex(note string) (int, bool) {
	i, ok := keyIndex[note]
	return i, ok
}

// MIDINumber returns the MIDI note number of a key; a-1 is 21
func MIDINumber(note string) (int, bool) {
	i, ok := keyIndex[note]
	if !ok {
		return 0, false
	}
	return i + 21, true
}

// Frequency returns the equal-tempered pitch of a key in Hz (a3 is 440)
func Frequency(note string) (float64, bool) {
	n, ok := MIDINumber(note)
	if !ok {
		return 0, false
	}
	return 440 * math.Pow(2, float64(n-69)/12), true
}

// IsSharp reports whether a key is a black key
func IsSharp(note string) bool {
	return len(note) > 1 && note[1] == 's'
}
