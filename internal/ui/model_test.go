// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests key mapping, auto release, pedal, volume and status updates
package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/pianoroom/pkg/sync"
)

type fakeKeyboard struct {
	pressed  []string
	released []string
	pedal    bool
	auto     bool
}

func (k *fakeKeyboard) Press(note string, _ float64) { k.pressed = append(k.pressed, note) }
func (k *fakeKeyboard) Release(note string) { k.released = append(k.released, note) }
func (k *fakeKeyboard) PressSustain() { k.pedal = true }
func (k *fakeKeyboard) ReleaseSustain() { k.pedal = false }
func (k *fakeKeyboard) SetAutoSustain(on bool) { k.auto = on }
func (k *fakeKeyboard) AutoSustain() bool { return k.auto }

type fakeMixer struct {
	volume    float64
	paused    bool
	resumeErr error
}

func (m *fakeMixer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.volume = v
}
func (m *fakeMixer) Volume() float64 { return m.volume }
func (m *fakeMixer) Pause() { m.paused = true }
func (m *fakeMixer) Resume() error {
	if m.resumeErr != nil {
		return m.resumeErr
	}
	m.paused = false
	return nil
}
func (m *fakeMixer) Paused() bool { return m.paused }

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestNewModel(t *testing.T) {
	m := NewModel(nil, nil)
	if m.connected {
		t.Error("expected connected to be false initially")
	}
	if m.octave != 3 {
		t.Errorf("expected octave 3, got %d", m.octave)
	}
	if m.syncQuality != sync.QualityLost {
		t.Errorf("expected lost sync before any status, got %v", m.syncQuality)
	}
	// nil collaborators must not panic
	m, _ = send(t, m, keyMsg("a"))
	m, _ = send(t, m, keyMsg("up"))
	m, _ = send(t, m, keyMsg(" "))
	_ = m.View()
}

func TestKeyMapping(t *testing.T) {
	kb := &fakeKeyboard{}
	m := NewModel(kb, &fakeMixer{})

	tests := []struct {
		key  string
		want string
	}{
		{"a", "c3"},
		{"w", "cs3"},
		{"h", "a3"},
		{"k", "c4"},
		{"'", "f4"},
	}
	for _, tt := range tests {
		m, _ = send(t, m, keyMsg(tt.key))
		last := kb.pressed[len(kb.pressed)-1]
		if last != tt.want {
			t.Errorf("key %q pressed %s, want %s", tt.key, last, tt.want)
		}
	}
}

func TestOctaveShift(t *testing.T) {
	kb := &fakeKeyboard{}
	m := NewModel(kb, nil)

	for i := 0; i < 10; i++ {
		m, _ = send(t, m, keyMsg("z"))
	}
	if m.octave != 0 {
		t.Fatalf("octave should floor at 0, got %d", m.octave)
	}
	m, _ = send(t, m, keyMsg("a"))
	if kb.pressed[0] != "c0" {
		t.Errorf("expected c0, got %s", kb.pressed[0])
	}

	for i := 0; i < 10; i++ {
		m, _ = send(t, m, keyMsg("x"))
	}
	if m.octave != 6 {
		t.Fatalf("octave should cap at 6, got %d", m.octave)
	}
	// c7 is the top key; anything above it is ignored
	m, _ = send(t, m, keyMsg("k"))
	m, _ = send(t, m, keyMsg("o"))
	if got := kb.pressed[len(kb.pressed)-1]; got != "c7" {
		t.Errorf("expected c7 to be the last press, got %s", got)
	}
}

func TestAutoRelease(t *testing.T) {
	kb := &fakeKeyboard{}
	m := NewModel(kb, nil)

	m, cmd := send(t, m, keyMsg("a"))
	if cmd == nil {
		t.Fatal("press should schedule a release")
	}
	first := m.held["c3"]

	// key repeat: no second press, newer release wins
	m, _ = send(t, m, keyMsg("a"))
	if len(kb.pressed) != 1 {
		t.Errorf("repeat should not re-press, got %v", kb.pressed)
	}

	m, _ = send(t, m, releaseMsg{note: "c3", seq: first})
	if len(kb.released) != 0 {
		t.Error("stale release should be ignored")
	}

	m, _ = send(t, m, releaseMsg{note: "c3", seq: m.held["c3"]})
	if len(kb.released) != 1 || kb.released[0] != "c3" {
		t.Errorf("expected c3 released, got %v", kb.released)
	}
	if _, ok := m.held["c3"]; ok {
		t.Error("released key should not be held")
	}
}

func TestVolumeKeys(t *testing.T) {
	mx := &fakeMixer{volume: 0.5}
	m := NewModel(nil, mx)

	m, _ = send(t, m, keyMsg("up"))
	if mx.volume < 0.549 || mx.volume > 0.551 {
		t.Errorf("expected 0.55, got %v", mx.volume)
	}
	for i := 0; i < 30; i++ {
		m, _ = send(t, m, keyMsg("down"))
	}
	if mx.volume != 0 {
		t.Errorf("expected volume to floor at 0, got %v", mx.volume)
	}
}

func TestPedalAndAutoSustain(t *testing.T) {
	kb := &fakeKeyboard{}
	m := NewModel(kb, nil)

	m, _ = send(t, m, keyMsg(" "))
	if !kb.pedal || !m.pedal {
		t.Error("space should put the pedal down")
	}
	m, _ = send(t, m, keyMsg(" "))
	if kb.pedal || m.pedal {
		t.Error("second space should lift the pedal")
	}

	m, _ = send(t, m, keyMsg("tab"))
	if !kb.auto {
		t.Error("tab should toggle auto sustain on")
	}
	if !strings.Contains(m.View(), "auto sustain") {
		t.Error("view should show auto sustain")
	}
}

func TestPauseResume(t *testing.T) {
	mx := &fakeMixer{paused: true}
	m := NewModel(nil, mx)

	if !strings.Contains(m.View(), "paused") {
		t.Error("view should show paused audio")
	}
	m, _ = send(t, m, keyMsg("ctrl+p"))
	if mx.paused {
		t.Error("ctrl+p should resume")
	}
	m, _ = send(t, m, keyMsg("ctrl+p"))
	if !mx.paused {
		t.Error("ctrl+p should pause again")
	}

	mx.resumeErr = errors.New("no device")
	m, _ = send(t, m, keyMsg("ctrl+p"))
	if !strings.Contains(m.View(), "no device") {
		t.Error("resume failure should be shown")
	}
}

func TestBlipsExpire(t *testing.T) {
	m := NewModel(nil, nil)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	m, _ = send(t, m, BlipMsg{Note: "c3", Color: "#ff0000"})
	if _, ok := m.blips["c3"]; !ok {
		t.Fatal("blip should be recorded")
	}

	now = now.Add(blipLife / 2)
	m, _ = send(t, m, tickMsg(now))
	if _, ok := m.blips["c3"]; !ok {
		t.Error("blip expired too early")
	}

	now = now.Add(blipLife)
	m, cmd := send(t, m, tickMsg(now))
	if _, ok := m.blips["c3"]; ok {
		t.Error("blip should have expired")
	}
	if cmd == nil {
		t.Error("tick should reschedule itself")
	}
}

func TestStatusMsg(t *testing.T) {
	m := NewModel(nil, nil)

	connected := true
	m, _ = send(t, m, StatusMsg{
		Connected:    &connected,
		Room:         "studio",
		Participants: 3,
		SyncRTT:      5000,
		SyncQuality:  sync.QualityGood,
		Loaded:       88,
	})

	if !m.connected || m.room != "studio" || m.participants != 3 {
		t.Errorf("unexpected connection state: %v %q %d", m.connected, m.room, m.participants)
	}
	if m.syncRTT != 5000 || m.syncQuality != sync.QualityGood {
		t.Errorf("unexpected sync state: %d %v", m.syncRTT, m.syncQuality)
	}
	view := m.View()
	for _, want := range []string{"studio", "3 playing", "good", "88/88 loaded"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	disconnected := false
	m, _ = send(t, m, StatusMsg{Connected: &disconnected})
	if m.connected {
		t.Error("expected disconnected")
	}
	if m.room != "studio" {
		t.Error("room name should survive a status without one")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "░░░░░░░░░░"},
		{0.5, "█████░░░░░"},
		{1, "██████████"},
		{2, "██████████"},
	}
	for _, tt := range tests {
		if got := renderBar(tt.value, 10); got != tt.want {
			t.Errorf("renderBar(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
