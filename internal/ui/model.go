// ABOUTME: Bubbletea model for the piano TUI
// ABOUTME: Maps the computer keyboard onto piano keys and shows who is playing
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/pianoroom/pkg/piano"
	"github.com/Resonate-Protocol/pianoroom/pkg/sync"
)

// Keyboard receives presses; *keys.Sustain implements it
type Keyboard interface {
	Press(note string, velocity float64)
	Release(note string)
	PressSustain()
	ReleaseSustain()
	SetAutoSustain(on bool)
	AutoSustain() bool
}

// Mixer is the engine control surface; *piano.Engine implements it
type Mixer interface {
	SetVolume(v float64)
	Volume() float64
	Pause()
	Resume() error
	Paused() bool
}

// Terminals report presses but not releases, so every press is let go
// after HoldFor unless the key repeats first.
const HoldFor = 350 * time.Millisecond

// blipLife is how long a played note stays lit
const blipLife = 600 * time.Millisecond

// keyRow maps a row of computer keys onto semitones from the base C
var keyRow = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13,
	"l": 14, "p": 15, ";": 16, "'": 17,
}

// Model represents the TUI state
type Model struct {
	keyboard Keyboard
	mixer    Mixer
	now      func() time.Time

	// Connection
	connected    bool
	room         string
	participants int

	// Sync
	syncOffset  int64
	syncRTT     int64
	syncQuality sync.Quality

	// Piano
	octave  int
	pedal   bool
	held    map[string]int
	seq     int
	blips   map[string]blip
	loaded  int
	voices  int
	pending int
	status  string

	width  int
	height int
}

type blip struct {
	color string
	at    time.Time
}

// releaseMsg lets go of a key unless it was pressed again since
type releaseMsg struct {
	note string
	seq  int
}

type tickMsg time.Time

// BlipMsg lights a key in a participant's color
type BlipMsg struct {
	Note  string
	Color string
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected    *bool
	Room         string
	Participants int
	SyncOffset   int64
	SyncRTT      int64
	SyncQuality  sync.Quality
	Loaded       int
	Voices       int
	Pending      int
}

// NewModel creates a TUI model
func NewModel(keyboard Keyboard, mixer Mixer) Model {
	return Model{
		keyboard:    keyboard,
		mixer:       mixer,
		now:         time.Now,
		octave:      3,
		held:        make(map[string]int),
		blips:       make(map[string]blip),
		syncQuality: sync.QualityLost,
	}
}

// Init starts the redraw ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case releaseMsg:
		if seq, ok := m.held[msg.note]; ok && seq == msg.seq {
			delete(m.held, msg.note)
			if m.keyboard != nil {
				m.keyboard.Release(msg.note)
			}
		}
	case BlipMsg:
		m.blips[msg.Note] = blip{color: msg.Color, at: m.now()}
	case StatusMsg:
		m.applyStatus(msg)
	case tickMsg:
		m.expireBlips()
		return m, tickEvery()
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if semis, ok := keyRow[key]; ok {
		return m.press(semis)
	}

	switch key {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "z":
		if m.octave > 0 {
			m.octave--
		}
	case "x":
		if m.octave < 6 {
			m.octave++
		}
	case "up", "down":
		if m.mixer == nil {
			break
		}
		step := 0.05
		if key == "down" {
			step = -step
		}
		m.mixer.SetVolume(m.mixer.Volume() + step)
	case " ":
		if m.keyboard == nil {
			break
		}
		m.pedal = !m.pedal
		if m.pedal {
			m.keyboard.PressSustain()
		} else {
			m.keyboard.ReleaseSustain()
		}
	case "tab":
		if m.keyboard != nil {
			m.keyboard.SetAutoSustain(!m.keyboard.AutoSustain())
		}
	case "ctrl+p":
		if m.mixer == nil {
			break
		}
		if m.mixer.Paused() {
			if err := m.mixer.Resume(); err != nil {
				m.status = fmt.Sprintf("resume failed: %v", err)
			}
		} else {
			m.mixer.Pause()
		}
	}

	return m, nil
}

// press sounds the key semis above C of the current octave
func (m Model) press(semis int) (tea.Model, tea.Cmd) {
	idx := m.baseIndex() + semis
	if idx < 0 || idx >= len(piano.KeyNames) {
		return m, nil
	}
	note := piano.KeyNames[idx]

	m.seq++
	if _, repeat := m.held[note]; !repeat && m.keyboard != nil {
		m.keyboard.Press(note, piano.DefaultVelocity)
	}
	m.held[note] = m.seq

	seq := m.seq
	return m, tea.Tick(HoldFor, func(time.Time) tea.Msg {
		return releaseMsg{note: note, seq: seq}
	})
}

// baseIndex is the key index of C in the current octave
func (m Model) baseIndex() int {
	return 3 + 12*m.octave
}

func (m *Model) expireBlips() {
	now := m.now()
	for note, b := range m.blips {
		if now.Sub(b.at) > blipLife {
			delete(m.blips, note)
		}
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.Room != "" {
		m.room = msg.Room
	}
	m.participants = msg.Participants
	m.syncOffset = msg.SyncOffset
	m.syncRTT = msg.SyncRTT
	m.syncQuality = msg.SyncQuality
	m.loaded = msg.Loaded
	m.voices = msg.Voices
	m.pending = msg.Pending
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	whiteKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	blackKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pianoroom"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Room:   "))
	if m.connected {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%d playing)", m.room, m.participants)))
	} else {
		b.WriteString(valueStyle.Render("offline"))
	}
	b.WriteString("\n")

	if m.connected {
		b.WriteString(headerStyle.Render("Sync:   "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s (offset %+.1fms, rtt %.1fms)",
			m.syncQuality, float64(m.syncOffset)/1000, float64(m.syncRTT)/1000)))
		b.WriteString("\n")
	}

	volume, state := 0.0, "running"
	if m.mixer != nil {
		volume = m.mixer.Volume()
		if m.mixer.Paused() {
			state = "paused (ctrl+p to start audio)"
		}
	}
	b.WriteString(headerStyle.Render("Audio:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s] %d%%  %s", renderBar(volume, 10), int(volume*100+0.5), state)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Keys:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d/%d loaded, %d voices, %d scheduled", m.loaded, len(piano.KeyNames), m.voices, m.pending)))
	b.WriteString("\n")

	pedal := "up"
	if m.pedal {
		pedal = "down"
	}
	if m.keyboard != nil && m.keyboard.AutoSustain() {
		pedal += ", auto sustain"
	}
	b.WriteString(headerStyle.Render("Pedal:  "))
	b.WriteString(valueStyle.Render(pedal))
	b.WriteString("\n\n")

	b.WriteString(m.renderKeys())
	b.WriteString("\n\n")

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("a-' play  z/x octave  ↑/↓ volume  space pedal  tab auto sustain  ctrl+p pause  esc quit"))

	return b.String()
}

// renderKeys draws the playable range, lighting recent notes in color
func (m Model) renderKeys() string {
	var b strings.Builder
	base := m.baseIndex()
	for i := 0; i < 18; i++ {
		idx := base + i
		if idx >= len(piano.KeyNames) {
			break
		}
		note := piano.KeyNames[idx]
		style := whiteKey
		if piano.IsSharp(note) {
			style = blackKey
		}
		if bl, ok := m.blips[note]; ok {
			style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(bl.color))
		}
		b.WriteString(style.Render(fmt.Sprintf("%-4s", note)))
	}
	return b.String()
}

func renderBar(value float64, width int) string {
	filled := int(value*float64(width) + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
