// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program so the player can feed it status and blips
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the piano model in the terminal
type TUI struct {
	program *tea.Program
	updates chan tea.Msg
	done    chan struct{}
}

// New creates a TUI driving keyboard and mixer
func New(keyboard Keyboard, mixer Mixer) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(keyboard, mixer), tea.WithAltScreen()),
		updates: make(chan tea.Msg, 64),
		done:    make(chan struct{}),
	}
}

// Run blocks until the user quits
func (t *TUI) Run() error {
	go func() {
		for {
			select {
			case msg := <-t.updates:
				t.program.Send(msg)
			case <-t.done:
				return
			}
		}
	}()
	defer close(t.done)

	_, err := t.program.Run()
	return err
}

// Visualize lights a key; it matches piano.Visualizer
func (t *TUI) Visualize(note, color string) {
	t.send(BlipMsg{Note: note, Color: color})
}

// Update sends a status update to the TUI
func (t *TUI) Update(status StatusMsg) {
	t.send(status)
}

// send never blocks the audio or network goroutines calling it
func (t *TUI) send(msg tea.Msg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}
