// ABOUTME: Audio output interface tests
// ABOUTME: Verifies backend selection and headless rendering
package output

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type countingRenderer struct {
	mu     sync.Mutex
	frames int
	chans  int
}

func (c *countingRenderer) Render(out []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames += len(out) / c.chans
	for i := range out {
		out[i] = 0.25
	}
}

func (c *countingRenderer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*Malgo)(nil)
	var _ Output = (*Headless)(nil)
}

func TestNewSelectsBackend(t *testing.T) {
	out, err := New("headless", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := out.(*Headless); !ok {
		t.Errorf("expected *Headless, got %T", out)
	}

	out, err = New("", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := out.(*Oto); !ok {
		t.Errorf("expected default *Oto, got %T", out)
	}

	if _, err := New("jack", nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBackendsSorted(t *testing.T) {
	names := Backends()
	want := []string{"headless", "malgo", "oto", "portaudio"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
	}
}

func TestHeadlessNotOpen(t *testing.T) {
	h := NewHeadless(HeadlessConfig{})
	if err := h.Resume(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := h.Suspend(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestHeadlessRendersInRealTime(t *testing.T) {
	var mu sync.Mutex
	var sawBlock bool
	h := NewHeadless(HeadlessConfig{
		Tick: 5 * time.Millisecond,
		OnBlock: func(buf []float32) {
			mu.Lock()
			defer mu.Unlock()
			if len(buf) > 0 && buf[0] == 0.25 {
				sawBlock = true
			}
		},
	})
	src := &countingRenderer{chans: 2}

	if err := h.Open(48000, 2, src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	frames := src.count()
	// 100ms at 48kHz is 4800 frames; allow generous scheduler slack
	if frames < 2400 || frames > 7200 {
		t.Errorf("expected roughly 4800 frames, got %d", frames)
	}
	if int64(frames) != h.Frames() {
		t.Errorf("renderer saw %d frames, output reports %d", frames, h.Frames())
	}

	mu.Lock()
	defer mu.Unlock()
	if !sawBlock {
		t.Error("OnBlock never received rendered audio")
	}
}

func TestHeadlessSuspendStopsRendering(t *testing.T) {
	h := NewHeadless(HeadlessConfig{Tick: 2 * time.Millisecond})
	src := &countingRenderer{chans: 1}

	if err := h.Open(8000, 1, src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := h.Suspend(); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	before := src.count()
	time.Sleep(20 * time.Millisecond)
	if after := src.count(); after != before {
		t.Errorf("rendered %d frames while suspended", after-before)
	}

	if err := h.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.Close()
	if src.count() == before {
		t.Error("no frames rendered after resume")
	}
}

func TestEncodeFloat32LE(t *testing.T) {
	dst := make([]byte, 8)
	encodeFloat32LE(dst, []float32{1, -1})
	// 1.0 = 0x3f800000, -1.0 = 0xbf800000
	want := []byte{0, 0, 0x80, 0x3f, 0, 0, 0x80, 0xbf}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, want[i], dst[i])
		}
	}
}
