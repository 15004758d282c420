package samples

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

func buildWAV(sampleRate, channels int, samples []int16) []byte {
	var data bytes.Buffer
	for _, s := range samples {
		binary.Write(&data, binary.LittleEndian, s)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// soundServer serves a 48kHz mono WAV for every *.wav path except missing.wav and bad.wav
func soundServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	wav := buildWAV(48000, 1, []int16{0, 16384, -16384, 0})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "missing.wav"):
			http.NotFound(w, r)
		case strings.HasSuffix(r.URL.Path, "bad.wav"):
			w.Write([]byte("definitely not riff"))
		case strings.HasSuffix(r.URL.Path, "boom.wav"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write(wav)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without a value")
		}
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("load timed out")
		return nil
	}
}

func TestLoadStoresSample(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 48000})

	if err := wait(t, s.Load(context.Background(), "a4", srv.URL+"/a4.wav")); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	sample, ok := s.Get("a4")
	if !ok {
		t.Fatal("sample not stored")
	}
	if sample.Frames() != 4 || sample.SampleRate != 48000 {
		t.Errorf("unexpected sample: %d frames at %dHz", sample.Frames(), sample.SampleRate)
	}
	if sample.Data[1] != 0.5 {
		t.Errorf("expected 0.5, got %f", sample.Data[1])
	}
	if !s.Has("a4") || s.Len() != 1 {
		t.Error("store bookkeeping wrong")
	}
}

func TestLoadChannelClosesAfterOneValue(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 48000})

	ch := s.Load(context.Background(), "a4", srv.URL+"/a4.wav")
	wait(t, ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
}

func TestLoadResamplesToGraphRate(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 96000})

	if err := wait(t, s.Load(context.Background(), "a4", srv.URL+"/a4.wav")); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	sample, _ := s.Get("a4")
	if sample.SampleRate != 96000 {
		t.Errorf("expected 96000Hz, got %d", sample.SampleRate)
	}
	if sample.Frames() != 7 {
		t.Errorf("expected 7 frames after 2x upsample, got %d", sample.Frames())
	}
}

func TestLoadFailuresLeaveSlotUntouched(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 48000})

	tests := []struct {
		name    string
		locator string
		want    error
	}{
		{"not found", srv.URL + "/missing.wav", ErrNotFound},
		{"garbage", srv.URL + "/bad.wav", ErrUnsupportedFormat},
		{"unknown extension", srv.URL + "/a4.xyz", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wait(t, s.Load(context.Background(), "a4", tt.locator))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if s.Has("a4") {
				t.Error("failed load filled the slot")
			}
		})
	}

	if err := wait(t, s.Load(context.Background(), "a4", srv.URL+"/boom.wav")); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestRetryOverwritesAndOldSampleSurvives(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 48000})

	old, _ := audio.NewSample(48000, 1, []float32{1, 1})
	s.Put("a4", old)

	if err := wait(t, s.Load(context.Background(), "a4", srv.URL+"/bad.wav")); err == nil {
		t.Fatal("expected failure")
	}
	if got, _ := s.Get("a4"); got != old {
		t.Error("failed reload replaced the existing sample")
	}

	if err := wait(t, s.Load(context.Background(), "a4", srv.URL+"/a4.wav")); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got, _ := s.Get("a4"); got == old {
		t.Error("successful reload did not overwrite the slot")
	}
	if old.Data[0] != 1 {
		t.Error("previous sample was mutated")
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c4.wav")
	if err := os.WriteFile(path, buildWAV(48000, 2, []int16{1, 2, 3, 4}), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(Config{SampleRate: 48000})

	if err := wait(t, s.Load(context.Background(), "c4", path)); err != nil {
		t.Fatalf("path load failed: %v", err)
	}
	if err := wait(t, s.Load(context.Background(), "c4file", "file://"+path)); err != nil {
		t.Fatalf("file url load failed: %v", err)
	}
	if err := wait(t, s.Load(context.Background(), "d4", filepath.Join(dir, "nope.wav"))); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 samples, got %d", s.Len())
	}
}

func TestLoadRespectsContext(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 48000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := wait(t, s.Load(ctx, "a4", srv.URL+"/a4.wav")); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestDownloaderCachesHTTP(t *testing.T) {
	var hits int64
	srv := soundServer(t, &hits)

	d, err := NewDownloader(FetcherConfig{CacheDir: filepath.Join(t.TempDir(), "cache")})
	if err != nil {
		t.Fatalf("NewDownloader failed: %v", err)
	}
	defer d.Cleanup()

	s := NewStore(Config{SampleRate: 48000, Fetcher: d})
	for i := 0; i < 3; i++ {
		if err := wait(t, s.Load(context.Background(), "a4", srv.URL+"/a4.wav")); err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
	}
	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Errorf("expected 1 request with cache, got %d", n)
	}
}

func TestLoadAllContinuesPastFailures(t *testing.T) {
	srv := soundServer(t, nil)
	s := NewStore(Config{SampleRate: 48000, Concurrency: 2})

	locators := map[string]string{
		"a4": srv.URL + "/a4.wav",
		"b4": srv.URL + "/b4.wav",
		"c5": srv.URL + "/missing.wav",
		"d5": srv.URL + "/d5.wav",
	}

	var mu sync.Mutex
	var loaded []string
	err := s.LoadAll(context.Background(), locators, func(id string) {
		mu.Lock()
		defer mu.Unlock()
		loaded = append(loaded, id)
	})

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected joined ErrNotFound, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "c5") {
		t.Errorf("error should name the failed note: %v", err)
	}
	if len(loaded) != 3 || s.Len() != 3 {
		t.Errorf("expected 3 loaded, callback saw %d, store has %d", len(loaded), s.Len())
	}
	if s.Has("c5") {
		t.Error("missing note should stay unplayable")
	}
}
