// ABOUTME: Note id -> decoded sample table with asynchronous loading
// ABOUTME: Fetches, decodes, resamples to the graph rate and stores each note
package samples

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
	"github.com/Resonate-Protocol/pianoroom/pkg/audio/decode"
	"github.com/Resonate-Protocol/pianoroom/pkg/audio/resample"
)

var (
	// ErrUnsupportedFormat is returned when a locator's data cannot be decoded
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	// ErrNotFound is returned when a locator does not exist
	ErrNotFound = errors.New("sample not found")
)

// Config configures a Store
type Config struct {
	// SampleRate is the graph rate every sample is converted to
	SampleRate int
	Fetcher    Fetcher
	// Concurrency bounds parallel loads in LoadAll (default 8)
	Concurrency int
	// RawFormat describes headerless .pcm files
	RawFormat audio.Format
	Logger    *zap.Logger
}

// Store maps note ids to decoded samples
type Store struct {
	mu     sync.RWMutex
	sounds map[string]*audio.Sample
	cfg    Config
	logger *zap.Logger
}

// NewStore creates an empty store
func NewStore(cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Fetcher == nil {
		// without a cache dir NewDownloader cannot fail
		cfg.Fetcher, _ = NewDownloader(FetcherConfig{Logger: cfg.Logger})
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Store{
		sounds: make(map[string]*audio.Sample),
		cfg:    cfg,
		logger: cfg.Logger.Named("samples"),
	}
}

// Load fetches and stores noteID in the background. The returned channel
// yields exactly one value (nil on success) and is then closed.
func (s *Store) Load(ctx context.Context, noteID, locator string) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.load(ctx, noteID, locator)
	}()
	return done
}

// LoadAll loads every note id -> locator pair with bounded concurrency.
// Failures do not stop other loads; they are joined into the returned error.
func (s *Store) LoadAll(ctx context.Context, locators map[string]string, onLoaded func(noteID string)) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.cfg.Concurrency)

	for noteID, locator := range locators {
		g.Go(func() error {
			if err := s.load(ctx, noteID, locator); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			if onLoaded != nil {
				onLoaded(noteID)
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (s *Store) load(ctx context.Context, noteID, locator string) error {
	sample, err := s.fetchSample(ctx, locator)
	if err != nil {
		s.logger.Warn("sample load failed",
			zap.String("note", noteID),
			zap.String("locator", locator),
			zap.Error(err))
		return fmt.Errorf("load %s: %w", noteID, err)
	}
	s.Put(noteID, sample)
	s.logger.Debug("sample loaded",
		zap.String("note", noteID),
		zap.Int("frames", sample.Frames()),
		zap.Duration("duration", sample.Duration()))
	return nil
}

func (s *Store) fetchSample(ctx context.Context, locator string) (*audio.Sample, error) {
	dec, err := decode.ForName(locator, s.cfg.RawFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	defer dec.Close()

	data, err := s.cfg.Fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}

	sample, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return resample.Sample(sample, s.cfg.SampleRate), nil
}

// Put stores a decoded sample; voices holding the previous one keep it
func (s *Store) Put(noteID string, sample *audio.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sounds[noteID] = sample
}

// Get returns the sample for noteID
func (s *Store) Get(noteID string) (*audio.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.sounds[noteID]
	return sample, ok
}

// Has reports whether noteID is playable
func (s *Store) Has(noteID string) bool {
	_, ok := s.Get(noteID)
	return ok
}

// Len returns the number of loaded notes
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sounds)
}
