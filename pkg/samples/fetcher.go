// ABOUTME: Fetches encoded sample files from HTTP, file URLs or disk
// ABOUTME: HTTP downloads are cached on disk under a hash of the URL
package samples

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Fetcher retrieves the raw bytes behind a locator
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// FetcherConfig configures the default fetcher
type FetcherConfig struct {
	// CacheDir enables the on-disk download cache when set
	CacheDir string
	Client   *http.Client
	Logger   *zap.Logger
}

// Downloader is the default Fetcher
type Downloader struct {
	cacheDir string
	client   *http.Client
	logger   *zap.Logger
}

// NewDownloader creates a fetcher, creating the cache directory if needed
func NewDownloader(cfg FetcherConfig) (*Downloader, error) {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return &Downloader{
		cacheDir: cfg.CacheDir,
		client:   cfg.Client,
		logger:   cfg.Logger.Named("fetch"),
	}, nil
}

// Fetch returns the bytes behind locator
func (d *Downloader) Fetch(ctx context.Context, locator string) ([]byte, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return d.fetchHTTP(ctx, locator)
	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("invalid file url %q: %w", locator, err)
		}
		return readFile(u.Path)
	default:
		return readFile(locator)
	}
}

func (d *Downloader) fetchHTTP(ctx context.Context, locator string) ([]byte, error) {
	cachePath := d.cachePath(locator)
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil {
			d.logger.Debug("cache hit", zap.String("url", locator))
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download sample: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("sample download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample body: %w", err)
	}

	if cachePath != "" {
		if err := writeAtomic(cachePath, data); err != nil {
			d.logger.Warn("failed to cache sample", zap.String("url", locator), zap.Error(err))
		}
	}
	return data, nil
}

// cachePath names the cache file for a URL; empty when caching is off
func (d *Downloader) cachePath(locator string) string {
	if d.cacheDir == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(locator))
	ext := filepath.Ext(strings.SplitN(locator, "?", 2)[0])
	return filepath.Join(d.cacheDir, fmt.Sprintf("%x%s", hash[:8], ext))
}

// Cleanup removes the cache directory
func (d *Downloader) Cleanup() error {
	if d.cacheDir == "" {
		return nil
	}
	return os.RemoveAll(d.cacheDir)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}
	return data, nil
}

// writeAtomic writes through a temp file so readers never see a partial sample
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}
