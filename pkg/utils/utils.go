// Package utils fetches remote assets such as the world GeoJSON, keeping a
// local copy so later runs start offline.
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sudorandom/mandala-map/pkg/logging"
)

var ErrNotFound = errors.New("file not found on server")

const DefaultCacheDir = "data/cache"

type progressWriter struct {
	io.Writer
	total  uint64
	last   uint64
	label  string
	logger logging.Logger
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 {
		pw.logger.Info("download progress", logging.String("file", pw.label), logging.Int("mb", int(pw.total/1024/1024)))
		pw.last = pw.total
	}
	return n, err
}

// Fetcher opens assets from local paths or http(s) URLs. URLs are cached
// under CacheDir.
type Fetcher struct {
	CacheDir string
	Client   *http.Client
	Logger   logging.Logger
}

func NewFetcher(cacheDir string, logger logging.Logger) *Fetcher {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Fetcher{CacheDir: cacheDir, Client: http.DefaultClient, Logger: logger}
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// CacheFileName is the local name used for url.
func CacheFileName(url string) string {
	url = strings.SplitN(url, "?", 2)[0]
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	return parts[len(parts)-1]
}

// Open returns a reader for source, downloading it into the cache first if it
// is a URL that has not been fetched before.
func (f *Fetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !IsURL(source) {
		return os.Open(source)
	}
	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	local := filepath.Join(f.CacheDir, CacheFileName(source))
	if _, err := os.Stat(local); os.IsNotExist(err) {
		f.Logger.Info("downloading asset", logging.String("url", source))
		if err := f.Download(ctx, source, local); err != nil {
			return nil, err
		}
	} else {
		f.Logger.Debug("using cached asset", logging.String("path", local))
	}
	r, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return r, nil
}

// ReadAll is Open followed by io.ReadAll.
func (f *Fetcher) ReadAll(ctx context.Context, source string) ([]byte, error) {
	r, err := f.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Download writes url to path, replacing it atomically once complete.
func (f *Fetcher) Download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.Logger.Warn("closing response body", logging.Err(err))
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			f.Logger.Warn("removing temp file", logging.String("path", tmpName), logging.Err(err))
		}
	}()

	pw := &progressWriter{Writer: tmp, label: filepath.Base(path), logger: f.Logger}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
