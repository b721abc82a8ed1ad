// Package fetch retrieves single tiles from the rendering endpoint and
// persists them atomically. A tile either lands signature-valid at its
// canonical path or the path is left untouched; partial downloads never
// survive an attempt.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tileseed/tile"
)

// Defaults mirror the renderer-facing retry policy: three attempts, half a
// second of base backoff, 30s per attempt.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffBase   = 500 * time.Millisecond
	DefaultBackoffJitter = 100 * time.Millisecond
	DefaultTimeout       = 30 * time.Second
)

// Fetcher downloads tiles from a {z}/{x}/{y} templated URL. A CachePath
// template, when set, names a read-only local tile cache tried before any
// network access. Safe for concurrent use across distinct coordinates; the
// caller must not point two concurrent calls at the same destination.
type Fetcher struct {
	URL           string // request template, e.g. http://host/tile/{z}/{x}/{y}.png
	CachePath     string // optional local template, e.g. /var/cache/renderd/{z}/{x}/{y}.png
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffJitter time.Duration
	Timeout       time.Duration // per attempt
	Client        *http.Client
	Log           logrus.FieldLogger
}

// New builds a fetcher with the default retry policy.
func New(urlTemplate string, log logrus.FieldLogger) *Fetcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		URL:           urlTemplate,
		MaxAttempts:   DefaultMaxAttempts,
		BackoffBase:   DefaultBackoffBase,
		BackoffJitter: DefaultBackoffJitter,
		Timeout:       DefaultTimeout,
		Client:        http.DefaultClient,
		Log:           log,
	}
}

// TileURL 获取瓦片URL
func (f *Fetcher) TileURL(c tile.Coord) string {
	return expand(f.URL, c)
}

// CacheFile returns the local cache path for c, empty when no cache is
// configured.
func (f *Fetcher) CacheFile(c tile.Coord) string {
	if f.CachePath == "" {
		return ""
	}
	return expand(f.CachePath, c)
}

func expand(tpl string, c tile.Coord) string {
	s := strings.Replace(tpl, "{z}", strconv.Itoa(c.Z), -1)
	s = strings.Replace(s, "{x}", strconv.Itoa(c.X), -1)
	s = strings.Replace(s, "{y}", strconv.Itoa(c.Y), -1)
	return s
}

// Backoff returns the wait before the next attempt: base*2^attempt +
// jitter*attempt, attempt counted from zero.
func (f *Fetcher) Backoff(attempt int) time.Duration {
	return f.BackoffBase*(1<<uint(attempt)) + f.BackoffJitter*time.Duration(attempt)
}

// Fetch makes the artifact for c valid at dest. An already-valid dest is a
// no-op. Otherwise the local cache is tried first, then the network with
// bounded retries; every landing goes through a temp file that is
// signature-validated before being renamed into place. Returns an error
// only once all attempts are spent; dest is then absent (or still holds its
// prior valid content).
func (f *Fetcher) Fetch(ctx context.Context, c tile.Coord, dest string) error {
	if tile.ValidFile(dest) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create tile dir: %w", err)
	}

	if cached := f.CacheFile(c); cached != "" && tile.ValidFile(cached) {
		if err := f.place(cached, dest); err == nil {
			f.Log.Debugf("tile %s served from cache %s", c, cached)
			return nil
		}
		// cache copy failed, fall through to network
	}

	attempts := f.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	url := f.TileURL(c)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, f.Backoff(attempt-1)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := f.attempt(ctx, url, dest)
		if err == nil {
			f.Log.Debugf("tile %s fetched in %dms (attempt %d)", c, time.Since(start).Milliseconds(), attempt+1)
			return nil
		}
		lastErr = err
		f.Log.Debugf("tile %s attempt %d failed: %s", c, attempt+1, err)
	}
	return fmt.Errorf("fetch %s: giving up after %d attempts: %w", c, attempts, lastErr)
}

// attempt performs one GET with the per-attempt timeout and lands the body
// through a temp file. Any failure removes the temp file and leaves dest
// alone.
func (f *Fetcher) attempt(ctx context.Context, url, dest string) error {
	attemptCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if !tile.ValidFile(tmp) {
		os.Remove(tmp)
		return fmt.Errorf("response from %s is not a png", url)
	}
	return os.Rename(tmp, dest)
}

// place copies src into dest through a temp file, validating before the
// rename. Used for cache hits.
func (f *Fetcher) place(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if !tile.ValidFile(tmp) {
		os.Remove(tmp)
		return fmt.Errorf("cache copy of %s is not a png", src)
	}
	return os.Rename(tmp, dest)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
