// SPDX-License-Identifier: MIT

// Package source downloads playlist and guide feeds into local spool files
// so the guide passes can read them more than once.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/platform/httpx"
	xnet "github.com/ManuGH/xgcurate/internal/platform/net"
)

// ErrUnavailable marks a source that could not be fetched.
var ErrUnavailable = errors.New("source unavailable")

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const defaultBackoff = 500 * time.Millisecond

// Source is a named feed location: an http(s) URL, a file:// URL or a path.
type Source struct {
	Name string
	URL  string
}

// Label identifies the source in logs without leaking credentials.
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return xnet.SanitizeURL(s.URL)
}

// Options configures a Fetcher.
type Options struct {
	// Dir receives spool files. Empty means os.TempDir().
	Dir       string
	UserAgent string
	// Retries is the number of additional attempts after a failed download.
	Retries int
	// Backoff is the base retry delay; attempt n waits n*n*Backoff.
	Backoff time.Duration
	// Rate limits requests per second across all sources. Zero disables it.
	Rate float64
	// Client overrides the HTTP client. Nil builds one with ClientTimeout.
	Client        *http.Client
	ClientTimeout time.Duration
}

// Fetcher downloads sources into spool files.
type Fetcher struct {
	client    *http.Client
	dir       string
	userAgent string
	retries   int
	backoff   time.Duration
	limiter   *rate.Limiter
}

// NewFetcher builds a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:    opts.Client,
		dir:       opts.Dir,
		userAgent: opts.UserAgent,
		retries:   max(opts.Retries, 0),
		backoff:   opts.Backoff,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	if f.client == nil {
		f.client = httpx.NewClient(opts.ClientTimeout)
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.backoff <= 0 {
		f.backoff = defaultBackoff
	}
	if opts.Rate > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return f
}

// Spool is a fetched source on local disk.
type Spool struct {
	Source   Source
	Path     string
	Size     int64
	Duration time.Duration
	owned    bool
}

// Open returns the raw spooled bytes.
func (s *Spool) Open() (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// Reader returns the spooled content, gunzipped when compressed.
func (s *Spool) Reader() (io.ReadCloser, error) {
	f, err := s.Open()
	if err != nil {
		return nil, err
	}
	rc, err := Decompress(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &stackedCloser{ReadCloser: rc, under: f}, nil
}

// Remove deletes the spool file when the fetcher created it. Local file
// sources are left alone.
func (s *Spool) Remove() error {
	if s == nil || !s.owned {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (c *stackedCloser) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.under.Close())
}

// Fetch makes src available as a local file. Local sources are used in
// place. Remote sources are downloaded under timeout with retries; every
// failure is wrapped in ErrUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, src Source, timeout time.Duration) (*Spool, error) {
	started := time.Now()

	loc, err := xnet.ParseLocation(src.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, src.Label(), err)
	}

	if loc.Kind == xnet.KindFile {
		info, err := os.Stat(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, src.Label(), err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s: is a directory", ErrUnavailable, src.Label())
		}
		return &Spool{Source: src, Path: loc.Path, Size: info.Size(), Duration: time.Since(started)}, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	spool, err := f.fetchWithRetry(ctx, src, loc.URL.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, src.Label(), err)
	}
	spool.Duration = time.Since(started)
	return spool, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, src Source, rawURL string) (*Spool, error) {
	logger := xglog.WithComponentFromContext(ctx, "source")

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * f.backoff
			logger.Warn().
				Err(lastErr).
				Str(xglog.FieldEvent, "source.retry").
				Str(xglog.FieldSource, src.Label()).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying source download")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		spool, err := f.download(ctx, src, rawURL)
		if err == nil {
			return spool, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("after %d attempt(s): %w", f.retries+1, lastErr)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.code, http.StatusText(e.code))
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusRequestTimeout || e.code == http.StatusTooManyRequests
}

func (f *Fetcher) download(ctx context.Context, src Source, rawURL string) (*Spool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(f.dir, "xgcurate-*.spool")
	if err != nil {
		return nil, fmt.Errorf("create spool: %w", err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("spool body: %w", err)
	}

	return &Spool{Source: src, Path: tmp.Name(), Size: n, owned: true}, nil
}
