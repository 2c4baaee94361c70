package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/version"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultMaxSize caps a single download.
	DefaultMaxSize = 1 << 30
)

// DefaultCacheDir is the download cache used when none is configured.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "trellis_cache")
}

// Fetcher downloads remote files into a local cache and fetches JSON
// documents, retrying transient failures.
type Fetcher struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// CacheDir holds downloaded files, one per URL.
	CacheDir string

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool

	// MaxSize is the largest body accepted, in bytes.
	MaxSize int64
}

// NewFetcher creates a fetcher caching into cacheDir (DefaultCacheDir when
// empty).
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	return &Fetcher{
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		CacheDir:              cacheDir,
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		MaxSize:               DefaultMaxSize,
	}
}

// CachePath returns where a URL is cached: a hash of the full URL followed
// by the URL's file name, so equal file names from different URLs never
// collide.
func (f *Fetcher) CachePath(rawURL string) string {
	name := "download"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r < 32 {
			return '_'
		}
		return r
	}, name)
	return filepath.Join(f.CacheDir, fmt.Sprintf("%016x_%s", xxhash.Sum64String(rawURL), name))
}

// IsCached reports whether the URL is already downloaded.
func (f *Fetcher) IsCached(rawURL string) bool {
	info, err := os.Stat(f.CachePath(rawURL))
	return err == nil && info.Mode().IsRegular()
}

// Download returns the local path of the URL's content, fetching it when
// it is not cached yet.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}

	dest := f.CachePath(rawURL)
	if f.IsCached(rawURL) {
		logging.Debug("Asset cache hit", zap.String("url", rawURL), zap.String("path", dest))
		return dest, nil
	}

	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", newIOError("failed to create cache directory", err)
	}

	err := f.retry(ctx, func() error {
		return f.downloadAttempt(ctx, rawURL, dest)
	})
	if err != nil {
		return "", err
	}

	logging.Info("Asset downloaded", zap.String("url", rawURL), zap.String("path", dest))
	return dest, nil
}

func (f *Fetcher) downloadAttempt(ctx context.Context, rawURL, dest string) error {
	resp, err := f.get(ctx, rawURL, "*/*")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	tmp, err := os.CreateTemp(f.CacheDir, ".partial-*")
	if err != nil {
		return newIOError("failed to create temporary file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxSize()+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return classifyNetworkError("failed to read response body", rawURL, err)
	}
	if n > f.maxSize() {
		return &FetchError{Type: ErrTypeTooLarge, Message: fmt.Sprintf("body exceeds %d bytes", f.maxSize()), URL: rawURL}
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return newIOError("failed to move download into cache", err)
	}
	return nil
}

// GetJSON fetches a JSON document into v. Responses are not cached.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	return f.retry(ctx, func() error {
		resp, err := f.get(ctx, rawURL, "application/json")
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize()))
		if err != nil {
			return classifyNetworkError("failed to read response body", rawURL, err)
		}
		if err := json.Unmarshal(body, v); err != nil {
			return newParseError("failed to parse JSON response", err)
		}
		return nil
	})
}

// get performs a single GET and rejects non-2xx statuses.
func (f *Fetcher) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Type: ErrTypeNetwork, Message: "failed to create GET request", URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", accept)

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyNetworkError("GET request failed", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, newHTTPError(rawURL, resp.StatusCode)
	}
	return resp, nil
}

// retry runs attempt until it succeeds, fails with a non-retryable error or
// runs out of attempts.
func (f *Fetcher) retry(ctx context.Context, attempt func() error) error {
	var lastErr error
	currentDelay := f.RetryDelay

	for i := 0; i <= f.MaxRetries; i++ {
		if i > 0 {
			logging.Warn("Retrying fetch",
				zap.Int("attempt", i+1),
				zap.Duration("delay", currentDelay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(currentDelay):
			}

			if f.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > f.MaxRetryDelay {
					currentDelay = f.MaxRetryDelay
				}
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return lastErr
}

func (f *Fetcher) maxSize() int64 {
	if f.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return f.MaxSize
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &FetchError{Type: ErrTypeNetwork, Message: "invalid URL", URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &FetchError{Type: ErrTypeNetwork, Message: fmt.Sprintf("unsupported URL scheme %q", u.Scheme), URL: rawURL}
	}
	if u.Host == "" {
		return &FetchError{Type: ErrTypeNetwork, Message: "URL has no host", URL: rawURL}
	}
	return nil
}
